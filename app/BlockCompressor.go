/*
Copyright 2011-2025 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jxlans "github.com/flanglet/jxlans"
	jio "github.com/flanglet/jxlans/io"
)

const (
	_COMP_DEFAULT_BUFFER_SIZE = 65536
	_COMP_DEFAULT_BLOCK_SIZE  = 1024 * 1024
	_COMP_MAX_BLOCK_SIZE      = 256 * 1024 * 1024
	_COMP_DEFAULT_CONCURRENCY = 1
	_COMP_MAX_CONCURRENCY     = 64
	_COMP_NONE                = "NONE"
	_COMP_STDIN               = "STDIN"
	_COMP_STDOUT              = "STDOUT"
)

// BlockCompressor main block compressor struct
type BlockCompressor struct {
	verbosity  uint
	overwrite  bool
	inputName  string
	outputName string
	blockSize  uint
	jobs       uint
	listeners  []jxlans.Listener
	ctx        map[string]any
}

type nullOutputStream struct{}

func (nullOutputStream) Write(b []byte) (int, error) { return len(b), nil }
func (nullOutputStream) Close() error                { return nil }

// NewBlockCompressor creates a new instance of BlockCompressor given
// a map of argument name/value pairs.
func NewBlockCompressor(argsMap map[string]any) (*BlockCompressor, error) {
	this := &BlockCompressor{}
	this.listeners = make([]jxlans.Listener, 0)
	this.ctx = make(map[string]any)
	this.verbosity = argsMap["verbosity"].(uint)

	if force, hasKey := argsMap["overwrite"]; hasKey == true {
		this.overwrite = force.(bool)
	}

	this.inputName, _ = argsMap["inputName"].(string)
	this.outputName, _ = argsMap["outputName"].(string)

	if len(this.inputName) == 0 {
		this.inputName = _COMP_STDIN
	}

	if len(this.outputName) == 0 {
		if strings.EqualFold(this.inputName, _COMP_STDIN) {
			this.outputName = _COMP_STDOUT
		} else {
			this.outputName = this.inputName + ".jxan"
		}
	}

	this.blockSize = _COMP_DEFAULT_BLOCK_SIZE

	if block, hasKey := argsMap["block"]; hasKey == true {
		this.blockSize = ((block.(uint) + 15) >> 4) << 4

		if this.blockSize > _COMP_MAX_BLOCK_SIZE {
			return nil, fmt.Errorf("Maximum block size is %d MB, got %d bytes", _COMP_MAX_BLOCK_SIZE>>20, this.blockSize)
		}

		if this.blockSize < 1024 {
			return nil, fmt.Errorf("Minimum block size is 1 KB (1024 bytes), got %d bytes", this.blockSize)
		}
	}

	this.jobs = _COMP_DEFAULT_CONCURRENCY

	if jobs, hasKey := argsMap["jobs"]; hasKey == true {
		this.jobs = jobs.(uint)

		if this.jobs == 0 || this.jobs > _COMP_MAX_CONCURRENCY {
			return nil, fmt.Errorf("The number of jobs must be in [1..%d], got %d", _COMP_MAX_CONCURRENCY, this.jobs)
		}
	}

	if cfg, hasKey := argsMap["config"]; hasKey == true {
		if err := LoadConfig(cfg.(string), this.ctx); err != nil {
			return nil, err
		}
	}

	if width, hasKey := argsMap["width"]; hasKey == true {
		if w := width.(uint); w != 8 && w != 16 {
			return nil, fmt.Errorf("The value width must be 8 or 16 bits, got %d", w)
		}

		this.ctx["wordValues"] = width.(uint) == 16
	}

	if checksum, hasKey := argsMap["checksum"]; hasKey == true {
		this.ctx["checksum"] = checksum.(bool)
	} else {
		this.ctx["checksum"] = false
	}

	this.ctx["blockSize"] = this.blockSize
	this.ctx["jobs"] = this.jobs

	if this.verbosity > 1 {
		if listener, err := NewInfoPrinter(this.verbosity, COMPRESSION, os.Stdout); err == nil {
			this.AddListener(listener)
		}
	}

	return this, nil
}

// AddListener adds an event listener to this compressor.
// Returns true if the listener has been added.
func (this *BlockCompressor) AddListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

func (this *BlockCompressor) createOutput() (io.WriteCloser, int, error) {
	if strings.EqualFold(this.outputName, _COMP_NONE) {
		return nullOutputStream{}, 0, nil
	}

	if strings.EqualFold(this.outputName, _COMP_STDOUT) {
		return os.Stdout, 0, nil
	}

	if _, err := os.Stat(this.outputName); err == nil {
		// File exists
		if this.overwrite == false {
			errMsg := fmt.Sprintf("File '%s' exists and the 'force' command line option has not been provided", this.outputName)
			return nil, jxlans.ERR_OVERWRITE_FILE, errors.New(errMsg)
		}

		path1, _ := filepath.Abs(this.inputName)
		path2, _ := filepath.Abs(this.outputName)

		if path1 == path2 {
			return nil, jxlans.ERR_CREATE_FILE, errors.New("The input and output files must be different")
		}
	}

	output, err := os.Create(this.outputName)

	if err != nil {
		return nil, jxlans.ERR_CREATE_FILE, fmt.Errorf("Cannot open output file '%s' for writing: %w", this.outputName, err)
	}

	return output, 0, nil
}

// Compress encodes the input file. Returns a status code and the number of
// bytes written.
func (this *BlockCompressor) Compress() (int, uint64) {
	var msg string
	printFlag := this.verbosity > 2
	log.Println("Input file name set to '"+this.inputName+"'", printFlag)
	log.Println("Output file name set to '"+this.outputName+"'", printFlag)
	output, code, err := this.createOutput()

	if err != nil {
		fmt.Println(err.Error())
		return code, 0
	}

	defer output.Close()
	var input io.ReadCloser

	if strings.EqualFold(this.inputName, _COMP_STDIN) {
		input = os.Stdin
	} else {
		if input, err = os.Open(this.inputName); err != nil {
			fmt.Printf("Cannot open input file '%s': %v\n", this.inputName, err)
			return jxlans.ERR_OPEN_FILE, 0
		}

		defer input.Close()
	}

	cos, err := jio.NewWriter(output, this.ctx)

	if err != nil {
		fmt.Printf("Cannot create compressed stream: %v\n", err)
		return jxlans.ErrorCodeOf(err), 0
	}

	for _, bl := range this.listeners {
		cos.AddListener(bl)
	}

	if this.verbosity > 2 {
		header := cos.Header()
		log.Println("Stream header: "+header.String(), true)
	}

	// Encode
	printFlag = this.verbosity > 1
	log.Println("\nEncoding "+this.inputName+" ...", printFlag)

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_ENCODING_START, -1, 0, 0, jxlans.EVT_HASH_NONE, time.Now())
		jxlans.NotifyListeners(this.listeners, evt)
	}

	before := time.Now()
	buffer := make([]byte, _COMP_DEFAULT_BUFFER_SIZE)
	read := uint64(0)

	for {
		length, err := input.Read(buffer)

		if length > 0 {
			if read == 0 {
				if magic := jxlans.GetMagicType(buffer[0:length]); jxlans.IsCompressed(magic) == true {
					msg = fmt.Sprintf("Warning: input looks already compressed (%s)", jxlans.MagicName(magic))
					log.Println(msg, this.verbosity > 0)
				}
			}

			read += uint64(length)

			if _, err := cos.Write(buffer[0:length]); err != nil {
				fmt.Printf("An unexpected condition happened. Exiting ...\n%v\n", err)
				return jxlans.ErrorCodeOf(err), cos.GetWritten()
			}
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Printf("Failed to read block from file '%s': %v\n", this.inputName, err)
			return jxlans.ERR_READ_FILE, cos.GetWritten()
		}
	}

	// Close the stream to ensure all data are flushed
	if err := cos.Close(); err != nil {
		fmt.Printf("%v\n", err)
		return jxlans.ErrorCodeOf(err), cos.GetWritten()
	}

	if read == 0 {
		msg = fmt.Sprintf("Input file %s is empty", this.inputName)
		log.Println(msg, this.verbosity > 0)
	}

	delta := time.Since(before).Milliseconds()
	log.Println("", printFlag)

	if delta >= 100000 {
		msg = fmt.Sprintf("%.1f s", float64(delta)/1000)
	} else {
		msg = fmt.Sprintf("%d ms", delta)
	}

	log.Println("Encoding:          "+msg, printFlag)
	log.Println(fmt.Sprintf("Input size:        %d", read), printFlag)
	log.Println(fmt.Sprintf("Output size:       %d", cos.GetWritten()), printFlag)

	if read > 0 {
		log.Println(fmt.Sprintf("Compression ratio: %f", float64(cos.GetWritten())/float64(read)), printFlag)
	}

	log.Println(fmt.Sprintf("Encoding %s: %d => %d bytes in %s", this.inputName, read, cos.GetWritten(), msg), this.verbosity == 1)

	if delta > 0 {
		log.Println(fmt.Sprintf("Throughput (KB/s): %d", ((int64(read)*1000)>>10)/delta), printFlag)
	}

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_ENCODING_END, -1, int64(cos.GetWritten()), 0, jxlans.EVT_HASH_NONE, time.Now())
		jxlans.NotifyListeners(this.listeners, evt)
	}

	for _, bl := range this.listeners {
		if ip, ok := bl.(*InfoPrinter); ok == true {
			ip.Summary()
		}
	}

	return 0, cos.GetWritten()
}
