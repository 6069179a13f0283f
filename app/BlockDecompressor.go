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
	_DECOMP_DEFAULT_BUFFER_SIZE = 65536
	_DECOMP_DEFAULT_CONCURRENCY = 1
	_DECOMP_MAX_CONCURRENCY     = 64
	_DECOMP_NONE                = "NONE"
	_DECOMP_STDIN               = "STDIN"
	_DECOMP_STDOUT              = "STDOUT"
)

// BlockDecompressor main block decompressor struct
type BlockDecompressor struct {
	verbosity  uint
	overwrite  bool
	infoOnly   bool
	inputName  string
	outputName string
	jobs       uint
	listeners  []jxlans.Listener
}

// NewBlockDecompressor creates a new instance of BlockDecompressor given
// a map of argument name/value pairs. With "info" set, the stream is
// decoded without output and its header and blocks are described.
func NewBlockDecompressor(argsMap map[string]any) (*BlockDecompressor, error) {
	this := &BlockDecompressor{}
	this.listeners = make([]jxlans.Listener, 0)
	this.verbosity = argsMap["verbosity"].(uint)

	if force, hasKey := argsMap["overwrite"]; hasKey == true {
		this.overwrite = force.(bool)
	}

	if info, hasKey := argsMap["info"]; hasKey == true {
		this.infoOnly = info.(bool)
	}

	this.inputName, _ = argsMap["inputName"].(string)
	this.outputName, _ = argsMap["outputName"].(string)

	if len(this.inputName) == 0 {
		this.inputName = _DECOMP_STDIN
	}

	if this.infoOnly == true {
		this.outputName = _DECOMP_NONE
	} else if len(this.outputName) == 0 {
		if strings.EqualFold(this.inputName, _DECOMP_STDIN) {
			this.outputName = _DECOMP_STDOUT
		} else {
			this.outputName = strings.TrimSuffix(this.inputName, ".jxan") + ".bak"
		}
	}

	this.jobs = _DECOMP_DEFAULT_CONCURRENCY

	if jobs, hasKey := argsMap["jobs"]; hasKey == true {
		this.jobs = jobs.(uint)

		if this.jobs == 0 || this.jobs > _DECOMP_MAX_CONCURRENCY {
			return nil, fmt.Errorf("The number of jobs must be in [1..%d], got %d", _DECOMP_MAX_CONCURRENCY, this.jobs)
		}
	}

	if this.infoOnly == true {
		if listener, err := NewInfoPrinter(this.verbosity, INFO, os.Stdout); err == nil {
			this.AddListener(listener)
		}
	} else if this.verbosity > 1 {
		if listener, err := NewInfoPrinter(this.verbosity, DECOMPRESSION, os.Stdout); err == nil {
			this.AddListener(listener)
		}
	}

	return this, nil
}

// AddListener adds an event listener to this decompressor.
// Returns true if the listener has been added.
func (this *BlockDecompressor) AddListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

func (this *BlockDecompressor) createOutput() (io.WriteCloser, int, error) {
	if strings.EqualFold(this.outputName, _DECOMP_NONE) {
		return nullOutputStream{}, 0, nil
	}

	if strings.EqualFold(this.outputName, _DECOMP_STDOUT) {
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

// Decompress decodes the input file. Returns a status code and the number
// of bytes decoded.
func (this *BlockDecompressor) Decompress() (int, uint64) {
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

	if strings.EqualFold(this.inputName, _DECOMP_STDIN) {
		input = os.Stdin
	} else {
		if input, err = os.Open(this.inputName); err != nil {
			fmt.Printf("Cannot open input file '%s': %v\n", this.inputName, err)
			return jxlans.ERR_OPEN_FILE, 0
		}

		defer input.Close()
	}

	cis, err := jio.NewReader(input, map[string]any{"jobs": this.jobs})

	if err != nil {
		fmt.Printf("Cannot create compressed stream: %v\n", err)
		return jxlans.ErrorCodeOf(err), 0
	}

	for _, bl := range this.listeners {
		cis.AddListener(bl)
	}

	// Decode
	printFlag = this.verbosity > 1
	log.Println("\nDecoding "+this.inputName+" ...", printFlag && this.infoOnly == false)

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_DECODING_START, -1, 0, 0, jxlans.EVT_HASH_NONE, time.Now())
		jxlans.NotifyListeners(this.listeners, evt)
	}

	before := time.Now()
	buffer := make([]byte, _DECOMP_DEFAULT_BUFFER_SIZE)
	decoded := uint64(0)

	for {
		length, err := cis.Read(buffer)

		if length > 0 {
			decoded += uint64(length)

			if _, err := output.Write(buffer[0:length]); err != nil {
				fmt.Printf("Failed to write decompressed block to file '%s': %v\n", this.outputName, err)
				return jxlans.ERR_WRITE_FILE, decoded
			}
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Printf("%v\n", err)
			return jxlans.ErrorCodeOf(err), decoded
		}
	}

	cis.Close()
	delta := time.Since(before).Milliseconds()

	if delta >= 100000 {
		msg = fmt.Sprintf("%.1f s", float64(delta)/1000)
	} else {
		msg = fmt.Sprintf("%d ms", delta)
	}

	if this.infoOnly == false {
		log.Println("", printFlag)
		log.Println("Decoding:          "+msg, printFlag)
		log.Println(fmt.Sprintf("Input size:        %d", cis.GetRead()), printFlag)
		log.Println(fmt.Sprintf("Output size:       %d", decoded), printFlag)
		log.Println(fmt.Sprintf("Decoding %s: %d => %d bytes in %s", this.inputName, cis.GetRead(), decoded, msg), this.verbosity == 1)

		if delta > 0 {
			log.Println(fmt.Sprintf("Throughput (KB/s): %d", ((int64(decoded)*1000)>>10)/delta), printFlag)
		}
	}

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_DECODING_END, -1, int64(decoded), 0, jxlans.EVT_HASH_NONE, time.Now())
		jxlans.NotifyListeners(this.listeners, evt)
	}

	for _, bl := range this.listeners {
		if ip, ok := bl.(*InfoPrinter); ok == true {
			ip.Summary()
		}
	}

	return 0, decoded
}
