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
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	jxlans "github.com/flanglet/jxlans"
)

const (
	_APP_HEADER = "JxlAns 1.0 (c) Frederic Langlet"

	_ARG_INPUT      = "--input="
	_ARG_OUTPUT     = "--output="
	_ARG_COMPRESS   = "--compress"
	_ARG_DECOMPRESS = "--decompress"
	_ARG_INFO       = "--info"
	_ARG_BENCH      = "--bench"
	_ARG_VERBOSE    = "--verbose="
	_ARG_JOBS       = "--jobs="
	_ARG_BLOCK      = "--block="
	_ARG_WIDTH      = "--width="
	_ARG_CONFIG     = "--config="
	_ARG_FORCE      = "--force"
	_ARG_CHECKSUM   = "--checksum"
)

var (
	mutex sync.Mutex
	log   = Printer{os: bufio.NewWriter(os.Stdout)}
)

func main() {
	argsMap := make(map[string]any)

	if status := processCommandLine(os.Args, argsMap); status != 0 {
		// Command line processing error ?
		if status < 0 {
			os.Exit(0)
		}

		os.Exit(status)
	}

	// Help mode only ?
	if argsMap["mode"] == nil {
		os.Exit(0)
	}

	mode := argsMap["mode"].(string)
	delete(argsMap, "mode")
	status := 1

	switch mode {
	case "c":
		status = compress(argsMap)
	case "d":
		status = decompress(argsMap)
	case "i":
		argsMap["info"] = true
		status = decompress(argsMap)
	case "b":
		status = bench(argsMap)
	default:
		println("Missing arguments: try --help or -h")
	}

	os.Exit(status)
}

func compress(argsMap map[string]any) (code int) {
	runtime.GOMAXPROCS(runtime.NumCPU())

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during compression: %v\n", r)
			code = jxlans.ERR_UNKNOWN
		}
	}()

	bc, err := NewBlockCompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create block compressor: %v\n", err)
		return jxlans.ERR_CREATE_COMPRESSOR
	}

	code, _ = bc.Compress()
	return code
}

func decompress(argsMap map[string]any) (code int) {
	runtime.GOMAXPROCS(runtime.NumCPU())

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("An unexpected error occurred during decompression: %v\n", r)
			code = jxlans.ERR_UNKNOWN
		}
	}()

	bd, err := NewBlockDecompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create block decompressor: %v\n", err)
		return jxlans.ERR_CREATE_DECOMPRESSOR
	}

	code, _ = bd.Decompress()
	return code
}

func parseUint(arg, prefix, name string) (uint, error) {
	val := strings.TrimPrefix(arg, prefix)
	res, err := strconv.Atoi(val)

	if err != nil || res < 0 {
		return 0, fmt.Errorf("Invalid %s provided on command line: %s", name, val)
	}

	return uint(res), nil
}

func processCommandLine(args []string, argsMap map[string]any) int {
	verbose := uint(1)
	mode := ""

	for _, arg := range args[1:] {
		arg = strings.TrimSpace(arg)

		if strings.HasPrefix(arg, _ARG_VERBOSE) {
			v, err := parseUint(arg, _ARG_VERBOSE, "verbosity")

			if err != nil || v > 5 {
				fmt.Println("Invalid verbosity level provided on command line: " + arg)
				return jxlans.ERR_INVALID_PARAM
			}

			verbose = v
		}
	}

	for _, arg := range args[1:] {
		arg = strings.TrimSpace(arg)

		switch {
		case arg == "--help" || arg == "-h":
			printHelp()
			return -1

		case arg == _ARG_COMPRESS || arg == "-c":
			mode = checkMode(mode, "c")

		case arg == _ARG_DECOMPRESS || arg == "-d":
			mode = checkMode(mode, "d")

		case arg == _ARG_INFO:
			mode = checkMode(mode, "i")

		case arg == _ARG_BENCH:
			mode = checkMode(mode, "b")

		case arg == _ARG_FORCE || arg == "-f":
			argsMap["overwrite"] = true

		case arg == _ARG_CHECKSUM || arg == "-x":
			argsMap["checksum"] = true

		case strings.HasPrefix(arg, _ARG_VERBOSE):
			// Already processed

		case strings.HasPrefix(arg, _ARG_INPUT):
			argsMap["inputName"] = strings.TrimPrefix(arg, _ARG_INPUT)

		case strings.HasPrefix(arg, _ARG_OUTPUT):
			argsMap["outputName"] = strings.TrimPrefix(arg, _ARG_OUTPUT)

		case strings.HasPrefix(arg, _ARG_CONFIG):
			argsMap["config"] = strings.TrimPrefix(arg, _ARG_CONFIG)

		case strings.HasPrefix(arg, _ARG_BLOCK):
			val := strings.ToUpper(strings.TrimPrefix(arg, _ARG_BLOCK))
			scale := uint(1)

			if strings.HasSuffix(val, "K") {
				scale, val = 1024, strings.TrimSuffix(val, "K")
			} else if strings.HasSuffix(val, "M") {
				scale, val = 1024*1024, strings.TrimSuffix(val, "M")
			}

			bk, err := strconv.Atoi(val)

			if err != nil || bk <= 0 {
				fmt.Println("Invalid block size provided on command line: " + arg)
				return jxlans.ERR_BLOCK_SIZE
			}

			argsMap["block"] = uint(bk) * scale

		case strings.HasPrefix(arg, _ARG_JOBS):
			jobs, err := parseUint(arg, _ARG_JOBS, "number of jobs")

			if err != nil {
				fmt.Println(err)
				return jxlans.ERR_INVALID_PARAM
			}

			argsMap["jobs"] = jobs

		case strings.HasPrefix(arg, _ARG_WIDTH):
			width, err := parseUint(arg, _ARG_WIDTH, "value width")

			if err != nil {
				fmt.Println(err)
				return jxlans.ERR_INVALID_PARAM
			}

			argsMap["width"] = width

		default:
			log.Println("Warning: ignoring unknown option ["+arg+"]", verbose > 0)
		}
	}

	if mode == "?" {
		fmt.Println("Only one of --compress, --decompress, --info or --bench can be provided")
		return jxlans.ERR_INVALID_PARAM
	}

	if len(mode) == 0 {
		printHelp()
		return -1
	}

	// Keep stdout clean when it carries the output stream
	if output, _ := argsMap["outputName"].(string); strings.EqualFold(output, "STDOUT") {
		verbose = 0
	} else if _, hasKey := argsMap["outputName"]; hasKey == false && mode != "i" && mode != "b" {
		if input, _ := argsMap["inputName"].(string); len(input) == 0 || strings.EqualFold(input, "STDIN") {
			verbose = 0
		}
	}

	log.Println("\n"+_APP_HEADER+"\n", verbose > 1)
	argsMap["verbosity"] = verbose
	argsMap["mode"] = mode
	return 0
}

func checkMode(current, mode string) string {
	if len(current) == 0 || current == mode {
		return mode
	}

	return "?"
}

func printHelp() {
	log.Println("", true)
	log.Println(_APP_HEADER, true)
	log.Println("", true)
	log.Println("   -h, --help", true)
	log.Println("        Display this message\n", true)
	log.Println("   -c, --compress", true)
	log.Println("        Compress mode\n", true)
	log.Println("   -d, --decompress", true)
	log.Println("        Decompress mode\n", true)
	log.Println("   --info", true)
	log.Println("        Decode the input and print the stream header and block descriptions\n", true)
	log.Println("   --bench", true)
	log.Println("        Compare the compressed size with FSE, Huff0, Zstd and S2\n", true)
	log.Println("   --input=<inputName>", true)
	log.Println("        Name of the input file or 'stdin'\n", true)
	log.Println("   --output=<outputName>", true)
	log.Println("        Name of the output file, 'stdout' or 'none'\n", true)
	log.Println("   --block=<size>", true)
	log.Println("        Size of blocks (multiple of 16, default 1 MB, max 256 MB, min 1KB)\n", true)
	log.Println("   --jobs=<jobs>", true)
	log.Println("        Maximum number of jobs the program may start concurrently", true)
	log.Println("        (default is 1, maximum is 64)\n", true)
	log.Println("   --width=<8|16>", true)
	log.Println("        Bit width of the values read from the input (default 8)\n", true)
	log.Println("   --config=<file>", true)
	log.Println("        YAML file with the encoder options (clustering, lz77Method, ...)\n", true)
	log.Println("   -f, --force", true)
	log.Println("        Overwrite the output file if it already exists\n", true)
	log.Println("   -x, --checksum", true)
	log.Println("        Enable block checksum\n", true)
	log.Println("   --verbose=<level>", true)
	log.Println("        0=silent, 1=default, 2=display details, 3=display block sizes,", true)
	log.Println("        4=display histogram information, 5=display all events\n", true)
	log.Println("EG. JxlAns -c --input=foo.bin --block=4m --jobs=4 --checksum", true)
	log.Println("EG. JxlAns --decompress --input=foo.bin.jxan --output=foo.bin --force", true)
	log.Println("", true)
}

// Printer a buffered printer (required in concurrent code)
type Printer struct {
	os *bufio.Writer
}

// Println concurrently safe version (order wise) of Println
func (this *Printer) Println(msg string, printFlag bool) {
	if printFlag == true {
		mutex.Lock()

		// Best effort, ignore error
		if w, _ := this.os.Write([]byte(msg + "\n")); w > 0 {
			_ = this.os.Flush()
		}

		mutex.Unlock()
	}
}
