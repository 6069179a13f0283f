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
	"strings"
	"time"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/internal"
	jio "github.com/flanglet/jxlans/io"
	"github.com/klauspost/compress/fse"
	"github.com/klauspost/compress/huff0"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Chunk size used by the reference codecs (FSE and Huff0 cannot process
// blocks larger than 128 KB).
const _BENCH_CHUNK_SIZE = 65536

type benchResult struct {
	name  string
	size  int
	delta time.Duration
}

// Encode the whole input with 'fn' on chunks of _BENCH_CHUNK_SIZE bytes
func runChunked(name string, data []byte, fn func([]byte) (int, error)) (benchResult, error) {
	before := time.Now()
	size := 0

	for off := 0; off < len(data); off += _BENCH_CHUNK_SIZE {
		n, err := fn(data[off:min(off+_BENCH_CHUNK_SIZE, len(data))])

		if err != nil {
			return benchResult{}, fmt.Errorf("%s: %w", name, err)
		}

		size += n
	}

	return benchResult{name: name, size: size, delta: time.Since(before)}, nil
}

func fseSize(scratch *fse.Scratch) func([]byte) (int, error) {
	return func(in []byte) (int, error) {
		out, err := fse.Compress(in, scratch)

		if errors.Is(err, fse.ErrIncompressible) {
			return len(in), nil
		}

		if errors.Is(err, fse.ErrUseRLE) {
			return 1, nil
		}

		return len(out), err
	}
}

func huff0Size(scratch *huff0.Scratch) func([]byte) (int, error) {
	return func(in []byte) (int, error) {
		out, _, err := huff0.Compress1X(in, scratch)

		if errors.Is(err, huff0.ErrIncompressible) {
			return len(in), nil
		}

		if errors.Is(err, huff0.ErrUseRLE) {
			return 1, nil
		}

		return len(out), err
	}
}

func jxlansSize(data []byte, ctx map[string]any) (benchResult, error) {
	before := time.Now()
	bs := internal.NewBufferStream()
	w, err := jio.NewWriter(bs, ctx)

	if err != nil {
		return benchResult{}, err
	}

	if _, err = w.Write(data); err != nil {
		return benchResult{}, err
	}

	if err = w.Close(); err != nil {
		return benchResult{}, err
	}

	return benchResult{name: "JxlAns", size: int(w.GetWritten()), delta: time.Since(before)}, nil
}

// bench compresses the input file with the rANS container and with the
// klauspost codecs, then prints the sizes and timings.
func bench(argsMap map[string]any) int {
	verbose := argsMap["verbosity"].(uint)
	inputName, _ := argsMap["inputName"].(string)
	var data []byte
	var err error

	if len(inputName) == 0 || strings.EqualFold(inputName, _COMP_STDIN) {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(inputName)
	}

	if err != nil {
		fmt.Printf("Cannot read input '%s': %v\n", inputName, err)
		return jxlans.ERR_READ_FILE
	}

	// Reuse the compressor option parsing
	argsMap["outputName"] = _COMP_NONE
	bc, err := NewBlockCompressor(argsMap)

	if err != nil {
		fmt.Printf("Failed to create block compressor: %v\n", err)
		return jxlans.ERR_CREATE_COMPRESSOR
	}

	results := make([]benchResult, 0, 5)
	res, err := jxlansSize(data, bc.ctx)

	if err != nil {
		fmt.Printf("%v\n", err)
		return jxlans.ErrorCodeOf(err)
	}

	results = append(results, res)

	if res, err = runChunked("FSE", data, fseSize(&fse.Scratch{})); err != nil {
		fmt.Printf("%v\n", err)
		return jxlans.ERR_PROCESS_BLOCK
	}

	results = append(results, res)

	if res, err = runChunked("Huff0", data, huff0Size(&huff0.Scratch{})); err != nil {
		fmt.Printf("%v\n", err)
		return jxlans.ERR_PROCESS_BLOCK
	}

	results = append(results, res)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))

	if err != nil {
		fmt.Printf("%v\n", err)
		return jxlans.ERR_CREATE_COMPRESSOR
	}

	before := time.Now()
	zsize := len(enc.EncodeAll(data, nil))
	enc.Close()
	results = append(results, benchResult{name: "Zstd", size: zsize, delta: time.Since(before)})
	before = time.Now()
	results = append(results, benchResult{name: "S2", size: len(s2.Encode(nil, data)), delta: time.Since(before)})

	log.Println(fmt.Sprintf("Input size: %d bytes", len(data)), true)

	for _, r := range results {
		ratio := 0.0

		if len(data) > 0 {
			ratio = float64(r.size) / float64(len(data))
		}

		log.Println(fmt.Sprintf("%-8s %10d bytes  ratio %.4f  %6d ms", r.name, r.size, ratio, r.delta.Milliseconds()), verbose > 0)
	}

	return 0
}
