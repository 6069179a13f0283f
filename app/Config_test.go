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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/entropy"
)

func TestParseConfig(b *testing.T) {
	if err := testParseConfig(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestCommandLine(b *testing.T) {
	if err := testCommandLine(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestCompressDecompress(b *testing.T) {
	if err := testCompressDecompress(b.TempDir()); err != nil {
		b.Errorf(err.Error())
	}
}

func TestInfoPrinter(b *testing.T) {
	if err := testInfoPrinter(); err != nil {
		b.Errorf(err.Error())
	}
}

func testParseConfig() error {
	fmt.Println("=== Testing configuration ===")
	cfg := `
clustering: best
uintMethod: fast
lz77Method: Optimal
histogramStrategy: approximate
maxHistograms: 32
contexts: 24
imageWidth: 100
`
	ctx := make(map[string]any)

	if err := ParseConfig([]byte(cfg), ctx); err != nil {
		return err
	}

	params, ok := ctx["params"].(*entropy.HistogramParams)

	if ok == false {
		return errors.New("Missing encoder parameters")
	}

	if params.Clustering != entropy.CLUSTERING_BEST || params.UintMethod != entropy.UINT_FAST ||
		params.LZ77Method != entropy.LZ77_OPTIMAL || params.HistogramStrategy != entropy.ANS_HISTOGRAM_APPROXIMATE ||
		params.MaxHistograms != 32 {
		return fmt.Errorf("Unexpected parameters: %+v", *params)
	}

	if ctx["contexts"] != uint(24) || ctx["imageWidth"] != uint(100) {
		return fmt.Errorf("Unexpected context: %v", ctx)
	}

	// Defaults
	ctx = make(map[string]any)

	if err := ParseConfig([]byte("fuzzerFriendly: true\n"), ctx); err != nil {
		return err
	}

	params = ctx["params"].(*entropy.HistogramParams)

	if params.FuzzerFriendly == false || params.LZ77Method != entropy.LZ77_RLE {
		return fmt.Errorf("Unexpected default parameters: %+v", *params)
	}

	if _, found := ctx["contexts"]; found == true {
		return errors.New("Unexpected number of contexts")
	}

	// Invalid values and unknown keys
	for _, bad := range []string{"lz77Method: zip\n", "unknown: 1\n", "clustering: [1, 2]\n"} {
		if err := ParseConfig([]byte(bad), make(map[string]any)); jxlans.ErrorCodeOf(err) != jxlans.ERR_INVALID_PARAM {
			return fmt.Errorf("Invalid configuration '%s' accepted: %v", strings.TrimSpace(bad), err)
		}
	}

	if err := LoadConfig(filepath.Join(os.TempDir(), "does-not-exist.yaml"), make(map[string]any)); jxlans.ErrorCodeOf(err) != jxlans.ERR_OPEN_FILE {
		return fmt.Errorf("Unexpected error for a missing file: %v", err)
	}

	fmt.Println("Success")
	return nil
}

func testCommandLine() error {
	fmt.Println("=== Testing command line ===")
	argsMap := make(map[string]any)
	args := []string{"jxlans", "-c", "--input=foo", "--output=foo.jxan", "--block=4k", "--jobs=4",
		"--width=16", "--checksum", "--force", "--verbose=3"}

	if status := processCommandLine(args, argsMap); status != 0 {
		return fmt.Errorf("Unexpected status: %d", status)
	}

	if argsMap["mode"] != "c" || argsMap["block"] != uint(4096) || argsMap["jobs"] != uint(4) ||
		argsMap["width"] != uint(16) || argsMap["checksum"] != true || argsMap["overwrite"] != true ||
		argsMap["verbosity"] != uint(3) || argsMap["inputName"] != "foo" {
		return fmt.Errorf("Unexpected arguments: %v", argsMap)
	}

	// Conflicting modes
	if status := processCommandLine([]string{"jxlans", "-c", "-d"}, make(map[string]any)); status != jxlans.ERR_INVALID_PARAM {
		return fmt.Errorf("Conflicting modes accepted: %d", status)
	}

	if status := processCommandLine([]string{"jxlans", "-c", "--block=abc"}, make(map[string]any)); status != jxlans.ERR_BLOCK_SIZE {
		return fmt.Errorf("Invalid block size accepted: %d", status)
	}

	// Output to stdout silences the logs
	argsMap = make(map[string]any)

	if status := processCommandLine([]string{"jxlans", "-d", "--input=foo.jxan", "--output=stdout", "--verbose=4"}, argsMap); status != 0 {
		return fmt.Errorf("Unexpected status: %d", status)
	}

	if argsMap["verbosity"] != uint(0) {
		return fmt.Errorf("Expected verbosity 0, got %v", argsMap["verbosity"])
	}

	fmt.Println("Success")
	return nil
}

func testCompressDecompress(dir string) error {
	fmt.Println("=== Testing file compression ===")
	input := filepath.Join(dir, "values.bin")
	compressed := input + ".jxan"
	output := filepath.Join(dir, "values.out")
	data := make([]byte, 20000)

	for i := range data {
		data[i] = byte((i / 7) % 23)
	}

	if err := os.WriteFile(input, data, 0644); err != nil {
		return err
	}

	bc, err := NewBlockCompressor(map[string]any{"verbosity": uint(0), "inputName": input,
		"block": uint(8192), "jobs": uint(2), "checksum": true})

	if err != nil {
		return err
	}

	if code, written := bc.Compress(); code != 0 || written == 0 {
		return fmt.Errorf("Compression failed: code %d", code)
	}

	// The output exists and 'force' is not set
	bc, _ = NewBlockCompressor(map[string]any{"verbosity": uint(0), "inputName": input})

	if code, _ := bc.Compress(); code != jxlans.ERR_OVERWRITE_FILE {
		return fmt.Errorf("Existing file overwritten: code %d", code)
	}

	bd, err := NewBlockDecompressor(map[string]any{"verbosity": uint(0), "inputName": compressed,
		"outputName": output, "jobs": uint(2)})

	if err != nil {
		return err
	}

	if code, decoded := bd.Decompress(); code != 0 || decoded != uint64(len(data)) {
		return fmt.Errorf("Decompression failed: code %d, %d bytes", code, decoded)
	}

	res, err := os.ReadFile(output)

	if err != nil {
		return err
	}

	if bytes.Equal(res, data) == false {
		return errors.New("Different data after decompression")
	}

	if _, err := NewBlockCompressor(map[string]any{"verbosity": uint(0), "width": uint(12)}); err == nil {
		return errors.New("Invalid value width accepted")
	}

	fmt.Println("Success")
	return nil
}

func testInfoPrinter() error {
	fmt.Println("=== Testing info printer ===")
	var buf bytes.Buffer
	ip, _ := NewInfoPrinter(3, COMPRESSION, &buf)
	now := time.Now()
	ip.ProcessEvent(jxlans.NewEvent(jxlans.EVT_BEFORE_ENTROPY, 1, 1000, 0, jxlans.EVT_HASH_NONE, now))
	ip.ProcessEvent(jxlans.NewEvent(jxlans.EVT_AFTER_ENTROPY, 1, 250, 0, jxlans.EVT_HASH_NONE, now))
	ip.ProcessEvent(jxlans.NewEventFromString(jxlans.EVT_HISTOGRAM_WARNING, 0, "max bits 40", now))
	ip.Summary()
	out := buf.String()

	if strings.Contains(out, "Block 1: 1000 => 250") == false {
		return fmt.Errorf("Missing block line in '%s'", out)
	}

	if strings.Contains(out, "1 blocks, 1000 => 250 bytes") == false || strings.Contains(out, "1 histogram warnings") == false {
		return fmt.Errorf("Missing summary in '%s'", out)
	}

	if _, err := NewInfoPrinter(1, INFO, nil); err == nil {
		return errors.New("Null writer accepted")
	}

	fmt.Println("Success")
	return nil
}
