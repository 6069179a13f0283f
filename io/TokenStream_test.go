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

package io

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/entropy"
	"github.com/flanglet/jxlans/internal"
)

func TestTokenStream(b *testing.T) {
	if err := testTokenStreamRoundTrip(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestTokenStreamErrors(b *testing.T) {
	if err := testTokenStreamErrors(); err != nil {
		b.Errorf(err.Error())
	}
}

type eventCounter struct {
	lock   sync.Mutex
	counts map[int]int
}

func (this *eventCounter) ProcessEvent(evt *jxlans.Event) {
	this.lock.Lock()
	this.counts[evt.Type()]++
	this.lock.Unlock()
}

func compress(data []byte, ctx map[string]any, listener jxlans.Listener) ([]byte, error) {
	bs := internal.NewBufferStream()
	w, err := NewWriter(bs, ctx)

	if err != nil {
		return nil, err
	}

	if listener != nil {
		w.AddListener(listener)
	}

	// Several writes of random sizes
	for off := 0; off < len(data); {
		n := min(len(data)-off, 1+rand.Intn(5000))

		if _, err := w.Write(data[off : off+n]); err != nil {
			return nil, err
		}

		off += n
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if w.GetWritten() != uint64(len(bs.Bytes())) {
		return nil, fmt.Errorf("Written %d bytes, got %d", w.GetWritten(), len(bs.Bytes()))
	}

	return bs.Bytes(), nil
}

func decompress(data []byte, jobs uint, listener jxlans.Listener) ([]byte, error) {
	r, err := NewReader(internal.NewBufferStream(data), map[string]any{"jobs": jobs})

	if err != nil {
		return nil, err
	}

	if listener != nil {
		r.AddListener(listener)
	}

	res, err := io.ReadAll(r)

	if err != nil {
		return nil, err
	}

	return res, r.Close()
}

func testData(size int, wordValues bool) []byte {
	data := make([]byte, size)

	switch rand.Intn(3) {
	case 0:
		// Small alphabet
		for i := range data {
			data[i] = byte(rand.Intn(8))
		}

	case 1:
		// Repeated patterns (LZ77)
		pattern := make([]byte, 16+rand.Intn(100))

		for i := range pattern {
			pattern[i] = byte(rand.Intn(256))
		}

		for i := range data {
			data[i] = pattern[i%len(pattern)]
		}

	default:
		// Slowly varying values
		v := 1000

		for i := 0; i < size; i++ {
			v = max(0, min(65535, v+rand.Intn(9)-4))

			if wordValues == true && i+1 < size {
				data[i] = byte(v)
				data[i+1] = byte(v >> 8)
				i++
			} else {
				data[i] = byte(v)
			}
		}
	}

	return data
}

func testTokenStreamRoundTrip() error {
	fmt.Println("=== Testing token stream ===")
	sizes := []int{0, 1, 15, 1023, 4096, 4097, 50001}

	for ii, size := range sizes {
		for _, jobs := range []uint{1, 4} {
			wordValues := ii&1 == 1
			data := testData(size, wordValues)
			counter := &eventCounter{counts: make(map[int]int)}
			params := entropy.NewHistogramParams()
			params.LZ77Method = []int{entropy.LZ77_RLE, entropy.LZ77_LZ77, entropy.LZ77_OPTIMAL}[ii%3]
			ctx := map[string]any{
				"blockSize":  uint(4096),
				"jobs":       jobs,
				"checksum":   ii%3 != 0,
				"wordValues": wordValues,
				"params":     params,
			}

			if ii == 5 {
				ctx["imageWidth"] = uint(64)
				ctx["contexts"] = uint(3)
			}

			encoded, err := compress(data, ctx, counter)

			if err != nil {
				return fmt.Errorf("Size %d, jobs %d: %w", size, jobs, err)
			}

			decoded, err := decompress(encoded, jobs, counter)

			if err != nil {
				return fmt.Errorf("Size %d, jobs %d: %w", size, jobs, err)
			}

			if bytes.Equal(decoded, data) == false {
				return fmt.Errorf("Size %d, jobs %d: different data after decoding", size, jobs)
			}

			blocks := (size + 4095) / 4096

			if counter.counts[jxlans.EVT_BEFORE_ENTROPY] != 2*blocks || counter.counts[jxlans.EVT_AFTER_ENTROPY] != 2*blocks {
				return fmt.Errorf("Size %d: unexpected events %v", size, counter.counts)
			}

			if counter.counts[jxlans.EVT_AFTER_HEADER_DECODING] != 1 {
				return fmt.Errorf("Size %d: header event missing", size)
			}

			fmt.Printf("Size %6d, jobs %d, 16 bits: %5v => %6d bytes\n", size, jobs, wordValues, len(encoded))
		}
	}

	fmt.Println("Success")
	return nil
}

func testTokenStreamErrors() error {
	fmt.Println("=== Testing invalid token streams ===")

	if _, err := NewWriter(internal.NewBufferStream(), map[string]any{"blockSize": uint(1000), "jobs": uint(1)}); err == nil {
		return errors.New("Block size not multiple of 16 accepted")
	}

	if _, err := NewWriter(internal.NewBufferStream(), map[string]any{"blockSize": uint(4096), "jobs": uint(0)}); err == nil {
		return errors.New("0 job accepted")
	}

	params := entropy.NewHistogramParams()
	params.Clustering = 7

	if _, err := NewWriter(internal.NewBufferStream(), map[string]any{"blockSize": uint(4096), "jobs": uint(1), "params": params}); err == nil {
		return errors.New("Invalid encoder options accepted")
	}

	data := testData(10000, false)
	ctx := map[string]any{"blockSize": uint(4096), "jobs": uint(2), "checksum": true}
	encoded, err := compress(data, ctx, nil)

	if err != nil {
		return err
	}

	// Bad magic
	corrupted := bytes.Clone(encoded)
	corrupted[0] ^= 1

	if _, err := decompress(corrupted, 1, nil); jxlans.ErrorCodeOf(err) != jxlans.ERR_INVALID_FILE {
		return fmt.Errorf("Unexpected error for a bad magic: %v", err)
	}

	// Bad header
	corrupted = bytes.Clone(encoded)
	corrupted[10] ^= 0x10

	if _, err := decompress(corrupted, 1, nil); jxlans.ErrorCodeOf(err) != jxlans.ERR_CRC_CHECK {
		return fmt.Errorf("Unexpected error for a corrupted header: %v", err)
	}

	// Truncated stream
	if _, err := decompress(encoded[:len(encoded)-100], 1, nil); jxlans.ErrorCodeOf(err) != jxlans.ERR_READ_FILE {
		return fmt.Errorf("Unexpected error for a truncated stream: %v", err)
	}

	// Corrupted block data: any error but no silent success
	corrupted = bytes.Clone(encoded)
	corrupted[len(corrupted)/2] ^= 0x55

	if res, err := decompress(corrupted, 1, nil); err == nil && bytes.Equal(res, data) == false {
		return errors.New("Corrupted block decoded without error")
	}

	fmt.Println("Success")
	return nil
}
