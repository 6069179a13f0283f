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

package entropy

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/bitstream"
	"github.com/flanglet/jxlans/internal"
	"golang.org/x/exp/slices"
)

func TestMoveToFront(b *testing.T) {
	if err := testMoveToFront(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestContextMap(b *testing.T) {
	if err := testContextMap(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestContextMapErrors(b *testing.T) {
	if err := testContextMapErrors(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestClustering(b *testing.T) {
	if err := testClustering(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestPermutation(b *testing.T) {
	if err := testPermutation(); err != nil {
		b.Errorf(err.Error())
	}
}

func testMoveToFront() error {
	fmt.Println("=== Testing move-to-front ===")
	values := []uint8{1, 1, 1, 0, 0, 5, 5, 1, 0, 255, 255, 3}
	transformed := MoveToFrontTransform(values)

	if expected := []uint8{1, 0, 0, 1, 0, 5, 0, 2, 2, 255, 0, 5}; slices.Equal(transformed, expected) == false {
		return fmt.Errorf("Transformed %v, expected %v", transformed, expected)
	}

	InverseMoveToFrontTransform(transformed)

	if slices.Equal(transformed, values) == false {
		return fmt.Errorf("Inverse transform %v, expected %v", transformed, values)
	}

	for ii := 0; ii < 20; ii++ {
		values := make([]uint8, 1+rand.Intn(500))

		for i := range values {
			values[i] = uint8(rand.Intn(1 + ii*12))
		}

		transformed := MoveToFrontTransform(values)
		InverseMoveToFrontTransform(transformed)

		if slices.Equal(transformed, values) == false {
			return fmt.Errorf("Iteration %d: different values after inverse transform", ii)
		}
	}

	fmt.Println("Success")
	return nil
}

// Random context map where every index below numHistograms is used
func randomContextMap(numContexts, numHistograms int) []uint8 {
	ctxMap := make([]uint8, numContexts)

	for i := range ctxMap {
		if i < numHistograms {
			ctxMap[i] = uint8(i)
		} else {
			ctxMap[i] = uint8(rand.Intn(numHistograms))
		}
	}

	rand.Shuffle(len(ctxMap), func(i, j int) { ctxMap[i], ctxMap[j] = ctxMap[j], ctxMap[i] })
	return ctxMap
}

func contextMapRoundTrip(ctxMap []uint8, numHistograms int) (int, error) {
	bs := internal.NewBufferStream()
	obs, err := bitstream.NewDefaultOutputBitStream(bs, 16384)

	if err != nil {
		return 0, err
	}

	if err := EncodeContextMap(ctxMap, numHistograms, obs); err != nil {
		return 0, err
	}

	written := int(obs.Written())
	obs.Close()
	ibs, err := bitstream.NewDefaultInputBitStream(bs.Bytes())

	if err != nil {
		return 0, err
	}

	decoded := make([]uint8, len(ctxMap))
	n, err := DecodeContextMap(decoded, ibs)

	if err != nil {
		return 0, err
	}

	if n != numHistograms {
		return 0, fmt.Errorf("Decoded %d histograms, expected %d", n, numHistograms)
	}

	if slices.Equal(decoded, ctxMap) == false {
		return 0, fmt.Errorf("Decoded %v, expected %v", decoded, ctxMap)
	}

	return written, ibs.Close()
}

func testContextMap() error {
	fmt.Println("=== Testing context maps ===")

	// Single histogram: 3 bits
	if n, err := contextMapRoundTrip(make([]uint8, 40), 1); err != nil {
		return err
	} else if n != 3 {
		return fmt.Errorf("Single histogram context map written in %d bits, expected 3", n)
	}

	sizes := [][2]int{{2, 2}, {4, 3}, {10, 7}, {39, 5}, {100, 2}, {300, 20}, {1000, 200}, {2000, 256}}

	for _, s := range sizes {
		ctxMap := randomContextMap(s[0], s[1])
		n, err := contextMapRoundTrip(ctxMap, s[1])

		if err != nil {
			return fmt.Errorf("%d contexts, %d histograms: %w", s[0], s[1], err)
		}

		fmt.Printf("%d contexts, %d histograms: %d bits\n", s[0], s[1], n)
	}

	// Long runs favor the entropy coded versions
	ctxMap := make([]uint8, 3000)

	for i := range ctxMap {
		ctxMap[i] = uint8((i / 100) % 7)
	}

	n, err := contextMapRoundTrip(ctxMap, 7)

	if err != nil {
		return err
	}

	if n >= 3*len(ctxMap) {
		return fmt.Errorf("Context map with runs written in %d bits", n)
	}

	fmt.Println("Success")
	return nil
}

func testContextMapErrors() error {
	fmt.Println("=== Testing invalid context maps ===")

	if _, err := VerifyContextMap([]uint8{0, 2}); errors.Is(err, jxlans.ErrIncompleteContextMap) == false {
		return fmt.Errorf("Unexpected error for context map [0 2]: %v", err)
	}

	if n, err := VerifyContextMap([]uint8{1, 0, 2, 2}); err != nil || n != 3 {
		return fmt.Errorf("Unexpected result for context map [1 0 2 2]: %d, %v", n, err)
	}

	// Simple code with 2 bits per entry: [0 3]
	bs := internal.NewBufferStream()
	obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)
	obs.WriteBits(1, 1)
	obs.WriteBits(2, 2)
	obs.WriteBits(0, 2)
	obs.WriteBits(3, 2)
	obs.Close()
	ibs, _ := bitstream.NewDefaultInputBitStream(bs.Bytes())
	ctxMap := make([]uint8, 2)

	if _, err := DecodeContextMap(ctxMap, ibs); errors.Is(err, jxlans.ErrIncompleteContextMap) == false {
		return fmt.Errorf("Unexpected error for simple coded context map [0 3]: %v", err)
	}

	if code := jxlans.ErrorCodeOf(jxlans.Errorf(jxlans.ErrIncompleteContextMap, "test")); code != jxlans.ERR_INCOMPLETE_CONTEXT_MAP {
		return fmt.Errorf("Unexpected error code %d", code)
	}

	fmt.Println("Success")
	return nil
}

func testClustering() error {
	fmt.Println("=== Testing clustering ===")
	// 4 families of histograms, 8 contexts each
	histograms := make([]*Histogram, 32)

	for i := range histograms {
		h := NewHistogram()
		family := i % 4

		for j := 0; j < 1000; j++ {
			switch family {
			case 0:
				h.Add(uint32(rand.Intn(4)))
			case 1:
				h.Add(uint32(16 + rand.Intn(8)))
			case 2:
				h.Add(uint32(32 + rand.Intn(16)))
			default:
				h.Add(7)
			}
		}

		histograms[i] = h
	}

	for _, clustering := range []int{CLUSTERING_FASTEST, CLUSTERING_FAST, CLUSTERING_BEST} {
		for _, maxHistograms := range []int{1, 2, 4, 8, 32} {
			params := NewHistogramParams()
			params.Clustering = clustering
			out, symbols := ClusterHistograms(params, histograms, maxHistograms)

			if len(symbols) != len(histograms) {
				return fmt.Errorf("%d cluster indexes for %d histograms", len(symbols), len(histograms))
			}

			if len(out) > maxHistograms || len(out) == 0 {
				return fmt.Errorf("Clustering %d: %d clusters, max %d", clustering, len(out), maxHistograms)
			}

			if clustering == CLUSTERING_FASTEST && len(out) > 4 {
				return fmt.Errorf("Fastest clustering produced %d clusters", len(out))
			}

			// Clusters numbered by first use, all used
			next := uint32(0)

			for i, s := range symbols {
				if s > next {
					return fmt.Errorf("Cluster %d used before cluster %d (histogram %d)", s, next, i)
				}

				if s == next {
					next++
				}
			}

			if int(next) != len(out) {
				return fmt.Errorf("%d clusters used out of %d", next, len(out))
			}

			// No histogram count lost
			total := 0

			for _, h := range out {
				total += h.TotalCount
			}

			if total != 32*1000 {
				return fmt.Errorf("Total count %d after clustering, expected %d", total, 32*1000)
			}

			// The 4 families are distinct enough to be separated
			if maxHistograms >= 4 {
				for i := 4; i < len(symbols); i++ {
					if symbols[i] != symbols[i%4] {
						return fmt.Errorf("Clustering %d: histograms %d and %d in different clusters", clustering, i, i%4)
					}
				}
			}
		}
	}

	fmt.Println("Success")
	return nil
}

func testPermutation() error {
	fmt.Println("=== Testing permutations ===")

	for _, size := range []int{1, 2, 10, 100, 1000} {
		for _, skip := range []int{0, 1, size / 2} {
			order := make([]uint32, size)

			for i := range order {
				order[i] = uint32(i)
			}

			// Identity on the skipped prefix
			rand.Shuffle(size-skip, func(i, j int) {
				order[skip+i], order[skip+j] = order[skip+j], order[skip+i]
			})

			bs := internal.NewBufferStream()
			obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)

			if err := EncodePermutation(order, skip, obs); err != nil {
				return err
			}

			obs.Close()
			ibs, _ := bitstream.NewDefaultInputBitStream(bs.Bytes())
			decoded, err := DecodePermutation(skip, size, ibs)

			if err != nil {
				return fmt.Errorf("Size %d, skip %d: %w", size, skip, err)
			}

			if slices.Equal(decoded, order) == false {
				return fmt.Errorf("Size %d, skip %d: different permutation after decoding", size, skip)
			}
		}
	}

	code, _ := ComputeLehmerCode([]uint32{2, 0, 3, 1})

	if expected := []uint32{2, 0, 1, 0}; slices.Equal(code, expected) == false {
		return fmt.Errorf("Lehmer code %v, expected %v", code, expected)
	}

	if _, err := ComputeLehmerCode([]uint32{0, 1, 1}); errors.Is(err, jxlans.ErrInvalidPermutation) == false {
		return fmt.Errorf("Unexpected error for a duplicate value: %v", err)
	}

	if _, err := DecodeLehmerCode([]uint32{0, 2, 0}); errors.Is(err, jxlans.ErrInvalidLehmerCode) == false {
		return fmt.Errorf("Unexpected error for an invalid Lehmer code: %v", err)
	}

	fmt.Println("Success")
	return nil
}
