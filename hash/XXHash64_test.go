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

package hash

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestXXHash64(b *testing.T) {
	if err := testXXHash64(); err != nil {
		b.Errorf(err.Error())
	}
}

func testXXHash64() error {
	fmt.Println("=== Testing XXHash64 ===")
	h, _ := NewXXHash64(0)

	// Reference values
	vectors := map[string]uint64{
		"":    0xEF46DB3751D8E999,
		"a":   0xD24EC4F1A98C6E5B,
		"abc": 0x44BC2CF5AD770999,
	}

	for s, expected := range vectors {
		if res := h.Hash([]byte(s)); res != expected {
			return fmt.Errorf("XXHash64(%q): expected %016x, got %016x", s, expected, res)
		}
	}

	// Incremental hashing gives the one shot result
	data := make([]byte, 10000)
	rand.Read(data)

	for _, seed := range []uint64{0, 0x4E41584A, 1 << 63} {
		h.SetSeed(seed)
		expected := h.Hash(data)
		h.Reset()

		for off := 0; off < len(data); {
			n := min(len(data)-off, rand.Intn(100))
			h.Write(data[off : off+n])
			off += n
		}

		if res := h.Sum64(); res != expected {
			return fmt.Errorf("Seed %x: incremental hash %016x, one shot hash %016x", seed, res, expected)
		}

		if sum := h.Sum(nil); len(sum) != h.Size() {
			return fmt.Errorf("Invalid digest size: %d", len(sum))
		}
	}

	fmt.Println("Success")
	return nil
}
