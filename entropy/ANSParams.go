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

// Package entropy implements the JPEG XL flavor of the rANS entropy coder:
// histogram normalization and serialization, alias tables, the encoder and
// decoder state machines, the hybrid integer tokenizer and the LZ77 token
// layer.
package entropy

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

const (
	ANS_LOG_TAB_SIZE         = 12
	ANS_TAB_SIZE             = 1 << ANS_LOG_TAB_SIZE
	ANS_TAB_MASK             = ANS_TAB_SIZE - 1
	ANS_SIGNATURE            = 0x13 // Initial and final state is ANS_SIGNATURE << 16
	ANS_MAX_ALPHABET_SIZE    = 256
	PREFIX_MAX_BITS          = 15
	PREFIX_MAX_ALPHABET_SIZE = 4096
	WINDOW_SIZE              = 1 << 20 // LZ77 window
	WINDOW_MASK              = WINDOW_SIZE - 1
	NUM_SPECIAL_DISTANCES    = 120
	MAX_CHECKPOINT_INTERVAL  = 512
	CLUSTERS_LIMIT           = 128
	MAX_CLUSTERS             = 256

	_ANS_INITIAL_STATE              = uint32(ANS_SIGNATURE << 16)
	_MAX_NUM_SYMBOLS_FOR_SMALL_CODE = 4
)

// FloorLog2 returns the index of the highest set bit. The input must be
// strictly positive.
func FloorLog2[T constraints.Integer](x T) int {
	return bits.Len64(uint64(x)) - 1
}

// CeilLog2 returns the smallest n such that 1<<n >= x. The input must be
// strictly positive.
func CeilLog2[T constraints.Integer](x T) int {
	v := uint64(x)
	n := bits.Len64(v) - 1

	if v&(v-1) != 0 {
		n++
	}

	return n
}

// GetPopulationCountPrecision returns the number of mantissa bits stored
// for a count of magnitude 'logcount' given the histogram shift.
func GetPopulationCountPrecision(logcount, shift int) int {
	r := min(logcount, shift-((ANS_LOG_TAB_SIZE-logcount)>>1))

	if r < 0 {
		return 0
	}

	return r
}

// CreateFlatHistogram returns 'length' counts summing to 'total', as even
// as possible. The first total%length entries get one more unit.
func CreateFlatHistogram(length, total int) []int32 {
	res := make([]int32, length)

	if length <= 0 {
		return res
	}

	count := int32(total / length)
	rem := total % length

	for i := range res {
		res[i] = count

		if i < rem {
			res[i]++
		}
	}

	return res
}

// special distances, as (dx, dy) pairs: distance = max(1, dx + dy*multiplier)
var _SPECIAL_DISTANCES = [NUM_SPECIAL_DISTANCES][2]int8{
	{0, 1}, {1, 0}, {1, 1}, {-1, 1}, {0, 2}, {2, 0}, {1, 2}, {-1, 2},
	{2, 1}, {-2, 1}, {2, 2}, {-2, 2}, {0, 3}, {3, 0}, {1, 3}, {-1, 3},
	{3, 1}, {-3, 1}, {2, 3}, {-2, 3}, {3, 2}, {-3, 2}, {0, 4}, {4, 0},
	{1, 4}, {-1, 4}, {4, 1}, {-4, 1}, {3, 3}, {-3, 3}, {2, 4}, {-2, 4},
	{4, 2}, {-4, 2}, {0, 5}, {3, 4}, {-3, 4}, {4, 3}, {-4, 3}, {5, 0},
	{1, 5}, {-1, 5}, {5, 1}, {-5, 1}, {2, 5}, {-2, 5}, {5, 2}, {-5, 2},
	{4, 4}, {-4, 4}, {3, 5}, {-3, 5}, {5, 3}, {-5, 3}, {0, 6}, {6, 0},
	{1, 6}, {-1, 6}, {6, 1}, {-6, 1}, {2, 6}, {-2, 6}, {6, 2}, {-6, 2},
	{4, 5}, {-4, 5}, {5, 4}, {-5, 4}, {3, 6}, {-3, 6}, {6, 3}, {-6, 3},
	{0, 7}, {7, 0}, {1, 7}, {-1, 7}, {5, 5}, {-5, 5}, {7, 1}, {-7, 1},
	{4, 6}, {-4, 6}, {6, 4}, {-6, 4}, {2, 7}, {-2, 7}, {7, 2}, {-7, 2},
	{3, 7}, {-3, 7}, {7, 3}, {-7, 3}, {5, 6}, {-5, 6}, {6, 5}, {-6, 5},
	{8, 0}, {4, 7}, {-4, 7}, {7, 4}, {-7, 4}, {8, 1}, {8, 2}, {6, 6},
	{-6, 6}, {8, 3}, {5, 7}, {-5, 7}, {7, 5}, {-7, 5}, {8, 4}, {6, 7},
	{-6, 7}, {7, 6}, {-7, 6}, {8, 5}, {7, 7}, {-7, 7}, {8, 6}, {8, 7},
}

// SpecialDistance returns the distance of special distance code 'i' for
// the given distance multiplier (usually an image width).
func SpecialDistance(i int, multiplier uint32) uint32 {
	d := int(_SPECIAL_DISTANCES[i][0]) + int(multiplier)*int(_SPECIAL_DISTANCES[i][1])

	if d < 1 {
		d = 1
	}

	return uint32(d)
}
