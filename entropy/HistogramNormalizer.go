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
	jxlans "github.com/flanglet/jxlans"
)

// Returns the gap between two consecutive counts representable with the
// precision allowed by 'shift' around 'count'.
func smallestIncrement(count int32, shift int) int32 {
	bits := -1

	if count > 0 {
		bits = FloorLog2(count)
	}

	drop := bits - GetPopulationCountPrecision(bits, shift)

	if drop < 0 {
		return 1
	}

	return 1 << drop
}

// RebalanceHistogram rounds the scaled targets to representable counts
// summing to 'tableSize'. The remainder goes to the first symbol with the
// largest count, which becomes the omitted position. Returns false if that
// count is not positive or if the omitted position cannot be serialized.
func RebalanceHistogram(targets []float32, maxSymbol, tableSize int, shift int,
	minimizeErrorOfSum bool, counts []int32) (int, bool) {
	sum := 0
	sumNonrounded := float32(0)
	remainderPos := 0
	remainderLog := -1

	for n := 0; n < maxSymbol; n++ {
		if targets[n] > 0 && targets[n] < 1.0 {
			counts[n] = 1
			sumNonrounded += targets[n]
			sum++
		}
	}

	discount := float32(tableSize-sum) / (float32(tableSize) - sumNonrounded)

	for n := 0; n < maxSymbol; n++ {
		if targets[n] < 1.0 {
			continue
		}

		sumNonrounded += targets[n]
		c := int32(targets[n] * discount)

		if c == 0 {
			c = 1
		}

		if int(c) == tableSize {
			c = int32(tableSize - 1)
		}

		inc := smallestIncrement(c, shift)
		c -= c & (inc - 1)
		target := targets[n]

		if minimizeErrorOfSum == true {
			target = sumNonrounded - float32(sum)
		}

		if c == 0 || (target > float32(c+inc/2) && int(c+inc) < tableSize) {
			c += inc
		}

		counts[n] = c
		sum += int(c)

		if lg := FloorLog2(c); lg > remainderLog {
			remainderPos = n
			remainderLog = lg
		}
	}

	counts[remainderPos] -= int32(sum - tableSize)

	if counts[remainderPos] <= 0 {
		return remainderPos, false
	}

	// Symbols before the omitted one are coded with a log count one less
	// than the omitted log count, which must stay below the RLE code.
	for n := 0; n < remainderPos; n++ {
		if counts[n] >= ANS_TAB_SIZE/2 {
			return remainderPos, false
		}
	}

	return remainderPos, true
}

// NormalizeCounts scales 'counts' in place to sum to ANS_TAB_SIZE so that
// every non zero count stays non zero. Returns the omitted position, the
// number of non zero symbols and the first (at most 4) of them.
func NormalizeCounts(counts []int32, shift int) (omitPos int, numSymbols int, symbols [_MAX_NUM_SYMBOLS_FOR_SMALL_CODE]int, err error) {
	const tableSize = ANS_TAB_SIZE
	total := uint64(0)
	maxSymbol := 0

	for n, c := range counts {
		total += uint64(c)

		if c > 0 {
			if numSymbols < _MAX_NUM_SYMBOLS_FOR_SMALL_CODE {
				symbols[numSymbols] = n
			}

			numSymbols++
			maxSymbol = n + 1
		}
	}

	if numSymbols == 0 {
		return
	}

	if numSymbols == 1 {
		counts[symbols[0]] = tableSize
		return
	}

	if numSymbols > tableSize {
		err = jxlans.Errorf(jxlans.ErrTooManyEntries, "%d symbols", numSymbols)
		return
	}

	norm := float32(tableSize) / float32(total)
	targets := make([]float32, maxSymbol)

	for n := range targets {
		targets[n] = norm * float32(counts[n])
	}

	var ok bool

	if omitPos, ok = RebalanceHistogram(targets, maxSymbol, tableSize, shift, false, counts); ok == true {
		return
	}

	// Alternative rounding keeping the running sum close to the targets
	if omitPos, ok = RebalanceHistogram(targets, maxSymbol, tableSize, shift, true, counts); ok == true {
		return
	}

	err = jxlans.Errorf(jxlans.ErrRebalanceFailure, "shift=%d, %d symbols", shift, numSymbols)
	return
}
