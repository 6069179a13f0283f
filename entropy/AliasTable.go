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

// The ANS range [0, ANS_TAB_SIZE) is split into 1<<logAlphaSize buckets of
// equal size. Bucket i holds symbol i below Cutoff and symbol RightValue at
// and above it, so a lookup is a single table read.

// AliasEntry one bucket of an alias table
type AliasEntry struct {
	Cutoff        uint8  // positions >= Cutoff belong to RightValue
	RightValue    uint8  // symbol of the upper part of the bucket
	Freq0         uint16 // frequency of the bucket's own symbol
	Offsets1      uint16 // offset of the upper part in RightValue's range, minus Cutoff
	Freq1XorFreq0 uint16 // frequency of RightValue xor Freq0
}

// AliasSymbol result of a lookup: the symbol, the offset of the value within
// the symbol's range and the symbol frequency.
type AliasSymbol struct {
	Value  uint32
	Offset uint32
	Freq   uint32
}

// AliasLookup returns the symbol owning 'value' in [0, ANS_TAB_SIZE)
func AliasLookup(table []AliasEntry, value, logEntrySize, entrySizeMinus1 uint32) AliasSymbol {
	i := value >> logEntrySize
	pos := value & entrySizeMinus1
	e := &table[i]

	if pos >= uint32(e.Cutoff) {
		return AliasSymbol{
			Value:  uint32(e.RightValue),
			Offset: uint32(e.Offsets1) + pos,
			Freq:   uint32(e.Freq0 ^ e.Freq1XorFreq0),
		}
	}

	return AliasSymbol{Value: i, Offset: pos, Freq: uint32(e.Freq0)}
}

// InitAliasTable fills the first 1<<logAlphaSize entries of 'table' from a
// distribution summing to 'rangeSize'. Trailing zeros are ignored and an
// empty distribution is treated as a single symbol 0 owning the whole range.
func InitAliasTable(distribution []int32, rangeSize uint32, logAlphaSize uint32, table []AliasEntry) error {
	n := len(distribution)

	for n > 0 && distribution[n-1] == 0 {
		n--
	}

	dist := distribution[:n]

	if n == 0 {
		dist = []int32{int32(rangeSize)}
	}

	tableSize := 1 << logAlphaSize

	if len(dist) > tableSize {
		return jxlans.Errorf(jxlans.ErrAlphabetTooLong, "%d symbols, alias table size is %d", len(dist), tableSize)
	}

	if len(table) < tableSize {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "alias table too small: %d entries, need %d", len(table), tableSize)
	}

	a := table[0:tableSize]
	entrySize := rangeSize >> logAlphaSize

	// A symbol owning the whole range: every bucket maps to it
	for sym := range dist {
		if uint32(dist[sym]) == rangeSize {
			for i := range a {
				a[i] = AliasEntry{
					RightValue:    uint8(sym),
					Offsets1:      uint16(entrySize * uint32(i)),
					Freq1XorFreq0: uint16(rangeSize),
				}
			}

			return nil
		}
	}

	cutoffs := make([]uint32, tableSize)
	underfull := make([]int, 0, tableSize)
	overfull := make([]int, 0, tableSize)

	for i := range a {
		a[i] = AliasEntry{}
	}

	for i, c := range dist {
		if c < 0 {
			return jxlans.Errorf(jxlans.ErrInvalidHistogram, "negative count %d for symbol %d", c, i)
		}

		cutoffs[i] = uint32(c)

		if cutoffs[i] > entrySize {
			overfull = append(overfull, i)
		} else if cutoffs[i] < entrySize {
			underfull = append(underfull, i)
		}
	}

	for i := len(dist); i < tableSize; i++ {
		underfull = append(underfull, i)
	}

	// Move the excess of overfull buckets into underfull ones
	for len(overfull) > 0 {
		if len(underfull) == 0 {
			return jxlans.Errorf(jxlans.ErrInvalidHistogram, "distribution does not sum to %d", rangeSize)
		}

		o := overfull[len(overfull)-1]
		overfull = overfull[:len(overfull)-1]
		u := underfull[len(underfull)-1]
		underfull = underfull[:len(underfull)-1]
		by := entrySize - cutoffs[u]
		cutoffs[o] -= by
		a[u].RightValue = uint8(o)
		a[u].Offsets1 = uint16(cutoffs[o])

		if cutoffs[o] < entrySize {
			underfull = append(underfull, o)
		} else if cutoffs[o] > entrySize {
			overfull = append(overfull, o)
		}
	}

	for i := range a {
		if cutoffs[i] == entrySize {
			a[i].RightValue = uint8(i)
			a[i].Offsets1 = 0
			a[i].Cutoff = 0
		} else {
			a[i].Offsets1 -= uint16(cutoffs[i])
			a[i].Cutoff = uint8(cutoffs[i])
		}

		freq0 := uint16(0)

		if i < len(dist) {
			freq0 = uint16(dist[i])
		}

		freq1 := uint16(0)

		if int(a[i].RightValue) < len(dist) {
			freq1 = uint16(dist[a[i].RightValue])
		}

		a[i].Freq0 = freq0
		a[i].Freq1XorFreq0 = freq1 ^ freq0
	}

	return nil
}
