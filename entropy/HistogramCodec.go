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
	"math"

	jxlans "github.com/flanglet/jxlans"
)

// ANS histogram strategies: which shifts are tried when choosing how
// precisely the counts are stored.
const (
	ANS_HISTOGRAM_FAST        = 0 // shifts 0, 6 and 12
	ANS_HISTOGRAM_APPROXIMATE = 1 // even shifts
	ANS_HISTOGRAM_PRECISE     = 2 // all shifts
)

const (
	_RLE_LOGCOUNT = ANS_LOG_TAB_SIZE + 1
	_MIN_REPS     = 4
)

// Static prefix code for log counts, written least significant bit first.
// The last code is the RLE marker.
var (
	_LOGCOUNT_BIT_LENGTHS = [ANS_LOG_TAB_SIZE + 2]uint8{5, 4, 4, 4, 4, 4, 3, 3, 3, 3, 3, 6, 7, 7}
	_LOGCOUNT_SYMBOLS     = [ANS_LOG_TAB_SIZE + 2]uint8{17, 11, 15, 3, 9, 7, 4, 2, 5, 6, 0, 33, 1, 65}
)

// Decoding table of the log count code indexed by the next 7 bits:
// (code length, log count)
var _LOGCOUNT_DECODE [128][2]uint8

func init() {
	for idx := range _LOGCOUNT_DECODE {
		for lc := range _LOGCOUNT_SYMBOLS {
			mask := (1 << _LOGCOUNT_BIT_LENGTHS[lc]) - 1

			if idx&mask == int(_LOGCOUNT_SYMBOLS[lc]) {
				_LOGCOUNT_DECODE[idx] = [2]uint8{_LOGCOUNT_BIT_LENGTHS[lc], uint8(lc)}
				break
			}
		}
	}
}

// EncodeFlatHistogram writes a uniform histogram over 'alphabetSize' symbols
func EncodeFlatHistogram(alphabetSize int, w bitWriter) {
	w.WriteBits(0, 1) // not small
	w.WriteBits(1, 1) // flat
	StoreVarLenUint8(uint32(alphabetSize-1), w)
}

// EncodeCounts writes normalized counts. One or two symbols use the small
// code, otherwise the shift, the length and the log counts (with RLE) are
// followed by the mantissas. The count at omitPos is implied by the others.
// Returns false if the histogram is too long to be represented.
func EncodeCounts(counts []int32, alphabetSize int, omitPos int, numSymbols int,
	shift int, symbols []int, w bitWriter) bool {
	ok := true

	if numSymbols <= 2 {
		w.WriteBits(1, 1)

		if numSymbols == 0 {
			w.WriteBits(0, 1)
			StoreVarLenUint8(0, w)
		} else {
			w.WriteBits(uint64(numSymbols-1), 1)

			for i := 0; i < numSymbols; i++ {
				StoreVarLenUint8(uint32(symbols[i]), w)
			}
		}

		if numSymbols == 2 {
			w.WriteBits(uint64(counts[symbols[0]]), ANS_LOG_TAB_SIZE)
		}

		return ok
	}

	w.WriteBits(0, 1) // not small
	w.WriteBits(0, 1) // not flat

	// Length of runs of equal counts, stored at the first index of each run.
	// The omitted position never takes part in a run.
	same := make([]int, alphabetSize)
	last := 0

	for i := 1; i < alphabetSize; i++ {
		if counts[i] != counts[last] || i+1 == alphabetSize || i-last >= 255 ||
			i == omitPos || i == omitPos+1 {
			same[last] = i - last
			last = i + 1
		}
	}

	length := 0
	logcounts := make([]int, alphabetSize)
	omitLog := 0

	for i := 0; i < alphabetSize; i++ {
		if i == omitPos {
			length = i + 1
		} else if counts[i] > 0 {
			logcounts[i] = FloorLog2(counts[i]) + 1
			length = i + 1

			if i < omitPos {
				omitLog = max(omitLog, logcounts[i]+1)
			} else {
				omitLog = max(omitLog, logcounts[i])
			}
		}
	}

	logcounts[omitPos] = omitLog

	// Elias gamma like code for shift, without the terminating zero when
	// the unary part reaches its maximum
	upperBoundLog := FloorLog2(ANS_LOG_TAB_SIZE + 1)
	lg := uint(FloorLog2(shift + 1))
	w.WriteBits((1<<lg)-1, lg)

	if int(lg) != upperBoundLog {
		w.WriteBits(0, 1)
	}

	w.WriteBits(((1<<lg)-1)&uint64(shift+1), lg)

	if length-3 > 255 {
		StoreVarLenUint8(255, w)
		ok = false
	} else {
		StoreVarLenUint8(uint32(length-3), w)
	}

	for i := 0; i < length; i++ {
		if i > 0 && same[i-1] > _MIN_REPS {
			w.WriteBits(uint64(_LOGCOUNT_SYMBOLS[_RLE_LOGCOUNT]), uint(_LOGCOUNT_BIT_LENGTHS[_RLE_LOGCOUNT]))
			StoreVarLenUint8(uint32(same[i-1]-_MIN_REPS-1), w)
			i += same[i-1] - 2
			continue
		}

		w.WriteBits(uint64(_LOGCOUNT_SYMBOLS[logcounts[i]]), uint(_LOGCOUNT_BIT_LENGTHS[logcounts[i]]))
	}

	for i := 0; i < length; i++ {
		if i > 0 && same[i-1] > _MIN_REPS {
			i += same[i-1] - 2
			continue
		}

		if logcounts[i] > 1 && i != omitPos {
			bitcount := GetPopulationCountPrecision(logcounts[i]-1, shift)
			drop := logcounts[i] - 1 - bitcount
			w.WriteBits(uint64((counts[i]>>drop)-(1<<bitcount)), uint(bitcount))
		}
	}

	return ok
}

// ReadHistogram reads counts written by EncodeCounts or EncodeFlatHistogram.
// The returned counts sum to 1<<precisionBits.
func ReadHistogram(precisionBits uint, ibs jxlans.InputBitStream) ([]int32, error) {
	total := int32(1) << precisionBits

	if ibs.ReadBit() == 1 {
		// Small code: 1 or 2 symbols
		var symbols [2]uint32
		maxSymbol := uint32(0)
		numSymbols := int(ibs.ReadBits(1)) + 1

		for i := 0; i < numSymbols; i++ {
			symbols[i] = DecodeVarLenUint8(ibs)
			maxSymbol = max(maxSymbol, symbols[i])
		}

		counts := make([]int32, maxSymbol+1)

		if numSymbols == 1 {
			counts[symbols[0]] = total
			return counts, nil
		}

		if symbols[0] == symbols[1] {
			return nil, jxlans.Errorf(jxlans.ErrInvalidHistogram, "duplicate symbol %d in small code", symbols[0])
		}

		counts[symbols[0]] = int32(ibs.ReadBits(precisionBits))
		counts[symbols[1]] = total - counts[symbols[0]]
		return counts, nil
	}

	if ibs.ReadBit() == 1 {
		alphabetSize := int(DecodeVarLenUint8(ibs)) + 1
		return CreateFlatHistogram(alphabetSize, int(total)), nil
	}

	upperBoundLog := uint(FloorLog2(ANS_LOG_TAB_SIZE + 1))
	lg := uint(0)

	for lg < upperBoundLog && ibs.ReadBit() == 1 {
		lg++
	}

	shift := int(ibs.ReadBits(lg)|(1<<lg)) - 1

	if shift > ANS_LOG_TAB_SIZE+1 {
		return nil, jxlans.Errorf(jxlans.ErrInvalidShiftValue, "%d", shift)
	}

	length := int(DecodeVarLenUint8(ibs)) + 3
	counts := make([]int32, length)
	logcounts := make([]int, length)
	same := make([]int, length)
	omitLog := -1
	omitPos := -1

	for i := 0; i < length; i++ {
		ibs.Refill()
		entry := _LOGCOUNT_DECODE[ibs.PeekBits(7)]
		ibs.Consume(uint(entry[0]))
		logcounts[i] = int(entry[1])

		if logcounts[i] == _RLE_LOGCOUNT {
			rle := int(DecodeVarLenUint8(ibs))
			same[i] = rle + _MIN_REPS + 1
			i += rle + _MIN_REPS - 1
			continue
		}

		if logcounts[i] > omitLog {
			omitLog = logcounts[i]
			omitPos = i
		}
	}

	if omitPos < 0 {
		return nil, jxlans.Errorf(jxlans.ErrInvalidHistogram, "no omitted position")
	}

	// The count at omitPos is unknown until the end, it cannot start a run
	if omitPos+1 < length && logcounts[omitPos+1] == _RLE_LOGCOUNT {
		return nil, jxlans.Errorf(jxlans.ErrInvalidHistogram, "run after omitted position %d", omitPos)
	}

	totalCount := int32(0)
	prev := int32(0)
	numSame := 0

	for i := 0; i < length; i++ {
		if same[i] != 0 {
			numSame = same[i] - 1
			prev = 0

			if i > 0 {
				prev = counts[i-1]
			}
		}

		if numSame > 0 {
			counts[i] = prev
			numSame--
		} else {
			code := logcounts[i]

			if i == omitPos || code == 0 {
				continue
			}

			if code == 1 {
				counts[i] = 1
			} else {
				bitcount := GetPopulationCountPrecision(code-1, shift)
				counts[i] = (1 << (code - 1)) + int32(ibs.ReadBits(uint(bitcount))<<(code-1-bitcount))
			}
		}

		totalCount += counts[i]
	}

	counts[omitPos] = total - totalCount

	if counts[omitPos] <= 0 {
		return nil, jxlans.Errorf(jxlans.ErrInvalidHistogramCount, "counts sum to %d", totalCount)
	}

	return counts, nil
}

// EstimateDataBits returns the cost of coding 'histogram' with the
// normalized 'counts'
func EstimateDataBits(histogram, counts []int32, length int) float32 {
	sum := float32(0)

	for i := 0; i < length; i++ {
		if histogram[i] > 0 {
			sum += float32(histogram[i]) * max(0, ANS_LOG_TAB_SIZE-log2f(float32(counts[i])))
		}
	}

	return sum
}

// EstimateDataBitsFlat returns the cost of coding 'histogram' with a flat
// distribution over 'length' symbols
func EstimateDataBitsFlat(histogram []int32, length int) float32 {
	flatBits := float32(0)

	if length > 0 {
		flatBits = max(log2f(float32(length)), 0)
	}

	total := float32(0)

	for i := 0; i < length; i++ {
		total += float32(histogram[i])
	}

	return total * flatBits
}

// ComputeHistoAndDataCost returns the cost of the histogram header plus the
// data. Method 0 is the flat histogram, method k > 0 uses shift k-1.
// Returns +Inf if the histogram cannot be normalized with that shift.
func ComputeHistoAndDataCost(histogram []int32, alphabetSize int, method int) float32 {
	if method == 0 {
		return ANS_LOG_TAB_SIZE + 2 + EstimateDataBitsFlat(histogram, alphabetSize)
	}

	shift := method - 1
	counts := make([]int32, alphabetSize)
	copy(counts, histogram)
	omitPos, numSymbols, symbols, err := NormalizeCounts(counts, shift)

	if err != nil {
		return float32(math.Inf(1))
	}

	var sw SizeWriter
	EncodeCounts(counts, alphabetSize, omitPos, numSymbols, shift, symbols[:], &sw)
	return float32(sw.Size) + EstimateDataBits(histogram, counts, alphabetSize)
}

// ComputeBestMethod returns the cheapest method for the histogram according
// to the strategy, and its cost
func ComputeBestMethod(histogram []int32, alphabetSize int, strategy int) (int, float32) {
	method := 0
	fcost := ComputeHistoAndDataCost(histogram, alphabetSize, 0)

	tryShift := func(shift int) {
		if c := ComputeHistoAndDataCost(histogram, alphabetSize, shift+1); c < fcost {
			method = shift + 1
			fcost = c
		}
	}

	switch strategy {
	case ANS_HISTOGRAM_PRECISE:
		for shift := 0; shift <= ANS_LOG_TAB_SIZE; shift++ {
			tryShift(shift)
		}

	case ANS_HISTOGRAM_APPROXIMATE:
		for shift := 0; shift <= ANS_LOG_TAB_SIZE; shift += 2 {
			tryShift(shift)
		}

	default:
		tryShift(0)
		tryShift(ANS_LOG_TAB_SIZE / 2)
		tryShift(ANS_LOG_TAB_SIZE)
	}

	return method, fcost
}

// ANSPopulationCost returns the estimated cost of a histogram and its data
func ANSPopulationCost(data []int32, alphabetSize int) float32 {
	_, cost := ComputeBestMethod(data, alphabetSize, ANS_HISTOGRAM_FAST)
	return cost
}

// BuildAndStoreANSEncodingData chooses how to store the histogram, fills the
// encoding info of each symbol and writes the histogram (if w is not nil).
// Returns the estimated cost of the histogram and data.
func BuildAndStoreANSEncodingData(strategy int, histogram []int32, alphabetSize int,
	logAlphaSize uint32, info []ANSEncSymbolInfo, w bitWriter) (float32, error) {
	if alphabetSize > ANS_TAB_SIZE {
		return 0, jxlans.Errorf(jxlans.ErrTooManyEntries, "alphabet size %d", alphabetSize)
	}

	if alphabetSize != 0 {
		largest := 0

		for i := 0; i < alphabetSize; i++ {
			if histogram[i] != 0 {
				largest = i
			}
		}

		alphabetSize = largest + 1
	}

	method, cost := ComputeBestMethod(histogram, alphabetSize, strategy)
	counts := make([]int32, alphabetSize)
	copy(counts, histogram)

	if len(counts) > 0 {
		sum := 0

		for _, c := range counts {
			sum += int(c)
		}

		if sum == 0 {
			counts[0] = ANS_TAB_SIZE
		}
	}

	var table [ANS_MAX_ALPHABET_SIZE]AliasEntry

	if method == 0 {
		counts = CreateFlatHistogram(alphabetSize, ANS_TAB_SIZE)

		if err := InitAliasTable(counts, ANS_TAB_SIZE, logAlphaSize, table[:]); err != nil {
			return cost, err
		}

		ANSBuildInfoTable(counts, table[:], alphabetSize, logAlphaSize, info)

		if w != nil {
			EncodeFlatHistogram(alphabetSize, w)
		}

		return cost, nil
	}

	shift := method - 1
	omitPos, numSymbols, symbols, err := NormalizeCounts(counts, shift)

	if err != nil {
		return cost, err
	}

	if err := InitAliasTable(counts, ANS_TAB_SIZE, logAlphaSize, table[:]); err != nil {
		return cost, err
	}

	ANSBuildInfoTable(counts, table[:], alphabetSize, logAlphaSize, info)

	if w != nil {
		if EncodeCounts(counts, alphabetSize, omitPos, numSymbols, shift, symbols[:], w) == false {
			return cost, jxlans.Errorf(jxlans.ErrAlphabetTooLong, "histogram length %d", alphabetSize)
		}
	}

	return cost, nil
}
