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
	bitstream "github.com/flanglet/jxlans/bitstream"
)

// MoveToFrontTransform returns the move-to-front indexes of the values
func MoveToFrontTransform(values []uint8) []uint8 {
	res := make([]uint8, len(values))

	if len(values) == 0 {
		return res
	}

	maxValue := values[0]

	for _, v := range values {
		maxValue = max(maxValue, v)
	}

	mtf := make([]uint8, int(maxValue)+1)

	for i := range mtf {
		mtf[i] = uint8(i)
	}

	for i, v := range values {
		idx := 0

		for mtf[idx] != v {
			idx++
		}

		res[i] = uint8(idx)
		copy(mtf[1:idx+1], mtf[0:idx])
		mtf[0] = v
	}

	return res
}

// InverseMoveToFrontTransform reverts MoveToFrontTransform in place
func InverseMoveToFrontTransform(values []uint8) {
	var mtf [256]uint8

	for i := range mtf {
		mtf[i] = uint8(i)
	}

	for i, idx := range values {
		v := mtf[idx]
		values[i] = v

		if idx != 0 {
			copy(mtf[1:int(idx)+1], mtf[0:idx])
			mtf[0] = v
		}
	}
}

// EncodeContextMap writes the context map, choosing the cheapest of a
// simple (fixed width) coding, an entropy coding of the indexes and an
// entropy coding of their move-to-front transform.
func EncodeContextMap(contextMap []uint8, numHistograms int, obs jxlans.OutputBitStream) error {
	if numHistograms == 1 {
		// Simple code with 0 bits per entry
		obs.WriteBits(1, 1)
		obs.WriteBits(0, 2)
		return nil
	}

	transformed := MoveToFrontTransform(contextMap)
	tokens := make([]Token, len(contextMap))
	mtfTokens := make([]Token, len(contextMap))

	for i := range contextMap {
		tokens[i] = NewToken(0, uint32(contextMap[i]))
		mtfTokens[i] = NewToken(0, uint32(transformed[i]))
	}

	params := NewHistogramParams()
	params.UintMethod = UINT_CONTEXT_MAP

	// Estimates for both token streams
	ansCost, err := tokensCost(params, tokens)

	if err != nil {
		return err
	}

	mtfCost, err := tokensCost(params, mtfTokens)

	if err != nil {
		return err
	}

	useMTF := mtfCost < ansCost

	if useMTF == true {
		tokens = mtfTokens
	}

	entryBits := CeilLog2(numHistograms)
	simpleCost := uint64(entryBits * len(contextMap))

	if entryBits < 4 && simpleCost < ansCost && simpleCost < mtfCost {
		allotment := bitstream.NewAllotment(obs, 3+simpleCost)
		obs.WriteBits(1, 1)
		obs.WriteBits(uint64(entryBits), 2)

		for _, v := range contextMap {
			obs.WriteBits(uint64(v), uint(entryBits))
		}

		_, err := allotment.Reclaim()
		return err
	}

	obs.WriteBits(0, 1)

	if useMTF == true {
		obs.WriteBits(1, 1)
	} else {
		obs.WriteBits(0, 1)
	}

	streams := [][]Token{tokens}
	codes, ctxMap, _, err := BuildAndEncodeHistograms(params, 1, streams, obs)

	if err != nil {
		return err
	}

	_, err = WriteTokens(streams[0], codes, ctxMap, obs)
	return err
}

// Estimated size in bits of a single context token stream: the histograms
// and ANS data plus the extra bits
func tokensCost(params *HistogramParams, tokens []Token) (uint64, error) {
	streams := [][]Token{append([]Token(nil), tokens...)}
	codes, ctxMap, cost, err := BuildAndEncodeHistograms(params, 1, streams, nil)

	if err != nil {
		return 0, err
	}

	return cost + uint64(CountExtraBits(streams[0], codes, ctxMap)), nil
}

// DecodeContextMap fills 'contextMap' (sized to the number of contexts) and
// returns the number of histograms
func DecodeContextMap(contextMap []uint8, ibs jxlans.InputBitStream) (int, error) {
	if ibs.ReadBit() == 1 {
		bitsPerEntry := uint(ibs.ReadBits(2))

		for i := range contextMap {
			if bitsPerEntry == 0 {
				contextMap[i] = 0
			} else {
				contextMap[i] = uint8(ibs.ReadBits(bitsPerEntry))
			}
		}
	} else {
		useMTF := ibs.ReadBit() == 1

		// LZ77 is pointless for 2 entries or less and would allow a chain
		// of nested context maps
		opts := DecoderOptions{DisallowLZ77: len(contextMap) <= 2}
		code, sinkCtxMap, err := DecodeHistograms(ibs, 1, opts)

		if err != nil {
			return 0, err
		}

		reader, err := NewANSSymbolReader(code, ibs, 0)

		if err != nil {
			return 0, err
		}

		for i := range contextMap {
			v := reader.ReadHybridUint(0, ibs, sinkCtxMap)

			if v >= MAX_CLUSTERS {
				return 0, jxlans.Errorf(jxlans.ErrInvalidClusterId, "%d at position %d", v, i)
			}

			contextMap[i] = uint8(v)
		}

		if reader.CheckANSFinalState() == false {
			return 0, jxlans.Errorf(jxlans.ErrANSChecksumFailure, "invalid context map")
		}

		if useMTF == true {
			InverseMoveToFrontTransform(contextMap)
		}
	}

	return VerifyContextMap(contextMap)
}

// VerifyContextMap returns the number of histograms of the context map, or
// an error if some histogram index below the maximum is never used
func VerifyContextMap(contextMap []uint8) (int, error) {
	maxIndex := 0

	for _, v := range contextMap {
		maxIndex = max(maxIndex, int(v))
	}

	numHistograms := maxIndex + 1
	seen := make([]bool, numHistograms)
	found := 0

	for _, v := range contextMap {
		if seen[v] == false {
			seen[v] = true
			found++
		}
	}

	if found != numHistograms {
		return 0, jxlans.Errorf(jxlans.ErrIncompleteContextMap, "%d histograms used out of %d", found, numHistograms)
	}

	return numHistograms, nil
}
