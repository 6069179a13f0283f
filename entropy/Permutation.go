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

const (
	PERMUTATION_CONTEXTS = 8
)

// PermutationContext returns the context of a Lehmer code given the
// previous one (or the permutation size for the length token)
func PermutationContext(value uint32) uint32 {
	token, _, _ := NewHybridUintConfig(0, 0, 0).Encode(value)
	return min(token, PERMUTATION_CONTEXTS-1)
}

// ComputeLehmerCode returns the Lehmer code of 'order', a permutation of
// [0, len(order)). A Fenwick tree counts the smaller values already seen.
func ComputeLehmerCode(order []uint32) ([]uint32, error) {
	n := len(order)
	tree := make([]uint32, n+1)
	code := make([]uint32, n)
	seen := make([]bool, n)

	for idx, s := range order {
		if int(s) >= n || seen[s] == true {
			return nil, jxlans.Errorf(jxlans.ErrInvalidPermutation, "value %d at position %d", s, idx)
		}

		seen[s] = true

		penalty := uint32(0)

		for i := s + 1; i != 0; i &= i - 1 {
			penalty += tree[i]
		}

		code[idx] = s - penalty

		for i := int(s) + 1; i <= n; i += i & -i {
			tree[i]++
		}
	}

	return code, nil
}

// DecodeLehmerCode rebuilds the permutation from its Lehmer code. Each code
// must be smaller than the number of values left.
func DecodeLehmerCode(code []uint32) ([]uint32, error) {
	n := len(code)
	left := make([]uint32, n)
	order := make([]uint32, n)

	for i := range left {
		left[i] = uint32(i)
	}

	for i, c := range code {
		if int(c) >= n-i {
			return nil, jxlans.Errorf(jxlans.ErrInvalidLehmerCode, "code %d at position %d", c, i)
		}

		order[i] = left[c]
		left = append(left[:c], left[c+1:]...)
	}

	return order, nil
}

// TokenizePermutation appends the tokens of the permutation, skipping the
// first 'skip' positions and the trailing zero codes
func TokenizePermutation(order []uint32, skip int, tokens []Token) ([]Token, error) {
	size := len(order)

	if skip > size {
		return tokens, jxlans.Errorf(jxlans.ErrInvalidPermutation, "skip %d larger than size %d", skip, size)
	}

	lehmer, err := ComputeLehmerCode(order)

	if err != nil {
		return tokens, err
	}

	end := size

	for end > skip && lehmer[end-1] == 0 {
		end--
	}

	tokens = append(tokens, NewToken(PermutationContext(uint32(size)), uint32(end-skip)))
	last := uint32(0)

	for i := skip; i < end; i++ {
		tokens = append(tokens, NewToken(PermutationContext(last), lehmer[i]))
		last = lehmer[i]
	}

	return tokens, nil
}

// EncodePermutation writes the histograms and tokens of the permutation
func EncodePermutation(order []uint32, skip int, obs jxlans.OutputBitStream) error {
	stream, err := TokenizePermutation(order, skip, nil)

	if err != nil {
		return err
	}

	tokens := [][]Token{stream}
	codes, contextMap, _, err := BuildAndEncodeHistograms(NewHistogramParams(), PERMUTATION_CONTEXTS, tokens, obs)

	if err != nil {
		return err
	}

	_, err = WriteTokens(tokens[0], codes, contextMap, obs)
	return err
}

// ReadPermutation reads the tokens of a permutation of 'size' values with an
// existing reader. The first 'skip' values are the identity.
func ReadPermutation(skip, size int, ibs jxlans.InputBitStream, reader *ANSSymbolReader, contextMap []uint8) ([]uint32, error) {
	lehmer := make([]uint32, size)
	end := int(reader.ReadHybridUint(PermutationContext(uint32(size)), ibs, contextMap)) + skip

	if end > size {
		return nil, jxlans.Errorf(jxlans.ErrInvalidPermutation, "end %d larger than size %d", end, size)
	}

	last := uint32(0)

	for i := skip; i < end; i++ {
		lehmer[i] = reader.ReadHybridUint(PermutationContext(last), ibs, contextMap)
		last = lehmer[i]

		if int(lehmer[i]) >= size-i {
			return nil, jxlans.Errorf(jxlans.ErrInvalidLehmerCode, "code %d at position %d", lehmer[i], i)
		}
	}

	return DecodeLehmerCode(lehmer)
}

// DecodePermutation reads the histograms and tokens written by
// EncodePermutation
func DecodePermutation(skip, size int, ibs jxlans.InputBitStream) ([]uint32, error) {
	code, contextMap, err := DecodeHistograms(ibs, PERMUTATION_CONTEXTS, DecoderOptions{})

	if err != nil {
		return nil, err
	}

	reader, err := NewANSSymbolReader(code, ibs, 0)

	if err != nil {
		return nil, err
	}

	order, err := ReadPermutation(skip, size, ibs, reader, contextMap)

	if err != nil {
		return nil, err
	}

	if reader.CheckANSFinalState() == false {
		return nil, jxlans.Errorf(jxlans.ErrANSChecksumFailure, "invalid permutation stream")
	}

	return order, nil
}
