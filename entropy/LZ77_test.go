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

	"github.com/flanglet/jxlans/bitstream"
	"github.com/flanglet/jxlans/internal"
	"golang.org/x/exp/slices"
)

func TestLZ77Expansion(b *testing.T) {
	if err := testLZ77Expansion(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestSingleValue(b *testing.T) {
	if err := testSingleValue(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestCheckpoint(b *testing.T) {
	if err := testCheckpoint(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestLZ77Params(b *testing.T) {
	if err := testLZ77Params(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestHashChain(b *testing.T) {
	if err := testHashChain(); err != nil {
		b.Errorf(err.Error())
	}
}

// A token stream with explicit LZ77 copies: 'copies' maps the position of
// a copy in the output to its (length, distance symbol).
type lz77Stream struct {
	tokens   []Token
	expected []uint32
}

func (this *lz77Stream) literal(v uint32) {
	this.tokens = append(this.tokens, NewToken(0, v))
	this.expected = append(this.expected, v)
}

// Copy of 'length' values at 'distance' (no special distances)
func (this *lz77Stream) copy(length, distance int, lz77 *LZ77Params) {
	this.tokens = append(this.tokens, Token{Context: 0, Value: uint32(length) - lz77.MinLength, IsLZ77Length: true})
	this.tokens = append(this.tokens, NewToken(lz77.NonserializedDistanceContext, uint32(distance-1)))

	for i := 0; i < length; i++ {
		this.expected = append(this.expected, this.expected[len(this.expected)-distance])
	}
}

func lz77TestParams() LZ77Params {
	lz77 := NewLZ77Params()
	lz77.Enabled = true
	lz77.NonserializedDistanceContext = 1
	return lz77
}

// Builds the histograms of the stream (literals and lengths in histogram 0,
// distances in histogram 1), writes them with the tokens and returns a
// reader ready to decode.
func encodeLZ77Stream(stream *lz77Stream, lz77 LZ77Params) (*ANSSymbolReader, *bitstream.DefaultInputBitStream, error) {
	cfg := DefaultHybridUintConfig()
	contextMap := []uint8{0, 1}
	histograms := [][]int32{make([]int32, 256), make([]int32, 256)}

	for _, t := range stream.tokens {
		var tok uint32

		if t.IsLZ77Length == true {
			tok, _, _ = lz77.LengthUintConfig.Encode(t.Value)
			tok += lz77.MinSymbol
		} else {
			tok, _, _ = cfg.Encode(t.Value)
		}

		histograms[contextMap[t.Context]][tok]++
	}

	codes := &EntropyEncodingData{UintConfig: []HybridUintConfig{cfg, cfg}, LZ77: lz77}
	data, err := writeHistogramsAndTokens(histograms, 8, codes, contextMap, stream.tokens)

	if err != nil {
		return nil, nil, err
	}

	code := &ANSCode{UintConfig: []HybridUintConfig{cfg, cfg}, LogAlphaSize: 8, LZ77: lz77}
	ibs, err := readHistograms(data, 2, code)

	if err != nil {
		return nil, nil, err
	}

	reader, err := NewANSSymbolReader(code, ibs, 0)
	return reader, ibs, err
}

func testLZ77Expansion() error {
	fmt.Println("=== Testing LZ77 expansion ===")
	lz77 := lz77TestParams()
	stream := &lz77Stream{}
	stream.literal(9)
	stream.copy(50, 1, &lz77)
	stream.literal(4)
	stream.literal(11)
	stream.copy(7, 2, &lz77)
	reader, ibs, err := encodeLZ77Stream(stream, lz77)

	if err != nil {
		return err
	}

	if reader.UsesLZ77() == false {
		return errors.New("The reader does not use LZ77")
	}

	contextMap := []uint8{0, 1}

	for i, v := range stream.expected {
		if res := reader.ReadHybridUint(0, ibs, contextMap); res != v {
			return fmt.Errorf("Value %d: decoded %d, expected %d", i, res, v)
		}
	}

	if reader.CheckANSFinalState() == false {
		return errors.New("Invalid final ANS state")
	}

	fmt.Printf("Decoded %d values from %d tokens\n", len(stream.expected), len(stream.tokens))
	fmt.Println("Success")
	return ibs.Close()
}

func testSingleValue() error {
	fmt.Println("=== Testing single value histograms ===")
	tokens := make([]Token, 1024)

	for i := range tokens {
		tokens[i] = NewToken(0, 7)
	}

	histogram := make([]int32, 8)
	histogram[7] = 1024
	cfg := DefaultHybridUintConfig()

	for _, fast := range []bool{false, true} {
		codes := &EntropyEncodingData{UintConfig: []HybridUintConfig{cfg}, LZ77: NewLZ77Params()}
		data, err := writeHistogramsAndTokens([][]int32{histogram}, 5, codes, []uint8{0}, tokens)

		if err != nil {
			return err
		}

		code := &ANSCode{UintConfig: []HybridUintConfig{cfg}, LogAlphaSize: 5, LZ77: NewLZ77Params()}
		ibs, err := readHistograms(data, 1, code)

		if err != nil {
			return err
		}

		reader, err := NewANSSymbolReader(code, ibs, 0)

		if err != nil {
			return err
		}

		if fast == true {
			v, ok := reader.IsSingleValueAndAdvance(0, len(tokens))

			if ok == false || v != 7 {
				return fmt.Errorf("Single value not detected: %d, %v", v, ok)
			}
		} else {
			for i := range tokens {
				if v := reader.ReadHybridUint(0, ibs, []uint8{0}); v != 7 {
					return fmt.Errorf("Value %d: decoded %d, expected 7", i, v)
				}
			}
		}

		if reader.CheckANSFinalState() == false {
			return fmt.Errorf("Invalid final ANS state (fast path: %v)", fast)
		}

		if err := ibs.Close(); err != nil {
			return err
		}
	}

	// Two symbols: no fast path
	histogram[3] = 1
	tokens[100] = NewToken(0, 3)
	codes := &EntropyEncodingData{UintConfig: []HybridUintConfig{cfg}, LZ77: NewLZ77Params()}
	data, err := writeHistogramsAndTokens([][]int32{histogram}, 5, codes, []uint8{0}, tokens)

	if err != nil {
		return err
	}

	code := &ANSCode{UintConfig: []HybridUintConfig{cfg}, LogAlphaSize: 5, LZ77: NewLZ77Params()}
	ibs, err := readHistograms(data, 1, code)

	if err != nil {
		return err
	}

	reader, err := NewANSSymbolReader(code, ibs, 0)

	if err != nil {
		return err
	}

	if _, ok := reader.IsSingleValueAndAdvance(0, len(tokens)); ok == true {
		return errors.New("Single value detected in a histogram with 2 symbols")
	}

	fmt.Println("Success")
	return nil
}

func testCheckpoint() error {
	fmt.Println("=== Testing checkpoints ===")
	lz77 := lz77TestParams()
	stream := &lz77Stream{}

	for i := 0; i < 301; i++ {
		stream.literal(uint32(rand.Intn(16)))
	}

	stream.copy(50, 1, &lz77)

	for i := 0; i < 300; i++ {
		stream.literal(uint32(rand.Intn(16)))
	}

	stream.copy(20, 10, &lz77)
	stream.copy(100, 333, &lz77)
	reader, ibs, err := encodeLZ77Stream(stream, lz77)

	if err != nil {
		return err
	}

	contextMap := []uint8{0, 1}

	// Save in the middle of the first copy, then before the second one
	for _, start := range []int{320, 600, 650} {
		for len(stream.expected) > start && int(reader.numDecoded) < start {
			if v := reader.ReadHybridUint(0, ibs, contextMap); v != stream.expected[reader.numDecoded-1] {
				return fmt.Errorf("Value %d: decoded %d", reader.numDecoded-1, v)
			}
		}

		var cp ANSCheckpoint
		reader.Save(&cp)
		snapshot := ibs.Snapshot()
		n := min(MAX_CHECKPOINT_INTERVAL/2, len(stream.expected)-start)
		first := make([]uint32, n)

		for i := range first {
			first[i] = reader.ReadHybridUint(0, ibs, contextMap)
		}

		reader.Restore(&cp)
		ibs.Rewind(snapshot)
		second := make([]uint32, n)

		for i := range second {
			second[i] = reader.ReadHybridUint(0, ibs, contextMap)
		}

		if slices.Equal(first, second) == false || slices.Equal(first, stream.expected[start:start+n]) == false {
			return fmt.Errorf("Different values after restoring the checkpoint at %d", start)
		}

		reader.Restore(&cp)
		ibs.Rewind(snapshot)
		fmt.Printf("Checkpoint at %d: %d values replayed\n", start, n)
	}

	for int(reader.numDecoded) < len(stream.expected) {
		if v := reader.ReadHybridUint(0, ibs, contextMap); v != stream.expected[reader.numDecoded-1] {
			return fmt.Errorf("Value %d: decoded %d", reader.numDecoded-1, v)
		}
	}

	if reader.CheckANSFinalState() == false {
		return errors.New("Invalid final ANS state")
	}

	fmt.Println("Success")
	return ibs.Close()
}

func testLZ77Params() error {
	fmt.Println("=== Testing LZ77 parameters ===")

	for _, minSymbol := range []uint32{224, 512, 4096, 8, 1000, 32767 + 8} {
		for _, minLength := range []uint32{3, 4, 5, 8, 9, 100, 264} {
			lz77 := NewLZ77Params()
			lz77.Enabled = true
			lz77.MinSymbol = minSymbol
			lz77.MinLength = minLength
			bs := internal.NewBufferStream()
			obs, _ := bitstream.NewDefaultOutputBitStream(bs, 16384)

			if err := lz77.Write(obs); err != nil {
				return err
			}

			obs.Close()
			ibs, _ := bitstream.NewDefaultInputBitStream(bs.Bytes())
			var res LZ77Params
			res.Read(ibs)

			if res.Enabled == false || res.MinSymbol != minSymbol || res.MinLength != minLength {
				return fmt.Errorf("Decoded %+v, expected %+v", res, lz77)
			}
		}
	}

	// Out of range
	lz77 := NewLZ77Params()
	lz77.Enabled = true
	lz77.MinLength = 1

	if err := lz77.Write(&SizeWriter{}); err == nil {
		return errors.New("Invalid minimum length written")
	}

	fmt.Println("Success")
	return nil
}

func testHashChain() error {
	fmt.Println("=== Testing hash chain ===")
	tokens := make([]Token, 0, 4000)

	for i := 0; i < 1000; i++ {
		tokens = append(tokens, NewToken(0, uint32(rand.Intn(8))))
	}

	// A run of zeros and a repeated block
	for i := 0; i < 500; i++ {
		tokens = append(tokens, NewToken(0, 0))
	}

	tokens = append(tokens, tokens[100:400]...)
	chain := NewHashChain(tokens, 1<<12, 3, 256, 0)

	for pos := range tokens {
		chain.Update(pos)

		if pos == 0 {
			continue
		}

		length, distSymbol := chain.FindMatch(pos)

		if length < 3 {
			continue
		}

		// Without special distances, the symbol is the distance minus 1
		dist := distSymbol + 1

		if dist > pos {
			return fmt.Errorf("Position %d: distance %d before the start", pos, dist)
		}

		for i := 0; i < length; i++ {
			if tokens[pos+i].Value != tokens[pos+i-dist].Value {
				return fmt.Errorf("Position %d: invalid match of length %d at distance %d", pos, length, dist)
			}
		}
	}

	// The repeated block is found
	chain = NewHashChain(tokens, 1<<12, 3, 256, 0)
	chain.UpdateRange(0, 1500)
	chain.Update(1500)

	if length, _ := chain.FindMatch(1500); length < 256 {
		return fmt.Errorf("Repeated block not found: match length %d", length)
	}

	fmt.Println("Success")
	return nil
}
