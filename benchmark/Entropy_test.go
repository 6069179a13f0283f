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

package benchmark

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/flanglet/jxlans/bitstream"
	"github.com/flanglet/jxlans/entropy"
	"github.com/flanglet/jxlans/internal"
)

const _BENCH_NUM_CONTEXTS = 4

// Tokens with repeats (exercised by LZ77) and a skewed distribution
func benchTokens(size int, seed int64) []entropy.Token {
	repeats := []int{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3}
	rnd := rand.New(rand.NewSource(seed))
	tokens := make([]entropy.Token, 0, size)
	idx := 0

	for len(tokens) < size {
		length := min(repeats[idx], size-len(tokens))
		idx = (idx + 1) & 0x0F
		v := uint32(rnd.Intn(16))

		if rnd.Intn(8) == 0 {
			v = uint32(rnd.Intn(4096))
		}

		for j := 0; j < length; j++ {
			tokens = append(tokens, entropy.NewToken(uint32(len(tokens)%_BENCH_NUM_CONTEXTS), v))
		}
	}

	return tokens
}

func encodeTokens(params *entropy.HistogramParams, tokens []entropy.Token) ([]byte, error) {
	bs := internal.NewBufferStream()
	obs, err := bitstream.NewDefaultOutputBitStream(bs, 65536)

	if err != nil {
		return nil, err
	}

	streams := [][]entropy.Token{append([]entropy.Token(nil), tokens...)}
	codes, contextMap, _, err := entropy.BuildAndEncodeHistograms(params, _BENCH_NUM_CONTEXTS, streams, obs)

	if err != nil {
		return nil, err
	}

	if _, err := entropy.WriteTokens(streams[0], codes, contextMap, obs); err != nil {
		return nil, err
	}

	if err := obs.Close(); err != nil {
		return nil, err
	}

	return bs.Bytes(), nil
}

func decodeTokens(data []byte, values []uint32, ctxs []uint32) error {
	ibs, err := bitstream.NewDefaultInputBitStream(data)

	if err != nil {
		return err
	}

	code, contextMap, err := entropy.DecodeHistograms(ibs, _BENCH_NUM_CONTEXTS, entropy.DecoderOptions{})

	if err != nil {
		return err
	}

	reader, err := entropy.NewANSSymbolReader(code, ibs, 0)

	if err != nil {
		return err
	}

	for i := range values {
		values[i] = reader.ReadHybridUint(ctxs[i], ibs, contextMap)
	}

	if reader.CheckANSFinalState() == false {
		return fmt.Errorf("Invalid final ANS state")
	}

	return ibs.Close()
}

func benchmarkANS(b *testing.B, lz77Method int) {
	size := 100000
	tokens := benchTokens(size, 12345)
	params := entropy.NewHistogramParams()
	params.LZ77Method = lz77Method
	ctxs := make([]uint32, size)
	values := make([]uint32, size)

	for i, t := range tokens {
		ctxs[i] = t.Context
	}

	b.SetBytes(int64(4 * size))
	b.ResetTimer()

	for ii := 0; ii < b.N; ii++ {
		data, err := encodeTokens(params, tokens)

		if err != nil {
			b.Fatalf("An error occurred during encoding: %v\n", err)
		}

		if err := decodeTokens(data, values, ctxs); err != nil {
			b.Fatalf("An error occurred during decoding: %v\n", err)
		}

		for i := range values {
			if values[i] != tokens[i].Value {
				b.Fatalf("Bad data at index %d: %d instead of %d", i, values[i], tokens[i].Value)
			}
		}
	}
}

func BenchmarkANS(b *testing.B) {
	benchmarkANS(b, entropy.LZ77_NONE)
}

func BenchmarkANSRLE(b *testing.B) {
	benchmarkANS(b, entropy.LZ77_RLE)
}

func BenchmarkANSLZ77(b *testing.B) {
	benchmarkANS(b, entropy.LZ77_LZ77)
}

func BenchmarkANSOptimal(b *testing.B) {
	benchmarkANS(b, entropy.LZ77_OPTIMAL)
}
