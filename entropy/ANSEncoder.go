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

// Token a value to code in a context. LZ77 length tokens carry the copy
// length minus the minimum length.
type Token struct {
	Context      uint32
	Value        uint32
	IsLZ77Length bool
}

// NewToken creates a literal token
func NewToken(ctx, value uint32) Token {
	return Token{Context: ctx, Value: value}
}

// ANSEncSymbolInfo encoder side description of a symbol: its frequency and,
// for each offset in [0, freq), the position in [0, ANS_TAB_SIZE) the alias
// table assigns to it.
type ANSEncSymbolInfo struct {
	Freq       uint16
	ReverseMap []uint16
}

// EntropyEncodingData everything the token writer needs: the per histogram
// encoding info, the hybrid uint configs and the LZ77 parameters.
type EntropyEncodingData struct {
	EncodingInfo  [][]ANSEncSymbolInfo
	UintConfig    []HybridUintConfig
	LZ77          LZ77Params
	UsePrefixCode bool
}

// ANSCoder the encoder state machine. Symbols must be put in reverse order.
type ANSCoder struct {
	state uint32
}

// NewANSCoder creates a coder in the initial state
func NewANSCoder() *ANSCoder {
	return &ANSCoder{state: _ANS_INITIAL_STATE}
}

// PutSymbol updates the state with the symbol and returns the bits to emit
// (nbits is 0 or 16).
func (this *ANSCoder) PutSymbol(info *ANSEncSymbolInfo) (bits uint32, nbits uint) {
	freq := uint32(info.Freq)

	if (this.state >> (32 - ANS_LOG_TAB_SIZE)) >= freq {
		bits = this.state & 0xFFFF
		nbits = 16
		this.state >>= 16
	}

	this.state = ((this.state / freq) << ANS_LOG_TAB_SIZE) + uint32(info.ReverseMap[this.state%freq])
	return bits, nbits
}

// State returns the current state
func (this *ANSCoder) State() uint32 {
	return this.state
}

// ANSBuildInfoTable fills the frequencies and reverse maps from the counts
// and the alias table built from them. An empty alphabet yields symbol 0 with
// the whole range.
func ANSBuildInfoTable(counts []int32, table []AliasEntry, alphabetSize int, logAlphaSize uint32, info []ANSEncSymbolInfo) {
	logEntrySize := uint32(ANS_LOG_TAB_SIZE) - logAlphaSize
	entrySizeMinus1 := uint32(1)<<logEntrySize - 1

	for s := 0; s < max(1, alphabetSize); s++ {
		freq := int32(ANS_TAB_SIZE)

		if s != alphabetSize {
			freq = counts[s]
		}

		info[s].Freq = uint16(freq)
		info[s].ReverseMap = make([]uint16, freq)
	}

	for i := uint32(0); i < ANS_TAB_SIZE; i++ {
		sym := AliasLookup(table, i, logEntrySize, entrySizeMinus1)
		info[sym.Value].ReverseMap[sym.Offset] = uint16(i)
	}
}

// WriteTokens codes the tokens with the given histograms and writes them.
// The ANS state is written first (32 bits), followed by the renormalization
// and extra bits of the tokens in decoding order. Returns the number of
// extra bits.
func WriteTokens(tokens []Token, codes *EntropyEncodingData, contextMap []uint8, obs jxlans.OutputBitStream) (int, error) {
	if codes.UsePrefixCode == true {
		return 0, jxlans.Errorf(jxlans.ErrPrefixCodeUnsupported, "cannot write tokens")
	}

	allotment := bitstream.NewAllotment(obs, 32*uint64(len(tokens))+32*1024*4)
	chunks := make([]uint64, 0, len(tokens)/4+1)
	chunkBits := make([]uint8, 0, len(tokens)/4+1)
	all := uint64(0)
	numAll := uint(0)
	extra := 0

	// Accumulates bits in reverse order
	add := func(bits uint64, nbits uint) {
		if nbits == 0 {
			return
		}

		if numAll+nbits > bitstream.MAX_BITS_PER_CALL {
			chunks = append(chunks, all)
			chunkBits = append(chunkBits, uint8(numAll))
			all = 0
			numAll = 0
		}

		all = (all << nbits) | bits
		numAll += nbits
	}

	ans := NewANSCoder()
	clustered := codes.LZ77.Enabled == true || len(contextMap) > 1

	for i := len(tokens) - 1; i >= 0; i-- {
		t := tokens[i]
		histo := 0

		if clustered == true {
			if int(t.Context) >= len(contextMap) {
				return 0, jxlans.Errorf(jxlans.ErrInvalidParam, "token context %d out of range", t.Context)
			}

			histo = int(contextMap[t.Context])
		}

		var tok, nbits, bits uint32

		if t.IsLZ77Length == true {
			tok, nbits, bits = codes.LZ77.LengthUintConfig.Encode(t.Value)
			tok += codes.LZ77.MinSymbol
		} else {
			tok, nbits, bits = codes.UintConfig[histo].Encode(t.Value)
		}

		infos := codes.EncodingInfo[histo]

		if int(tok) >= len(infos) || infos[tok].Freq == 0 {
			return 0, jxlans.Errorf(jxlans.ErrInvalidParam, "token %d not in histogram %d", tok, histo)
		}

		// Extra bits first since the order is reversed
		add(uint64(bits), uint(nbits))
		extra += int(nbits)
		ansBits, ansNBits := ans.PutSymbol(&infos[tok])
		add(uint64(ansBits), ansNBits)
	}

	obs.WriteBits(uint64(ans.State()), 32)
	obs.WriteBits(all, numAll)

	for i := len(chunks) - 1; i >= 0; i-- {
		obs.WriteBits(chunks[i], uint(chunkBits[i]))
	}

	if _, err := allotment.Reclaim(); err != nil {
		return extra, err
	}

	return extra, nil
}
