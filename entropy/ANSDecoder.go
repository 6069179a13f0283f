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

// ANSCheckpoint a saved decoder position. The window snapshot covers the
// MAX_CHECKPOINT_INTERVAL entries following the decoded count, which is
// enough to restore a reader that decoded at most that many values since.
type ANSCheckpoint struct {
	state      uint32
	numToCopy  uint32
	copyPos    uint32
	numDecoded uint32
	window     [MAX_CHECKPOINT_INTERVAL]uint32
}

// ANSSymbolReader the decoder state machine, including LZ77 expansion
type ANSSymbolReader struct {
	aliasTables     []AliasEntry
	configs         []HybridUintConfig
	state           uint32
	logAlphaSize    uint32
	logEntrySize    uint32
	entrySizeMinus1 uint32

	window              []uint32 // nil if LZ77 is disabled
	numDecoded          uint32
	numToCopy           uint32
	copyPos             uint32
	lz77Ctx             uint32
	lz77MinLength       uint32
	lz77Threshold       uint32
	lz77LengthUint      HybridUintConfig
	specialDistances    [NUM_SPECIAL_DISTANCES]uint32
	numSpecialDistances uint32
}

// NewANSSymbolReader reads the initial state and prepares the LZ77 window.
// A distance multiplier of 0 disables the special distances.
func NewANSSymbolReader(code *ANSCode, ibs jxlans.InputBitStream, distanceMultiplier uint32) (*ANSSymbolReader, error) {
	if code.UsePrefixCode == true {
		return nil, jxlans.Errorf(jxlans.ErrPrefixCodeUnsupported, "cannot create symbol reader")
	}

	this := &ANSSymbolReader{}
	this.aliasTables = code.AliasTables
	this.configs = code.UintConfig
	this.state = uint32(ibs.ReadBits(32))
	this.logAlphaSize = code.LogAlphaSize
	this.logEntrySize = ANS_LOG_TAB_SIZE - code.LogAlphaSize
	this.entrySizeMinus1 = (1 << this.logEntrySize) - 1
	this.lz77Threshold = 1 << 20 // larger than any symbol

	if code.LZ77.Enabled == false {
		return this, nil
	}

	this.window = make([]uint32, WINDOW_SIZE)
	this.lz77Ctx = code.LZ77.NonserializedDistanceContext
	this.lz77LengthUint = code.LZ77.LengthUintConfig
	this.lz77Threshold = code.LZ77.MinSymbol
	this.lz77MinLength = code.LZ77.MinLength

	if distanceMultiplier != 0 {
		this.numSpecialDistances = NUM_SPECIAL_DISTANCES

		for i := range this.specialDistances {
			this.specialDistances[i] = SpecialDistance(i, distanceMultiplier)
		}
	}

	return this, nil
}

// ReadSymbolWithoutRefill decodes one symbol of histogram 'histo'. The
// caller must have refilled the bitstream.
func (this *ANSSymbolReader) ReadSymbolWithoutRefill(histo uint32, ibs jxlans.InputBitStream) uint32 {
	res := this.state & ANS_TAB_MASK
	table := this.aliasTables[histo<<this.logAlphaSize:]
	sym := AliasLookup(table, res, this.logEntrySize, this.entrySizeMinus1)
	this.state = sym.Freq*(this.state>>ANS_LOG_TAB_SIZE) + sym.Offset

	if this.state < 1<<16 {
		this.state = (this.state << 16) | uint32(ibs.PeekBits(16))
		ibs.Consume(16)
	}

	return sym.Value
}

// ReadSymbol decodes one symbol of histogram 'histo'
func (this *ANSSymbolReader) ReadSymbol(histo uint32, ibs jxlans.InputBitStream) uint32 {
	ibs.Refill()
	return this.ReadSymbolWithoutRefill(histo, ibs)
}

// CheckANSFinalState returns true if the state is back to its initial value,
// which is the case at the end of a well formed stream.
func (this *ANSSymbolReader) CheckANSFinalState() bool {
	return this.state == _ANS_INITIAL_STATE
}

// UsesLZ77 returns true if the LZ77 window is active
func (this *ANSSymbolReader) UsesLZ77() bool {
	return this.window != nil
}

// ReadHybridUintClustered decodes one value of histogram 'histo', expanding
// LZ77 copies transparently.
func (this *ANSSymbolReader) ReadHybridUintClustered(histo uint32, ibs jxlans.InputBitStream) uint32 {
	if this.window != nil && this.numToCopy > 0 {
		return this.copyOne()
	}

	ibs.Refill()
	token := this.ReadSymbolWithoutRefill(histo, ibs)

	if this.window == nil {
		return this.configs[histo].Read(token, ibs)
	}

	if token >= this.lz77Threshold {
		this.numToCopy = this.lz77LengthUint.Read(token-this.lz77Threshold, ibs) + this.lz77MinLength
		ibs.Refill()
		dtoken := this.ReadSymbolWithoutRefill(this.lz77Ctx, ibs)
		distance := this.configs[this.lz77Ctx].Read(dtoken, ibs)

		if distance < this.numSpecialDistances {
			distance = this.specialDistances[distance]
		} else {
			distance = distance + 1 - this.numSpecialDistances
		}

		if distance > this.numDecoded {
			distance = this.numDecoded
		}

		if distance > WINDOW_SIZE {
			distance = WINDOW_SIZE
		}

		this.copyPos = this.numDecoded - distance

		if distance == 0 {
			// Nothing decoded yet: copy zeros
			n := min(this.numToCopy, WINDOW_SIZE)

			for i := uint32(0); i < n; i++ {
				this.window[i] = 0
			}
		}

		// Overflowed length
		if this.numToCopy < this.lz77MinLength {
			return 0
		}

		return this.copyOne()
	}

	ret := this.configs[histo].Read(token, ibs)
	this.window[this.numDecoded&WINDOW_MASK] = ret
	this.numDecoded++
	return ret
}

func (this *ANSSymbolReader) copyOne() uint32 {
	ret := this.window[this.copyPos&WINDOW_MASK]
	this.copyPos++
	this.numToCopy--
	this.window[this.numDecoded&WINDOW_MASK] = ret
	this.numDecoded++
	return ret
}

// ReadHybridUint decodes one value of context 'ctx'
func (this *ANSSymbolReader) ReadHybridUint(ctx uint32, ibs jxlans.InputBitStream, contextMap []uint8) uint32 {
	return this.ReadHybridUintClustered(uint32(contextMap[ctx]), ibs)
}

// IsSingleValueAndAdvance returns the only value histogram 'histo' can
// produce, if any, and accounts for 'count' such values in the LZ77 window.
// The state does not change: a histogram with a single symbol of frequency
// ANS_TAB_SIZE leaves it unchanged and reads no bits.
func (this *ANSSymbolReader) IsSingleValueAndAdvance(histo uint32, count int) (uint32, bool) {
	res := this.state & ANS_TAB_MASK
	table := this.aliasTables[histo<<this.logAlphaSize:]
	sym := AliasLookup(table, res, this.logEntrySize, this.entrySizeMinus1)

	if sym.Freq != ANS_TAB_SIZE {
		return 0, false
	}

	if this.configs[histo].SplitToken <= sym.Value {
		return 0, false
	}

	if sym.Value >= this.lz77Threshold {
		return 0, false
	}

	if this.window != nil {
		for i := 0; i < count; i++ {
			this.window[this.numDecoded&WINDOW_MASK] = sym.Value
			this.numDecoded++
		}
	}

	return sym.Value, true
}

// Save stores the decoder position into 'cp'
func (this *ANSSymbolReader) Save(cp *ANSCheckpoint) {
	cp.state = this.state
	cp.numDecoded = this.numDecoded
	cp.numToCopy = this.numToCopy
	cp.copyPos = this.copyPos

	if this.window == nil {
		return
	}

	start := this.numDecoded & WINDOW_MASK
	end := (this.numDecoded + MAX_CHECKPOINT_INTERVAL) & WINDOW_MASK

	if end > start {
		copy(cp.window[:], this.window[start:end])
	} else {
		n := copy(cp.window[:], this.window[start:])
		copy(cp.window[n:], this.window[:end])
	}
}

// Restore resets the decoder to the position saved in 'cp'. The bitstream
// position must be restored separately.
func (this *ANSSymbolReader) Restore(cp *ANSCheckpoint) {
	this.state = cp.state
	this.numDecoded = cp.numDecoded
	this.numToCopy = cp.numToCopy
	this.copyPos = cp.copyPos

	if this.window == nil {
		return
	}

	start := this.numDecoded & WINDOW_MASK
	end := (this.numDecoded + MAX_CHECKPOINT_INTERVAL) & WINDOW_MASK

	if end > start {
		copy(this.window[start:end], cp.window[:])
	} else {
		n := copy(this.window[start:], cp.window[:])
		copy(this.window[:end], cp.window[n:])
	}
}
