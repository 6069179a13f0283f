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
	"fmt"

	jxlans "github.com/flanglet/jxlans"
)

// bitWriter is the subset of OutputBitStream used by the serializers, so
// that a SizeWriter can stand in to measure costs.
type bitWriter interface {
	WriteBits(bits uint64, length uint) uint
}

// SizeWriter counts the bits that would be written
type SizeWriter struct {
	Size uint64
}

// WriteBits accounts for 'length' bits
func (this *SizeWriter) WriteBits(bits uint64, length uint) uint {
	this.Size += uint64(length)
	return length
}

// StoreVarLenUint8 writes a value in [0..255] with 1 to 11 bits
func StoreVarLenUint8(n uint32, w bitWriter) {
	if n == 0 {
		w.WriteBits(0, 1)
		return
	}

	nbits := uint(FloorLog2(n))
	w.WriteBits(1, 1)
	w.WriteBits(uint64(nbits), 3)
	w.WriteBits(uint64(n-(1<<nbits)), nbits)
}

// StoreVarLenUint16 writes a value in [0..65535] with 1 to 21 bits
func StoreVarLenUint16(n uint32, w bitWriter) {
	if n == 0 {
		w.WriteBits(0, 1)
		return
	}

	nbits := uint(FloorLog2(n))
	w.WriteBits(1, 1)
	w.WriteBits(uint64(nbits), 4)
	w.WriteBits(uint64(n-(1<<nbits)), nbits)
}

// DecodeVarLenUint8 reads a value written by StoreVarLenUint8
func DecodeVarLenUint8(ibs jxlans.InputBitStream) uint32 {
	if ibs.ReadBit() == 0 {
		return 0
	}

	nbits := uint(ibs.ReadBits(3))

	if nbits == 0 {
		return 1
	}

	return uint32(ibs.ReadBits(nbits)) + (1 << nbits)
}

// DecodeVarLenUint16 reads a value written by StoreVarLenUint16
func DecodeVarLenUint16(ibs jxlans.InputBitStream) uint32 {
	if ibs.ReadBit() == 0 {
		return 0
	}

	nbits := uint(ibs.ReadBits(4))

	if nbits == 0 {
		return 1
	}

	return uint32(ibs.ReadBits(nbits)) + (1 << nbits)
}

// U32Distr is one of the four choices of a U32 field: a constant offset
// plus an optional number of raw bits.
type U32Distr struct {
	Offset uint32
	Bits   uint
}

// Val returns a distribution coding exactly 'v'
func Val(v uint32) U32Distr {
	return U32Distr{Offset: v}
}

// BitsOffset returns a distribution coding offset + [0 .. 1<<bits)
func BitsOffset(bits uint, offset uint32) U32Distr {
	return U32Distr{Offset: offset, Bits: bits}
}

// WriteU32 writes a 2 bit selector followed by the raw bits of the chosen
// distribution. A direct match is preferred, then the cheapest distribution.
func WriteU32(d [4]U32Distr, value uint32, w bitWriter) error {
	selector := -1

	for i := range d {
		if d[i].Bits == 0 && d[i].Offset == value {
			selector = i
			break
		}
	}

	if selector < 0 {
		for i := range d {
			if d[i].Bits == 0 || value < d[i].Offset || uint64(value-d[i].Offset) >= uint64(1)<<d[i].Bits {
				continue
			}

			if selector < 0 || d[i].Bits < d[selector].Bits {
				selector = i
			}
		}
	}

	if selector < 0 {
		return fmt.Errorf("Value %d cannot be coded as a U32 field", value)
	}

	w.WriteBits(uint64(selector), 2)
	w.WriteBits(uint64(value-d[selector].Offset), d[selector].Bits)
	return nil
}

// ReadU32 reads a U32 field
func ReadU32(d [4]U32Distr, ibs jxlans.InputBitStream) uint32 {
	s := d[ibs.ReadBits(2)]
	return uint32(ibs.ReadBits(s.Bits)) + s.Offset
}

var (
	_LZ77_MIN_SYMBOL_DISTR = [4]U32Distr{Val(224), Val(512), Val(4096), BitsOffset(15, 8)}
	_LZ77_MIN_LENGTH_DISTR = [4]U32Distr{Val(3), Val(4), BitsOffset(2, 5), BitsOffset(8, 9)}
)

// LZ77Params holds the LZ77 configuration of a token stream
type LZ77Params struct {
	Enabled bool

	// Tokens >= MinSymbol are lengths (in excess of MinLength)
	MinSymbol uint32
	MinLength uint32

	LengthUintConfig HybridUintConfig

	// Context of the distance tokens. Not serialized: the encoder uses the
	// number of contexts, the decoder the last context map entry.
	NonserializedDistanceContext uint32
}

// NewLZ77Params returns disabled LZ77 parameters with default values
func NewLZ77Params() LZ77Params {
	return LZ77Params{
		MinSymbol:        224,
		MinLength:        3,
		LengthUintConfig: NewHybridUintConfig(0, 0, 0),
	}
}

// Write writes the enabled flag and, if enabled, MinSymbol and MinLength.
// The length uint config is written separately.
func (this *LZ77Params) Write(w bitWriter) error {
	if this.Enabled == false {
		w.WriteBits(0, 1)
		return nil
	}

	w.WriteBits(1, 1)

	if err := WriteU32(_LZ77_MIN_SYMBOL_DISTR, this.MinSymbol, w); err != nil {
		return err
	}

	return WriteU32(_LZ77_MIN_LENGTH_DISTR, this.MinLength, w)
}

// Read reads the fields written by Write
func (this *LZ77Params) Read(ibs jxlans.InputBitStream) {
	*this = NewLZ77Params()
	this.Enabled = ibs.ReadBit() == 1

	if this.Enabled == false {
		return
	}

	this.MinSymbol = ReadU32(_LZ77_MIN_SYMBOL_DISTR, ibs)
	this.MinLength = ReadU32(_LZ77_MIN_LENGTH_DISTR, ibs)
}
