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

// HybridUintConfig splits an integer into a token (entropy coded) and raw
// extra bits. Values below SplitToken are coded directly as the token.
// Larger values keep the exponent, MsbInToken bits below the leading one and
// LsbInToken low bits in the token; the remaining middle bits are raw.
type HybridUintConfig struct {
	SplitExponent uint32
	SplitToken    uint32
	MsbInToken    uint32
	LsbInToken    uint32
}

// NewHybridUintConfig creates a HybridUintConfig. The caller must ensure that
// splitExponent >= msbInToken + lsbInToken (see Valid).
func NewHybridUintConfig(splitExponent, msbInToken, lsbInToken uint32) HybridUintConfig {
	return HybridUintConfig{
		SplitExponent: splitExponent,
		SplitToken:    1 << splitExponent,
		MsbInToken:    msbInToken,
		LsbInToken:    lsbInToken,
	}
}

// DefaultHybridUintConfig returns the (4, 2, 0) configuration
func DefaultHybridUintConfig() HybridUintConfig {
	return NewHybridUintConfig(4, 2, 0)
}

// Valid returns true if the msb and lsb fields fit in the split exponent
func (this HybridUintConfig) Valid() bool {
	return this.MsbInToken+this.LsbInToken <= this.SplitExponent
}

func (this HybridUintConfig) String() string {
	return fmt.Sprintf("(%d,%d,%d)", this.SplitExponent, this.MsbInToken, this.LsbInToken)
}

// Encode splits 'value' into a token and 'nbits' extra bits
func (this HybridUintConfig) Encode(value uint32) (token, nbits, bits uint32) {
	if value < this.SplitToken {
		return value, 0, 0
	}

	n := uint32(FloorLog2(value))
	m := value - (1 << n)
	token = this.SplitToken +
		((n - this.SplitExponent) << (this.MsbInToken + this.LsbInToken)) +
		((m >> (n - this.MsbInToken)) << this.LsbInToken) +
		(m & ((1 << this.LsbInToken) - 1))
	nbits = n - this.MsbInToken - this.LsbInToken
	bits = (value >> this.LsbInToken) & ((1 << nbits) - 1)
	return token, nbits, bits
}

// ExtraBits returns the number of raw bits following 'token'
func (this HybridUintConfig) ExtraBits(token uint32) uint32 {
	if token < this.SplitToken {
		return 0
	}

	ml := this.MsbInToken + this.LsbInToken
	nbits := this.SplitExponent - ml + ((token - this.SplitToken) >> ml)
	return nbits & 31
}

// Decode rebuilds the value from a token and its extra bits
func (this HybridUintConfig) Decode(token, bits uint32) uint32 {
	if token < this.SplitToken {
		return token
	}

	nbits := this.ExtraBits(token)
	low := uint64(token & ((1 << this.LsbInToken) - 1))
	tok := uint64(token >> this.LsbInToken)
	msb := uint64(1) << this.MsbInToken
	ret := (((msb | (tok & (msb - 1))) << nbits) | uint64(bits)) << this.LsbInToken
	return uint32(ret | low)
}

// Read consumes the extra bits of 'token' from the bitstream and returns the value
func (this HybridUintConfig) Read(token uint32, ibs jxlans.InputBitStream) uint32 {
	if token < this.SplitToken {
		return token
	}

	nbits := uint(this.ExtraBits(token))
	bits := ibs.PeekBits(nbits)
	ibs.Consume(nbits)
	return this.Decode(token, uint32(bits))
}

// EncodeUintConfig writes the configuration. The msb and lsb fields are
// omitted when the split exponent equals logAlphaSize.
func EncodeUintConfig(cfg HybridUintConfig, w bitWriter, logAlphaSize uint32) {
	w.WriteBits(uint64(cfg.SplitExponent), uint(CeilLog2(logAlphaSize+1)))

	if cfg.SplitExponent == logAlphaSize {
		return
	}

	w.WriteBits(uint64(cfg.MsbInToken), uint(CeilLog2(cfg.SplitExponent+1)))
	w.WriteBits(uint64(cfg.LsbInToken), uint(CeilLog2(cfg.SplitExponent-cfg.MsbInToken+1)))
}

// EncodeUintConfigs writes all configurations in order
func EncodeUintConfigs(cfgs []HybridUintConfig, w bitWriter, logAlphaSize uint32) {
	for _, cfg := range cfgs {
		EncodeUintConfig(cfg, w, logAlphaSize)
	}
}

// DecodeUintConfig reads a configuration written by EncodeUintConfig
func DecodeUintConfig(logAlphaSize uint32, ibs jxlans.InputBitStream) (HybridUintConfig, error) {
	splitExponent := uint32(ibs.ReadBits(uint(CeilLog2(logAlphaSize + 1))))
	msb, lsb := uint32(0), uint32(0)

	if splitExponent != logAlphaSize {
		msb = uint32(ibs.ReadBits(uint(CeilLog2(splitExponent + 1))))

		// Must be checked before msb is used to size the next read
		if msb > splitExponent {
			return HybridUintConfig{}, jxlans.Errorf(jxlans.ErrInvalidHybridUintConfig,
				"msb_in_token=%d, split_exponent=%d", msb, splitExponent)
		}

		lsb = uint32(ibs.ReadBits(uint(CeilLog2(splitExponent - msb + 1))))
	}

	if lsb+msb > splitExponent {
		return HybridUintConfig{}, jxlans.Errorf(jxlans.ErrInvalidHybridUintConfig,
			"msb_in_token=%d, lsb_in_token=%d, split_exponent=%d", msb, lsb, splitExponent)
	}

	return NewHybridUintConfig(splitExponent, msb, lsb), nil
}

// DecodeUintConfigs fills 'cfgs' with configurations read from the bitstream
func DecodeUintConfigs(logAlphaSize uint32, cfgs []HybridUintConfig, ibs jxlans.InputBitStream) error {
	for i := range cfgs {
		cfg, err := DecodeUintConfig(logAlphaSize, ibs)

		if err != nil {
			return err
		}

		cfgs[i] = cfg
	}

	return nil
}
