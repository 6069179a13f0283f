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
	"time"

	jxlans "github.com/flanglet/jxlans"
)

// ANSCode the decoder side description of a set of histograms
type ANSCode struct {
	// numHistograms << LogAlphaSize entries
	AliasTables []AliasEntry
	UintConfig  []HybridUintConfig

	// For each histogram, the only symbol it can produce or -1
	DegenerateSymbols []int
	UsePrefixCode     bool
	LogAlphaSize      uint32
	LZ77              LZ77Params

	// Maximum number of bits of a value returned by ReadHybridUint
	MaxNumBits uint32
}

// DecoderOptions options of DecodeHistograms
type DecoderOptions struct {
	DisallowLZ77 bool
	Listeners    []jxlans.Listener
}

// NumHistograms returns the number of histograms of the code
func (this *ANSCode) NumHistograms() int {
	return len(this.UintConfig)
}

// UpdateMaxNumBits accounts for the values that symbol 'symbol' of histogram
// 'ctx' can represent
func (this *ANSCode) UpdateMaxNumBits(ctx int, symbol uint32) {
	cfg := this.UintConfig[ctx]

	// LZ77 lengths use their own config
	if this.LZ77.Enabled == true && this.LZ77.NonserializedDistanceContext != uint32(ctx) &&
		symbol >= this.LZ77.MinSymbol {
		symbol -= this.LZ77.MinSymbol
		cfg = this.LZ77.LengthUintConfig
	}

	if symbol < cfg.SplitToken {
		this.MaxNumBits = max(this.MaxNumBits, cfg.SplitExponent)
		return
	}

	n := cfg.MsbInToken + cfg.LsbInToken
	extraBits := cfg.SplitExponent - n + ((symbol - cfg.SplitToken) >> n)
	this.MaxNumBits = max(this.MaxNumBits, n+extraBits+1)
}

// DecodeHistograms reads the LZ77 parameters, the context map (if more than
// one context), the hybrid uint configs and the histograms.
// Returns the code and the context map (one entry per context, plus one for
// the LZ77 distances if enabled).
func DecodeHistograms(ibs jxlans.InputBitStream, numContexts int, opts DecoderOptions) (*ANSCode, []uint8, error) {
	code, ctxMap, err := decodeHistograms(ibs, numContexts, opts)

	if err != nil && ibs.AllReadsWithinBounds() == false {
		return nil, nil, fmt.Errorf("%w: %w", jxlans.ErrNotEnoughBytes, err)
	}

	return code, ctxMap, err
}

func decodeHistograms(ibs jxlans.InputBitStream, numContexts int, opts DecoderOptions) (*ANSCode, []uint8, error) {
	code := &ANSCode{}
	code.LZ77.Read(ibs)

	if code.LZ77.Enabled == true {
		numContexts++
		cfg, err := DecodeUintConfig(8, ibs)

		if err != nil {
			return nil, nil, err
		}

		code.LZ77.LengthUintConfig = cfg
	}

	if code.LZ77.Enabled == true && opts.DisallowLZ77 == true {
		return nil, nil, jxlans.ErrLZ77Disallowed
	}

	if numContexts <= 0 {
		return nil, nil, jxlans.Errorf(jxlans.ErrInvalidParam, "%d contexts", numContexts)
	}

	numHistograms := 1
	ctxMap := make([]uint8, numContexts)

	if numContexts > 1 {
		var err error

		if numHistograms, err = DecodeContextMap(ctxMap, ibs); err != nil {
			return nil, nil, err
		}
	}

	code.LZ77.NonserializedDistanceContext = uint32(ctxMap[len(ctxMap)-1])
	code.UsePrefixCode = ibs.ReadBit() == 1

	if code.UsePrefixCode == true {
		return nil, nil, jxlans.Errorf(jxlans.ErrPrefixCodeUnsupported, "cannot decode histograms")
	}

	code.LogAlphaSize = uint32(ibs.ReadBits(2)) + 5
	code.UintConfig = make([]HybridUintConfig, numHistograms)

	if err := DecodeUintConfigs(code.LogAlphaSize, code.UintConfig, ibs); err != nil {
		return nil, nil, err
	}

	if err := code.decodeANSCodes(numHistograms, ibs); err != nil {
		return nil, nil, err
	}

	// Flat codes can represent large values legitimately with LZ77
	if code.LZ77.Enabled == false && code.MaxNumBits > 32 {
		msg := fmt.Sprintf("Histogram can represent numbers that are too large: %d bits", code.MaxNumBits)
		jxlans.NotifyListeners(opts.Listeners, jxlans.NewEventFromString(jxlans.EVT_HISTOGRAM_WARNING, 0, msg, time.Now()))
	}

	return code, ctxMap, nil
}

func (this *ANSCode) decodeANSCodes(numHistograms int, ibs jxlans.InputBitStream) error {
	alphabetSize := 1 << this.LogAlphaSize
	this.AliasTables = make([]AliasEntry, numHistograms*alphabetSize)
	this.DegenerateSymbols = make([]int, numHistograms)

	for c := 0; c < numHistograms; c++ {
		counts, err := ReadHistogram(ANS_LOG_TAB_SIZE, ibs)

		if err != nil {
			return fmt.Errorf("histogram %d: %w", c, err)
		}

		if len(counts) > alphabetSize {
			return jxlans.Errorf(jxlans.ErrAlphabetTooLong, "%d symbols, at most %d", len(counts), alphabetSize)
		}

		for len(counts) > 0 && counts[len(counts)-1] == 0 {
			counts = counts[:len(counts)-1]
		}

		for s, n := range counts {
			if n != 0 {
				this.UpdateMaxNumBits(c, uint32(s))
			}
		}

		// An empty histogram becomes a degenerate symbol 0
		degenerate := 0

		if len(counts) > 0 {
			degenerate = len(counts) - 1

			for s := 0; s < degenerate; s++ {
				if counts[s] != 0 {
					degenerate = -1
					break
				}
			}
		}

		this.DegenerateSymbols[c] = degenerate
		table := this.AliasTables[c*alphabetSize : (c+1)*alphabetSize]

		if err := InitAliasTable(counts, ANS_TAB_SIZE, this.LogAlphaSize, table); err != nil {
			return err
		}
	}

	return nil
}
