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
	"sync"

	jxlans "github.com/flanglet/jxlans"
	bitstream "github.com/flanglet/jxlans/bitstream"
	"golang.org/x/sys/cpu"
)

const (
	UINT_NONE        = 0 // default config (4,2,0)
	UINT_000         = 1 // (0,0,0) for every histogram
	UINT_FAST        = 2 // best of 4 candidates per histogram
	UINT_CONTEXT_MAP = 3 // (2,0,1), suited to context maps
	UINT_BEST        = 4 // best of 28 candidates per histogram
)

var (
	_UINT_CONFIGS_BEST = []HybridUintConfig{
		NewHybridUintConfig(4, 2, 0), // default
		NewHybridUintConfig(4, 1, 0), // less precise
		NewHybridUintConfig(4, 2, 1), // sign
		NewHybridUintConfig(4, 2, 2), // sign and parity
		NewHybridUintConfig(4, 1, 2), // parity, less msb
		NewHybridUintConfig(5, 2, 0),
		NewHybridUintConfig(5, 1, 0),
		NewHybridUintConfig(5, 2, 1),
		NewHybridUintConfig(5, 2, 2),
		NewHybridUintConfig(5, 1, 2),
		NewHybridUintConfig(3, 2, 0),
		NewHybridUintConfig(3, 1, 0),
		NewHybridUintConfig(3, 2, 1),
		NewHybridUintConfig(3, 1, 2),
		NewHybridUintConfig(4, 1, 3), // near lossless
		NewHybridUintConfig(5, 1, 4),
		NewHybridUintConfig(5, 2, 3),
		NewHybridUintConfig(6, 1, 5),
		NewHybridUintConfig(6, 2, 4),
		NewHybridUintConfig(6, 0, 0),
		NewHybridUintConfig(0, 0, 0), // varlenuint
		NewHybridUintConfig(2, 0, 1), // context maps
		NewHybridUintConfig(7, 0, 0), // direct coding
		NewHybridUintConfig(8, 0, 0),
		NewHybridUintConfig(9, 0, 0),
		NewHybridUintConfig(10, 0, 0),
		NewHybridUintConfig(11, 0, 0),
		NewHybridUintConfig(12, 0, 0),
	}

	_UINT_CONFIGS_FAST = []HybridUintConfig{
		NewHybridUintConfig(4, 2, 0),
		NewHybridUintConfig(4, 1, 2),
		NewHybridUintConfig(0, 0, 0),
		NewHybridUintConfig(2, 0, 1),
	}
)

// HistogramParams encoder options. The json tags are used by the YAML
// configuration of the command line tool.
type HistogramParams struct {
	Clustering        int `json:"clustering"`
	UintMethod        int `json:"uintMethod"`
	LZ77Method        int `json:"lz77Method"`
	HistogramStrategy int `json:"histogramStrategy"`

	// Distance multipliers of the special LZ77 distances, one per stream
	ImageWidths []uint32 `json:"imageWidths,omitempty"`

	// Upper bound of the number of clusters, 0 for CLUSTERS_LIMIT
	MaxHistograms int `json:"maxHistograms,omitempty"`

	// Number of goroutines building the histograms
	Jobs int `json:"jobs,omitempty"`

	// Map all contexts to one flat histogram, without LZ77 and with
	// HybridUintConfig(7,0,0). Streams are bigger but exercise more of the
	// decoder.
	FuzzerFriendly bool `json:"fuzzerFriendly,omitempty"`
}

// NewHistogramParams returns the default encoder options
func NewHistogramParams() *HistogramParams {
	return &HistogramParams{
		Clustering:        CLUSTERING_FAST,
		UintMethod:        UINT_BEST,
		LZ77Method:        LZ77_RLE,
		HistogramStrategy: ANS_HISTOGRAM_PRECISE,
		Jobs:              1,
	}
}

// Validate checks the ranges of the options
func (this *HistogramParams) Validate() error {
	if this.Clustering < CLUSTERING_FASTEST || this.Clustering > CLUSTERING_BEST {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "clustering %d", this.Clustering)
	}

	if this.UintMethod < UINT_NONE || this.UintMethod > UINT_BEST {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "uint method %d", this.UintMethod)
	}

	if this.LZ77Method < LZ77_NONE || this.LZ77Method > LZ77_OPTIMAL {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "LZ77 method %d", this.LZ77Method)
	}

	if this.HistogramStrategy < ANS_HISTOGRAM_FAST || this.HistogramStrategy > ANS_HISTOGRAM_PRECISE {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "histogram strategy %d", this.HistogramStrategy)
	}

	if this.MaxHistograms < 0 || this.Jobs < 0 {
		return jxlans.Errorf(jxlans.ErrInvalidParam, "maxHistograms=%d, jobs=%d", this.MaxHistograms, this.Jobs)
	}

	return nil
}

// costWriter counts the bits and forwards them to the bitstream, if any
type costWriter struct {
	obs  jxlans.OutputBitStream
	size uint64
}

func (this *costWriter) WriteBits(bits uint64, length uint) uint {
	this.size += uint64(length)

	if this.obs != nil {
		this.obs.WriteBits(bits, length)
	}

	return length
}

// bitRecorder keeps the writes of a histogram built concurrently until
// they can be replayed in order
type bitRecorder struct {
	values  []uint64
	lengths []uint8
}

func (this *bitRecorder) WriteBits(bits uint64, length uint) uint {
	this.values = append(this.values, bits)
	this.lengths = append(this.lengths, uint8(length))
	return length
}

func (this *bitRecorder) replay(obs jxlans.OutputBitStream) {
	for i, v := range this.values {
		obs.WriteBits(v, uint(this.lengths[i]))
	}
}

// Per histogram result, padded to avoid false sharing between jobs
type histogramSlot struct {
	_    cpu.CacheLinePad
	cost float32
	err  error
	rec  bitRecorder
	_    cpu.CacheLinePad
}

// BuildAndEncodeHistograms chooses the LZ77 rewriting, the clustering of
// the contexts, the hybrid uint configs and the histograms of the token
// streams, and writes them (if obs is not nil). When LZ77 is used, the
// streams of 'tokens' are replaced in place by their LZ77 version, which is
// what WriteTokens must be given. Returns the encoding data, the context
// map and the estimated cost in bits.
func BuildAndEncodeHistograms(params *HistogramParams, numContexts int, tokens [][]Token,
	obs jxlans.OutputBitStream) (*EntropyEncodingData, []uint8, uint64, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, 0, err
	}

	if numContexts <= 0 {
		return nil, nil, 0, jxlans.Errorf(jxlans.ErrInvalidParam, "%d contexts", numContexts)
	}

	for _, stream := range tokens {
		for _, t := range stream {
			if int(t.Context) >= numContexts || t.IsLZ77Length == true {
				return nil, nil, 0, jxlans.Errorf(jxlans.ErrInvalidParam, "invalid token: context %d, LZ77 length: %v",
					t.Context, t.IsLZ77Length)
			}
		}
	}

	codes := &EntropyEncodingData{LZ77: NewLZ77Params()}
	codes.LZ77.NonserializedDistanceContext = uint32(numContexts)
	var lz77Tokens [][]Token

	if params.FuzzerFriendly == false {
		lz77Tokens = ApplyLZ77(params, numContexts, tokens, &codes.LZ77)
	}

	maxContexts := min(numContexts, CLUSTERS_LIMIT)
	allotment := bitstream.NewAllotment(obs, uint64(128+numContexts*40+maxContexts*96))
	w := &costWriter{obs: obs}

	if err := codes.LZ77.Write(w); err != nil {
		return nil, nil, 0, err
	}

	if codes.LZ77.Enabled == true {
		EncodeUintConfig(codes.LZ77.LengthUintConfig, w, 8)
		numContexts++
		copy(tokens, lz77Tokens)
	}

	// Default config for clustering
	uintConfig := DefaultHybridUintConfig()

	switch {
	case params.FuzzerFriendly == true:
		uintConfig = NewHybridUintConfig(7, 0, 0)

	case params.UintMethod == UINT_CONTEXT_MAP:
		uintConfig = NewHybridUintConfig(2, 0, 1)

	case params.UintMethod == UINT_000:
		uintConfig = NewHybridUintConfig(0, 0, 0)
	}

	histograms := make([]*Histogram, numContexts)

	for i := range histograms {
		histograms[i] = NewHistogram()
	}

	for _, stream := range tokens {
		for _, t := range stream {
			var tok uint32

			if t.IsLZ77Length == true {
				tok, _, _ = codes.LZ77.LengthUintConfig.Encode(t.Value)
				tok += codes.LZ77.MinSymbol
			} else {
				tok, _, _ = uintConfig.Encode(t.Value)
			}

			histograms[t.Context].Add(tok)
		}
	}

	ctxMap, cost, err := buildAndStoreEntropyCodes(params, tokens, histograms, codes, w, allotment)

	if err != nil {
		return nil, nil, 0, err
	}

	allotment.FinishedHistogram()

	if _, err := allotment.Reclaim(); err != nil {
		return nil, nil, 0, err
	}

	return codes, ctxMap, w.size + cost, nil
}

// Clusters the histograms, writes the context map, the hybrid uint configs
// and the histograms. Returns the context map and the estimated cost of the
// histograms and data (the header bits are counted by 'w').
func buildAndStoreEntropyCodes(params *HistogramParams, tokens [][]Token, histograms []*Histogram,
	codes *EntropyEncodingData, w *costWriter, parent *bitstream.Allotment) ([]uint8, uint64, error) {
	ctxMap := make([]uint8, len(histograms))
	clustered := histograms

	if params.FuzzerFriendly == true {
		maxSymbol := 0

		for _, h := range histograms {
			maxSymbol = max(maxSymbol, h.AlphabetSize())
		}

		flat := NewHistogram()

		for i := 0; i < 1<<CeilLog2(maxSymbol+1); i++ {
			flat.Add(uint32(i))
		}

		clustered = []*Histogram{flat}
	} else if len(histograms) > 1 {
		var symbols []uint32
		clustered, symbols = ClusterHistograms(params, histograms, CLUSTERS_LIMIT)

		for c := range histograms {
			ctxMap[c] = uint8(symbols[c])
		}
	}

	if len(histograms) > 1 && w.obs != nil {
		start := w.obs.Written()

		if err := EncodeContextMap(ctxMap, len(clustered), w.obs); err != nil {
			return nil, 0, err
		}

		parent.Exclude(w.obs.Written() - start)
	}

	logAlphaSize := uint32(7)

	if codes.LZ77.Enabled == true {
		logAlphaSize = 8
	}

	if params.FuzzerFriendly == true {
		codes.UintConfig = []HybridUintConfig{NewHybridUintConfig(7, 0, 0)}
		logAlphaSize = max(logAlphaSize, uint32(CeilLog2(len(clustered[0].Data))))
	} else {
		logAlphaSize = chooseUintConfigs(params, tokens, ctxMap, clustered, codes, logAlphaSize)
	}

	logAlphaSize = max(logAlphaSize, 5)

	if logAlphaSize > 8 {
		return nil, 0, jxlans.Errorf(jxlans.ErrAlphabetTooLong, "tokens need an alphabet of 2^%d symbols", logAlphaSize)
	}

	codes.UsePrefixCode = false
	w.WriteBits(0, 1)
	w.WriteBits(uint64(logAlphaSize-5), 2)
	EncodeUintConfigs(codes.UintConfig, w, logAlphaSize)
	codes.EncodingInfo = make([][]ANSEncSymbolInfo, len(clustered))
	slots := make([]histogramSlot, len(clustered))
	jobs := min(max(params.Jobs, 1), len(clustered))

	build := func(c int) {
		h := clustered[c]
		numSymbols := max(h.AlphabetSize(), 1)
		counts := h.Data

		if len(counts) < numSymbols {
			counts = make([]int32, numSymbols)
		}

		codes.EncodingInfo[c] = make([]ANSEncSymbolInfo, numSymbols)
		var bw bitWriter

		if w.obs != nil {
			bw = &slots[c].rec
		}

		slots[c].cost, slots[c].err = BuildAndStoreANSEncodingData(params.HistogramStrategy, counts,
			numSymbols, logAlphaSize, codes.EncodingInfo[c], bw)
	}

	if jobs <= 1 {
		for c := range clustered {
			build(c)
		}
	} else {
		var wg sync.WaitGroup

		for j := 0; j < jobs; j++ {
			wg.Add(1)

			go func(first int) {
				defer wg.Done()

				for c := first; c < len(clustered); c += jobs {
					build(c)
				}
			}(j)
		}

		wg.Wait()
	}

	cost := uint64(0)

	// Histograms are written in order regardless of the jobs
	for c := range slots {
		if slots[c].err != nil {
			return nil, 0, slots[c].err
		}

		if !math.IsInf(float64(slots[c].cost), 0) {
			cost += uint64(slots[c].cost)
		}

		if w.obs == nil {
			continue
		}

		allotment := bitstream.NewAllotment(w.obs, uint64(256+len(codes.EncodingInfo[c])*24))
		slots[c].rec.replay(w.obs)
		allotment.FinishedHistogram()
		used, err := allotment.Reclaim()

		if err != nil {
			return nil, 0, err
		}

		parent.Exclude(used)
	}

	return ctxMap, cost, nil
}

// Picks the hybrid uint config of each clustered histogram and rebuilds the
// histograms with them. Returns the log alphabet size fitting all tokens (or
// 'logAlphaSize' for the fixed config methods).
func chooseUintConfigs(params *HistogramParams, tokens [][]Token, ctxMap []uint8, clustered []*Histogram,
	codes *EntropyEncodingData, logAlphaSize uint32) uint32 {
	codes.UintConfig = make([]HybridUintConfig, len(clustered))

	var configs []HybridUintConfig

	switch params.UintMethod {
	case UINT_NONE, UINT_000, UINT_CONTEXT_MAP:
		cfg := DefaultHybridUintConfig()

		if params.UintMethod == UINT_000 {
			cfg = NewHybridUintConfig(0, 0, 0)
		} else if params.UintMethod == UINT_CONTEXT_MAP {
			cfg = NewHybridUintConfig(2, 0, 1)
		}

		for i := range codes.UintConfig {
			codes.UintConfig[i] = cfg
		}

		// The histograms were built with this config already
		for _, h := range clustered {
			for h.AlphabetSize() > 1<<logAlphaSize {
				logAlphaSize++
			}
		}

		return logAlphaSize

	case UINT_FAST:
		configs = _UINT_CONFIGS_FAST

	default:
		configs = _UINT_CONFIGS_BEST
	}

	costs := make([]float32, len(clustered))
	extraBits := make([]uint32, len(clustered))
	isValid := make([]bool, len(clustered))

	for i := range costs {
		costs[i] = math.MaxFloat32
		codes.UintConfig[i] = DefaultHybridUintConfig()
	}

	for _, cfg := range configs {
		for i, h := range clustered {
			isValid[i] = true
			extraBits[i] = 0
			h.Clear()
		}

		for _, stream := range tokens {
			for _, t := range stream {
				// LZ77 lengths have their own config
				if t.IsLZ77Length == true {
					continue
				}

				histo := ctxMap[t.Context]
				tok, nbits, _ := cfg.Encode(t.Value)

				if tok >= ANS_MAX_ALPHABET_SIZE || (codes.LZ77.Enabled == true && tok >= codes.LZ77.MinSymbol) {
					isValid[histo] = false
					continue
				}

				extraBits[histo] += nbits
				clustered[histo].Add(tok)
			}
		}

		for i, h := range clustered {
			if isValid[i] == false {
				continue
			}

			// Includes the cost of signaling the config
			cost := h.PopulationCost() + float32(extraBits[i])
			cost += float32(CeilLog2(cfg.SplitExponent + 1))
			cost += float32(CeilLog2(cfg.SplitExponent - cfg.MsbInToken + 1))

			if cost < costs[i] {
				codes.UintConfig[i] = cfg
				costs[i] = cost
			}
		}
	}

	for _, h := range clustered {
		h.Clear()
	}

	logAlphaSize = 4

	for _, stream := range tokens {
		for _, t := range stream {
			histo := ctxMap[t.Context]
			var tok uint32

			if t.IsLZ77Length == true {
				tok, _, _ = codes.LZ77.LengthUintConfig.Encode(t.Value)
				tok += codes.LZ77.MinSymbol
			} else {
				tok, _, _ = codes.UintConfig[histo].Encode(t.Value)
			}

			clustered[histo].Add(tok)

			for tok >= 1<<logAlphaSize {
				logAlphaSize++
			}
		}
	}

	return logAlphaSize
}

// CountExtraBits returns the number of raw bits WriteTokens emits next to
// the ANS symbols
func CountExtraBits(tokens []Token, codes *EntropyEncodingData, contextMap []uint8) int {
	res := 0
	clustered := codes.LZ77.Enabled == true || len(contextMap) > 1

	for _, t := range tokens {
		var nbits uint32

		if t.IsLZ77Length == true {
			_, nbits, _ = codes.LZ77.LengthUintConfig.Encode(t.Value)
		} else if clustered == true {
			_, nbits, _ = codes.UintConfig[contextMap[t.Context]].Encode(t.Value)
		} else {
			_, nbits, _ = codes.UintConfig[0].Encode(t.Value)
		}

		res += int(nbits)
	}

	return res
}
