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
)

const (
	LZ77_NONE    = 0 // no LZ77
	LZ77_RLE     = 1 // repetitions of the previous value only
	LZ77_LZ77    = 2 // greedy hash chain matching with one step lazy matching
	LZ77_OPTIMAL = 3 // shortest path over the matches of the hash chain

	_LZ77_MAX_LAZY_MATCH_LENGTH = 256
)

// Static costs of LZ77 lengths, indexed by HybridUintConfig(1,0,0) token
var _LZ77_LENGTH_COSTS = [...]float32{
	2.797667318563126, 3.213177690381199, 2.5706009246743737,
	2.408392498667534, 2.829649191872326, 3.3923087753324577,
	4.029267451554331, 4.415576699706408, 4.509357574741465,
	9.21481543803004, 10.020590190114898, 11.858671627804766,
	12.45853300490526, 11.713105831990857, 12.561996324849314,
	13.775477692278367, 13.174027068768641,
}

// Static costs of LZ77 distance symbols, indexed by HybridUintConfig(7,0,0) token
var _LZ77_DISTANCE_COSTS = [...]float32{
	6.368282626312716, 5.680793277090298, 8.347404197105247,
	7.641619201599141, 6.914328374119438, 7.959808291537444,
	8.70023120759855, 8.71378518934703, 9.379132523982769,
	9.110472749092708, 9.159029569270908, 9.430936766731973,
	7.278284055315169, 7.8278514904267755, 10.026641158289236,
	9.976049229827066, 9.64351607048908, 9.563403863480442,
	10.171474111762747, 10.45950155077234, 9.994813912104219,
	10.322524683741156, 8.465808729388186, 8.756254166066853,
	10.160930174662234, 10.247329273413435, 10.04090403724809,
	10.129398517544082, 9.342311691539546, 9.07608009102374,
	10.104799540677513, 10.378079384990906, 10.165828974075072,
	10.337595322341553, 7.940557464567944, 10.575665823319431,
	11.023344321751955, 10.736144698831827, 11.118277044595054,
	7.468468230648442, 10.738305230932939, 10.906980780216568,
	10.163468216353817, 10.17805759656433, 11.167283670483565,
	11.147050200274544, 10.517921919244333, 10.651764778156886,
	10.17074446448919, 11.217636876224745, 11.261630721139484,
	11.403140815247259, 10.892472096873417, 11.1859607804481,
	8.017346947551262, 7.895143720278828, 11.036577113822025,
	11.170562110315794, 10.326988722591086, 10.40872184751056,
	11.213498225466386, 11.30580635516863, 10.672272515665442,
	10.768069466228063, 11.145257364153565, 11.64668307145549,
	10.593156194627339, 11.207499484844943, 10.767517766396908,
	10.826629811407042, 10.737764794499988, 10.6200448518045,
	10.191315385198092, 8.468384171390085, 11.731295299170432,
	11.824619886654398, 10.41518844301179, 10.16310536548649,
	10.539423685097576, 10.495136599328031, 10.469112847728267,
	11.72057686174922, 10.910326337834674, 11.378921834673758,
	11.847759036098536, 11.92071647623854, 10.810628276345282,
	11.008601085273893, 11.910326337834674, 11.949212023423133,
	11.298614839104337, 11.611603659010392, 10.472930394619985,
	11.835564720850282, 11.523267392285337, 12.01055816679611,
	8.413029688994023, 11.895784139536406, 11.984679534970505,
	11.220654278717394, 11.716311684833672, 10.61036646226114,
	10.89849965960364, 10.203762898863669, 10.997560826267238,
	11.484217379438984, 11.792836176993665, 12.24310468755171,
	11.464858097919262, 12.212747017409377, 11.425595666074955,
	11.572048533398757, 12.742093965163013, 11.381874288645637,
	12.191870445817015, 11.683156920035426, 11.152442115262197,
	11.90303691580457, 11.653292787169159, 11.938615382266098,
	16.970641701570223, 16.853602280380002, 17.26240782594733,
	16.644655390108507, 17.14310889757499, 16.910935455445955,
	17.505678976959697, 17.213498225466388, 2.4162310293553024,
	3.494587244462329, 3.5258600986408344, 3.4959806589517095,
	3.098390886949687, 3.343454654302911, 3.588847442290287,
	4.14614790111827, 5.152948641990529, 7.433696808092598,
	9.716311684833672,
}

func lz77LengthCost(length uint32) float32 {
	tok, nbits, _ := NewHybridUintConfig(1, 0, 0).Encode(length)
	tok = min(tok, uint32(len(_LZ77_LENGTH_COSTS)-1))
	return _LZ77_LENGTH_COSTS[tok] + float32(nbits)
}

func lz77DistanceCost(distSymbol uint32) float32 {
	tok, nbits, _ := NewHybridUintConfig(7, 0, 0).Encode(distSymbol)
	tok = min(tok, uint32(len(_LZ77_DISTANCE_COSTS)-1))
	return _LZ77_DISTANCE_COSTS[tok] + float32(nbits)
}

// symbolCostEstimator estimates the cost of symbols from per context
// histograms built with the default hybrid uint config
type symbolCostEstimator struct {
	maxAlphabetSize int
	bits            []float32
	addSymbolCost   []float32
}

func newSymbolCostEstimator(numContexts int, tokens [][]Token, lz77 *LZ77Params) *symbolCostEstimator {
	histograms := make([]*Histogram, numContexts)

	for i := range histograms {
		histograms[i] = NewHistogram()
	}

	cfg := DefaultHybridUintConfig()

	for _, stream := range tokens {
		for _, t := range stream {
			var tok uint32

			if t.IsLZ77Length == true {
				tok, _, _ = lz77.LengthUintConfig.Encode(t.Value)
				tok += lz77.MinSymbol
			} else {
				tok, _, _ = cfg.Encode(t.Value)
			}

			histograms[t.Context].Add(tok)
		}
	}

	this := &symbolCostEstimator{}

	for _, h := range histograms {
		this.maxAlphabetSize = max(this.maxAlphabetSize, len(h.Data))
	}

	this.bits = make([]float32, numContexts*this.maxAlphabetSize)
	this.addSymbolCost = make([]float32, numContexts)

	for i, h := range histograms {
		invTotal := 1.0 / (float32(h.TotalCount) + 1e-8)
		totalCost := float32(0)

		for j, c := range h.Data {
			cost := float32(0)

			if c != 0 && int(c) != h.TotalCount {
				cost = -log2f(float32(c) * invTotal)
			} else if c == 0 {
				cost = ANS_LOG_TAB_SIZE
			}

			this.bits[i*this.maxAlphabetSize+j] = cost
			totalCost += cost * float32(c)
		}

		// Penalty of a LZ77 symbol in this context, higher for contexts
		// with a low entropy per symbol
		this.addSymbolCost[i] = max(0, 6-totalCost*invTotal)
	}

	return this
}

func (this *symbolCostEstimator) Bits(ctx uint32, symbol uint32) float32 {
	if int(symbol) >= this.maxAlphabetSize {
		return ANS_LOG_TAB_SIZE
	}

	return this.bits[int(ctx)*this.maxAlphabetSize+int(symbol)]
}

func (this *symbolCostEstimator) LengthCost(ctx uint32, length uint32, lz77 *LZ77Params) float32 {
	tok, nbits, _ := lz77.LengthUintConfig.Encode(length)
	return float32(nbits) + this.Bits(ctx, tok+lz77.MinSymbol)
}

func (this *symbolCostEstimator) DistanceCost(distSymbol uint32, lz77 *LZ77Params) float32 {
	tok, nbits, _ := DefaultHybridUintConfig().Encode(distSymbol)
	return float32(nbits) + this.Bits(lz77.NonserializedDistanceContext, tok)
}

func (this *symbolCostEstimator) AddSymbolCost(ctx uint32) float32 {
	return this.addSymbolCost[ctx]
}

// Cumulative cost of the literals of 'in': res[i] is the cost of in[0:i]
func cumulativeLiteralCosts(in []Token, sce *symbolCostEstimator) []float32 {
	res := make([]float32, len(in)+1)
	cfg := DefaultHybridUintConfig()

	for i := range in {
		tok, nbits, _ := cfg.Encode(in[i].Value)
		res[i+1] = sce.Bits(in[i].Context, tok) + float32(nbits) + res[i]
	}

	return res
}

func lz77WindowSize(maxDistance int) uint32 {
	windowSize := uint32(1)

	for int(windowSize) < maxDistance && windowSize < WINDOW_SIZE {
		windowSize <<= 1
	}

	return windowSize
}

func distanceMultiplier(params *HistogramParams, stream int) uint32 {
	if stream < len(params.ImageWidths) {
		return params.ImageWidths[stream]
	}

	return 0
}

// ApplyLZ77 resets 'lz77' and, depending on the LZ77 method of 'params',
// returns the streams rewritten with LZ77 lengths and distances. The rewrite
// must be used only if lz77.Enabled is true, that is if the estimated gain is
// large enough. The distance context must already be set to numContexts.
func ApplyLZ77(params *HistogramParams, numContexts int, tokens [][]Token, lz77 *LZ77Params) [][]Token {
	lz77.Enabled = false
	lz77.MinSymbol = 224

	switch params.LZ77Method {
	case LZ77_RLE:
		return applyLZ77RLE(params, numContexts, tokens, lz77)

	case LZ77_LZ77:
		return applyLZ77LZ77(params, numContexts, tokens, lz77)

	case LZ77_OPTIMAL:
		return applyLZ77Optimal(params, numContexts, tokens, lz77)

	default:
		return nil
	}
}

func enableLZ77IfWorthIt(lz77 *LZ77Params, bitDecrease float32, totalSymbols int) {
	if bitDecrease > float32(totalSymbols)*0.2+16 {
		lz77.Enabled = true
	}
}

func applyLZ77RLE(params *HistogramParams, numContexts int, tokens [][]Token, lz77 *LZ77Params) [][]Token {
	sce := newSymbolCostEstimator(numContexts, tokens, lz77)
	bitDecrease := float32(0)
	totalSymbols := 0
	res := make([][]Token, len(tokens))
	minLength := int(lz77.MinLength)

	for stream, in := range tokens {
		// Special distance 1 is (1, 0) when enabled
		distSymbol := uint32(0)

		if distanceMultiplier(params, stream) != 0 {
			distSymbol = 1
		}

		totalSymbols += len(in)
		symCosts := cumulativeLiteralCosts(in, sce)
		out := make([]Token, 0, len(in))

		for i := 0; i < len(in); i++ {
			numToCopy := 0

			if i > 0 {
				for i+numToCopy < len(in) && in[i+numToCopy].Value == in[i-1].Value {
					numToCopy++
				}
			}

			if numToCopy == 0 {
				out = append(out, in[i])
				continue
			}

			cost := symCosts[i+numToCopy] - symCosts[i]
			lz77Cost := float32(0)

			if numToCopy >= minLength {
				lz77Cost = float32(CeilLog2(numToCopy-minLength+1) + 1)
			}

			if numToCopy < minLength || cost <= lz77Cost {
				out = append(out, in[i:i+numToCopy]...)
				i += numToCopy - 1
				continue
			}

			out = append(out, Token{Context: in[i].Context, Value: uint32(numToCopy - minLength), IsLZ77Length: true})
			out = append(out, NewToken(lz77.NonserializedDistanceContext, distSymbol))
			i += numToCopy - 1
			bitDecrease += cost - lz77Cost
		}

		res[stream] = out
	}

	enableLZ77IfWorthIt(lz77, bitDecrease, totalSymbols)
	return res
}

func applyLZ77LZ77(params *HistogramParams, numContexts int, tokens [][]Token, lz77 *LZ77Params) [][]Token {
	sce := newSymbolCostEstimator(numContexts, tokens, lz77)
	bitDecrease := float32(0)
	totalSymbols := 0
	res := make([][]Token, len(tokens))
	minLength := int(lz77.MinLength)

	for stream, in := range tokens {
		totalSymbols += len(in)
		symCosts := cumulativeLiteralCosts(in, sce)
		out := make([]Token, 0, len(in))
		chain := NewHashChain(in, lz77WindowSize(len(in)), minLength, len(in), distanceMultiplier(params, stream))

		// Whether position i+1 was inserted already (lazy matching)
		alreadyUpdated := false

		for i := 0; i < len(in); i++ {
			out = append(out, in[i])

			if alreadyUpdated == false {
				chain.Update(i)
			}

			alreadyUpdated = false
			length, distSymbol := chain.FindMatch(i)

			if length < minLength {
				continue
			}

			if length < _LZ77_MAX_LAZY_MATCH_LENGTH && i+1 < len(in) {
				chain.Update(i + 1)
				alreadyUpdated = true
				length2, distSymbol2 := chain.FindMatch(i + 1)

				if length2 > length {
					// Emit a literal and use the match of the next position
					i++
					alreadyUpdated = false
					length = length2
					distSymbol = distSymbol2
					out = append(out, in[i])
				}
			}

			cost := symCosts[i+length] - symCosts[i]
			last := &out[len(out)-1]
			lz77Cost := lz77LengthCost(uint32(length-minLength)) + lz77DistanceCost(uint32(distSymbol)) +
				sce.AddSymbolCost(last.Context)

			if lz77Cost <= cost {
				last.Value = uint32(length - minLength)
				last.IsLZ77Length = true
				out = append(out, NewToken(lz77.NonserializedDistanceContext, uint32(distSymbol)))
				bitDecrease += cost - lz77Cost
			} else {
				// Match ignored: the first literal is already there
				out = append(out, in[i+1:i+length]...)
			}

			if alreadyUpdated == true {
				chain.UpdateRange(i+2, length-2)
				alreadyUpdated = false
			} else {
				chain.UpdateRange(i+1, length-1)
			}

			i += length - 1
		}

		res[stream] = out
	}

	enableLZ77IfWorthIt(lz77, bitDecrease, totalSymbols)
	return res
}

type lz77MatchInfo struct {
	length     uint32
	distSymbol uint32 // 0 for a literal, distance symbol + 1 otherwise
	ctx        uint32
	totalCost  float32
}

func applyLZ77Optimal(params *HistogramParams, numContexts int, tokens [][]Token, lz77 *LZ77Params) [][]Token {
	greedy := applyLZ77LZ77(params, numContexts, tokens, lz77)

	// No need to search further if greedy matching does not pay
	if lz77.Enabled == false {
		return nil
	}

	sce := newSymbolCostEstimator(numContexts+1, greedy, lz77)
	res := make([][]Token, len(tokens))
	minLength := int(lz77.MinLength)
	distSymbols := make([]uint32, 0, 256)

	for stream, in := range tokens {
		multiplier := distanceMultiplier(params, stream)
		symCosts := cumulativeLiteralCosts(in, sce)
		chain := NewHashChain(in, lz77WindowSize(len(in)), minLength, len(in), multiplier)

		// prefixCosts[n]: cheapest way to code the first n symbols
		prefixCosts := make([]lz77MatchInfo, len(in)+1)

		for i := range prefixCosts {
			prefixCosts[i].totalCost = math.MaxFloat32
		}

		prefixCosts[0].totalCost = 0
		rleLength := 0
		skipLZ77 := 0

		for i := range in {
			chain.Update(i)
			litCost := prefixCosts[i].totalCost + symCosts[i+1] - symCosts[i]

			if prefixCosts[i+1].totalCost > litCost {
				prefixCosts[i+1] = lz77MatchInfo{length: 1, ctx: in[i].Context, totalCost: litCost}
			}

			if skipLZ77 > 0 {
				skipLZ77--
				continue
			}

			// Smallest distance symbol per match length
			distSymbols = distSymbols[:0]

			chain.FindMatches(i, func(length, distSymbol int) {
				for len(distSymbols) <= length {
					distSymbols = append(distSymbols, uint32(distSymbol))
				}

				if uint32(distSymbol) < distSymbols[length] {
					distSymbols[length] = uint32(distSymbol)
				}
			})

			if len(distSymbols) <= minLength {
				continue
			}

			// A match of length n implies matches of all shorter lengths
			best := distSymbols[len(distSymbols)-1]

			for j := len(distSymbols) - 1; j >= minLength; j-- {
				best = min(best, distSymbols[j])
				distSymbols[j] = best
			}

			for j := minLength; j < len(distSymbols); j++ {
				lz77Cost := sce.LengthCost(in[i].Context, uint32(j-minLength), lz77) + sce.DistanceCost(distSymbols[j], lz77)
				cost := prefixCosts[i].totalCost + lz77Cost

				if prefixCosts[i+j].totalCost > cost {
					prefixCosts[i+j] = lz77MatchInfo{
						length:     uint32(j),
						distSymbol: distSymbols[j] + 1,
						ctx:        in[i].Context,
						totalCost:  cost,
					}
				}
			}

			// In a run of the same symbol, skip all positions but the first 8
			// and the last 8 to avoid a quadratic cost
			lastSymbol := distSymbols[len(distSymbols)-1]

			if (lastSymbol == 0 && multiplier == 0) || (lastSymbol == 1 && multiplier != 0) {
				rleLength++
			} else {
				rleLength = 0
			}

			if rleLength >= 8 && len(distSymbols) > 9 {
				skipLZ77 = len(distSymbols) - 10
				rleLength = 0
			}
		}

		out := make([]Token, 0, len(in))

		for pos := len(in); pos > 0; pos -= int(prefixCosts[pos].length) {
			pc := &prefixCosts[pos]

			if pc.distSymbol == 0 {
				out = append(out, NewToken(pc.ctx, in[pos-1].Value))
				continue
			}

			// Reversed below
			out = append(out, NewToken(lz77.NonserializedDistanceContext, pc.distSymbol-1))
			out = append(out, Token{Context: pc.ctx, Value: pc.length - uint32(minLength), IsLZ77Length: true})
		}

		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}

		res[stream] = out
	}

	return res
}
