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

const _HISTOGRAM_ROUNDING = 8

// Histogram symbol counts of one context (or cluster of contexts)
type Histogram struct {
	Data       []int32
	TotalCount int

	// Cached by Entropy, used by clustering
	entropy float32
}

// NewHistogram creates an empty histogram
func NewHistogram() *Histogram {
	return &Histogram{Data: make([]int32, 0, _HISTOGRAM_ROUNDING)}
}

// Add increments the count of 'symbol'. The data grows by multiples of 8.
func (this *Histogram) Add(symbol uint32) {
	if int(symbol) >= len(this.Data) {
		newLen := (int(symbol) + _HISTOGRAM_ROUNDING) &^ (_HISTOGRAM_ROUNDING - 1)
		this.grow(newLen)
	}

	this.Data[symbol]++
	this.TotalCount++
}

func (this *Histogram) grow(newLen int) {
	if newLen <= len(this.Data) {
		return
	}

	if newLen <= cap(this.Data) {
		old := len(this.Data)
		this.Data = this.Data[0:newLen]

		for i := old; i < newLen; i++ {
			this.Data[i] = 0
		}

		return
	}

	buf := make([]int32, newLen)
	copy(buf, this.Data)
	this.Data = buf
}

// AddHistogram adds the counts of 'other' to this histogram
func (this *Histogram) AddHistogram(other *Histogram) {
	this.grow(len(other.Data))

	for i, c := range other.Data {
		this.Data[i] += c
	}

	this.TotalCount += other.TotalCount
}

// Clear resets all counts. The data keeps its size.
func (this *Histogram) Clear() {
	for i := range this.Data {
		this.Data[i] = 0
	}

	this.TotalCount = 0
}

// Copy returns a deep copy of this histogram
func (this *Histogram) Copy() *Histogram {
	res := &Histogram{TotalCount: this.TotalCount, entropy: this.entropy}
	res.Data = make([]int32, len(this.Data))
	copy(res.Data, this.Data)
	return res
}

// AlphabetSize returns the index of the last non zero count plus one
func (this *Histogram) AlphabetSize() int {
	for i := len(this.Data) - 1; i >= 0; i-- {
		if this.Data[i] != 0 {
			return i + 1
		}
	}

	return 0
}

// PopulationCost returns the estimated cost in bits of the histogram and
// the data it describes, using the fast histogram strategy.
func (this *Histogram) PopulationCost() float32 {
	return ANSPopulationCost(this.Data, len(this.Data))
}

// ShannonEntropy returns the number of bits needed to code the data with an
// ideal order 0 coder.
func (this *Histogram) ShannonEntropy() float32 {
	if this.TotalCount == 0 {
		return 0
	}

	inv := 1.0 / float64(this.TotalCount)
	entropy := 0.0

	for _, c := range this.Data {
		if c > 0 {
			entropy -= float64(c) * math.Log2(float64(c)*inv)
		}
	}

	return float32(entropy)
}

// Entropy computes (and caches) the Shannon entropy
func (this *Histogram) Entropy() float32 {
	this.entropy = this.ShannonEntropy()
	return this.entropy
}

// HistogramDistance returns the cost increase of coding both histograms with
// their merged statistics. Both entropies must be up to date (see Entropy).
func HistogramDistance(a, b *Histogram) float32 {
	if a.TotalCount == 0 || b.TotalCount == 0 {
		return 0
	}

	n := max(len(a.Data), len(b.Data))
	total := float64(a.TotalCount + b.TotalCount)
	cost := total * math.Log2(total)

	for i := 0; i < n; i++ {
		c := 0.0

		if i < len(a.Data) {
			c += float64(a.Data[i])
		}

		if i < len(b.Data) {
			c += float64(b.Data[i])
		}

		if c > 0 {
			cost -= c * math.Log2(c)
		}
	}

	return float32(cost) - a.entropy - b.entropy
}

func log2f(v float32) float32 {
	return float32(math.Log2(float64(v)))
}
