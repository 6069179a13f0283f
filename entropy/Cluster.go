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
	"container/heap"
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

const (
	CLUSTERING_FASTEST = 0 // at most 4 clusters
	CLUSTERING_FAST    = 1
	CLUSTERING_BEST    = 2 // fast clustering refined by merging pairs

	_MIN_DISTANCE_FOR_DISTINCT = 48.0

	// siphash keys of histogram fingerprints
	_CLUSTER_K0 = 0x6A786C616E732D30
	_CLUSTER_K1 = 0x636C757374657273
)

// ClusterHistograms groups the histograms into at most maxHistograms
// clusters. Returns the clustered histograms and, for each input histogram,
// the index of its cluster. Clusters are numbered by first use.
func ClusterHistograms(params *HistogramParams, in []*Histogram, maxHistograms int) ([]*Histogram, []uint32) {
	maxHistograms = min(maxHistograms, len(in))

	if params.MaxHistograms > 0 {
		maxHistograms = min(maxHistograms, params.MaxHistograms)
	}

	if params.Clustering == CLUSTERING_FASTEST {
		maxHistograms = min(maxHistograms, 4)
	}

	maxHistograms = max(maxHistograms, 1)
	uniques, uniqueOf := dedupeHistograms(in)
	out, uniqueSymbols := fastClusterHistograms(uniques, maxHistograms)

	if params.Clustering == CLUSTERING_BEST {
		out = mergeClusterPairs(out, uniqueSymbols)
	}

	symbols := make([]uint32, len(in))

	for i := range in {
		symbols[i] = uniqueSymbols[uniqueOf[i]]
	}

	return reindexHistograms(out, symbols), symbols
}

func histogramFingerprint(h *Histogram, buf []byte) uint64 {
	buf = buf[:0]

	for _, c := range h.Data[:h.AlphabetSize()] {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c))
	}

	return siphash.Hash(_CLUSTER_K0, _CLUSTER_K1, buf)
}

// Groups identical histograms. Returns one histogram per group (carrying the
// counts of the whole group) and the group of each input histogram.
func dedupeHistograms(in []*Histogram) ([]*Histogram, []int) {
	uniques := make([]*Histogram, 0, len(in))
	uniqueOf := make([]int, len(in))
	representatives := make([]*Histogram, 0, len(in))
	byFingerprint := make(map[uint64][]int, len(in))
	buf := make([]byte, 0, 1024)

	for i, h := range in {
		fp := histogramFingerprint(h, buf)
		found := -1

		for _, u := range byFingerprint[fp] {
			r := representatives[u]

			if r.TotalCount == h.TotalCount && slices.Equal(r.Data[:r.AlphabetSize()], h.Data[:h.AlphabetSize()]) {
				found = u
				break
			}
		}

		if found < 0 {
			found = len(uniques)
			byFingerprint[fp] = append(byFingerprint[fp], found)
			representatives = append(representatives, h)
			uniques = append(uniques, h.Copy())
		} else if h.TotalCount > 0 {
			uniques[found].AddHistogram(h)
		}

		uniqueOf[i] = found
	}

	return uniques, uniqueOf
}

// Picks the largest histogram, then repeatedly the histogram farthest from
// all clusters picked so far, until maxHistograms clusters exist or every
// histogram is close to a cluster. The rest joins the nearest cluster.
func fastClusterHistograms(in []*Histogram, maxHistograms int) ([]*Histogram, []uint32) {
	out := make([]*Histogram, 0, maxHistograms)
	dists := make([]float32, len(in))
	symbols := make([]uint32, len(in))
	largest := 0

	for i, h := range in {
		dists[i] = math.MaxFloat32
		symbols[i] = uint32(maxHistograms)

		if h.TotalCount == 0 {
			symbols[i] = 0
			dists[i] = 0
			continue
		}

		h.Entropy()

		if h.TotalCount > in[largest].TotalCount {
			largest = i
		}
	}

	for len(out) < maxHistograms {
		symbols[largest] = uint32(len(out))
		out = append(out, in[largest].Copy())
		dists[largest] = 0
		last := out[len(out)-1]
		largest = 0

		for i, h := range in {
			if dists[i] == 0 {
				continue
			}

			dists[i] = min(HistogramDistance(h, last), dists[i])

			if dists[i] > dists[largest] {
				largest = i
			}
		}

		if dists[largest] < _MIN_DISTANCE_FOR_DISTINCT {
			break
		}
	}

	for i, h := range in {
		if symbols[i] != uint32(maxHistograms) {
			continue
		}

		best := 0
		bestDist := HistogramDistance(h, out[0])

		for j := 1; j < len(out); j++ {
			if d := HistogramDistance(h, out[j]); d < bestDist {
				best = j
				bestDist = d
			}
		}

		out[best].AddHistogram(h)
		out[best].Entropy()
		symbols[i] = uint32(best)
	}

	return out, symbols
}

type histogramPair struct {
	cost    float32
	first   int
	second  int
	version uint32
}

type histogramPairs []histogramPair

func (this histogramPairs) Len() int { return len(this) }

func (this histogramPairs) Less(i, j int) bool {
	a, b := this[i], this[j]

	if a.cost != b.cost {
		return a.cost < b.cost
	}

	if a.first != b.first {
		return a.first < b.first
	}

	return a.second < b.second
}

func (this histogramPairs) Swap(i, j int) { this[i], this[j] = this[j], this[i] }

func (this *histogramPairs) Push(x any) { *this = append(*this, x.(histogramPair)) }

func (this *histogramPairs) Pop() any {
	old := *this
	x := old[len(old)-1]
	*this = old[:len(old)-1]
	return x
}

// Merges pairs of clusters as long as it reduces the total population cost.
// 'symbols' is updated in place. Merged clusters are left empty.
func mergeClusterPairs(out []*Histogram, symbols []uint32) []*Histogram {
	costs := make([]float32, len(out))
	versions := make([]uint32, len(out))
	renumbering := make([]int, len(out))
	nextVersion := uint32(2)

	for i, h := range out {
		costs[i] = h.PopulationCost()
		versions[i] = 1
		renumbering[i] = i
	}

	pairCost := func(i, j int) float32 {
		merged := out[i].Copy()
		merged.AddHistogram(out[j])
		return merged.PopulationCost() - costs[i] - costs[j]
	}

	pairs := &histogramPairs{}

	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if c := pairCost(i, j); c < 0 {
				*pairs = append(*pairs, histogramPair{cost: c, first: i, second: j, version: max(versions[i], versions[j])})
			}
		}
	}

	heap.Init(pairs)

	for pairs.Len() > 0 {
		p := heap.Pop(pairs).(histogramPair)

		// Stale pair
		if p.version != max(versions[p.first], versions[p.second]) || versions[p.first] == 0 || versions[p.second] == 0 {
			continue
		}

		out[p.first].AddHistogram(out[p.second])
		out[p.second].Clear()
		costs[p.first] = out[p.first].PopulationCost()
		versions[p.first] = nextVersion
		versions[p.second] = 0
		nextVersion++

		for i := range renumbering {
			if renumbering[i] == p.second {
				renumbering[i] = p.first
			}
		}

		for i := range out {
			if i == p.first || versions[i] == 0 {
				continue
			}

			if c := pairCost(min(i, p.first), max(i, p.first)); c < 0 {
				heap.Push(pairs, histogramPair{
					cost:    c,
					first:   min(i, p.first),
					second:  max(i, p.first),
					version: max(versions[i], versions[p.first]),
				})
			}
		}
	}

	for i := range symbols {
		symbols[i] = uint32(renumbering[symbols[i]])
	}

	return out
}

// Renumbers the clusters by order of first use and drops unused ones
func reindexHistograms(out []*Histogram, symbols []uint32) []*Histogram {
	newIndex := make(map[uint32]uint32, len(out))
	res := make([]*Histogram, 0, len(out))

	for _, s := range symbols {
		if _, ok := newIndex[s]; ok == false {
			newIndex[s] = uint32(len(res))
			res = append(res, out[s])
		}
	}

	for i := range symbols {
		symbols[i] = newIndex[symbols[i]]
	}

	return res
}
