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

const (
	_HASH_CHAIN_NUM_VALUES = 32768
	_HASH_CHAIN_MASK       = _HASH_CHAIN_NUM_VALUES - 1
	_HASH_CHAIN_SHIFT      = 5
	_HASH_CHAIN_MAX_LENGTH = 256
)

// HashChain finds matches of token values for the LZ77 strategies.
// Runs of zeros get their own chain (keyed by run length) since hashing
// long runs degrades into very long chains.
type HashChain struct {
	data       []uint32
	windowSize uint32
	windowMask uint32
	minLength  int
	maxLength  int

	head  []int32
	chain []uint32
	val   []int32

	headz    []int32
	chainz   []uint32
	zeros    []uint32
	numZeros uint32

	// distance -> special distance code
	specialDistances    map[int]int
	numSpecialDistances int
}

// NewHashChain creates a hash chain over the values of 'tokens'. The window
// size must be a power of 2.
func NewHashChain(tokens []Token, windowSize uint32, minLength, maxLength int, distanceMultiplier uint32) *HashChain {
	this := &HashChain{}
	this.data = make([]uint32, len(tokens))

	for i := range tokens {
		this.data[i] = tokens[i].Value
	}

	this.windowSize = windowSize
	this.windowMask = windowSize - 1
	this.minLength = minLength
	this.maxLength = maxLength
	this.head = make([]int32, _HASH_CHAIN_NUM_VALUES)
	this.val = make([]int32, windowSize)
	this.chain = make([]uint32, windowSize)
	this.zeros = make([]uint32, windowSize)
	this.headz = make([]int32, windowSize+1)
	this.chainz = make([]uint32, windowSize)

	for i := range this.head {
		this.head[i] = -1
	}

	for i := range this.headz {
		this.headz[i] = -1
	}

	// An entry pointing to itself is uninitialized
	for i := uint32(0); i < windowSize; i++ {
		this.val[i] = -1
		this.chain[i] = i
		this.chainz[i] = i
	}

	if distanceMultiplier != 0 {
		this.specialDistances = make(map[int]int, NUM_SPECIAL_DISTANCES)

		// Count down so that the smallest code wins when several distances
		// collide (small multipliers)
		for i := NUM_SPECIAL_DISTANCES - 1; i >= 0; i-- {
			this.specialDistances[int(SpecialDistance(i, distanceMultiplier))] = i
		}

		this.numSpecialDistances = NUM_SPECIAL_DISTANCES
	}

	return this
}

func (this *HashChain) hash(pos int) uint32 {
	// Matches shorter than 3 are useless
	if pos+2 >= len(this.data) {
		return 0
	}

	res := this.data[pos]
	res ^= this.data[pos+1] << _HASH_CHAIN_SHIFT
	res ^= this.data[pos+2] << (2 * _HASH_CHAIN_SHIFT)
	return res & _HASH_CHAIN_MASK
}

func (this *HashChain) countZeros(pos int, prevZeros uint32) uint32 {
	end := min(pos+int(this.windowSize), len(this.data))

	if prevZeros > 0 {
		if prevZeros >= this.windowMask && this.data[end-1] == 0 && end == pos+int(this.windowSize) {
			return prevZeros
		}

		return prevZeros - 1
	}

	n := uint32(0)

	for pos+int(n) < end && this.data[pos+int(n)] == 0 {
		n++
	}

	return n
}

// Update inserts position 'pos' in the chains
func (this *HashChain) Update(pos int) {
	hashVal := this.hash(pos)
	wpos := uint32(pos) & this.windowMask
	this.val[wpos] = int32(hashVal)

	if this.head[hashVal] != -1 {
		this.chain[wpos] = uint32(this.head[hashVal])
	}

	this.head[hashVal] = int32(wpos)

	if pos > 0 && this.data[pos] != this.data[pos-1] {
		this.numZeros = 0
	}

	this.numZeros = this.countZeros(pos, this.numZeros)
	this.zeros[wpos] = this.numZeros

	if this.headz[this.numZeros] != -1 {
		this.chainz[wpos] = uint32(this.headz[this.numZeros])
	}

	this.headz[this.numZeros] = int32(wpos)
}

// UpdateRange inserts positions [pos, pos+length)
func (this *HashChain) UpdateRange(pos, length int) {
	for i := 0; i < length; i++ {
		this.Update(pos + i)
	}
}

// FindMatches calls 'found' with the length and distance symbol of the
// matches at 'pos', following the chains from the most recent position.
// Matches barely shorter than the best one are reported too since their
// distance symbol may be cheaper.
func (this *HashChain) FindMatches(pos int, found func(length, distSymbol int)) {
	wpos := uint32(pos) & this.windowMask
	hashVal := this.hash(pos)
	hashPos := this.chain[wpos]
	prevDist := 0
	end := min(pos+this.maxLength, len(this.data))
	chainLength := 0
	bestLength := 0

	for {
		var dist int

		if hashPos <= wpos {
			dist = int(wpos - hashPos)
		} else {
			dist = int(wpos - hashPos + this.windowMask + 1)
		}

		if dist < prevDist {
			break
		}

		prevDist = dist
		length := 0

		if dist > 0 {
			i := pos
			j := pos - dist

			if this.numZeros > 3 {
				r := min(int(this.numZeros)-1, int(this.zeros[hashPos]))

				if i+r >= end {
					r = end - i - 1
				}

				i += r
				j += r
			}

			for i < end && this.data[i] == this.data[j] {
				i++
				j++
			}

			length = i - pos

			if length >= this.minLength && length+2 >= bestLength {
				symbol, ok := this.specialDistances[dist]

				if ok == false {
					symbol = this.numSpecialDistances + dist - 1
				}

				found(length, symbol)

				if length > bestLength {
					bestLength = length
				}
			}
		}

		chainLength++

		if chainLength >= _HASH_CHAIN_MAX_LENGTH {
			break
		}

		if this.numZeros >= 3 && length > int(this.numZeros) {
			if hashPos == this.chainz[hashPos] {
				break
			}

			hashPos = this.chainz[hashPos]

			if this.zeros[hashPos] != this.numZeros {
				break
			}
		} else {
			if hashPos == this.chain[hashPos] {
				break
			}

			hashPos = this.chain[hashPos]

			// Outdated hash value
			if this.val[hashPos] != int32(hashVal) {
				break
			}
		}
	}
}

// FindMatch returns the longest match at 'pos' (the smallest distance symbol
// on ties). The length is 1 if there is no match.
func (this *HashChain) FindMatch(pos int) (length, distSymbol int) {
	length = 1

	this.FindMatches(pos, func(l, ds int) {
		if l > length || (l == length && distSymbol > ds) {
			length = l
			distSymbol = ds
		}
	})

	return length, distSymbol
}
