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

package hash

import (
	"encoding/binary"
	"math/bits"
)

// XXHash64 is an extremely fast hash algorithm. It was written by Yann Collet.
// Port to Go from the original source code: https://github.com/Cyan4973/xxHash
// This version is incremental: data can be provided in several Write calls.
// It implements hash.Hash64.

const (
	_XXHASH_PRIME64_1 = uint64(0x9E3779B185EBCA87)
	_XXHASH_PRIME64_2 = uint64(0xC2B2AE3D27D4EB4F)
	_XXHASH_PRIME64_3 = uint64(0x165667B19E3779F9)
	_XXHASH_PRIME64_4 = uint64(0x85EBCA77C2b2AE63)
	_XXHASH_PRIME64_5 = uint64(0x27D4EB2F165667C5)
)

// XXHash64 streaming hash state
type XXHash64 struct {
	seed   uint64
	v      [4]uint64
	total  uint64
	buffer [32]byte
	size   int // bytes pending in buffer
}

// NewXXHash64 creates a new instance of XXHash64
func NewXXHash64(seed uint64) (*XXHash64, error) {
	this := new(XXHash64)
	this.seed = seed
	this.Reset()
	return this, nil
}

// SetSeed sets the hash seed and resets the state
func (this *XXHash64) SetSeed(seed uint64) {
	this.seed = seed
	this.Reset()
}

// Reset clears the data hashed so far
func (this *XXHash64) Reset() {
	this.v[0] = this.seed + _XXHASH_PRIME64_1 + _XXHASH_PRIME64_2
	this.v[1] = this.seed + _XXHASH_PRIME64_2
	this.v[2] = this.seed
	this.v[3] = this.seed - _XXHASH_PRIME64_1
	this.total = 0
	this.size = 0
}

// Size returns the number of bytes of the digest
func (this *XXHash64) Size() int {
	return 8
}

// BlockSize returns the block size of the hash
func (this *XXHash64) BlockSize() int {
	return 32
}

// Write adds data to the running hash. It never returns an error.
func (this *XXHash64) Write(data []byte) (int, error) {
	n := len(data)
	this.total += uint64(n)

	if this.size+len(data) < 32 {
		this.size += copy(this.buffer[this.size:], data)
		return n, nil
	}

	if this.size > 0 {
		c := copy(this.buffer[this.size:], data)
		this.stripe(this.buffer[:])
		data = data[c:]
		this.size = 0
	}

	for len(data) >= 32 {
		this.stripe(data)
		data = data[32:]
	}

	this.size = copy(this.buffer[:], data)
	return n, nil
}

func (this *XXHash64) stripe(buf []byte) {
	this.v[0] = xxHash64Round(this.v[0], binary.LittleEndian.Uint64(buf[0:8]))
	this.v[1] = xxHash64Round(this.v[1], binary.LittleEndian.Uint64(buf[8:16]))
	this.v[2] = xxHash64Round(this.v[2], binary.LittleEndian.Uint64(buf[16:24]))
	this.v[3] = xxHash64Round(this.v[3], binary.LittleEndian.Uint64(buf[24:32]))
}

// Sum64 returns the hash of the data written so far
func (this *XXHash64) Sum64() uint64 {
	var h64 uint64

	if this.total >= 32 {
		h64 = bits.RotateLeft64(this.v[0], 1) + bits.RotateLeft64(this.v[1], 7) +
			bits.RotateLeft64(this.v[2], 12) + bits.RotateLeft64(this.v[3], 18)
		h64 = xxHash64MergeRound(h64, this.v[0])
		h64 = xxHash64MergeRound(h64, this.v[1])
		h64 = xxHash64MergeRound(h64, this.v[2])
		h64 = xxHash64MergeRound(h64, this.v[3])
	} else {
		h64 = this.seed + _XXHASH_PRIME64_5
	}

	h64 += this.total
	data := this.buffer[:this.size]
	n := 0
	end := len(data)

	for n+8 <= end {
		h64 ^= xxHash64Round(0, binary.LittleEndian.Uint64(data[n:n+8]))
		h64 = bits.RotateLeft64(h64, 27)*_XXHASH_PRIME64_1 + _XXHASH_PRIME64_4
		n += 8
	}

	for n+4 <= end {
		h64 ^= (uint64(binary.LittleEndian.Uint32(data[n:n+4])) * _XXHASH_PRIME64_1)
		h64 = bits.RotateLeft64(h64, 23)*_XXHASH_PRIME64_2 + _XXHASH_PRIME64_3
		n += 4
	}

	for n < end {
		h64 += (uint64(data[n]) * _XXHASH_PRIME64_5)
		h64 = bits.RotateLeft64(h64, 11) * _XXHASH_PRIME64_1
		n++
	}

	h64 ^= (h64 >> 33)
	h64 *= _XXHASH_PRIME64_2
	h64 ^= (h64 >> 29)
	h64 *= _XXHASH_PRIME64_3
	return h64 ^ (h64 >> 32)
}

// Sum appends the big endian digest to b
func (this *XXHash64) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, this.Sum64())
}

// Hash returns the hash of the provided data. The running state is reset.
func (this *XXHash64) Hash(data []byte) uint64 {
	this.Reset()
	this.Write(data)
	return this.Sum64()
}

func xxHash64Round(acc, val uint64) uint64 {
	acc += (val * _XXHASH_PRIME64_2)
	return bits.RotateLeft64(acc, 31) * _XXHASH_PRIME64_1
}

func xxHash64MergeRound(acc, val uint64) uint64 {
	acc ^= xxHash64Round(0, val)
	return acc*_XXHASH_PRIME64_1 + _XXHASH_PRIME64_4
}
