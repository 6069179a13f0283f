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

// Package jxlans defines the top level interfaces used by the JPEG XL
// rANS entropy coder.
//
// The implementation of these interfaces are available in sub-folders
// like bitstream, entropy or io. In particular, the entropy package contains
// the histogram coding, the ANS state machine and the LZ77 token layer while
// the io package contains a Writer and a Reader for token streams.
package jxlans

const (
	ERR_MISSING_PARAM             = 1
	ERR_BLOCK_SIZE                = 2
	ERR_INVALID_CODEC             = 3
	ERR_CREATE_COMPRESSOR         = 4
	ERR_CREATE_DECOMPRESSOR       = 5
	ERR_OUTPUT_IS_DIR             = 6
	ERR_OVERWRITE_FILE            = 7
	ERR_CREATE_FILE               = 8
	ERR_CREATE_BITSTREAM          = 9
	ERR_OPEN_FILE                 = 10
	ERR_READ_FILE                 = 11
	ERR_WRITE_FILE                = 12
	ERR_PROCESS_BLOCK             = 13
	ERR_CREATE_CODEC              = 14
	ERR_INVALID_FILE              = 15
	ERR_STREAM_VERSION            = 16
	ERR_CREATE_STREAM             = 17
	ERR_INVALID_PARAM             = 18
	ERR_CRC_CHECK                 = 19
	ERR_INVALID_HISTOGRAM         = 32
	ERR_ALPHABET_TOO_LONG         = 33
	ERR_INVALID_HISTOGRAM_COUNT   = 34
	ERR_INVALID_SHIFT_VALUE       = 35
	ERR_INVALID_HYBRID_UINT       = 36
	ERR_INVALID_CLUSTER_ID        = 37
	ERR_INCOMPLETE_CONTEXT_MAP    = 38
	ERR_INVALID_PERMUTATION       = 39
	ERR_INVALID_LEHMER_CODE       = 40
	ERR_ANS_CHECKSUM              = 41
	ERR_NOT_ENOUGH_BYTES          = 42
	ERR_TOO_MANY_ENTRIES          = 43
	ERR_REBALANCE_FAILURE         = 44
	ERR_PREFIX_CODE_UNSUPPORTED   = 45
	ERR_LZ77_DISALLOWED           = 46
	ERR_UNKNOWN                   = 127
)

// InputBitStream is a bitstream reader. Bits are packed least significant
// bit first. Reading past the end of the data yields zero bits: the overread
// is tracked and reported by AllReadsWithinBounds and Close.
type InputBitStream interface {
	// ReadBit returns the next bit in the bitstream.
	ReadBit() int

	// ReadBits reads 'length' (in [0..56]) bits from the bitstream.
	// Returns the bits read as an uint64.
	ReadBits(length uint) uint64

	// PeekBits returns the next 'length' (in [0..56]) bits without
	// consuming them.
	PeekBits(length uint) uint64

	// Consume skips 'length' bits previously obtained with PeekBits.
	Consume(length uint)

	// Refill makes sure that at least 56 bits are buffered.
	Refill()

	// TotalBitsConsumed returns the number of bits consumed so far,
	// including bits read past the end of the data.
	TotalBitsConsumed() uint64

	// AllReadsWithinBounds returns false if more bits were consumed
	// than available in the data.
	AllReadsWithinBounds() bool

	// JumpToByteBoundary skips the padding bits up to the next byte
	// boundary. The padding bits must be zero.
	JumpToByteBoundary() error

	// Close makes the bitstream unavailable for further reads.
	// Returns an error if some reads were out of bounds.
	Close() error
}

// OutputBitStream is a bitstream writer. Bits are packed least significant
// bit first.
type OutputBitStream interface {
	// WriteBit writes the least significant bit of the input integer.
	// Panics if closed or an IO error is received.
	WriteBit(bit int)

	// WriteBits writes the least significant bits of 'bits' to the bitstream.
	// Length is the number of bits to write (in [0..56]).
	// Returns the number of bits written.
	// Panics if closed or an IO error is received.
	WriteBits(bits uint64, length uint) uint

	// ZeroPadToByte writes zero bits up to the next byte boundary.
	ZeroPadToByte()

	// Close flushes pending bits and makes the bitstream unavailable for
	// further writes.
	Close() error

	// Written returns the number of bits written
	Written() uint64
}
