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

package bitstream

import (
	"errors"
	"fmt"
	"io"
)

// DefaultOutputBitStream is the default implementation of OutputBitStream.
// Bits are packed least significant bit first.
type DefaultOutputBitStream struct {
	closed    bool
	written   uint64
	position  int    // index of current byte in buffer
	availBits uint   // pending bits in current (less than 8 between calls)
	current   uint64 // cached bits
	os        io.WriteCloser
	buffer    []byte
}

var _OBS_MASKS = [57]uint64{
	0x0,
	0x1,
	0x3,
	0x7,
	0xF,
	0x1F,
	0x3F,
	0x7F,
	0xFF,
	0x1FF,
	0x3FF,
	0x7FF,
	0xFFF,
	0x1FFF,
	0x3FFF,
	0x7FFF,
	0xFFFF,
	0x1FFFF,
	0x3FFFF,
	0x7FFFF,
	0xFFFFF,
	0x1FFFFF,
	0x3FFFFF,
	0x7FFFFF,
	0xFFFFFF,
	0x1FFFFFF,
	0x3FFFFFF,
	0x7FFFFFF,
	0xFFFFFFF,
	0x1FFFFFFF,
	0x3FFFFFFF,
	0x7FFFFFFF,
	0xFFFFFFFF,
	0x1FFFFFFFF,
	0x3FFFFFFFF,
	0x7FFFFFFFF,
	0xFFFFFFFFF,
	0x1FFFFFFFFF,
	0x3FFFFFFFFF,
	0x7FFFFFFFFF,
	0xFFFFFFFFFF,
	0x1FFFFFFFFFF,
	0x3FFFFFFFFFF,
	0x7FFFFFFFFFF,
	0xFFFFFFFFFFF,
	0x1FFFFFFFFFFF,
	0x3FFFFFFFFFFF,
	0x7FFFFFFFFFFF,
	0xFFFFFFFFFFFF,
	0x1FFFFFFFFFFFF,
	0x3FFFFFFFFFFFF,
	0x7FFFFFFFFFFFF,
	0xFFFFFFFFFFFFF,
	0x1FFFFFFFFFFFFF,
	0x3FFFFFFFFFFFFF,
	0x7FFFFFFFFFFFFF,
	0xFFFFFFFFFFFFFF,
}

// NewDefaultOutputBitStream creates a bitstream for writing, using the provided stream as
// the underlying I/O object.
func NewDefaultOutputBitStream(stream io.WriteCloser, bufferSize uint) (*DefaultOutputBitStream, error) {
	if stream == nil {
		return nil, errors.New("Invalid null output stream parameter")
	}

	if bufferSize < 1024 {
		return nil, errors.New("Invalid buffer size parameter (must be at least 1024 bytes)")
	}

	if bufferSize > 1<<29 {
		return nil, errors.New("Invalid buffer size parameter (must be at most 536870912 bytes)")
	}

	if bufferSize&7 != 0 {
		return nil, errors.New("Invalid buffer size (must be a multiple of 8)")
	}

	this := new(DefaultOutputBitStream)
	this.buffer = make([]byte, bufferSize)
	this.os = stream
	return this, nil
}

// WriteBit writes the least significant bit of the input integer. Panics if the bitstream is closed
func (this *DefaultOutputBitStream) WriteBit(bit int) {
	this.WriteBits(uint64(bit&1), 1)
}

// WriteBits writes 'count' from 'value' to the bitstream.
// Panics if the bitstream is closed or 'count' is outside of [0..56].
// Returns the number of written bits.
func (this *DefaultOutputBitStream) WriteBits(value uint64, count uint) uint {
	if count > MAX_BITS_PER_CALL {
		panic(fmt.Errorf("Invalid bit count: %d (must be in [0..%d])", count, MAX_BITS_PER_CALL))
	}

	if this.closed == true {
		panic(errors.New("Stream closed"))
	}

	this.current |= (value & _OBS_MASKS[count]) << this.availBits
	this.availBits += count

	for this.availBits >= 8 {
		this.pushByte()
	}

	return count
}

// ZeroPadToByte writes zero bits up to the next byte boundary
func (this *DefaultOutputBitStream) ZeroPadToByte() {
	if this.availBits != 0 {
		this.WriteBits(0, 8-this.availBits)
	}
}

// Push the low byte of current value into buffer.
func (this *DefaultOutputBitStream) pushByte() {
	this.buffer[this.position] = byte(this.current)
	this.current >>= 8
	this.availBits -= 8
	this.position++

	if this.position >= len(this.buffer) {
		if err := this.flush(); err != nil {
			panic(err)
		}
	}
}

// Write buffer into underlying stream
func (this *DefaultOutputBitStream) flush() error {
	if this.position > 0 {
		if _, err := this.os.Write(this.buffer[0:this.position]); err != nil {
			return err
		}

		this.written += (uint64(this.position) << 3)
		this.position = 0
	}

	return nil
}

// Close pads the last byte with zeros, flushes pending bytes and prevents
// further writes. The underlying stream is not closed.
func (this *DefaultOutputBitStream) Close() error {
	if this.closed == true {
		return nil
	}

	this.ZeroPadToByte()

	if err := this.flush(); err != nil {
		return err
	}

	this.closed = true
	return nil
}

// Written returns the number of bits written so far
func (this *DefaultOutputBitStream) Written() uint64 {
	// Number of bits flushed + bytes written in memory + bits written in memory
	return this.written + uint64(this.position<<3) + uint64(this.availBits)
}

// Closed says whether this stream can be written to
func (this *DefaultOutputBitStream) Closed() bool {
	return this.closed
}
