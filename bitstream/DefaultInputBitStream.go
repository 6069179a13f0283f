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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	jxlans "github.com/flanglet/jxlans"
)

const (
	// MAX_BITS_PER_CALL is the maximum number of bits for one read or write
	MAX_BITS_PER_CALL = 56
)

// DefaultInputBitStream is the default implementation of InputBitStream.
// It reads from an in-memory buffer, least significant bit first.
// Bits past the end of the buffer read as zeros and are accounted as overread.
type DefaultInputBitStream struct {
	closed    bool
	position  int    // index of next byte to load into current
	overread  int    // number of zero bytes loaded past the end of buffer
	availBits uint   // bits not consumed in current
	buffer    []byte
	current   uint64 // cached bits, next bit to read is bit 0
}

// InputSnapshot captures the read position of a DefaultInputBitStream
type InputSnapshot struct {
	position  int
	overread  int
	availBits uint
	current   uint64
}

// NewDefaultInputBitStream creates a bitstream for reading, using the provided
// byte slice as data source. The slice is not copied.
func NewDefaultInputBitStream(data []byte) (*DefaultInputBitStream, error) {
	if data == nil {
		return nil, errors.New("Invalid null input buffer parameter")
	}

	this := new(DefaultInputBitStream)
	this.buffer = data
	return this, nil
}

// NewDefaultInputBitStreamFromReader creates a bitstream for reading, loading
// all remaining data from the provided stream.
func NewDefaultInputBitStreamFromReader(stream io.Reader) (*DefaultInputBitStream, error) {
	if stream == nil {
		return nil, errors.New("Invalid null input stream parameter")
	}

	data, err := io.ReadAll(stream)

	if err != nil {
		return nil, err
	}

	return NewDefaultInputBitStream(data)
}

// ReadBit returns the next bit
func (this *DefaultInputBitStream) ReadBit() int {
	return int(this.ReadBits(1))
}

// ReadBits reads 'count' bits from the stream and returns them as an uint64.
// It panics if the count is outside of the [0..56] range or the stream is closed.
func (this *DefaultInputBitStream) ReadBits(count uint) uint64 {
	res := this.PeekBits(count)
	this.Consume(count)
	return res
}

// PeekBits returns the next 'count' bits without consuming them.
// It panics if the count is outside of the [0..56] range or the stream is closed.
func (this *DefaultInputBitStream) PeekBits(count uint) uint64 {
	if count > MAX_BITS_PER_CALL {
		panic(fmt.Errorf("Invalid bit count: %d (must be in [0..%d])", count, MAX_BITS_PER_CALL))
	}

	if count > this.availBits {
		this.Refill()
	}

	return this.current & ((uint64(1) << count) - 1)
}

// Consume skips 'count' bits
func (this *DefaultInputBitStream) Consume(count uint) {
	if count > this.availBits {
		this.Refill()

		if count > this.availBits {
			panic(fmt.Errorf("Invalid bit count: %d (must be in [0..%d])", count, MAX_BITS_PER_CALL))
		}
	}

	this.current >>= count
	this.availBits -= count
}

// Refill loads bytes into the bit cache so that at least 56 bits are available.
// Panics if the stream is closed.
func (this *DefaultInputBitStream) Refill() {
	if this.closed == true {
		panic(errors.New("Stream closed"))
	}

	if this.availBits >= MAX_BITS_PER_CALL {
		return
	}

	if this.position+8 <= len(this.buffer) {
		// Regular processing: load as many whole bytes as fit
		n := (63 - this.availBits) >> 3
		w := binary.LittleEndian.Uint64(this.buffer[this.position:])
		w &= (uint64(1) << (n << 3)) - 1
		this.current |= w << this.availBits
		this.position += int(n)
		this.availBits += n << 3
		return
	}

	// End of stream: pad with zero bytes
	for this.availBits < MAX_BITS_PER_CALL {
		b := uint64(0)

		if this.position < len(this.buffer) {
			b = uint64(this.buffer[this.position])
			this.position++
		} else {
			this.overread++
		}

		this.current |= b << this.availBits
		this.availBits += 8
	}
}

// TotalBitsConsumed returns the number of bits consumed so far
func (this *DefaultInputBitStream) TotalBitsConsumed() uint64 {
	return uint64(this.position+this.overread)<<3 - uint64(this.availBits)
}

// AllReadsWithinBounds returns false if bits past the end of the data
// have been consumed
func (this *DefaultInputBitStream) AllReadsWithinBounds() bool {
	return this.TotalBitsConsumed() <= uint64(len(this.buffer))<<3
}

// JumpToByteBoundary skips the bits up to the next byte boundary.
// Returns an error if one of these bits is set.
func (this *DefaultInputBitStream) JumpToByteBoundary() error {
	if rem := uint(this.TotalBitsConsumed() & 7); rem != 0 {
		if this.ReadBits(8-rem) != 0 {
			return errors.New("Non-zero padding bits")
		}
	}

	return nil
}

// Len returns the size of the underlying data in bits
func (this *DefaultInputBitStream) Len() uint64 {
	return uint64(len(this.buffer)) << 3
}

// Snapshot returns the current read position
func (this *DefaultInputBitStream) Snapshot() InputSnapshot {
	return InputSnapshot{position: this.position, overread: this.overread,
		availBits: this.availBits, current: this.current}
}

// Rewind restores a read position obtained with Snapshot
func (this *DefaultInputBitStream) Rewind(s InputSnapshot) {
	this.position = s.position
	this.overread = s.overread
	this.availBits = s.availBits
	this.current = s.current
}

// Close prevents further reads. Returns an error if more bits were consumed
// than available.
func (this *DefaultInputBitStream) Close() error {
	if this.closed == true {
		return nil
	}

	this.closed = true

	if this.AllReadsWithinBounds() == false {
		return jxlans.Errorf(jxlans.ErrNotEnoughBytes, "read %d bits, only %d available",
			this.TotalBitsConsumed(), this.Len())
	}

	return nil
}

// Closed says whether this stream can be read from
func (this *DefaultInputBitStream) Closed() bool {
	return this.closed
}
