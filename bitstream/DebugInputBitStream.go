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
	"io"

	jxlans "github.com/flanglet/jxlans"
)

// DebugInputBitStream is an implementation of InputBitStream used for debugging.
type DebugInputBitStream struct {
	delegate jxlans.InputBitStream
	printer  bitPrinter
}

// NewDebugInputBitStream creates a DebugInputBitStream wrapped around 'ibs'.
// All calls are delegated to the 'ibs' InputBitStream and consumed bits are logged
// to the provided io.Writer.
func NewDebugInputBitStream(ibs jxlans.InputBitStream, writer io.Writer) (*DebugInputBitStream, error) {
	if ibs == nil {
		return nil, errors.New("The delegate cannot be null")
	}

	if writer == nil {
		return nil, errors.New("The writer cannot be null")
	}

	this := new(DebugInputBitStream)
	this.delegate = ibs
	this.printer = bitPrinter{out: writer, width: 80, markChar: "r"}
	return this, nil
}

// ReadBit returns the next bit in the bitstream.
// Calls ReadBit() on the underlying bitstream delegate.
func (this *DebugInputBitStream) ReadBit() int {
	res := this.delegate.ReadBit()
	this.printer.show(uint64(res), 1)
	return res
}

// ReadBits reads 'length' (in [0..56]) bits from the bitstream .
// Returns the bits read as an uint64.
// Calls ReadBits() on the underlying bitstream delegate.
func (this *DebugInputBitStream) ReadBits(length uint) uint64 {
	res := this.delegate.ReadBits(length)
	this.printer.show(res, length)
	return res
}

// PeekBits returns the next 'length' bits without consuming them.
// Peeked bits are not logged.
func (this *DebugInputBitStream) PeekBits(length uint) uint64 {
	return this.delegate.PeekBits(length)
}

// Consume skips 'length' bits and logs them.
func (this *DebugInputBitStream) Consume(length uint) {
	this.printer.show(this.delegate.PeekBits(length), length)
	this.delegate.Consume(length)
}

// Refill calls Refill() on the underlying bitstream delegate.
func (this *DebugInputBitStream) Refill() {
	this.delegate.Refill()
}

// TotalBitsConsumed returns the number of bits consumed
// Calls TotalBitsConsumed() on the underlying bitstream delegate.
func (this *DebugInputBitStream) TotalBitsConsumed() uint64 {
	return this.delegate.TotalBitsConsumed()
}

// AllReadsWithinBounds calls AllReadsWithinBounds() on the underlying bitstream delegate.
func (this *DebugInputBitStream) AllReadsWithinBounds() bool {
	return this.delegate.AllReadsWithinBounds()
}

// JumpToByteBoundary calls JumpToByteBoundary() on the underlying bitstream delegate.
func (this *DebugInputBitStream) JumpToByteBoundary() error {
	if pad := uint(this.delegate.TotalBitsConsumed() & 7); pad != 0 {
		this.printer.show(this.delegate.PeekBits(8-pad), 8-pad)
	}

	return this.delegate.JumpToByteBoundary()
}

// Close makes the bitstream unavailable for further reads.
// Calls Close() on the underlying bitstream delegate.
func (this *DebugInputBitStream) Close() error {
	return this.delegate.Close()
}

// Mark sets the internal mark state. When true. displays 'r'
// after each bit  or bit sequence read from the bitstream delegate.
func (this *DebugInputBitStream) Mark(mark bool) {
	this.printer.mark = mark
}

// ShowByte sets the internal show byte state. When true, displays
// the value of each byte after its bits.
func (this *DebugInputBitStream) ShowByte(show bool) {
	this.printer.hexa = show
}
