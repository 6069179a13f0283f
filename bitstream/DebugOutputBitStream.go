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

	jxlans "github.com/flanglet/jxlans"
)

// DebugOutputBitStream is an implementation of OutputBitStream used for debugging.
type DebugOutputBitStream struct {
	delegate jxlans.OutputBitStream
	printer  bitPrinter
}

// bitPrinter logs bits in stream order (least significant bit first),
// grouped by byte, optionally followed by the value of each completed byte.
type bitPrinter struct {
	out       io.Writer
	mark      bool
	markChar  string
	hexa      bool
	current   byte
	width     int
	lineIndex int
}

// NewDebugOutputBitStream creates a DebugOutputBitStream wrapped around 'obs'.
// All calls are delegated to the 'obs' OutputBitStream and written bits are logged
// to the provided io.Writer.
func NewDebugOutputBitStream(obs jxlans.OutputBitStream, writer io.Writer) (*DebugOutputBitStream, error) {
	if obs == nil {
		return nil, errors.New("The delegate cannot be null")
	}

	if writer == nil {
		return nil, errors.New("The writer cannot be null")
	}

	this := &DebugOutputBitStream{}
	this.delegate = obs
	this.printer = bitPrinter{out: writer, width: 80, markChar: "w"}
	return this, nil
}

// WriteBit writes the least significant bit of the input integer
// Panics if closed or an IO error is received.
// Calls WriteBit() on the underlying bitstream delegate.
func (this *DebugOutputBitStream) WriteBit(bit int) {
	this.delegate.WriteBit(bit)
	this.printer.show(uint64(bit&1), 1)
}

// WriteBits writes the least significant bits of 'bits' to the bitstream.
// Length is the number of bits to write (in [0..56]).
// Returns the number of bits written.
// Panics if closed or an IO error is received.
// Calls WriteBits() on the underlying bitstream delegate.
func (this *DebugOutputBitStream) WriteBits(bits uint64, length uint) uint {
	res := this.delegate.WriteBits(bits, length)
	this.printer.show(bits, length)
	return res
}

// ZeroPadToByte writes zero bits up to the next byte boundary.
// Calls ZeroPadToByte() on the underlying bitstream delegate.
func (this *DebugOutputBitStream) ZeroPadToByte() {
	if pad := uint(this.delegate.Written() & 7); pad != 0 {
		this.printer.show(0, 8-pad)
	}

	this.delegate.ZeroPadToByte()
}

// Close makes the bitstream unavailable for further writes.
// Calls Close() on the underlying bitstream delegate.
func (this *DebugOutputBitStream) Close() error {
	return this.delegate.Close()
}

// Written returns the number of bits written
// Calls Written() on the underlying bitstream delegate.
func (this *DebugOutputBitStream) Written() uint64 {
	return this.delegate.Written()
}

// Mark sets the internal mark state. When true, displays 'w'
// after each bit or bit sequence written to the bitstream delegate.
func (this *DebugOutputBitStream) Mark(mark bool) {
	this.printer.mark = mark
}

// ShowByte sets the internal show byte state. When true, displays
// the value of each byte after its bits.
func (this *DebugOutputBitStream) ShowByte(show bool) {
	this.printer.hexa = show
}

func (this *bitPrinter) show(bits uint64, length uint) {
	for i := uint(0); i < length; i++ {
		bit := (bits >> i) & 1
		this.current = (this.current >> 1) | byte(bit<<7)
		this.lineIndex++
		fmt.Fprintf(this.out, "%d", bit)

		if this.mark == true && i == length-1 {
			fmt.Fprint(this.out, this.markChar)
		}

		if this.width > 7 && this.lineIndex%this.width == 0 {
			if this.hexa == true {
				this.printByte(this.current)
			}

			fmt.Fprintf(this.out, "\n")
			this.lineIndex = 0
		} else if this.lineIndex&7 == 0 {
			if this.hexa == true {
				this.printByte(this.current)
			} else {
				fmt.Fprintf(this.out, " ")
			}
		}
	}
}

func (this *bitPrinter) printByte(val byte) {
	if val < 10 {
		fmt.Fprintf(this.out, " [00%1d] ", val)
	} else if val < 100 {
		fmt.Fprintf(this.out, " [0%2d] ", val)
	} else {
		fmt.Fprintf(this.out, " [%3d] ", val)
	}
}
