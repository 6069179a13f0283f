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
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/internal"
)

const (
	_SUCCESS = "Success"
)

func TestBitStreamAligned(b *testing.T) {
	if err := testCorrectnessAligned(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestBitStreamMisaligned(b *testing.T) {
	if err := testCorrectnessMisaligned(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestBitStreamBounds(b *testing.T) {
	if err := testBounds(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestBitStreamDebug(b *testing.T) {
	if err := testDebug(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestAllotment(b *testing.T) {
	if err := testAllotment(); err != nil {
		b.Errorf(err.Error())
	}
}

func testCorrectnessAligned() error {
	fmt.Println("=== Correctness Test - write long - byte aligned ===")

	// Check correctness of Written() and TotalBitsConsumed()
	for t := uint(1); t <= MAX_BITS_PER_CALL; t++ {
		bs := internal.NewBufferStream()
		obs, _ := NewDefaultOutputBitStream(bs, 16384)
		obs.WriteBits(0x0123456789ABCDEF, t)

		if obs.Written() != uint64(t) {
			return fmt.Errorf("Invalid number of bits written before close: %d", obs.Written())
		}

		obs.Close()

		if obs.Written() != uint64((t+7)&^7) {
			return fmt.Errorf("Invalid number of bits written after close: %d", obs.Written())
		}

		ibs, _ := NewDefaultInputBitStream(bs.Bytes())
		x := ibs.ReadBits(t)

		if x != 0x0123456789ABCDEF&((uint64(1)<<t)-1) {
			return fmt.Errorf("Invalid value read for %d bits: %x", t, x)
		}

		if ibs.TotalBitsConsumed() != uint64(t) {
			return errors.New("Invalid number of bits read")
		}

		if err := ibs.Close(); err != nil {
			return err
		}
	}

	for test := 1; test <= 10; test++ {
		values := make([]uint64, 1000)
		bs := internal.NewBufferStream()
		obs, _ := NewDefaultOutputBitStream(bs, 1024)

		for i := range values {
			if test < 5 {
				values[i] = uint64(rand.Intn(test*1000 + 100))
			} else {
				values[i] = uint64(rand.Int63n(1 << 32))
			}

			obs.WriteBits(values[i], 32)
		}

		// Close first to force flush()
		if err := obs.Close(); err != nil {
			return err
		}

		if len(bs.Bytes()) != 4*len(values) {
			return fmt.Errorf("Invalid number of bytes written: %d", len(bs.Bytes()))
		}

		ibs, _ := NewDefaultInputBitStream(bs.Bytes())

		for i := range values {
			if x := ibs.ReadBits(32); x != values[i] {
				return fmt.Errorf("Test %d, index %d: expected %d, got %d", test, i, values[i], x)
			}
		}

		if err := ibs.Close(); err != nil {
			return err
		}
	}

	fmt.Println(_SUCCESS)
	return nil
}

func testCorrectnessMisaligned() error {
	fmt.Println("=== Correctness Test - write long - not byte aligned ===")

	for test := 1; test <= 10; test++ {
		values := make([]uint64, 5000)
		lengths := make([]uint, len(values))
		bs := internal.NewBufferStream()
		obs, _ := NewDefaultOutputBitStream(bs, 1024)

		for i := range values {
			lengths[i] = uint(rand.Intn(MAX_BITS_PER_CALL + 1))
			values[i] = rand.Uint64() & ((uint64(1) << lengths[i]) - 1)
			obs.WriteBits(values[i], lengths[i])

			if i%17 == 0 {
				obs.WriteBit(i & 1)
			}
		}

		expected := obs.Written()

		if err := obs.Close(); err != nil {
			return err
		}

		ibs, _ := NewDefaultInputBitStream(bs.Bytes())

		for i := range values {
			// Mix PeekBits/Consume and ReadBits
			var x uint64

			if i&1 == 0 {
				x = ibs.PeekBits(lengths[i])
				ibs.Consume(lengths[i])
			} else {
				x = ibs.ReadBits(lengths[i])
			}

			if x != values[i] {
				return fmt.Errorf("Test %d, index %d: expected %d, got %d", test, i, values[i], x)
			}

			if i%17 == 0 && ibs.ReadBit() != i&1 {
				return fmt.Errorf("Test %d, index %d: invalid bit", test, i)
			}
		}

		if ibs.TotalBitsConsumed() != expected {
			return fmt.Errorf("Read %d bits, expected %d", ibs.TotalBitsConsumed(), expected)
		}

		// Padding bits are zero
		if err := ibs.JumpToByteBoundary(); err != nil {
			return err
		}

		if err := ibs.Close(); err != nil {
			return err
		}
	}

	fmt.Println(_SUCCESS)
	return nil
}

func testBounds() error {
	fmt.Println("=== Testing bitstream bounds ===")

	if _, err := NewDefaultOutputBitStream(internal.NewBufferStream(), 1000); err == nil {
		return errors.New("Invalid buffer size accepted")
	}

	if _, err := NewDefaultInputBitStream(nil); err == nil {
		return errors.New("Null buffer accepted")
	}

	data := []byte{0xA5, 0x0F, 0xFF}
	ibs, _ := NewDefaultInputBitStream(data)
	snap := ibs.Snapshot()

	if x := ibs.ReadBits(12); x != 0xFA5 {
		return fmt.Errorf("Expected 0xFA5, got %x", x)
	}

	ibs.Rewind(snap)

	if x := ibs.ReadBits(24); x != 0xFF0FA5 {
		return fmt.Errorf("Expected 0xFF0FA5 after rewind, got %x", x)
	}

	if ibs.AllReadsWithinBounds() == false {
		return errors.New("Reads reported out of bounds")
	}

	// Reading past the end returns zeros and is reported on close
	if x := ibs.ReadBits(16); x != 0 {
		return fmt.Errorf("Expected zeros past the end, got %x", x)
	}

	if ibs.AllReadsWithinBounds() == true {
		return errors.New("Overread not detected")
	}

	if err := ibs.Close(); errors.Is(err, jxlans.ErrNotEnoughBytes) == false {
		return fmt.Errorf("Expected ErrNotEnoughBytes, got %v", err)
	}

	// Non zero padding
	ibs, _ = NewDefaultInputBitStream([]byte{0x80})
	ibs.ReadBits(3)

	if err := ibs.JumpToByteBoundary(); err == nil {
		return errors.New("Non zero padding accepted")
	}

	// Writes after close panic
	obs, _ := NewDefaultOutputBitStream(internal.NewBufferStream(), 1024)
	obs.Close()

	if err := expectPanic(func() { obs.WriteBits(1, 1) }); err != nil {
		return err
	}

	if err := expectPanic(func() { ibs.ReadBits(MAX_BITS_PER_CALL + 1) }); err != nil {
		return err
	}

	fmt.Println(_SUCCESS)
	return nil
}

func expectPanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nil
		}
	}()

	err = errors.New("Expected panic")
	fn()
	return err
}

func testDebug() error {
	fmt.Println("=== Testing debug bitstreams ===")
	bs := internal.NewBufferStream()
	obs, _ := NewDefaultOutputBitStream(bs, 1024)
	var trace bytes.Buffer
	dbgobs, _ := NewDebugOutputBitStream(obs, &trace)
	dbgobs.ShowByte(true)
	dbgobs.Mark(true)

	for i := 0; i < 100; i++ {
		dbgobs.WriteBits(uint64(i), 7)
	}

	dbgobs.Close()

	if trace.Len() == 0 {
		return errors.New("Nothing traced by the debug output bitstream")
	}

	ibs, _ := NewDefaultInputBitStream(bs.Bytes())
	trace.Reset()
	dbgibs, _ := NewDebugInputBitStream(ibs, &trace)
	dbgibs.Mark(true)

	for i := 0; i < 100; i++ {
		if x := dbgibs.ReadBits(7); x != uint64(i) {
			return fmt.Errorf("Expected %d, got %d", i, x)
		}
	}

	if err := dbgibs.Close(); err != nil {
		return err
	}

	if trace.Len() == 0 {
		return errors.New("Nothing traced by the debug input bitstream")
	}

	fmt.Println(_SUCCESS)
	return nil
}

func testAllotment() error {
	fmt.Println("=== Testing allotment ===")
	obs, _ := NewDefaultOutputBitStream(internal.NewBufferStream(), 1024)
	obs.WriteBits(0, 5)
	outer := NewAllotment(obs, 100)
	obs.WriteBits(0, 20)
	inner := NewAllotment(obs, 16)
	obs.WriteBits(0, 10)
	used, err := inner.Reclaim()

	if err != nil {
		return err
	}

	outer.Exclude(used)
	obs.WriteBits(0, 12)
	outer.FinishedHistogram()

	if outer.HistogramBits() != 32 {
		return fmt.Errorf("Expected 32 histogram bits, got %d", outer.HistogramBits())
	}

	obs.WriteBits(0, 50)

	if _, err := outer.Reclaim(); err != nil {
		return err
	}

	obs.WriteBits(0, 50)

	if _, err := outer.Reclaim(); err == nil {
		return errors.New("Exceeded allotment not reported")
	}

	// A nil bitstream accounts nothing
	if NewAllotment(nil, 0).Used() != 0 {
		return errors.New("Nil allotment not empty")
	}

	fmt.Println(_SUCCESS)
	return nil
}
