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

package jxlans

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

func TestLog2(b *testing.T) {
	if err := testLog2(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestEntropy(b *testing.T) {
	if err := testEntropy(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestErrors(b *testing.T) {
	if err := testErrors(); err != nil {
		b.Errorf(err.Error())
	}
}

func TestEvents(b *testing.T) {
	if err := testEvents(); err != nil {
		b.Errorf(err.Error())
	}
}

func testLog2() error {
	fmt.Println("=== Testing Log2 ===")

	if _, err := Log2(0); err == nil {
		return errors.New("Log2(0) accepted")
	}

	for _, x := range []uint32{1, 2, 3, 255, 256, 257, 65535, 65536, 1 << 31, math.MaxUint32} {
		res, _ := Log2(x)

		if expected := uint32(math.Floor(math.Log2(float64(x)))); res != expected {
			return fmt.Errorf("Log2(%d): expected %d, got %d", x, expected, res)
		}

		res, _ = Log2_1024(x)
		expected := 1024 * math.Log2(float64(x))

		if math.Abs(float64(res)-expected) > 2+expected/1000 {
			return fmt.Errorf("Log2_1024(%d): expected %f, got %d", x, expected, res)
		}
	}

	fmt.Println("Success")
	return nil
}

func testEntropy() error {
	fmt.Println("=== Testing order 0 entropy ===")
	freqs := make([]int, 256)
	block := []byte("aaaaaaaa")

	if n := ComputeHistogram(block, freqs, false); n != 8 || freqs['a'] != 8 {
		return fmt.Errorf("Invalid histogram: %d values, %d 'a'", n, freqs['a'])
	}

	if e := ComputeFirstOrderEntropy1024(8, freqs); e != 0 {
		return fmt.Errorf("Expected a null entropy, got %d", e)
	}

	// Uniform distribution over 4 symbols: 2 bits
	block = []byte("abcdabcdabcdabcd")
	n := ComputeHistogram(block, freqs, false)

	if e := ComputeFirstOrderEntropy1024(n, freqs); e != 2048 {
		return fmt.Errorf("Expected an entropy of 2048, got %d", e)
	}

	// 16 bit values, odd trailing byte
	words := make([]int, 65536)
	block = []byte{1, 2, 1, 2, 3}

	if n := ComputeHistogram(block, words, true); n != 3 || words[0x0201] != 2 || words[3] != 1 {
		return fmt.Errorf("Invalid 16 bit histogram: %d values", n)
	}

	if e := ComputeFirstOrderEntropy1024(0, words); e != 0 {
		return fmt.Errorf("Expected a null entropy for an empty block, got %d", e)
	}

	fmt.Println("Success")
	return nil
}

func testErrors() error {
	fmt.Println("=== Testing errors ===")
	err := Errorf(ErrInvalidHistogram, "count %d", 3)

	if errors.Is(err, ErrInvalidHistogram) == false {
		return fmt.Errorf("Error kind lost: %v", err)
	}

	if ErrorCodeOf(err) != ErrorCodeOf(ErrInvalidHistogram) {
		return fmt.Errorf("Unexpected error code: %d", ErrorCodeOf(err))
	}

	if ErrorCodeOf(errors.New("other")) != ERR_UNKNOWN {
		return errors.New("Expected ERR_UNKNOWN for a foreign error")
	}

	if ErrorCodeOf(NewError("bad file", ERR_INVALID_FILE)) != ERR_INVALID_FILE {
		return errors.New("Error code lost")
	}

	fmt.Println("Success")
	return nil
}

type panickingListener struct{}

func (panickingListener) ProcessEvent(evt *Event) {
	panic(errors.New("listener failure"))
}

type recordingListener struct {
	events []*Event
}

func (this *recordingListener) ProcessEvent(evt *Event) {
	this.events = append(this.events, evt)
}

func testEvents() error {
	fmt.Println("=== Testing events ===")

	if NewEvent(EVT_BEFORE_ENTROPY, 1, 10, 0, 16, time.Now()) != nil {
		return errors.New("Invalid hash type accepted")
	}

	evt := NewEvent(EVT_AFTER_ENTROPY, 3, 100, 0xCAFE, EVT_HASH_32BITS, time.Now())
	s := evt.String()

	if strings.Contains(s, "AFTER_ENTROPY") == false || strings.Contains(s, "0000cafe") == false {
		return fmt.Errorf("Unexpected event string: %s", s)
	}

	msgEvt := NewEventFromString(EVT_BLOCK_INFO, 2, "block info", time.Time{})

	if msgEvt.String() != "block info" || msgEvt.Message() != "block info" || msgEvt.Time().IsZero() {
		return fmt.Errorf("Unexpected message event: %s", msgEvt)
	}

	if EventName(EVT_HISTOGRAM_WARNING) != "HISTOGRAM_WARNING" || EventName(42) != "" {
		return errors.New("Invalid event names")
	}

	// A panicking listener does not prevent the others from being notified
	rec := &recordingListener{}
	NotifyListeners([]Listener{panickingListener{}, rec}, evt)

	if len(rec.events) != 1 {
		return errors.New("Listener not notified")
	}

	fmt.Println("Success")
	return nil
}

func TestMagic(b *testing.T) {
	if err := testMagic(); err != nil {
		b.Errorf(err.Error())
	}
}

func testMagic() error {
	fmt.Println("=== Testing magic values ===")
	tests := map[string][]byte{
		"JXAN": {0x4A, 0x58, 0x41, 0x4E, 0x10},
		"JXL":  {0xFF, 0x0A, 0x00, 0x00},
		"JPEG": {0xFF, 0xD8, 0xFF, 0xE1},
		"ZSTD": {0x28, 0xB5, 0x2F, 0xFD},
		"GZIP": {0x1F, 0x8B},
		"":     {0x00, 0x01, 0x02, 0x03},
	}

	for name, data := range tests {
		magic := GetMagicType(data)

		if MagicName(magic) != name {
			return fmt.Errorf("Expected magic '%s', got '%s'", name, MagicName(magic))
		}

		if IsCompressed(magic) != (len(name) > 0) {
			return fmt.Errorf("Unexpected compression status for '%s'", name)
		}
	}

	if GetMagicType(nil) != NO_MAGIC {
		return errors.New("Magic found in empty data")
	}

	fmt.Println("Success")
	return nil
}
