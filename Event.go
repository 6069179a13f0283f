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
	"fmt"
	"strings"
	"time"
)

const (
	EVT_ENCODING_START        = 0 // Encoding starts
	EVT_DECODING_START        = 1 // Decoding starts
	EVT_BEFORE_ENTROPY        = 2 // Entropy encoding/decoding of a block starts
	EVT_AFTER_ENTROPY         = 3 // Entropy encoding/decoding of a block ends
	EVT_ENCODING_END          = 4 // Encoding ends
	EVT_DECODING_END          = 5 // Decoding ends
	EVT_AFTER_HEADER_DECODING = 6 // Stream header decoding ends
	EVT_BLOCK_INFO            = 7 // Display block information
	EVT_HISTOGRAM_WARNING     = 8 // Suspicious but legal histogram

	EVT_HASH_NONE   = 0
	EVT_HASH_32BITS = 32
	EVT_HASH_64BITS = 64
)

// Event an encoding/decoding event
type Event struct {
	eventType int
	id        int
	size      int64
	hash      uint64
	hashType  int
	eventTime time.Time
	msg       string
}

// NewEventFromString creates a new Event instance that wraps a message
func NewEventFromString(evtType, id int, msg string, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, size: 0, msg: msg, eventTime: evtTime}
}

// NewEvent creates a new Event instance with size and hash info
// Returns nil if the hashType is not in { EVT_HASH_NONE, EVT_HASH_32BITS, EVT_HASH_64BITS }
func NewEvent(evtType, id int, size int64, hash uint64, hashType int, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	if hashType != EVT_HASH_NONE && hashType != EVT_HASH_32BITS && hashType != EVT_HASH_64BITS {
		return nil
	}

	return &Event{eventType: evtType, id: id, size: size, hash: hash,
		hashType: hashType, eventTime: evtTime}
}

// Type returns the type info
func (this *Event) Type() int {
	return this.eventType
}

// ID returns the id info
func (this *Event) ID() int {
	return this.id
}

// Time returns the time info
func (this *Event) Time() time.Time {
	return this.eventTime
}

// Size returns the size info
func (this *Event) Size() int64 {
	return this.size
}

// Hash returns the hash info
func (this *Event) Hash() uint64 {
	return this.hash
}

// HashType returns EVT_HASH_NONE, EVT_HASH_32BITS or EVT_HASH_64BITS
func (this *Event) HashType() int {
	return this.hashType
}

// Message returns the text wrapped by the event (empty for sized events)
func (this *Event) Message() string {
	return this.msg
}

var _EVT_NAMES = [...]string{
	"ENCODING_START",
	"DECODING_START",
	"BEFORE_ENTROPY",
	"AFTER_ENTROPY",
	"ENCODING_END",
	"DECODING_END",
	"AFTER_HEADER_DECODING",
	"BLOCK_INFO",
	"HISTOGRAM_WARNING",
}

// EventName returns the name of the event type or an empty string
func EventName(evtType int) string {
	if evtType < 0 || evtType >= len(_EVT_NAMES) {
		return ""
	}

	return _EVT_NAMES[evtType]
}

// String returns a string representation of this event.
// Events wrapping a message return the message.
func (this *Event) String() string {
	if len(this.msg) > 0 {
		return this.msg
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "{ \"type\":\"%s\"", EventName(this.eventType))

	if this.id >= 0 {
		fmt.Fprintf(&sb, ", \"id\": %d", this.id)
	}

	fmt.Fprintf(&sb, ", \"size\":%d, \"time\":%d", this.size, this.eventTime.UnixMilli())

	switch this.hashType {
	case EVT_HASH_32BITS:
		fmt.Fprintf(&sb, ", \"hash\": %08x", uint32(this.hash))
	case EVT_HASH_64BITS:
		fmt.Fprintf(&sb, ", \"hash\": %016x", this.hash)
	}

	sb.WriteString(" }")
	return sb.String()
}

// Listener is an interface implemented by event processors
type Listener interface {
	// ProcessEvent is the method called whenever a Listener receives an event.
	ProcessEvent(evt *Event)
}

// NotifyListeners sends the event to every listener. A panicking listener
// does not interrupt the notification of the others.
func NotifyListeners(listeners []Listener, evt *Event) {
	for _, bl := range listeners {
		notify(bl, evt)
	}
}

func notify(bl Listener, evt *Event) {
	defer func() {
		//lint:ignore SA9003
		if r := recover(); r != nil {
			// Ignore exceptions in listeners
		}
	}()

	bl.ProcessEvent(evt)
}
