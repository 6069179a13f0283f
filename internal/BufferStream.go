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

package internal

import (
	"errors"
	"io"
)

var errStreamClosed = errors.New("Stream closed")

// BufferStream an in-memory stream of bytes: writes append, reads consume
// from the front. Closing does not discard the data, which remains
// available through Bytes (bitstreams close their sink when done).
type BufferStream struct {
	data   []byte
	offset int
	closed bool
}

// NewBufferStream creates a stream, optionally holding initial data to read
func NewBufferStream(args ...[]byte) *BufferStream {
	this := &BufferStream{}

	if len(args) == 1 {
		this.data = args[0]
	}

	return this
}

// Write appends the data. Fails if the stream is closed.
func (this *BufferStream) Write(b []byte) (int, error) {
	if this.closed == true {
		return 0, errStreamClosed
	}

	this.data = append(this.data, b...)
	return len(b), nil
}

// Read consumes up to len(b) bytes. Returns io.EOF when no data is left.
func (this *BufferStream) Read(b []byte) (int, error) {
	if this.closed == true {
		return 0, errStreamClosed
	}

	if this.offset >= len(this.data) {
		if len(b) == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	n := copy(b, this.data[this.offset:])
	this.offset += n
	return n, nil
}

// Close makes the stream unavailable for future reads or writes
func (this *BufferStream) Close() error {
	this.closed = true
	return nil
}

// Len returns the number of unread bytes
func (this *BufferStream) Len() int {
	return len(this.data) - this.offset
}

// Bytes returns the unread bytes (not a copy)
func (this *BufferStream) Bytes() []byte {
	return this.data[this.offset:]
}

// Reset empties and reopens the stream
func (this *BufferStream) Reset() {
	this.data = this.data[:0]
	this.offset = 0
	this.closed = false
}
