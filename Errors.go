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
)

// Error an error with a message and a numeric code (one of the ERR_* values).
// Two errors match with errors.Is when their codes are equal, so wrapped
// errors can be compared against the sentinel values below.
type Error struct {
	msg  string
	code int
}

var (
	ErrInvalidHistogram        = &Error{msg: "Invalid histogram bitstream", code: ERR_INVALID_HISTOGRAM}
	ErrAlphabetTooLong         = &Error{msg: "Alphabet size is too long", code: ERR_ALPHABET_TOO_LONG}
	ErrInvalidHistogramCount   = &Error{msg: "Invalid histogram count", code: ERR_INVALID_HISTOGRAM_COUNT}
	ErrInvalidShiftValue       = &Error{msg: "Invalid shift value", code: ERR_INVALID_SHIFT_VALUE}
	ErrInvalidHybridUintConfig = &Error{msg: "Invalid HybridUintConfig", code: ERR_INVALID_HYBRID_UINT}
	ErrInvalidClusterId        = &Error{msg: "Invalid cluster id", code: ERR_INVALID_CLUSTER_ID}
	ErrIncompleteContextMap    = &Error{msg: "Incomplete context map", code: ERR_INCOMPLETE_CONTEXT_MAP}
	ErrInvalidPermutation      = &Error{msg: "Invalid permutation", code: ERR_INVALID_PERMUTATION}
	ErrInvalidLehmerCode       = &Error{msg: "Invalid Lehmer code", code: ERR_INVALID_LEHMER_CODE}
	ErrANSChecksumFailure      = &Error{msg: "Invalid ANS final state", code: ERR_ANS_CHECKSUM}
	ErrNotEnoughBytes          = &Error{msg: "Not enough bytes in bitstream", code: ERR_NOT_ENOUGH_BYTES}
	ErrTooManyEntries          = &Error{msg: "Too many entries in an ANS histogram", code: ERR_TOO_MANY_ENTRIES}
	ErrRebalanceFailure        = &Error{msg: "Could not rebalance histogram", code: ERR_REBALANCE_FAILURE}
	ErrPrefixCodeUnsupported   = &Error{msg: "Prefix codes are not supported", code: ERR_PREFIX_CODE_UNSUPPORTED}
	ErrLZ77Disallowed          = &Error{msg: "Using LZ77 when explicitly disallowed", code: ERR_LZ77_DISALLOWED}
	ErrInvalidParam            = &Error{msg: "Invalid parameter", code: ERR_INVALID_PARAM}
)

// NewError creates a new instance of Error with a message and a code
func NewError(msg string, code int) *Error {
	return &Error{msg: msg, code: code}
}

// Errorf creates an error with the code of 'kind' and a formatted message
func Errorf(kind *Error, format string, args ...any) *Error {
	return &Error{msg: kind.msg + ": " + fmt.Sprintf(format, args...), code: kind.code}
}

// Error returns the error message and code
func (this Error) Error() string {
	return fmt.Sprintf("%v (code %v)", this.msg, this.code)
}

// Message returns the message string
func (this Error) Message() string {
	return this.msg
}

// ErrorCode returns the error code
func (this Error) ErrorCode() int {
	return this.code
}

// Is reports whether the target is an Error with the same code
func (this Error) Is(target error) bool {
	var e *Error

	if errors.As(target, &e) == false {
		return false
	}

	return e.code == this.code
}

// ErrorCodeOf returns the code carried by err or ERR_UNKNOWN
func ErrorCodeOf(err error) int {
	var e *Error

	if errors.As(err, &e) == true {
		return e.code
	}

	return ERR_UNKNOWN
}
