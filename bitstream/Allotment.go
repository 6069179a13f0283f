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
	"fmt"

	jxlans "github.com/flanglet/jxlans"
)

// Allotment bounds the number of bits a sub-component may write to an
// OutputBitStream and records how many were actually written.
// A nil bitstream is accepted: nothing is accounted in that case.
type Allotment struct {
	obs     jxlans.OutputBitStream
	start   uint64
	maxBits uint64
	histo   uint64

	// bits accounted by nested allotments
	nested uint64
}

// NewAllotment starts accounting the bits written to 'obs'
func NewAllotment(obs jxlans.OutputBitStream, maxBits uint64) *Allotment {
	this := &Allotment{obs: obs, maxBits: maxBits}

	if obs != nil {
		this.start = obs.Written()
	}

	return this
}

// Used returns the number of bits written since the allotment was created
func (this *Allotment) Used() uint64 {
	if this.obs == nil {
		return 0
	}

	return this.obs.Written() - this.start - this.nested
}

// Exclude removes bits accounted elsewhere (nested allotments) from this one
func (this *Allotment) Exclude(bits uint64) {
	if this.obs != nil {
		this.nested += bits
	}
}

// FinishedHistogram records the bits written so far as histogram bits
func (this *Allotment) FinishedHistogram() {
	this.histo = this.Used()
}

// HistogramBits returns the number of bits recorded by FinishedHistogram
func (this *Allotment) HistogramBits() uint64 {
	return this.histo
}

// Reclaim closes the allotment. Returns the number of bits used or an error
// if the bound was exceeded.
func (this *Allotment) Reclaim() (uint64, error) {
	used := this.Used()

	if used > this.maxBits {
		return used, fmt.Errorf("Allotment exceeded: %d bits written, %d allowed", used, this.maxBits)
	}

	return used, nil
}
