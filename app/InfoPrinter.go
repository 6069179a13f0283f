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

package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	jxlans "github.com/flanglet/jxlans"
)

// An implementation of Listener to display block information (verbose option
// of the BlockCompressor/BlockDecompressor and info mode)

const (
	// COMPRESSION event type
	COMPRESSION = 0
	// DECOMPRESSION event type
	DECOMPRESSION = 1
	// INFO event type
	INFO = 2
)

type blockInfo struct {
	time0      time.Time
	stage0Size int64
}

// InfoPrinter contains all the data required to print one event
type InfoPrinter struct {
	writer    io.Writer
	infoType  uint
	level     uint
	infos     map[int]blockInfo
	lock      sync.Mutex
	blocks    int
	totalIn   int64
	totalOut  int64
	histoWarn int
}

// NewInfoPrinter creates a new instance of InfoPrinter
func NewInfoPrinter(infoLevel, infoType uint, writer io.Writer) (*InfoPrinter, error) {
	if writer == nil {
		return nil, errors.New("invalid null writer parameter")
	}

	this := &InfoPrinter{}
	this.infoType = infoType & 3
	this.level = infoLevel
	this.writer = writer
	this.infos = make(map[int]blockInfo)
	return this, nil
}

// ProcessEvent receives an event and writes a log record to the internal writer
func (this *InfoPrinter) ProcessEvent(evt *jxlans.Event) {
	this.lock.Lock()
	defer this.lock.Unlock()

	switch evt.Type() {
	case jxlans.EVT_AFTER_HEADER_DECODING:
		if this.infoType == INFO || this.level >= 3 {
			fmt.Fprintf(this.writer, "Stream header: %s\n", evt)
		}

	case jxlans.EVT_BEFORE_ENTROPY:
		this.infos[evt.ID()] = blockInfo{time0: evt.Time(), stage0Size: evt.Size()}

		if this.level >= 5 {
			fmt.Fprintln(this.writer, evt)
		}

	case jxlans.EVT_AFTER_ENTROPY:
		bi, exists := this.infos[evt.ID()]

		if exists == false {
			return
		}

		delete(this.infos, evt.ID())
		this.blocks++
		this.totalIn += bi.stage0Size
		this.totalOut += evt.Size()

		if this.level >= 5 {
			durationMS := evt.Time().Sub(bi.time0).Nanoseconds() / int64(time.Millisecond)
			fmt.Fprintf(this.writer, "%s [%d ms]\n", evt, durationMS)
		} else if this.level >= 3 || this.infoType == INFO {
			msg := fmt.Sprintf("Block %d: %d => %d", evt.ID(), bi.stage0Size, evt.Size())

			if evt.HashType() != jxlans.EVT_HASH_NONE {
				msg += fmt.Sprintf(" [%08x]", evt.Hash())
			}

			fmt.Fprintln(this.writer, msg)
		}

	case jxlans.EVT_BLOCK_INFO:
		if this.level >= 4 || this.infoType == INFO {
			fmt.Fprintln(this.writer, evt)
		}

	case jxlans.EVT_HISTOGRAM_WARNING:
		this.histoWarn++

		if this.level >= 2 || this.infoType == INFO {
			fmt.Fprintf(this.writer, "Warning: %s\n", evt)
		}

	default:
		if this.level >= 5 {
			fmt.Fprintln(this.writer, evt)
		}
	}
}

// Summary prints the totals of the blocks seen so far
func (this *InfoPrinter) Summary() {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.blocks == 0 {
		return
	}

	ratio := 0.0

	if this.totalIn > 0 {
		ratio = float64(this.totalOut) / float64(this.totalIn)
	}

	fmt.Fprintf(this.writer, "%d blocks, %d => %d bytes (ratio %.4f)\n", this.blocks, this.totalIn, this.totalOut, ratio)

	if this.histoWarn > 0 {
		fmt.Fprintf(this.writer, "%d histogram warnings\n", this.histoWarn)
	}
}
