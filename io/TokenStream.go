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

// Package io provides a container for streams of values (bytes or 16 bit
// words) coded with the JPEG XL rANS entropy coder. The values are split
// into blocks which are entropy coded independently, possibly concurrently.
package io

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	jxlans "github.com/flanglet/jxlans"
	"github.com/flanglet/jxlans/bitstream"
	"github.com/flanglet/jxlans/entropy"
	"github.com/flanglet/jxlans/hash"
	"github.com/flanglet/jxlans/internal"
	"github.com/google/uuid"
)

// Stream layout:
// header (29 bytes, bits packed LSB first):
//   magic (32) | version (4) | 16 bit values (1) | checksum (1) |
//   contexts-1 (8) | block size>>4 (26) | image width (24) | stream id (128) |
//   header checksum (8)
// then blocks:
//   block length in bytes (32, little endian, 0 for the end of stream)
//   block data: value bytes (32) | checksum (32, optional) |
//               histograms | ANS tokens | padding to byte

const (
	_BITSTREAM_TYPE           = 0x4E41584A // "JXAN" in little endian
	_BITSTREAM_FORMAT_VERSION = 1
	_HEADER_SIZE              = 29
	_MIN_BITSTREAM_BLOCK_SIZE = 1024
	_MAX_BITSTREAM_BLOCK_SIZE = 256 * 1024 * 1024
	_MAX_CONCURRENCY          = 64
	_MAX_IMAGE_WIDTH          = 1<<24 - 1
	_DEFAULT_NUM_CONTEXTS     = 16
)

// Header the parameters of a token stream
type Header struct {
	Version     int
	WordValues  bool // 16 bit values (little endian) instead of bytes
	Checksum    bool
	NumContexts int
	BlockSize   int
	ImageWidth  int // distance multiplier of the LZ77 special distances, 0 if none
	StreamID    uuid.UUID
}

func (this *Header) checksum() uint8 {
	HASH := uint32(0x1E35A7BD)
	cksum := HASH * uint32(this.Version)
	cksum ^= HASH * uint32(this.NumContexts)
	cksum ^= HASH * uint32(this.BlockSize)
	cksum ^= HASH * uint32(this.ImageWidth)

	if this.WordValues == true {
		cksum ^= HASH
	}

	for i := 0; i < len(this.StreamID); i += 4 {
		cksum ^= HASH * binary.LittleEndian.Uint32(this.StreamID[i:])
	}

	return uint8((cksum >> 23) ^ (cksum >> 3))
}

func (this *Header) write(obs jxlans.OutputBitStream) {
	obs.WriteBits(_BITSTREAM_TYPE, 32)
	obs.WriteBits(uint64(this.Version), 4)
	obs.WriteBits(boolBit(this.WordValues), 1)
	obs.WriteBits(boolBit(this.Checksum), 1)
	obs.WriteBits(uint64(this.NumContexts-1), 8)
	obs.WriteBits(uint64(this.BlockSize>>4), 26)
	obs.WriteBits(uint64(this.ImageWidth), 24)

	for _, b := range this.StreamID {
		obs.WriteBits(uint64(b), 8)
	}

	obs.WriteBits(uint64(this.checksum()), 8)
}

func (this *Header) read(ibs jxlans.InputBitStream) error {
	if ibs.ReadBits(32) != _BITSTREAM_TYPE {
		return jxlans.NewError("Invalid stream type", jxlans.ERR_INVALID_FILE)
	}

	this.Version = int(ibs.ReadBits(4))

	if this.Version != _BITSTREAM_FORMAT_VERSION {
		errMsg := fmt.Sprintf("Invalid bitstream, cannot read this version of the stream: %d", this.Version)
		return jxlans.NewError(errMsg, jxlans.ERR_STREAM_VERSION)
	}

	this.WordValues = ibs.ReadBit() == 1
	this.Checksum = ibs.ReadBit() == 1
	this.NumContexts = int(ibs.ReadBits(8)) + 1
	this.BlockSize = int(ibs.ReadBits(26)) << 4
	this.ImageWidth = int(ibs.ReadBits(24))

	for i := range this.StreamID {
		this.StreamID[i] = byte(ibs.ReadBits(8))
	}

	if uint8(ibs.ReadBits(8)) != this.checksum() {
		return jxlans.NewError("Invalid bitstream, corrupted header", jxlans.ERR_CRC_CHECK)
	}

	if this.BlockSize < _MIN_BITSTREAM_BLOCK_SIZE || this.BlockSize > _MAX_BITSTREAM_BLOCK_SIZE {
		errMsg := fmt.Sprintf("Invalid bitstream, incorrect block size: %d", this.BlockSize)
		return jxlans.NewError(errMsg, jxlans.ERR_BLOCK_SIZE)
	}

	return nil
}

// String returns a string representation of the header
func (this *Header) String() string {
	width := 8

	if this.WordValues == true {
		width = 16
	}

	return fmt.Sprintf("{ \"version\":%d, \"id\":\"%s\", \"valueBits\":%d, \"checksum\":%v, \"contexts\":%d, \"blockSize\":%d, \"imageWidth\":%d }",
		this.Version, this.StreamID, width, this.Checksum, this.NumContexts, this.BlockSize, this.ImageWidth)
}

func boolBit(b bool) uint64 {
	if b == true {
		return 1
	}

	return 0
}

// ValueContext returns the context of a value given the previous one
func ValueContext(prev uint32, numContexts int) uint32 {
	token, _, _ := entropy.DefaultHybridUintConfig().Encode(prev)
	return min(token, uint32(numContexts-1))
}

// Number of values in a block of 'length' bytes. An odd trailing byte of a
// 16 bit stream is a value of its own.
func numValues(length int, wordValues bool) int {
	if wordValues == true {
		return (length + 1) >> 1
	}

	return length
}

// Tokenize returns the tokens of the values in 'data'
func Tokenize(data []byte, wordValues bool, numContexts int) []Token {
	n := numValues(len(data), wordValues)
	tokens := make([]Token, n)
	prev := uint32(0)

	for i := range tokens {
		var v uint32

		if wordValues == false {
			v = uint32(data[i])
		} else if 2*i+1 < len(data) {
			v = uint32(binary.LittleEndian.Uint16(data[2*i:]))
		} else {
			v = uint32(data[2*i])
		}

		tokens[i] = entropy.NewToken(ValueContext(prev, numContexts), v)
		prev = v
	}

	return tokens
}

// Token alias of the entropy token
type Token = entropy.Token

type blockBuffer struct {
	// Enclose a slice in a struct to share it between stream and tasks
	// and reduce memory allocation.
	Buf []byte
}

func notifyListeners(listeners []jxlans.Listener, evt *jxlans.Event) {
	if evt != nil {
		jxlans.NotifyListeners(listeners, evt)
	}
}

// Writer a Writer that splits the data into blocks of values, entropy codes
// them and writes them to an io.WriteCloser.
type Writer struct {
	header      Header
	params      entropy.HistogramParams
	os          io.WriteCloser
	buffers     []blockBuffer
	outputs     []blockBuffer
	jobs        int
	available   int
	blockID     int
	written     uint64
	initialized bool
	closed      bool
	listeners   []jxlans.Listener
}

type encodingTask struct {
	header    *Header
	params    entropy.HistogramParams
	iBuffer   *blockBuffer
	oBuffer   *blockBuffer
	length    int
	blockID   int
	listeners []jxlans.Listener
}

// NewWriter creates a new instance of Writer using a map of parameters.
// Keys: "blockSize" (uint), "jobs" (uint), "checksum" (bool), optional
// "wordValues" (bool), "contexts" (uint), "imageWidth" (uint),
// "params" (*entropy.HistogramParams), "streamId" (uuid.UUID).
func NewWriter(os io.WriteCloser, ctx map[string]any) (*Writer, error) {
	if os == nil {
		return nil, jxlans.NewError("Invalid null writer parameter", jxlans.ERR_CREATE_STREAM)
	}

	if ctx == nil {
		return nil, jxlans.NewError("Invalid null context parameter", jxlans.ERR_CREATE_STREAM)
	}

	tasks, _ := ctx["jobs"].(uint)

	if tasks == 0 || tasks > _MAX_CONCURRENCY {
		errMsg := fmt.Sprintf("The number of jobs must be in [1..%d], got %d", _MAX_CONCURRENCY, tasks)
		return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
	}

	bSize, _ := ctx["blockSize"].(uint)

	if bSize > _MAX_BITSTREAM_BLOCK_SIZE {
		errMsg := fmt.Sprintf("The block size must be at most %d MB", _MAX_BITSTREAM_BLOCK_SIZE>>20)
		return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
	}

	if bSize < _MIN_BITSTREAM_BLOCK_SIZE {
		errMsg := fmt.Sprintf("The block size must be at least %d", _MIN_BITSTREAM_BLOCK_SIZE)
		return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
	}

	if int(bSize)&-16 != int(bSize) {
		return nil, jxlans.NewError("The block size must be a multiple of 16", jxlans.ERR_INVALID_PARAM)
	}

	this := &Writer{}
	this.os = os
	this.jobs = int(tasks)
	this.header.Version = _BITSTREAM_FORMAT_VERSION
	this.header.BlockSize = int(bSize)
	this.header.NumContexts = _DEFAULT_NUM_CONTEXTS
	this.header.StreamID = uuid.New()
	this.header.Checksum, _ = ctx["checksum"].(bool)
	this.header.WordValues, _ = ctx["wordValues"].(bool)

	if val, hasKey := ctx["contexts"]; hasKey == true {
		n := val.(uint)

		if n == 0 || n > 256 {
			errMsg := fmt.Sprintf("The number of contexts must be in [1..256], got %d", n)
			return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
		}

		this.header.NumContexts = int(n)
	}

	if val, hasKey := ctx["imageWidth"]; hasKey == true {
		w := val.(uint)

		if w > _MAX_IMAGE_WIDTH {
			errMsg := fmt.Sprintf("The image width must be at most %d, got %d", _MAX_IMAGE_WIDTH, w)
			return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
		}

		this.header.ImageWidth = int(w)
	}

	if val, hasKey := ctx["streamId"]; hasKey == true {
		this.header.StreamID = val.(uuid.UUID)
	}

	if val, hasKey := ctx["params"]; hasKey == true && val.(*entropy.HistogramParams) != nil {
		this.params = *val.(*entropy.HistogramParams)
	} else {
		this.params = *entropy.NewHistogramParams()
	}

	if err := this.params.Validate(); err != nil {
		return nil, err
	}

	// One stream per block
	this.params.ImageWidths = nil

	if this.header.ImageWidth > 0 {
		this.params.ImageWidths = []uint32{uint32(this.header.ImageWidth)}
	}

	this.params.Jobs = 1
	this.buffers = make([]blockBuffer, this.jobs)
	this.outputs = make([]blockBuffer, this.jobs)
	this.buffers[0].Buf = make([]byte, this.header.BlockSize)

	for i := 1; i < this.jobs; i++ {
		this.buffers[i].Buf = make([]byte, 0)
	}

	this.listeners = make([]jxlans.Listener, 0)
	return this, nil
}

// Header returns the parameters of the stream
func (this *Writer) Header() Header {
	return this.header
}

// AddListener adds an event listener to this writer.
// Returns true if the listener has been added.
func (this *Writer) AddListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this writer.
// Returns true if the listener has been removed.
func (this *Writer) RemoveListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

func (this *Writer) writeHeader() error {
	bs := internal.NewBufferStream()
	obs, err := bitstream.NewDefaultOutputBitStream(bs, 1024)

	if err != nil {
		return err
	}

	this.header.write(obs)

	if err := obs.Close(); err != nil {
		return err
	}

	return this.emit(bs.Bytes())
}

func (this *Writer) emit(data []byte) error {
	n, err := this.os.Write(data)
	this.written += uint64(n)

	if err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_WRITE_FILE)
	}

	return nil
}

// Write writes len(block) bytes from block to the underlying data stream.
// Returns the number of bytes written from block (0 <= n <= len(block)) and
// any error encountered that caused the write to stop early.
func (this *Writer) Write(block []byte) (int, error) {
	if this.closed == true {
		return 0, jxlans.NewError("Stream closed", jxlans.ERR_WRITE_FILE)
	}

	off := 0
	remaining := len(block)
	blockSize := this.header.BlockSize

	for remaining > 0 {
		bufID := this.available / blockSize
		bufOff := this.available % blockSize
		lenChunk := min(remaining, blockSize-bufOff)
		copy(this.buffers[bufID].Buf[bufOff:], block[off:off+lenChunk])
		bufOff += lenChunk
		off += lenChunk
		remaining -= lenChunk
		this.available += lenChunk

		if bufOff >= blockSize {
			if bufID+1 < this.jobs {
				// Current write buffer is full
				if len(this.buffers[bufID+1].Buf) == 0 {
					this.buffers[bufID+1].Buf = make([]byte, blockSize)
				}
			} else {
				// If all buffers are full, time to encode
				if err := this.processBlock(); err != nil {
					return len(block) - remaining, err
				}
			}
		}
	}

	return len(block) - remaining, nil
}

// Close writes the buffered data then a final empty block. The underlying
// writer is not closed. Idempotent.
func (this *Writer) Close() error {
	if this.closed == true {
		return nil
	}

	this.closed = true

	if err := this.processBlock(); err != nil {
		return err
	}

	// End block of size 0
	if err := this.emit(make([]byte, 4)); err != nil {
		return err
	}

	// Release resources
	this.buffers = nil
	this.outputs = nil
	return nil
}

// GetWritten returns the number of bytes written so far
func (this *Writer) GetWritten() uint64 {
	return this.written
}

// Encodes the buffered blocks concurrently, then emits them in order
func (this *Writer) processBlock() error {
	if this.initialized == false {
		this.initialized = true

		if err := this.writeHeader(); err != nil {
			return err
		}
	}

	if this.available == 0 {
		return nil
	}

	// Protect against future concurrent modification of the list of block listeners
	listeners := make([]jxlans.Listener, len(this.listeners))
	copy(listeners, this.listeners)
	wg := sync.WaitGroup{}
	results := make([]error, this.jobs)
	tasks := 0

	for taskID := 0; taskID < this.jobs && this.available > 0; taskID++ {
		length := min(this.available, this.header.BlockSize)
		this.available -= length
		this.blockID++
		tasks++

		task := encodingTask{
			header:    &this.header,
			params:    this.params,
			iBuffer:   &this.buffers[taskID],
			oBuffer:   &this.outputs[taskID],
			length:    length,
			blockID:   this.blockID,
			listeners: listeners,
		}

		wg.Add(1)

		go func(taskID int) {
			defer wg.Done()
			results[taskID] = task.encode()
		}(taskID)
	}

	// Wait for completion of all tasks
	wg.Wait()
	this.available = 0

	for taskID := 0; taskID < tasks; taskID++ {
		if results[taskID] != nil {
			return results[taskID]
		}

		data := this.outputs[taskID].Buf
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(data)))

		if err := this.emit(length[:]); err != nil {
			return err
		}

		if err := this.emit(data); err != nil {
			return err
		}
	}

	return nil
}

// Block layout:
// length in bytes (32) | checksum (32, optional) | histograms | tokens
func (this *encodingTask) encode() (err error) {
	data := this.iBuffer.Buf[0:this.length]

	defer func() {
		// Bitstream panics
		if r := recover(); r != nil {
			err = jxlans.NewError(fmt.Sprintf("%v", r), jxlans.ERR_PROCESS_BLOCK)
		}
	}()

	checksum := uint64(0)
	hashType := jxlans.EVT_HASH_NONE

	if this.header.Checksum == true {
		hasher, _ := hash.NewXXHash64(_BITSTREAM_TYPE)
		checksum = hasher.Hash(data) & 0xFFFFFFFF
		hashType = jxlans.EVT_HASH_32BITS
	}

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_BEFORE_ENTROPY, this.blockID, int64(this.length), checksum, hashType, time.Now())
		notifyListeners(this.listeners, evt)
	}

	bs := internal.NewBufferStream(this.oBuffer.Buf[:0])
	obs, err := bitstream.NewDefaultOutputBitStream(bs, 16384)

	if err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_CREATE_BITSTREAM)
	}

	obs.WriteBits(uint64(this.length), 32)

	if this.header.Checksum == true {
		obs.WriteBits(checksum, 32)
	}

	tokens := [][]Token{Tokenize(data, this.header.WordValues, this.header.NumContexts)}
	codes, contextMap, _, err := entropy.BuildAndEncodeHistograms(&this.params, this.header.NumContexts, tokens, obs)

	if err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_PROCESS_BLOCK)
	}

	if _, err = entropy.WriteTokens(tokens[0], codes, contextMap, obs); err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_PROCESS_BLOCK)
	}

	if err = obs.Close(); err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_PROCESS_BLOCK)
	}

	this.oBuffer.Buf = bs.Bytes()

	if len(this.listeners) > 0 {
		freqs := make([]int, 256)

		if this.header.WordValues == true {
			freqs = make([]int, 65536)
		}

		n := jxlans.ComputeHistogram(data, freqs, this.header.WordValues)
		entropy1024 := jxlans.ComputeFirstOrderEntropy1024(n, freqs)
		msg := fmt.Sprintf("Block %d: %d values, order 0 entropy %.3f bits, %d histograms, LZ77: %v", this.blockID, len(tokens[0]),
			float64(entropy1024)/1024, len(codes.EncodingInfo), codes.LZ77.Enabled)
		notifyListeners(this.listeners, jxlans.NewEventFromString(jxlans.EVT_BLOCK_INFO, this.blockID, msg, time.Now()))
		evt := jxlans.NewEvent(jxlans.EVT_AFTER_ENTROPY, this.blockID, int64(len(this.oBuffer.Buf)), checksum, hashType, time.Now())
		notifyListeners(this.listeners, evt)
	}

	return nil
}

// Reader a Reader that reads a token stream from an io.ReadCloser and
// returns the decoded values as bytes.
type Reader struct {
	header      Header
	is          io.ReadCloser
	jobs        int
	blockID     int
	read        uint64
	buffers     []blockBuffer
	outputs     []blockBuffer
	available   []byte // decoded bytes not yet returned
	initialized bool
	closed      bool
	eos         bool
	listeners   []jxlans.Listener
}

type decodingTask struct {
	header    *Header
	iBuffer   *blockBuffer
	oBuffer   *blockBuffer
	blockID   int
	listeners []jxlans.Listener
}

// NewReader creates a new instance of Reader using a map of parameters.
// Key: "jobs" (uint).
func NewReader(is io.ReadCloser, ctx map[string]any) (*Reader, error) {
	if is == nil {
		return nil, jxlans.NewError("Invalid null reader parameter", jxlans.ERR_CREATE_STREAM)
	}

	if ctx == nil {
		return nil, jxlans.NewError("Invalid null context parameter", jxlans.ERR_CREATE_STREAM)
	}

	tasks, _ := ctx["jobs"].(uint)

	if tasks == 0 || tasks > _MAX_CONCURRENCY {
		errMsg := fmt.Sprintf("The number of jobs must be in [1..%d], got %d", _MAX_CONCURRENCY, tasks)
		return nil, jxlans.NewError(errMsg, jxlans.ERR_INVALID_PARAM)
	}

	this := &Reader{}
	this.is = is
	this.jobs = int(tasks)
	this.buffers = make([]blockBuffer, this.jobs)
	this.outputs = make([]blockBuffer, this.jobs)
	this.listeners = make([]jxlans.Listener, 0)
	return this, nil
}

// AddListener adds an event listener to this reader.
// Returns true if the listener has been added.
func (this *Reader) AddListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this reader.
// Returns true if the listener has been removed.
func (this *Reader) RemoveListener(bl jxlans.Listener) bool {
	if bl == nil {
		return false
	}

	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// Header reads the stream header if needed and returns it
func (this *Reader) Header() (Header, error) {
	if err := this.readHeader(); err != nil {
		return Header{}, err
	}

	return this.header, nil
}

func (this *Reader) readHeader() error {
	if this.initialized == true {
		return nil
	}

	this.initialized = true
	buf := make([]byte, _HEADER_SIZE)

	if _, err := io.ReadFull(this.is, buf); err != nil {
		return jxlans.NewError("Invalid bitstream, cannot read header: "+err.Error(), jxlans.ERR_READ_FILE)
	}

	this.read += _HEADER_SIZE
	ibs, err := bitstream.NewDefaultInputBitStream(buf)

	if err != nil {
		return err
	}

	if err := this.header.read(ibs); err != nil {
		return err
	}

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, jxlans.NewEventFromString(jxlans.EVT_AFTER_HEADER_DECODING, 0,
			this.header.String(), time.Now()))
	}

	return nil
}

// Read reads up to len(block) decoded bytes. Returns io.EOF once the end
// block has been read and all data returned.
func (this *Reader) Read(block []byte) (int, error) {
	if this.closed == true {
		return 0, jxlans.NewError("Stream closed", jxlans.ERR_READ_FILE)
	}

	if err := this.readHeader(); err != nil {
		return 0, err
	}

	off := 0

	for off < len(block) {
		if len(this.available) == 0 {
			if this.eos == true {
				break
			}

			if err := this.processBlock(); err != nil {
				return off, err
			}

			continue
		}

		n := copy(block[off:], this.available)
		this.available = this.available[n:]
		off += n
	}

	if off == 0 && len(block) > 0 && this.eos == true {
		return 0, io.EOF
	}

	return off, nil
}

// Close makes the stream unavailable for further reads. The underlying
// reader is not closed. Idempotent.
func (this *Reader) Close() error {
	this.closed = true
	this.buffers = nil
	this.outputs = nil
	this.available = nil
	return nil
}

// GetRead returns the number of bytes read so far
func (this *Reader) GetRead() uint64 {
	return this.read
}

// Reads up to 'jobs' blocks, decodes them concurrently and appends the
// decoded bytes in order
func (this *Reader) processBlock() error {
	blocks := 0

	for blocks < this.jobs {
		var length [4]byte

		if _, err := io.ReadFull(this.is, length[:]); err != nil {
			return jxlans.NewError("Invalid bitstream, cannot read block length: "+err.Error(), jxlans.ERR_READ_FILE)
		}

		this.read += 4
		size := int(binary.LittleEndian.Uint32(length[:]))

		if size == 0 {
			this.eos = true
			break
		}

		// Encoded blocks can be a bit larger than the raw data
		if size > 2*this.header.BlockSize+1024 {
			errMsg := fmt.Sprintf("Invalid bitstream, incorrect block length: %d", size)
			return jxlans.NewError(errMsg, jxlans.ERR_BLOCK_SIZE)
		}

		if cap(this.buffers[blocks].Buf) < size {
			this.buffers[blocks].Buf = make([]byte, size)
		}

		this.buffers[blocks].Buf = this.buffers[blocks].Buf[:size]

		if _, err := io.ReadFull(this.is, this.buffers[blocks].Buf); err != nil {
			return jxlans.NewError("Invalid bitstream, cannot read block: "+err.Error(), jxlans.ERR_READ_FILE)
		}

		this.read += uint64(size)
		blocks++
	}

	// Protect against future concurrent modification of the list of block listeners
	listeners := make([]jxlans.Listener, len(this.listeners))
	copy(listeners, this.listeners)
	wg := sync.WaitGroup{}
	results := make([]error, blocks)

	for taskID := 0; taskID < blocks; taskID++ {
		this.blockID++

		task := decodingTask{
			header:    &this.header,
			iBuffer:   &this.buffers[taskID],
			oBuffer:   &this.outputs[taskID],
			blockID:   this.blockID,
			listeners: listeners,
		}

		wg.Add(1)

		go func(taskID int) {
			defer wg.Done()
			results[taskID] = task.decode()
		}(taskID)
	}

	wg.Wait()
	this.available = this.available[:0]

	for taskID := 0; taskID < blocks; taskID++ {
		if results[taskID] != nil {
			return results[taskID]
		}

		this.available = append(this.available, this.outputs[taskID].Buf...)
	}

	return nil
}

func (this *decodingTask) decode() (err error) {
	defer func() {
		// Bitstream panics
		if r := recover(); r != nil {
			err = jxlans.NewError(fmt.Sprintf("%v", r), jxlans.ERR_PROCESS_BLOCK)
		}
	}()

	ibs, err := bitstream.NewDefaultInputBitStream(this.iBuffer.Buf)

	if err != nil {
		return jxlans.NewError(err.Error(), jxlans.ERR_CREATE_BITSTREAM)
	}

	length := int(ibs.ReadBits(32))

	if length > this.header.BlockSize {
		errMsg := fmt.Sprintf("Invalid bitstream, block %d: incorrect data length %d", this.blockID, length)
		return jxlans.NewError(errMsg, jxlans.ERR_BLOCK_SIZE)
	}

	checksum1 := uint64(0)
	hashType := jxlans.EVT_HASH_NONE

	if this.header.Checksum == true {
		checksum1 = ibs.ReadBits(32)
		hashType = jxlans.EVT_HASH_32BITS
	}

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_BEFORE_ENTROPY, this.blockID, int64(len(this.iBuffer.Buf)), checksum1, hashType, time.Now())
		notifyListeners(this.listeners, evt)
	}

	numContexts := this.header.NumContexts
	opts := entropy.DecoderOptions{Listeners: this.listeners}
	code, contextMap, err := entropy.DecodeHistograms(ibs, numContexts, opts)

	if err != nil {
		return fmt.Errorf("Block %d: %w", this.blockID, err)
	}

	reader, err := entropy.NewANSSymbolReader(code, ibs, uint32(this.header.ImageWidth))

	if err != nil {
		return fmt.Errorf("Block %d: %w", this.blockID, err)
	}

	if len(this.listeners) > 0 {
		msg := fmt.Sprintf("Block %d: %d histograms, alphabet 2^%d, LZ77: %v, max value bits: %d", this.blockID,
			code.NumHistograms(), code.LogAlphaSize, code.LZ77.Enabled, code.MaxNumBits)
		notifyListeners(this.listeners, jxlans.NewEventFromString(jxlans.EVT_BLOCK_INFO, this.blockID, msg, time.Now()))
	}

	if cap(this.oBuffer.Buf) < length {
		this.oBuffer.Buf = make([]byte, length)
	}

	data := this.oBuffer.Buf[:length]
	n := numValues(length, this.header.WordValues)
	prev := uint32(0)

	for i := 0; i < n; i++ {
		v := reader.ReadHybridUint(ValueContext(prev, numContexts), ibs, contextMap)

		if this.header.WordValues == false {
			data[i] = byte(v)
		} else if 2*i+1 < length {
			binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
		} else {
			data[2*i] = byte(v)
		}

		prev = v
	}

	if reader.CheckANSFinalState() == false {
		return jxlans.Errorf(jxlans.ErrANSChecksumFailure, "block %d", this.blockID)
	}

	if err := ibs.Close(); err != nil {
		return fmt.Errorf("Block %d: %w", this.blockID, err)
	}

	if this.header.Checksum == true {
		hasher, _ := hash.NewXXHash64(_BITSTREAM_TYPE)

		if checksum2 := hasher.Hash(data) & 0xFFFFFFFF; checksum2 != checksum1 {
			errMsg := fmt.Sprintf("Corrupted bitstream: expected checksum %x, found %x", checksum1, checksum2)
			return jxlans.NewError(errMsg, jxlans.ERR_CRC_CHECK)
		}
	}

	this.oBuffer.Buf = data

	if len(this.listeners) > 0 {
		evt := jxlans.NewEvent(jxlans.EVT_AFTER_ENTROPY, this.blockID, int64(length), checksum1, hashType, time.Now())
		notifyListeners(this.listeners, evt)
	}

	return nil
}
