//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package sketch implements the ZPUino sketch container: an 8-byte header
// (signature and board id, both big-endian) followed by the program image as
// big-endian 32-bit words.
package sketch

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

const (
	Signature  = 0x310AFADE
	BoardID    = 0xBC010000
	HeaderSize = 8
	// LoadOffset is where the image goes in target memory.
	LoadOffset = 0x1008
	// MaxSize bounds the aligned image size; no target memory is larger.
	MaxSize = 0x40000000
)

var (
	ErrBadSignature = errors.New("invalid signature")
	ErrBadBoard     = errors.New("invalid board")
	ErrTruncated    = errors.New("file is shorter than the header")
	ErrTooLarge     = errors.New("sketch is too large")
	ErrShortRead    = errors.New("short read")
)

type Header struct {
	Signature uint32
	Board     uint32
}

// ReadHeader reads and validates the container header.
// A container too short to hold a field yields ErrTruncated.
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [HeaderSize]byte
	h := &Header{}
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return nil, truncated(err)
	}
	h.Signature = binary.BigEndian.Uint32(buf[:4])
	if h.Signature != Signature {
		return nil, errors.Annotatef(ErrBadSignature, "%08x", h.Signature)
	}
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, truncated(err)
	}
	h.Board = binary.BigEndian.Uint32(buf[4:])
	if h.Board != BoardID {
		return nil, errors.Annotatef(ErrBadBoard, "%08x", h.Board)
	}
	return h, nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Trace(ErrTruncated)
	}
	return errors.Annotatef(err, "failed to read header")
}

// PayloadSize returns the payload size of a container of fileSize bytes.
func PayloadSize(fileSize int64) (int64, error) {
	size := fileSize - HeaderSize
	if size < 0 {
		return 0, errors.Annotatef(ErrTruncated, "%d bytes", fileSize)
	}
	return size, nil
}

// AlignedSize rounds size up to a whole number of words.
func AlignedSize(size int64) int64 {
	return (size + 3) &^ 3
}

// NewBuffer allocates a zeroed buffer of the aligned size for a payload of
// size bytes.
func NewBuffer(size int64) ([]byte, error) {
	aligned := AlignedSize(size)
	if aligned > MaxSize {
		return nil, errors.Annotatef(ErrTooLarge, "%d bytes", size)
	}
	return make([]byte, aligned), nil
}

// ReadPayload reads exactly size bytes of payload into the start of buf.
func ReadPayload(r io.Reader, buf []byte, size int64) error {
	if size > int64(len(buf)) {
		return errors.Errorf("payload of %d bytes does not fit into %d", size, len(buf))
	}
	n, err := io.ReadFull(r, buf[:size])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Annotatef(ErrShortRead, "want %d (aligned %d) got %d", size, len(buf), n)
		}
		return errors.Annotatef(err, "failed to read payload")
	}
	return nil
}

// SwapWords reverses the byte order of every 32-bit word of buf in place,
// converting between the file's big-endian and the device's little-endian
// representation. len(buf) must be a multiple of 4.
func SwapWords(buf []byte) {
	for i := 0; i+4 <= len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = buf[i+3], buf[i+2], buf[i+1], buf[i]
	}
}

// Sketch is a validated container with its payload ready for the device:
// aligned, zero padded and byte swapped.
type Sketch struct {
	Header
	// PayloadSize is the size of the payload in the file.
	PayloadSize int64
	Data        []byte
}

// Parse decodes a complete container held in memory.
func Parse(data []byte) (*Sketch, error) {
	r := bytes.NewReader(data)
	h, err := ReadHeader(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	size, err := PayloadSize(int64(len(data)))
	if err != nil {
		return nil, errors.Trace(err)
	}
	buf, err := NewBuffer(size)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := ReadPayload(r, buf, size); err != nil {
		return nil, errors.Trace(err)
	}
	SwapWords(buf)
	return &Sketch{Header: *h, PayloadSize: size, Data: buf}, nil
}

// Build wraps a raw big-endian program image into a container.
func Build(payload []byte) []byte {
	res := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(res[0:], Signature)
	binary.BigEndian.PutUint32(res[4:], BoardID)
	return append(res, payload...)
}
