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
package regwin

import (
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	// https://tools.ietf.org/html/rfc1055
	slipFrameDelimiter       = 0xC0
	slipEscape               = 0xDB
	slipEscapeFrameDelimiter = 0xDC
	slipEscapeEscape         = 0xDD
)

// slipConn frames register requests on a byte stream.
type slipConn struct {
	rw io.ReadWriter
}

func (sc *slipConn) ReadFrame(buf []byte) (int, error) {
	n := 0
	start := true
	esc := false
	b := []byte{0}
	for {
		bn, err := sc.rw.Read(b)
		if err != nil || bn != 1 {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return n, errors.Annotatef(err, "error reading frame")
		}
		if start {
			if b[0] != slipFrameDelimiter {
				return 0, errors.Errorf("invalid SLIP starting byte: 0x%02x", b[0])
			}
			start = false
			continue
		}
		if esc {
			if n >= len(buf) {
				return n, errors.Errorf("frame buffer overflow (%d)", len(buf))
			}
			switch b[0] {
			case slipEscapeFrameDelimiter:
				buf[n] = slipFrameDelimiter
			case slipEscapeEscape:
				buf[n] = slipEscape
			default:
				return n, errors.Errorf("invalid SLIP escape sequence: 0x%02x", b[0])
			}
			n++
			esc = false
			continue
		}
		switch b[0] {
		case slipFrameDelimiter:
			// Back-to-back delimiters.
			if n == 0 {
				continue
			}
			glog.V(4).Infof("<= (%d) % x", n, buf[:n])
			return n, nil
		case slipEscape:
			esc = true
		default:
			if n >= len(buf) {
				return n, errors.Errorf("frame buffer overflow (%d)", len(buf))
			}
			buf[n] = b[0]
			n++
		}
	}
}

func (sc *slipConn) WriteFrame(data []byte) error {
	frame := []byte{slipFrameDelimiter}
	for _, b := range data {
		switch b {
		case slipFrameDelimiter:
			frame = append(frame, slipEscape, slipEscapeFrameDelimiter)
		case slipEscape:
			frame = append(frame, slipEscape, slipEscapeEscape)
		default:
			frame = append(frame, b)
		}
	}
	frame = append(frame, slipFrameDelimiter)
	glog.V(4).Infof("=> (%d) % x", len(data), data)
	_, err := sc.rw.Write(frame)
	return errors.Trace(err)
}
