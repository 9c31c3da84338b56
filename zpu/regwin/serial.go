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
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Serial register bridge protocol. Each request is one SLIP frame:
//
//	[op] [reg] [value, 4 bytes LE]
//
// and is answered by one frame:
//
//	[status] [value, 4 bytes LE]
//
// Reads ignore the request value; writes echo the written value back.
const (
	SerialOpRead  byte = 0x01
	SerialOpWrite byte = 0x02

	SerialStatusOK       byte = 0x00
	SerialStatusBadReg   byte = 0x01
	SerialStatusBadOp    byte = 0x02
	SerialStatusHWFault  byte = 0x03
	serialFrameLen            = 6
	serialRespLen             = 5
	serialInterCharTimeout    = 200 * time.Millisecond
)

type serialWindow struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	sc   *slipConn
}

// OpenSerial opens a register window reached through a UART register bridge.
func OpenSerial(port string, baudRate int) (Window, error) {
	glog.Infof("Opening %s...", port)
	s, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(serialInterCharTimeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", port)
	}
	s.Flush()
	return NewSerialWindow(s), nil
}

// NewSerialWindow speaks the serial register bridge protocol over conn.
func NewSerialWindow(conn io.ReadWriteCloser) Window {
	return &serialWindow{conn: conn, sc: &slipConn{rw: conn}}
}

func (w *serialWindow) transact(ctx context.Context, op byte, reg Reg, value uint32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Trace(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	req := make([]byte, serialFrameLen)
	req[0], req[1] = op, byte(reg)
	binary.LittleEndian.PutUint32(req[2:], value)
	if err := w.sc.WriteFrame(req); err != nil {
		return 0, errors.Annotatef(err, "failed to send %s request", reg)
	}
	resp := make([]byte, serialFrameLen)
	n, err := w.sc.ReadFrame(resp)
	if err != nil {
		return 0, errors.Annotatef(err, "no response to %s request", reg)
	}
	if n != serialRespLen {
		return 0, errors.Errorf("invalid response length %d for %s", n, reg)
	}
	if resp[0] != SerialStatusOK {
		return 0, errors.Errorf("bridge error %d accessing %s", resp[0], reg)
	}
	return binary.LittleEndian.Uint32(resp[1:]), nil
}

func (w *serialWindow) ReadReg(ctx context.Context, reg Reg) (uint32, error) {
	value, err := w.transact(ctx, SerialOpRead, reg, 0)
	if err != nil {
		return 0, errors.Trace(err)
	}
	glog.V(4).Infof("%s == 0x%08x", reg, value)
	return value, nil
}

func (w *serialWindow) WriteReg(ctx context.Context, reg Reg, value uint32) error {
	glog.V(4).Infof("%s = 0x%08x", reg, value)
	_, err := w.transact(ctx, SerialOpWrite, reg, value)
	return errors.Trace(err)
}

func (w *serialWindow) Close() error {
	return errors.Trace(w.conn.Close())
}

// ServeSerial answers register bridge requests on rw from win until rw
// returns an error. It is the device side of the protocol.
func ServeSerial(ctx context.Context, rw io.ReadWriter, win Window) error {
	sc := &slipConn{rw: rw}
	req := make([]byte, serialFrameLen)
	for {
		n, err := sc.ReadFrame(req)
		if err != nil {
			return errors.Trace(err)
		}
		resp := make([]byte, serialRespLen)
		var value uint32
		switch {
		case n != serialFrameLen:
			resp[0] = SerialStatusBadOp
		case req[1] >= NumRegs:
			resp[0] = SerialStatusBadReg
		case req[0] == SerialOpRead:
			value, err = win.ReadReg(ctx, Reg(req[1]))
		case req[0] == SerialOpWrite:
			value = binary.LittleEndian.Uint32(req[2:])
			err = win.WriteReg(ctx, Reg(req[1]), value)
		default:
			resp[0] = SerialStatusBadOp
		}
		if err != nil {
			glog.Errorf("register access failed: %s", err)
			resp[0] = SerialStatusHWFault
		}
		binary.LittleEndian.PutUint32(resp[1:], value)
		if err := sc.WriteFrame(resp); err != nil {
			return errors.Trace(err)
		}
	}
}
