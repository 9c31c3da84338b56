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
package zpu

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Context is checked once per this many words of a transfer.
const ctxCheckWords = 256

// Session is an open handle on target memory with its own cursor.
// Reads and writes move whole 32-bit words and stop at the end of memory:
// a transfer that would run past it is silently shortened, so callers must
// check the returned count.
type Session struct {
	d      *Device
	closed bool
}

// Seek sets the cursor. whence is one of io.SeekStart, io.SeekCurrent and
// io.SeekEnd. The resulting offset must be within [0, memory size).
func (s *Session) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	regLock.Lock()
	defer regLock.Unlock()
	if s.closed {
		return 0, errors.Trace(ErrClosed)
	}
	d := s.d
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(d.cursor) + offset
	case io.SeekEnd:
		pos = int64(d.info.MemSize) + offset
	default:
		return 0, errors.Annotatef(ErrBadWhence, "%d", whence)
	}
	if pos < 0 || pos >= int64(d.info.MemSize) {
		return 0, errors.Annotatef(ErrOutOfRange, "0x%x (memory size 0x%x)", pos, d.info.MemSize)
	}
	if err := d.ch.SetAddress(ctx, uint32(pos)); err != nil {
		return 0, errors.Trace(err)
	}
	d.cursor = uint32(pos)
	return pos, nil
}

// Offset returns the current cursor.
func (s *Session) Offset() uint32 {
	regLock.Lock()
	defer regLock.Unlock()
	return s.d.cursor
}

// MemSize returns the size of the memory the session addresses.
func (s *Session) MemSize() uint32 {
	return s.d.info.MemSize
}

// transferLen validates a transfer of n bytes and clamps it to the end of
// memory. Must be called with regLock held.
func (s *Session) transferLen(n int) (int, error) {
	if s.closed {
		return 0, errors.Trace(ErrClosed)
	}
	if n%4 != 0 {
		return 0, errors.Annotatef(ErrUnaligned, "%d bytes", n)
	}
	if left := int64(s.d.info.MemSize) - int64(s.d.cursor); int64(n) > left {
		glog.V(2).Infof("transfer of %d bytes at 0x%x truncated to %d", n, s.d.cursor, left)
		n = int(left)
	}
	return n, nil
}

// Read fills p with target memory at the cursor and advances the cursor by
// the number of bytes read. len(p) must be a multiple of 4.
func (s *Session) Read(ctx context.Context, p []byte) (int, error) {
	regLock.Lock()
	defer regLock.Unlock()
	n, err := s.transferLen(len(p))
	if err != nil {
		return 0, err
	}
	done := 0
	for done < n {
		if (done/4)%ctxCheckWords == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}
		var v uint32
		if v, err = s.d.ch.ReadWord(ctx); err != nil {
			err = errors.Annotatef(err, "read failed at 0x%x", s.d.cursor+uint32(done))
			break
		}
		binary.LittleEndian.PutUint32(p[done:], v)
		done += 4
	}
	s.d.cursor += uint32(done)
	return done, errors.Trace(err)
}

// Write stores p into target memory at the cursor and advances the cursor by
// the number of bytes written. len(p) must be a multiple of 4.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	regLock.Lock()
	defer regLock.Unlock()
	n, err := s.transferLen(len(p))
	if err != nil {
		return 0, err
	}
	done := 0
	for done < n {
		if (done/4)%ctxCheckWords == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}
		if err = s.d.ch.WriteWord(ctx, binary.LittleEndian.Uint32(p[done:])); err != nil {
			err = errors.Annotatef(err, "write failed at 0x%x", s.d.cursor+uint32(done))
			break
		}
		done += 4
	}
	s.d.cursor += uint32(done)
	return done, errors.Trace(err)
}

// SetReset holds (on) or releases the core.
func (s *Session) SetReset(ctx context.Context, on bool) error {
	regLock.Lock()
	defer regLock.Unlock()
	if s.closed {
		return errors.Trace(ErrClosed)
	}
	return s.d.reset.set(ctx, on)
}

// Close ends the session, allowing the device to be opened again.
func (s *Session) Close() error {
	regLock.Lock()
	defer regLock.Unlock()
	if !s.closed {
		s.closed = true
		s.d.isOpen = false
	}
	return nil
}
