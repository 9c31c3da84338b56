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
	"io"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/zpuino/zpu/regwin"
	"github.com/mongoose-os/zpuino/zpu/regwin/sim"
)

func attachSim(t *testing.T, memSize uint32) (*Device, *sim.Window) {
	t.Helper()
	w, err := sim.New(sim.Options{MemSize: memSize})
	require.NoError(t, err)
	d, err := Attach(context.Background(), w, nil)
	require.NoError(t, err)
	return d, w
}

func openSim(t *testing.T, memSize uint32) (*Session, *sim.Window) {
	t.Helper()
	d, w := attachSim(t, memSize)
	s, err := d.Open(context.Background())
	require.NoError(t, err)
	return s, w
}

func TestAttach(t *testing.T) {
	w, err := sim.New(sim.Options{MemSize: 0x4000, Config: 0x00030007})
	require.NoError(t, err)
	d, err := Attach(context.Background(), w, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4000), d.MemSize())
	assert.Equal(t, uint16(7), d.Info().Revision)
	assert.Equal(t, 4, d.Info().Cores)
	assert.True(t, w.InReset(), "core must be left in reset after probing")
	inReset, err := d.Reset().InReset(context.Background())
	require.NoError(t, err)
	assert.True(t, inReset)
}

func TestAttachBadSignature(t *testing.T) {
	for _, sig := range []uint32{0x12345678, 0x5A505400, 0xDA505501} {
		w, err := sim.New(sim.Options{MemSize: 0x4000, Signature: sig})
		require.NoError(t, err)
		d, err := Attach(context.Background(), w, nil)
		assert.Nil(t, d)
		assert.Equal(t, ErrBadSignature, errors.Cause(err), "sig 0x%08x", sig)
		// Nothing but the signature must be touched.
		assert.Len(t, w.Accesses(), 1)
		assert.False(t, w.InReset())
	}
}

func TestAttachSignatureLowByteIgnored(t *testing.T) {
	w, err := sim.New(sim.Options{MemSize: 0x1000, Signature: 0x5A5055FF})
	require.NoError(t, err)
	_, err = Attach(context.Background(), w, nil)
	assert.NoError(t, err)
}

func TestAttachKnownSize(t *testing.T) {
	w, err := sim.New(sim.Options{MemSize: 0x4000})
	require.NoError(t, err)
	d, err := Attach(context.Background(), w, &AttachOpts{MemSize: 0x2000})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2000), d.MemSize())
	assert.False(t, w.InReset())
	// Only SIGNATURE and CONFIG are read.
	assert.Len(t, w.Accesses(), 2)

	_, err = Attach(context.Background(), w, &AttachOpts{MemSize: 0x3000})
	assert.Error(t, err)
}

func TestReattachKnownSizeKeepsProgram(t *testing.T) {
	const size = 0x8000
	ctx := context.Background()
	s, w := openSim(t, size)
	prog := make([]byte, 0x1800)
	for i := range prog {
		prog[i] = byte(i*7 + 1)
	}
	_, err := s.Seek(ctx, 0x1008, io.SeekStart)
	require.NoError(t, err)
	n, err := s.Write(ctx, prog)
	require.NoError(t, err)
	require.Equal(t, len(prog), n)
	require.NoError(t, s.SetReset(ctx, false))
	require.NoError(t, s.Close())
	before := w.Peek(0, size)

	// A later command attaching with the configured size must neither
	// disturb memory nor stop the core.
	d, err := Attach(ctx, w, &AttachOpts{MemSize: size})
	require.NoError(t, err)
	assert.Equal(t, before, w.Peek(0, size))
	assert.False(t, w.InReset())
	inReset, err := d.Reset().InReset(ctx)
	require.NoError(t, err)
	assert.False(t, inReset)
}

func TestDetectMemSize(t *testing.T) {
	for _, size := range []uint32{0x100, 0x200, 0x4000, 0x8000, 0x100000} {
		w, err := sim.New(sim.Options{MemSize: size})
		require.NoError(t, err)
		got, err := DetectMemSize(context.Background(), NewRegChannel(w))
		require.NoError(t, err)
		assert.Equal(t, size, got)
	}
}

func TestDetectMemSizeStaleWordZero(t *testing.T) {
	w, err := sim.New(sim.Options{MemSize: 0x4000})
	require.NoError(t, err)
	ctx := context.Background()
	// Leftover sentinel in word 0 must not be mistaken for aliasing.
	require.NoError(t, w.WriteReg(ctx, regwin.TargetAddress, 0))
	require.NoError(t, w.WriteReg(ctx, regwin.TargetData, probeSentinel))
	got, err := DetectMemSize(ctx, NewRegChannel(w))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4000), got)
}

// flatChannel is a memory that never aliases.
type flatChannel struct {
	mem  map[uint32]uint32
	addr uint32
}

func (fc *flatChannel) SetAddress(ctx context.Context, addr uint32) error {
	fc.addr = addr
	return nil
}

func (fc *flatChannel) ReadWord(ctx context.Context) (uint32, error) {
	v := fc.mem[fc.addr]
	fc.addr += 4
	return v, nil
}

func (fc *flatChannel) WriteWord(ctx context.Context, value uint32) error {
	fc.mem[fc.addr] = value
	fc.addr += 4
	return nil
}

func TestDetectMemSizeNoAliasing(t *testing.T) {
	_, err := DetectMemSize(context.Background(), &flatChannel{mem: map[uint32]uint32{}})
	assert.Equal(t, ErrNoMemSize, errors.Cause(err))
}

func TestDetectMemSizeFault(t *testing.T) {
	w, err := sim.New(sim.Options{MemSize: 0x4000})
	require.NoError(t, err)
	w.InjectFault(regwin.TargetData, errors.New("bus error"))
	_, err = DetectMemSize(context.Background(), NewRegChannel(w))
	assert.Error(t, err)
}

func TestOpenResetsCursor(t *testing.T) {
	d, w := attachSim(t, 0x4000)
	ctx := context.Background()
	s, err := d.Open(ctx)
	require.NoError(t, err)
	_, err = s.Seek(ctx, 0x100, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	w.ResetLog()
	s, err = d.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), s.Offset())
	assert.Equal(t, []sim.Access{{Write: true, Reg: regwin.TargetAddress, Value: 0}}, w.Accesses())
}

func TestDoubleOpen(t *testing.T) {
	d, _ := attachSim(t, 0x4000)
	ctx := context.Background()
	s1, err := d.Open(ctx)
	require.NoError(t, err)
	s2, err := d.Open(ctx)
	assert.Nil(t, s2)
	assert.Equal(t, ErrBusy, errors.Cause(err))

	require.NoError(t, s1.Close())
	// Closing twice is harmless and must not release someone else's session.
	s2, err = d.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s1.Close())
	_, err = d.Open(ctx)
	assert.Equal(t, ErrBusy, errors.Cause(err))
	require.NoError(t, s2.Close())
}

func TestClosedSession(t *testing.T) {
	s, _ := openSim(t, 0x4000)
	ctx := context.Background()
	require.NoError(t, s.Close())
	_, err := s.Seek(ctx, 0, io.SeekStart)
	assert.Equal(t, ErrClosed, errors.Cause(err))
	_, err = s.Read(ctx, make([]byte, 4))
	assert.Equal(t, ErrClosed, errors.Cause(err))
	_, err = s.Write(ctx, make([]byte, 4))
	assert.Equal(t, ErrClosed, errors.Cause(err))
	assert.Equal(t, ErrClosed, errors.Cause(s.SetReset(ctx, false)))
}

func TestSeek(t *testing.T) {
	const size = 0x4000
	s, w := openSim(t, size)
	ctx := context.Background()
	cases := []struct {
		offset int64
		whence int
		want   int64
		fail   bool
	}{
		{offset: 0, whence: io.SeekStart, want: 0},
		{offset: 0x1008, whence: io.SeekStart, want: 0x1008},
		{offset: 8, whence: io.SeekCurrent, want: 0x1010},
		{offset: -0x10, whence: io.SeekCurrent, want: 0x1000},
		{offset: -4, whence: io.SeekEnd, want: size - 4},
		{offset: size - 1, whence: io.SeekStart, want: size - 1},
		{offset: size, whence: io.SeekStart, fail: true},
		{offset: 0, whence: io.SeekEnd, fail: true},
		{offset: -1, whence: io.SeekStart, fail: true},
		{offset: -size - 1, whence: io.SeekEnd, fail: true},
	}
	for _, c := range cases {
		before := s.Offset()
		w.ResetLog()
		got, err := s.Seek(ctx, c.offset, c.whence)
		if c.fail {
			assert.Equal(t, ErrOutOfRange, errors.Cause(err), "seek(%d, %d)", c.offset, c.whence)
			assert.Equal(t, before, s.Offset())
			assert.Empty(t, w.Accesses())
			continue
		}
		require.NoError(t, err, "seek(%d, %d)", c.offset, c.whence)
		assert.Equal(t, c.want, got)
		assert.Equal(t, uint32(c.want), s.Offset())
		assert.Equal(t, []sim.Access{{Write: true, Reg: regwin.TargetAddress, Value: uint32(c.want)}}, w.Accesses())
	}
	_, err := s.Seek(ctx, 0, 42)
	assert.Equal(t, ErrBadWhence, errors.Cause(err))
}

func TestSeekThenEmptyRead(t *testing.T) {
	const size = 0x400
	s, _ := openSim(t, size)
	ctx := context.Background()
	for off := int64(0); off < size; off += 0x44 {
		_, err := s.Seek(ctx, off, io.SeekStart)
		require.NoError(t, err)
		n, err := s.Read(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, uint32(off), s.Offset())
	}
}

func TestUnaligned(t *testing.T) {
	s, w := openSim(t, 0x4000)
	ctx := context.Background()
	_, err := s.Seek(ctx, 0x20, io.SeekStart)
	require.NoError(t, err)
	w.ResetLog()
	for _, n := range []int{1, 2, 3, 5, 7, 13} {
		got, err := s.Read(ctx, make([]byte, n))
		assert.Equal(t, ErrUnaligned, errors.Cause(err), "read %d", n)
		assert.Equal(t, 0, got)
		got, err = s.Write(ctx, make([]byte, n))
		assert.Equal(t, ErrUnaligned, errors.Cause(err), "write %d", n)
		assert.Equal(t, 0, got)
		assert.Equal(t, uint32(0x20), s.Offset())
	}
	assert.Empty(t, w.Accesses())
}

func TestRoundTrip(t *testing.T) {
	s, w := openSim(t, 0x4000)
	ctx := context.Background()
	data := []byte{
		0x01, 0x02, 0x03, 0x04, 0xc0, 0xdb, 0xff, 0x00,
		0xde, 0xad, 0xbe, 0xef, 0x10, 0x20, 0x30, 0x40,
	}
	_, err := s.Seek(ctx, 0x1008, io.SeekStart)
	require.NoError(t, err)
	n, err := s.Write(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, uint32(0x1008+len(data)), s.Offset())
	assert.Equal(t, data, w.Peek(0x1008, uint32(len(data))))

	_, err = s.Seek(ctx, 0x1008, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, len(data))
	n, err = s.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestTransferIsNotReaddressed(t *testing.T) {
	s, w := openSim(t, 0x4000)
	ctx := context.Background()
	_, err := s.Seek(ctx, 0x40, io.SeekStart)
	require.NoError(t, err)
	w.ResetLog()
	_, err = s.Write(ctx, make([]byte, 12))
	require.NoError(t, err)
	for _, a := range w.Accesses() {
		assert.Equal(t, regwin.TargetData, a.Reg)
	}
	assert.Len(t, w.Accesses(), 3)
}

func TestWriteTruncatedAtEnd(t *testing.T) {
	const size = 0x4000
	s, w := openSim(t, size)
	ctx := context.Background()
	// Probing leaves a sentinel in word 0.
	word0 := w.Peek(0, 4)
	_, err := s.Seek(ctx, size-4, io.SeekStart)
	require.NoError(t, err)
	n, err := s.Write(ctx, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint32(size), s.Offset())
	assert.Equal(t, []byte{1, 2, 3, 4}, w.Peek(size-4, 4))
	// Word 0 must not have been hit by a wrapped write.
	assert.Equal(t, word0, w.Peek(0, 4))
	assert.NotEqual(t, []byte{5, 6, 7, 8}, w.Peek(0, 4))

	// At the very end nothing more can be moved.
	n, err = s.Write(ctx, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = s.Read(ctx, make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadTruncatedAtEnd(t *testing.T) {
	const size = 0x1000
	s, _ := openSim(t, size)
	ctx := context.Background()
	_, err := s.Seek(ctx, -8, io.SeekEnd)
	require.NoError(t, err)
	n, err := s.Read(ctx, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, uint32(size), s.Offset())
}

func TestReadFault(t *testing.T) {
	s, w := openSim(t, 0x4000)
	ctx := context.Background()
	w.InjectFault(regwin.TargetData, errors.New("bus error"))
	n, err := s.Read(ctx, make([]byte, 8))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint32(0), s.Offset())
}

func TestCanceledTransfer(t *testing.T) {
	s, _ := openSim(t, 0x4000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := s.Write(ctx, make([]byte, 16))
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 0, n)
	assert.Equal(t, uint32(0), s.Offset())
}

func TestSetReset(t *testing.T) {
	s, w := openSim(t, 0x4000)
	ctx := context.Background()
	require.NoError(t, s.SetReset(ctx, false))
	assert.False(t, w.InReset())
	require.NoError(t, s.SetReset(ctx, true))
	require.NoError(t, s.SetReset(ctx, true))
	assert.True(t, w.InReset())

	w.InjectFault(regwin.ResetControl, errors.New("bus error"))
	assert.Error(t, s.SetReset(ctx, false))
}

func TestConcurrentReset(t *testing.T) {
	d1, _ := attachSim(t, 0x4000)
	d2, _ := attachSim(t, 0x8000)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d := d1
				if i%2 == 1 {
					d = d2
				}
				assert.NoError(t, d.Reset().Set(ctx, j%2 == 0))
			}
		}(i)
	}
	wg.Wait()
}
