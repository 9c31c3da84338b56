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
// Package sim implements a simulated ZPUino control window backed by an
// in-memory target memory that aliases (wraps) at its configured size.
package sim

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/mongoose-os/zpuino/zpu/regwin"
)

const (
	DefaultSignature = 0x5A505501
	// Revision 0x0102, single core.
	DefaultConfig = 0x00000102
)

// Options describes the simulated peripheral.
type Options struct {
	// MemSize is the size of target memory in bytes. It must be a non-zero
	// multiple of 4. Addresses at or beyond MemSize wrap around.
	MemSize uint32
	// Signature and Config are returned by the corresponding registers.
	// Zero values select DefaultSignature and DefaultConfig.
	Signature uint32
	Config    uint32
}

// Access records one register access, for tests that check sequencing.
type Access struct {
	Write bool
	Reg   regwin.Reg
	Value uint32
}

// Window is a simulated register window.
type Window struct {
	mu     sync.Mutex
	opts   Options
	mem    []uint32
	addr   uint32
	reset  uint32
	closed bool
	log    []Access
	faults map[regwin.Reg]error
}

func New(opts Options) (*Window, error) {
	if opts.MemSize == 0 || opts.MemSize%4 != 0 {
		return nil, errors.Errorf("invalid simulated memory size 0x%x", opts.MemSize)
	}
	if opts.Signature == 0 {
		opts.Signature = DefaultSignature
	}
	if opts.Config == 0 {
		opts.Config = DefaultConfig
	}
	return &Window{
		opts:   opts,
		mem:    make([]uint32, opts.MemSize/4),
		faults: make(map[regwin.Reg]error),
	}, nil
}

func (w *Window) word() int {
	return int(w.addr/4) % len(w.mem)
}

func (w *Window) ReadReg(ctx context.Context, reg regwin.Reg) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(reg); err != nil {
		return 0, err
	}
	var v uint32
	switch reg {
	case regwin.Signature:
		v = w.opts.Signature
	case regwin.Config:
		v = w.opts.Config
	case regwin.ResetControl:
		v = w.reset
	case regwin.TargetAddress:
		v = w.addr
	case regwin.TargetData:
		v = w.mem[w.word()]
		w.addr += 4
	}
	w.log = append(w.log, Access{Reg: reg, Value: v})
	return v, nil
}

func (w *Window) WriteReg(ctx context.Context, reg regwin.Reg, value uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check(reg); err != nil {
		return err
	}
	w.log = append(w.log, Access{Write: true, Reg: reg, Value: value})
	switch reg {
	case regwin.ResetControl:
		w.reset = value & 1
	case regwin.TargetAddress:
		w.addr = value
	case regwin.TargetData:
		w.mem[w.word()] = value
		w.addr += 4
	}
	return nil
}

func (w *Window) check(reg regwin.Reg) error {
	if w.closed {
		return errors.Errorf("window is closed")
	}
	if reg >= regwin.NumRegs {
		return errors.Errorf("register %s is outside the window", reg)
	}
	if err := w.faults[reg]; err != nil {
		return errors.Annotatef(err, "access to %s", reg)
	}
	return nil
}

func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// InjectFault makes every subsequent access to reg fail with err.
// A nil err clears the fault.
func (w *Window) InjectFault(reg regwin.Reg, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		delete(w.faults, reg)
	} else {
		w.faults[reg] = err
	}
}

// Accesses returns the register accesses made so far.
func (w *Window) Accesses() []Access {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Access(nil), w.log...)
}

func (w *Window) ResetLog() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = nil
}

// InReset reports whether the simulated core is held in reset.
func (w *Window) InReset() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reset&1 != 0
}

// Peek returns target memory bytes starting at byte offset off, in the
// device's little-endian word order, bypassing the register protocol.
func (w *Window) Peek(off, n uint32) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := make([]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		a := off + i
		v := w.mem[int(a/4)%len(w.mem)]
		res = append(res, byte(v>>(8*(a%4))))
	}
	return res
}
