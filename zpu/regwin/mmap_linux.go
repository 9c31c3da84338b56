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
// +build linux

package regwin

import (
	"context"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

type mmapWindow struct {
	f    *os.File
	mem  []byte
	regs []byte
}

// OpenMmap maps size bytes of the control window located at physical address
// base of the memory device dev (/dev/mem, or a UIO node with base 0).
func OpenMmap(dev string, base uint64, size int) (Window, error) {
	if size < NumRegs*4 {
		return nil, errors.Errorf("window size %d is too small, need at least %d bytes", size, NumRegs*4)
	}
	f, err := os.OpenFile(dev, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", dev)
	}
	ps := uint64(unix.Getpagesize())
	page := base &^ (ps - 1)
	delta := int(base - page)
	mem, err := unix.Mmap(int(f.Fd()), int64(page), delta+size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "failed to map 0x%x bytes at 0x%08x of %s", size, base, dev)
	}
	glog.V(1).Infof("Mapped %s 0x%08x-0x%08x", dev, base, base+uint64(size)-1)
	return &mmapWindow{f: f, mem: mem, regs: mem[delta : delta+size]}, nil
}

func (w *mmapWindow) reg32(reg Reg) (*uint32, error) {
	if w.regs == nil {
		return nil, errors.Errorf("window is closed")
	}
	off := int(reg.Offset())
	if off+4 > len(w.regs) {
		return nil, errors.Errorf("register %s (0x%x) is outside the window", reg, off)
	}
	return (*uint32)(unsafe.Pointer(&w.regs[off])), nil
}

func (w *mmapWindow) ReadReg(ctx context.Context, reg Reg) (uint32, error) {
	p, err := w.reg32(reg)
	if err != nil {
		return 0, errors.Trace(err)
	}
	value := atomic.LoadUint32(p)
	glog.V(4).Infof("%s == 0x%08x", reg, value)
	return value, nil
}

func (w *mmapWindow) WriteReg(ctx context.Context, reg Reg, value uint32) error {
	p, err := w.reg32(reg)
	if err != nil {
		return errors.Trace(err)
	}
	glog.V(4).Infof("%s = 0x%08x", reg, value)
	atomic.StoreUint32(p, value)
	return nil
}

func (w *mmapWindow) Close() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem, w.regs = nil, nil
	if err2 := w.f.Close(); err == nil {
		err = err2
	}
	return errors.Trace(err)
}
