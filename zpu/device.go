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
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/zpuino/zpu/regwin"
)

const (
	signatureMask  = 0xFFFFFF00
	signatureValue = 0x5A505500
)

// regLock serializes every register window access in the process.
var regLock sync.Mutex

// Info describes an attached peripheral.
type Info struct {
	Signature uint32
	Revision  uint16
	Cores     int
	MemSize   uint32
}

func (i Info) String() string {
	return fmt.Sprintf("ZPUino rev %d, %d cores, 0x%08x bytes memory", i.Revision, i.Cores, i.MemSize)
}

// DecodeConfig splits the CONFIG register into revision and core count.
func DecodeConfig(config uint32) (uint16, int) {
	return uint16(config & 0xFFFF), 1 + int((config>>16)&0xFF)
}

// Device is an attached ZPUino peripheral.
type Device struct {
	win   regwin.Window
	ch    WordChannel
	reset *ResetController
	info  Info

	// Guarded by regLock.
	cursor uint32
	isOpen bool
}

// AttachOpts tune Attach.
type AttachOpts struct {
	// MemSize, if non-zero, is the known memory size. Probing, which destroys
	// memory contents and asserts reset, is then skipped.
	MemSize uint32
}

// Attach identifies the peripheral behind win and detects its memory size.
// Unless the size is given in opts, the core is left in reset and the
// contents of target memory are destroyed.
func Attach(ctx context.Context, win regwin.Window, opts *AttachOpts) (*Device, error) {
	regLock.Lock()
	defer regLock.Unlock()

	sig, err := win.ReadReg(ctx, regwin.Signature)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read signature")
	}
	if sig&signatureMask != signatureValue {
		return nil, errors.Annotatef(ErrBadSignature, "0x%08x", sig)
	}
	config, err := win.ReadReg(ctx, regwin.Config)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read config")
	}
	d := &Device{
		win:   win,
		ch:    NewRegChannel(win),
		reset: &ResetController{win: win},
	}
	d.info.Signature = sig
	d.info.Revision, d.info.Cores = DecodeConfig(config)

	if opts != nil && opts.MemSize != 0 {
		if !ValidMemSize(opts.MemSize) {
			return nil, errors.Errorf("invalid memory size 0x%x", opts.MemSize)
		}
		d.info.MemSize = opts.MemSize
	} else {
		// Probe writes must not be executed.
		if err := d.reset.set(ctx, true); err != nil {
			return nil, errors.Trace(err)
		}
		d.info.MemSize, err = DetectMemSize(ctx, d.ch)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	glog.Infof("Found %s", d.info)
	return d, nil
}

// ValidMemSize reports whether size is one DetectMemSize can produce.
func ValidMemSize(size uint32) bool {
	return size >= probeStartAddr && size < probeLimit && size&(size-1) == 0
}

// Info returns what was learned about the peripheral at attach time.
func (d *Device) Info() Info {
	return d.info
}

// MemSize returns the target memory size in bytes.
func (d *Device) MemSize() uint32 {
	return d.info.MemSize
}

// Reset returns the reset controller of the core.
func (d *Device) Reset() *ResetController {
	return d.reset
}

// Open starts an exclusive session positioned at offset 0.
func (d *Device) Open(ctx context.Context) (*Session, error) {
	regLock.Lock()
	defer regLock.Unlock()
	if d.isOpen {
		glog.Infof("Device busy")
		return nil, errors.Trace(ErrBusy)
	}
	if err := d.ch.SetAddress(ctx, 0); err != nil {
		return nil, errors.Trace(err)
	}
	d.cursor = 0
	d.isOpen = true
	return &Session{d: d}, nil
}

// Close releases the control window. Open sessions become unusable.
func (d *Device) Close() error {
	regLock.Lock()
	defer regLock.Unlock()
	d.isOpen = false
	return errors.Annotatef(d.win.Close(), "failed to close register window")
}
