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
package devutil

import (
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flock "github.com/theckman/go-flock"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/common/multierror"
	"github.com/mongoose-os/zpuino/zpu"
	"github.com/mongoose-os/zpuino/zpu/regwin"
	"github.com/mongoose-os/zpuino/zpu/regwin/sim"
)

// Handle is an attached device together with the lock that keeps other
// processes away from its control window.
type Handle struct {
	*zpu.Device
	lock *flock.Flock
}

// OpenWindow opens the control window described by b.
func OpenWindow(b *config.Board) (regwin.Window, error) {
	switch b.Transport {
	case config.TransportMmap:
		return regwin.OpenMmap(b.MemDevice, b.BaseAddr, b.WindowSize)
	case config.TransportSerial:
		return regwin.OpenSerial(b.Port, b.BaudRate)
	case config.TransportSim:
		return sim.New(sim.Options{MemSize: b.SimMemSize})
	}
	return nil, errors.NotValidf("transport %q", b.Transport)
}

// ErrMemSizeUnknown is returned by OpenDevice when the memory size of real
// hardware is not configured and probing was not allowed.
var ErrMemSizeUnknown = errors.New("memory size is not known")

type OpenOpts struct {
	// AllowProbe permits detecting an unknown memory size. Probing destroys
	// target memory contents and leaves the core in reset.
	AllowProbe bool
}

// checkMemSize refuses to probe real hardware unless opts allow it. A
// simulated board is created afresh on every open, so probing it is harmless.
func checkMemSize(b *config.Board, opts *OpenOpts) error {
	if b.MemSize != 0 || b.Transport == config.TransportSim {
		return nil
	}
	if opts != nil && opts.AllowProbe {
		return nil
	}
	return errors.Annotatef(ErrMemSizeUnknown,
		"detecting it would overwrite target memory; run \"config-init <board.yaml>\" "+
			"and pass the file with --config, or set --mem-size")
}

// OpenDevice locks and attaches the board described by b. If the memory size
// is not known and opts allow it, it is detected by probing.
func OpenDevice(ctx context.Context, b *config.Board, opts *OpenOpts) (*Handle, error) {
	if err := checkMemSize(b, opts); err != nil {
		return nil, errors.Trace(err)
	}
	h := &Handle{}
	if b.LockFile != "" {
		h.lock = flock.NewFlock(b.LockFile)
		locked, err := h.lock.TryLock()
		if err != nil {
			return nil, errors.Annotatef(err, "failed to lock %s", b.LockFile)
		}
		if !locked {
			return nil, errors.Annotatef(zpu.ErrBusy, "%s is held by another process", b.LockFile)
		}
		glog.V(1).Infof("Locked %s", b.LockFile)
	}
	win, err := OpenWindow(b)
	if err != nil {
		h.unlock()
		return nil, errors.Annotatef(err, "failed to open control window")
	}
	h.Device, err = zpu.Attach(ctx, win, &zpu.AttachOpts{MemSize: b.MemSize})
	if err != nil {
		win.Close()
		h.unlock()
		return nil, errors.Annotatef(err, "failed to attach")
	}
	return h, nil
}

func (h *Handle) unlock() error {
	if h.lock == nil {
		return nil
	}
	return errors.Annotatef(h.lock.Unlock(), "failed to unlock %s", h.lock.Path())
}

func (h *Handle) Close() error {
	return multierror.Append(nil, h.Device.Close(), h.unlock())
}
