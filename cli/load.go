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
package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/cli/devutil"
	"github.com/mongoose-os/zpuino/common/multierror"
	"github.com/mongoose-os/zpuino/zpu"
	"github.com/mongoose-os/zpuino/zpu/loader"
)

type loadTarget struct {
	*zpu.Session
	h *devutil.Handle
}

func (t *loadTarget) Close() error {
	return multierror.Append(nil, t.Session.Close(), t.h.Close())
}

// openTarget attaches the board lazily, so that a broken sketch is rejected
// before the device is touched.
func openTarget(b *config.Board) loader.OpenFunc {
	return func(ctx context.Context) (loader.Target, error) {
		h, err := devutil.OpenDevice(ctx, b, &devutil.OpenOpts{AllowProbe: true})
		if err != nil {
			return nil, errors.Trace(err)
		}
		s, err := h.Open(ctx)
		if err != nil {
			h.Close()
			return nil, errors.Trace(err)
		}
		return &loadTarget{Session: s, h: h}, nil
	}
}

func loadSketch(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("sketch file is required")
	}
	fname := args[1]
	opts := &loader.Opts{
		LoadOffset: b.LoadOffset,
		Progress: func(s loader.State) {
			switch s {
			case loader.SizeComputed:
				reportf("Loading %s...", fname)
			case loader.ResetAsserted:
				reportf("Writing at 0x%x...", b.LoadOffset)
			}
		},
	}
	if err := loader.LoadFile(ctx, fname, openTarget(b), opts); err != nil {
		if step, ok := loader.StepOf(err); ok && step > loader.StepAssertReset && step <= loader.StepReleaseReset {
			reportf("The core was left in reset")
		}
		return errors.Trace(err)
	}
	color.New(color.FgGreen).Fprintf(color.Error, "Sketch started\n")
	return nil
}
