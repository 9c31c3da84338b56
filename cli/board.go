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
	"fmt"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/cli/devutil"
	"github.com/mongoose-os/zpuino/zpu"
)

func setReset(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("on or off is required")
	}
	var on bool
	switch args[1] {
	case "on", "1":
		on = true
	case "off", "0":
		on = false
	default:
		return errors.Errorf("invalid reset state %q, want on or off", args[1])
	}
	return withSession(ctx, b, func(s *zpu.Session) error {
		if err := s.SetReset(ctx, on); err != nil {
			return errors.Trace(err)
		}
		if on {
			reportf("Core is held in reset")
		} else {
			reportf("Core is running")
		}
		return nil
	})
}

func showInfo(ctx context.Context, b *config.Board) error {
	h, err := devutil.OpenDevice(ctx, b, nil)
	if err != nil {
		return errors.Trace(err)
	}
	defer h.Close()
	info := h.Info()
	inReset, err := h.Reset().InReset(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("Signature: 0x%08x\n", info.Signature)
	fmt.Printf("Revision:  %d\n", info.Revision)
	fmt.Printf("Cores:     %d\n", info.Cores)
	fmt.Printf("Memory:    0x%08x (%d KiB)\n", info.MemSize, info.MemSize/1024)
	if inReset {
		color.New(color.FgYellow).Printf("State:     in reset\n")
	} else {
		color.New(color.FgGreen).Printf("State:     running\n")
	}
	return nil
}

// configInit detects the memory size of the board and saves its description,
// so later commands can skip the probe.
func configInit(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("output file is required")
	}
	outFile := args[1]
	b.MemSize = 0
	h, err := devutil.OpenDevice(ctx, b, &devutil.OpenOpts{AllowProbe: true})
	if err != nil {
		return errors.Trace(err)
	}
	b.MemSize = h.MemSize()
	reportf("Found %s", h.Info())
	if err := h.Close(); err != nil {
		return errors.Trace(err)
	}
	changed, err := b.Save(outFile)
	if err != nil {
		return errors.Annotatef(err, "failed to save %s", outFile)
	}
	if changed {
		reportf("Wrote %s", outFile)
	} else {
		reportf("%s is up to date", outFile)
	}
	reportf("Probing left the core in reset, run \"reset off\" or load a sketch to start it")
	return nil
}
