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

	serial "github.com/cesanta/go-serial/serial"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/zpu/regwin"
	"github.com/mongoose-os/zpuino/zpu/regwin/sim"
)

// simBridge serves a simulated ZPUino on a serial port, so that the serial
// transport can be exercised without hardware (e.g. over a null-modem pair).
func simBridge(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("serial port is required")
	}
	portName := args[1]
	win, err := sim.New(sim.Options{MemSize: b.SimMemSize})
	if err != nil {
		return errors.Trace(err)
	}
	defer win.Close()
	port, err := serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(b.BaudRate),
		DataBits:        8,
		ParityMode:      serial.PARITY_NONE,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return errors.Annotatef(err, "failed to open %s", portName)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()
	reportf("Serving simulated ZPUino with 0x%x bytes memory on %s", b.SimMemSize, portName)
	err = regwin.ServeSerial(ctx, port, win)
	port.Close()
	if ctx.Err() != nil {
		return errors.Trace(ctx.Err())
	}
	return errors.Trace(err)
}
