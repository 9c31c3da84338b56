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
	"os"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/cli/flags"
	"github.com/mongoose-os/zpuino/common/pflagenv"
	"github.com/mongoose-os/zpuino/version"
)

const (
	envPrefix = "ZPU_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type handler func(ctx context.Context, b *config.Board) error

type command struct {
	name     string
	handler  handler
	args     string
	short    string
	required []string
	optional []string
}

var commands = []command{
	{"load", loadSketch, "<sketch.bin>", `Load a sketch into the ZPUino and start it`, nil, []string{"config", "transport", "load-offset", "mem-size"}},
	{"read", memRead, "<addr> <length> <file|->", `Read target memory to a file`, nil, []string{"config", "transport", "mem-size"}},
	{"write", memWrite, "<addr> <file|->", `Write a file into target memory`, nil, []string{"config", "transport", "mem-size"}},
	{"reset", setReset, "on|off", `Hold the core in reset or let it run`, nil, []string{"config", "transport", "mem-size"}},
	{"info", showInfo, "", `Show peripheral revision, memory size and reset state`, nil, []string{"config", "transport", "mem-size"}},
	{"config-init", configInit, "<board.yaml>", `Detect memory size and save the board description`, nil, []string{"config", "transport", "base-addr", "port"}},
	{"pack", packSketch, "<image.bin> <sketch.bin>", `Wrap a raw program image into a sketch container`, nil, nil},
	{"sim-bridge", simBridge, "<port>", `Serve a simulated ZPUino on a serial port`, nil, []string{"sim-mem-size", "baud-rate"}},
}

func run(ctx context.Context) error {
	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := checkFlags(c.required); err != nil {
			return errors.Trace(err)
		}
		b, err := config.Resolve(flag.CommandLine)
		if err != nil {
			return errors.Annotatef(err, "invalid board configuration")
		}
		return errors.Trace(c.handler(ctx, b))
	}
	usage()
	return errors.Errorf("unknown command %q", name)
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Printf("ZPUino control tool %s\n", version.String())
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	if *flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *flags.Timeout)
		defer cancel()
	}

	err := run(ctx)
	glog.Flush()
	if err != nil {
		glog.Infof("Error: %+v", err)
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
