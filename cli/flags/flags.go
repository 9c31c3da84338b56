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
package flags

import (
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/zpu/sketch"
)

var (
	Config = flag.StringP("config", "c", "", "YAML file describing how to reach the board. "+
		"Flags given explicitly take precedence over values from the file.")

	Transport  = flag.String("transport", "mmap", "How to reach the ZPUino control window: mmap, serial or sim")
	MemDevice  = flag.String("mem-device", "/dev/mem", "Memory device to map the control window from (/dev/mem or /dev/uioN)")
	BaseAddr   = flag.Uint64("base-addr", 0x43C00000, "Physical address of the control window")
	WindowSize = flag.Int("window-size", 0x1000, "Size of the control window, bytes")
	Port       = flag.String("port", "", "Serial port of the register bridge, for --transport=serial")
	BaudRate   = flag.Int("baud-rate", 115200, "Serial port speed")
	MemSize    = flag.Uint32("mem-size", 0, "Target memory size. If 0, only load and config-init may detect it by "+
		"probing, which clobbers target memory and holds the core in reset")
	SimMemSize = flag.Uint32("sim-mem-size", 0x8000, "Memory size of the simulated ZPUino, for --transport=sim")
	LockFile   = flag.String("lock-file", "/tmp/zpuctl.lock", "Lock file guarding the control window against "+
		"concurrent use by other processes")
	LoadOffset = flag.Int64("load-offset", sketch.LoadOffset, "Where in target memory to load sketches")
	Timeout    = flag.Duration("timeout", 0, "Give up if the command takes longer than this. 0 - no limit")
)
