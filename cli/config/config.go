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
// Package config describes how to reach a board, combining a YAML board
// file with command line flags.
package config

import (
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/common/ourio"
	"github.com/mongoose-os/zpuino/zpu"
)

const (
	TransportMmap   = "mmap"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

type Board struct {
	Transport  string `yaml:"transport"`
	MemDevice  string `yaml:"mem_device,omitempty"`
	BaseAddr   uint64 `yaml:"base_addr,omitempty"`
	WindowSize int    `yaml:"window_size,omitempty"`
	Port       string `yaml:"port,omitempty"`
	BaudRate   int    `yaml:"baud_rate,omitempty"`
	MemSize    uint32 `yaml:"mem_size,omitempty"`
	SimMemSize uint32 `yaml:"sim_mem_size,omitempty"`
	LockFile   string `yaml:"lock_file,omitempty"`
	LoadOffset int64  `yaml:"load_offset,omitempty"`
}

// Resolve builds the board description from the flags in fs. Flags that were
// set (on the command line or via environment) win over the file named by
// --config, which in turn wins over flag defaults.
func Resolve(fs *flag.FlagSet) (*Board, error) {
	b := &Board{}
	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		if err := ourio.ReadYAMLFile(f.Value.String(), b); err != nil {
			return nil, errors.Trace(err)
		}
	}
	use := func(name string, inFile bool) bool {
		f := fs.Lookup(name)
		return f != nil && (f.Changed || !inFile)
	}
	if use("transport", b.Transport != "") {
		b.Transport, _ = fs.GetString("transport")
	}
	if use("mem-device", b.MemDevice != "") {
		b.MemDevice, _ = fs.GetString("mem-device")
	}
	if use("base-addr", b.BaseAddr != 0) {
		b.BaseAddr, _ = fs.GetUint64("base-addr")
	}
	if use("window-size", b.WindowSize != 0) {
		b.WindowSize, _ = fs.GetInt("window-size")
	}
	if use("port", b.Port != "") {
		b.Port, _ = fs.GetString("port")
	}
	if use("baud-rate", b.BaudRate != 0) {
		b.BaudRate, _ = fs.GetInt("baud-rate")
	}
	if use("mem-size", b.MemSize != 0) {
		b.MemSize, _ = fs.GetUint32("mem-size")
	}
	if use("sim-mem-size", b.SimMemSize != 0) {
		b.SimMemSize, _ = fs.GetUint32("sim-mem-size")
	}
	if use("lock-file", b.LockFile != "") {
		b.LockFile, _ = fs.GetString("lock-file")
	}
	if use("load-offset", b.LoadOffset != 0) {
		b.LoadOffset, _ = fs.GetInt64("load-offset")
	}
	return b, errors.Trace(b.Validate())
}

func (b *Board) Validate() error {
	switch b.Transport {
	case TransportMmap:
		if b.MemDevice == "" {
			return errors.Errorf("memory device is not set")
		}
	case TransportSerial:
		if b.Port == "" {
			return errors.Errorf("--port is required for the serial transport")
		}
	case TransportSim:
		if !zpu.ValidMemSize(b.SimMemSize) {
			return errors.Errorf("invalid simulated memory size 0x%x", b.SimMemSize)
		}
	default:
		return errors.NotValidf("transport %q", b.Transport)
	}
	if b.MemSize != 0 && !zpu.ValidMemSize(b.MemSize) {
		return errors.Errorf("invalid memory size 0x%x", b.MemSize)
	}
	if b.LoadOffset < 0 || b.LoadOffset%4 != 0 {
		return errors.Errorf("invalid load offset 0x%x", b.LoadOffset)
	}
	return nil
}

// Save writes the board description as YAML. Returns true if the file changed.
func (b *Board) Save(filename string) (bool, error) {
	return ourio.WriteYAMLFileIfDifferent(filename, b, 0644)
}
