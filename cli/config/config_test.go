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
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("config-test", flag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("transport", "mmap", "")
	fs.String("mem-device", "/dev/mem", "")
	fs.Uint64("base-addr", 0x43C00000, "")
	fs.Int("window-size", 0x1000, "")
	fs.String("port", "", "")
	fs.Int("baud-rate", 115200, "")
	fs.Uint32("mem-size", 0, "")
	fs.Uint32("sim-mem-size", 0x8000, "")
	fs.String("lock-file", "/tmp/zpuctl.lock", "")
	fs.Int64("load-offset", 0x1008, "")
	return fs
}

func tempFile(t *testing.T, data string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "config_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	fn := filepath.Join(dir, "board.yaml")
	require.NoError(t, ioutil.WriteFile(fn, []byte(data), 0644))
	return fn
}

func TestResolveDefaults(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	b, err := Resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, &Board{
		Transport:  TransportMmap,
		MemDevice:  "/dev/mem",
		BaseAddr:   0x43C00000,
		WindowSize: 0x1000,
		BaudRate:   115200,
		SimMemSize: 0x8000,
		LockFile:   "/tmp/zpuctl.lock",
		LoadOffset: 0x1008,
	}, b)
}

func TestResolveFileAndFlags(t *testing.T) {
	fn := tempFile(t, `
transport: sim
sim_mem_size: 0x4000
mem_size: 0x4000
load_offset: 0x2000
lock_file: /run/zpu.lock
`)
	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", fn, "--lock-file=/tmp/other.lock"}))
	b, err := Resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, TransportSim, b.Transport)
	assert.Equal(t, uint32(0x4000), b.SimMemSize)
	assert.Equal(t, uint32(0x4000), b.MemSize)
	assert.Equal(t, int64(0x2000), b.LoadOffset)
	assert.Equal(t, "/tmp/other.lock", b.LockFile)
	// Not in the file, taken from flag defaults.
	assert.Equal(t, uint64(0x43C00000), b.BaseAddr)
}

func TestResolveInvalid(t *testing.T) {
	cases := [][]string{
		{"--transport=jtag"},
		{"--transport=serial"},
		{"--transport=sim", "--sim-mem-size=0x3000"},
		{"--mem-size=0x1234"},
		{"--load-offset=0x1002"},
	}
	for _, args := range cases {
		fs := newFlagSet()
		require.NoError(t, fs.Parse(args))
		_, err := Resolve(fs)
		assert.Error(t, err, "%v", args)
	}
	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", tempFile(t, "colour: blue\n")}))
	_, err := Resolve(fs)
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	fn := filepath.Join(filepath.Dir(tempFile(t, "")), "saved.yaml")
	b := &Board{Transport: TransportSerial, Port: "/dev/ttyUSB0", BaudRate: 230400, MemSize: 0x8000, LoadOffset: 0x1008}
	changed, err := b.Save(fn)
	require.NoError(t, err)
	assert.True(t, changed)

	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", fn}))
	b2, err := Resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, b.Port, b2.Port)
	assert.Equal(t, b.BaudRate, b2.BaudRate)
	assert.Equal(t, b.MemSize, b2.MemSize)
}
