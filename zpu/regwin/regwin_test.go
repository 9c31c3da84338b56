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
package regwin_test

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/zpuino/zpu/regwin"
	"github.com/mongoose-os/zpuino/zpu/regwin/sim"
)

func TestRegString(t *testing.T) {
	assert.Equal(t, "MADDR", regwin.TargetAddress.String())
	assert.Equal(t, "MACCESS", regwin.TargetData.String())
	assert.Equal(t, "REG5", regwin.Reg(5).String())
	assert.Equal(t, uint32(28), regwin.TargetData.Offset())
}

func TestSerialWindow(t *testing.T) {
	ctx := context.Background()
	dev, err := sim.New(sim.Options{MemSize: 0x1000})
	require.NoError(t, err)
	host, board := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- regwin.ServeSerial(ctx, board, dev)
	}()

	w := regwin.NewSerialWindow(host)
	sig, err := w.ReadReg(ctx, regwin.Signature)
	require.NoError(t, err)
	assert.Equal(t, uint32(sim.DefaultSignature), sig)

	// Values containing SLIP delimiter and escape bytes.
	require.NoError(t, w.WriteReg(ctx, regwin.TargetAddress, 0x10))
	require.NoError(t, w.WriteReg(ctx, regwin.TargetData, 0xC0DBC0DB))
	require.NoError(t, w.WriteReg(ctx, regwin.TargetAddress, 0x10))
	v, err := w.ReadReg(ctx, regwin.TargetData)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xC0DBC0DB), v)

	_, err = w.ReadReg(ctx, regwin.Reg(regwin.NumRegs))
	assert.Error(t, err)

	require.NoError(t, w.WriteReg(ctx, regwin.ResetControl, 1))
	assert.True(t, dev.InReset())

	require.NoError(t, w.Close())
	assert.Error(t, <-done)
}

func TestSerialWindowCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := regwin.NewSerialWindow(nopCloser{&bytes.Buffer{}})
	_, err := w.ReadReg(ctx, regwin.Signature)
	assert.Error(t, err)
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }
