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

	"github.com/juju/errors"

	"github.com/mongoose-os/zpuino/zpu/regwin"
)

// WordChannel is an addressable port into target memory. After SetAddress,
// each ReadWord or WriteWord accesses the next consecutive word.
type WordChannel interface {
	SetAddress(ctx context.Context, addr uint32) error
	ReadWord(ctx context.Context) (uint32, error)
	WriteWord(ctx context.Context, value uint32) error
}

// regChannel drives the indirect register pair of a control window.
type regChannel struct {
	win regwin.Window
}

// NewRegChannel drives target memory through the TargetAddress and
// TargetData registers of win.
func NewRegChannel(win regwin.Window) WordChannel {
	return &regChannel{win: win}
}

func (rc *regChannel) SetAddress(ctx context.Context, addr uint32) error {
	return errors.Annotatef(rc.win.WriteReg(ctx, regwin.TargetAddress, addr), "failed to set address 0x%08x", addr)
}

func (rc *regChannel) ReadWord(ctx context.Context) (uint32, error) {
	v, err := rc.win.ReadReg(ctx, regwin.TargetData)
	return v, errors.Trace(err)
}

func (rc *regChannel) WriteWord(ctx context.Context, value uint32) error {
	return errors.Trace(rc.win.WriteReg(ctx, regwin.TargetData, value))
}
