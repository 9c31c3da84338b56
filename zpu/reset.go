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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/zpuino/zpu/regwin"
)

// ResetController holds or releases the core via bit 0 of RSTCTL.
type ResetController struct {
	win regwin.Window
}

// Assert holds the core in reset.
func (rc *ResetController) Assert(ctx context.Context) error {
	return rc.Set(ctx, true)
}

// Release lets the core run.
func (rc *ResetController) Release(ctx context.Context) error {
	return rc.Set(ctx, false)
}

func (rc *ResetController) Set(ctx context.Context, on bool) error {
	regLock.Lock()
	defer regLock.Unlock()
	return rc.set(ctx, on)
}

// InReset reads back the reset state of the core.
func (rc *ResetController) InReset(ctx context.Context) (bool, error) {
	regLock.Lock()
	defer regLock.Unlock()
	v, err := rc.win.ReadReg(ctx, regwin.ResetControl)
	if err != nil {
		return false, errors.Annotatef(err, "failed to read reset state")
	}
	return v&1 != 0, nil
}

// set must be called with regLock held.
func (rc *ResetController) set(ctx context.Context, on bool) error {
	var v uint32
	if on {
		v = 1
	}
	if err := rc.win.WriteReg(ctx, regwin.ResetControl, v); err != nil {
		return errors.Annotatef(err, "failed to set reset to %t", on)
	}
	if glog.V(2) {
		now, err := rc.win.ReadReg(ctx, regwin.ResetControl)
		glog.Infof("Reset %t, RSTCTL now 0x%08x (err %v)", on, now, err)
	}
	return nil
}
