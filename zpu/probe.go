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
)

const (
	probeSentinel  = 0x5A5AA5A5
	probeStartAddr = 0x100
	probeLimit     = 0x40000000
)

// DetectMemSize sizes target memory by address aliasing: it writes a
// sentinel at increasing power-of-two byte addresses and reads word 0 back.
// The first address at which the sentinel shows up in word 0 wraps around
// and is therefore the memory size.
//
// Probing overwrites word 0 and every probed word. The core must be held in
// reset and nobody else may be using the memory.
func DetectMemSize(ctx context.Context, ch WordChannel) (uint32, error) {
	if err := ch.SetAddress(ctx, 0); err != nil {
		return 0, errors.Trace(err)
	}
	if err := ch.WriteWord(ctx, 0); err != nil {
		return 0, errors.Annotatef(err, "failed to clear word 0")
	}
	for addr := uint32(probeStartAddr); addr != probeLimit; addr <<= 1 {
		if err := ch.SetAddress(ctx, addr); err != nil {
			return 0, errors.Trace(err)
		}
		if err := ch.WriteWord(ctx, probeSentinel); err != nil {
			return 0, errors.Annotatef(err, "failed to write probe at 0x%08x", addr)
		}
		if err := ch.SetAddress(ctx, 0); err != nil {
			return 0, errors.Trace(err)
		}
		v, err := ch.ReadWord(ctx)
		if err != nil {
			return 0, errors.Annotatef(err, "failed to read back word 0")
		}
		glog.V(3).Infof("probe 0x%08x: word 0 == 0x%08x", addr, v)
		if v == probeSentinel {
			return addr, nil
		}
	}
	return 0, errors.Trace(ErrNoMemSize)
}
