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
package regwin

import (
	"context"
	"fmt"
)

// Reg is the index of a 32-bit register in the ZPUino control window.
// The byte offset of a register is Reg * 4.
type Reg uint8

const (
	Signature    Reg = 0
	Config       Reg = 1
	ResetControl Reg = 3
	// TargetAddress holds the byte address used by the next TargetData access.
	TargetAddress Reg = 4
	// TargetData is the data port into target memory. The address advances by
	// one word after every access.
	TargetData Reg = 7

	// NumRegs is the number of register slots the window must cover.
	NumRegs = 8
)

// Window is a raw register read/write primitive over the control window.
type Window interface {
	ReadReg(ctx context.Context, reg Reg) (uint32, error)
	WriteReg(ctx context.Context, reg Reg, value uint32) error
	Close() error
}

func (r Reg) Offset() uint32 {
	return uint32(r) * 4
}

func (r Reg) String() string {
	switch r {
	case Signature:
		return "SIGNATURE"
	case Config:
		return "CONFIG"
	case ResetControl:
		return "RSTCTL"
	case TargetAddress:
		return "MADDR"
	case TargetData:
		return "MACCESS"
	}
	return fmt.Sprintf("REG%d", uint8(r))
}
