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
// Package zpu presents the memory of a ZPUino soft core, reachable only
// through the indirect MADDR/MACCESS register pair of its control window, as
// a seekable word-granular memory.
//
// A Device is attached once per control window. Attach verifies the
// peripheral signature and sizes target memory by probing for address
// aliasing. Memory is then accessed through a Session obtained from Open;
// only one session may be open on a device at a time.
//
// All register window accesses, from all devices in the process, are
// serialized by a single lock.
package zpu

import (
	"github.com/juju/errors"
)

var (
	ErrBusy         = errors.New("device is busy")
	ErrClosed       = errors.New("session is closed")
	ErrUnaligned    = errors.New("transfer size must be a multiple of 4 bytes")
	ErrOutOfRange   = errors.New("offset is out of range")
	ErrBadWhence    = errors.New("invalid whence")
	ErrBadSignature = errors.New("invalid signature")
	ErrNoMemSize    = errors.New("cannot determine memory size")
)
