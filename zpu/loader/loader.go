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
// Package loader installs a sketch into ZPUino target memory: it validates
// and converts the container, then holds the core in reset, writes the image
// at the load offset and lets the core run.
//
// If anything fails after reset has been asserted, the core is left in
// reset.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/zpuino/zpu/sketch"
)

// State is a point reached by the load sequence.
type State int

const (
	Start State = iota
	HeaderValidated
	SizeComputed
	PayloadLoaded
	ByteSwapped
	ResetAsserted
	Written
	ResetReleased
)

var stateNames = []string{
	"start", "header validated", "size computed", "payload loaded",
	"byte swapped", "reset asserted", "written", "reset released",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state %d", int(s))
}

// Step identifies what failed.
type Step int

const (
	StepOpenSource Step = iota
	StepBadSignature
	StepBadBoardID
	StepNegativeSize
	StepShortRead
	StepAllocate
	StepOpenDevice
	StepAssertReset
	StepSeek
	StepShortWrite
	StepReleaseReset
	StepCloseDevice
)

var stepNames = []string{
	"open source file", "bad signature", "bad board id", "negative size",
	"short read", "allocate", "open device", "assert reset", "seek",
	"short write", "release reset", "close device",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("step %d", int(s))
}

var ErrShortWrite = errors.New("short write")

// Error is returned when the load sequence fails.
type Error struct {
	Step Step
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Err)
}

// Cause returns the underlying cause, so errors.Cause sees through Error.
func (e *Error) Cause() error {
	return errors.Cause(e.Err)
}

// Underlying returns the wrapped error.
func (e *Error) Underlying() error {
	return e.Err
}

func fail(step Step, err error) error {
	glog.V(1).Infof("load failed at %s: %s", step, err)
	return &Error{Step: step, Err: err}
}

// StepOf returns the failed step recorded in err, if any.
func StepOf(err error) (Step, bool) {
	for err != nil {
		if le, ok := err.(*Error); ok {
			return le.Step, true
		}
		u, ok := err.(interface{ Underlying() error })
		if !ok {
			break
		}
		err = u.Underlying()
	}
	return 0, false
}

// Target is an open session on the device memory.
type Target interface {
	SetReset(ctx context.Context, on bool) error
	Seek(ctx context.Context, offset int64, whence int) (int64, error)
	Write(ctx context.Context, p []byte) (int, error)
	Close() error
}

// OpenFunc opens the device. It is only called once the sketch has been
// validated and prepared.
type OpenFunc func(ctx context.Context) (Target, error)

type Opts struct {
	// LoadOffset is where the image is written. Zero selects sketch.LoadOffset.
	LoadOffset int64
	// Progress, if set, is called as each state is reached.
	Progress func(State)
}

func (opts *Opts) loadOffset() int64 {
	if opts == nil || opts.LoadOffset == 0 {
		return sketch.LoadOffset
	}
	return opts.LoadOffset
}

func (opts *Opts) report(s State) {
	glog.V(1).Infof("load: %s", s)
	if opts != nil && opts.Progress != nil {
		opts.Progress(s)
	}
}

// LoadFile loads the sketch container at path into the device opened by open.
func LoadFile(ctx context.Context, path string, open OpenFunc, opts *Opts) error {
	f, err := os.Open(path)
	if err != nil {
		return fail(StepOpenSource, errors.Annotatef(err, "cannot open"))
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return fail(StepOpenSource, errors.Trace(err))
	}
	data, err := Prepare(f, fi.Size(), opts)
	if err != nil {
		return err
	}
	return Install(ctx, data, open, opts)
}

// Prepare reads a container of the given total size from r and returns the
// payload aligned, zero padded and converted to device byte order.
func Prepare(r io.Reader, size int64, opts *Opts) ([]byte, error) {
	opts.report(Start)
	if _, err := sketch.ReadHeader(r); err != nil {
		switch errors.Cause(err) {
		case sketch.ErrBadSignature:
			return nil, fail(StepBadSignature, err)
		case sketch.ErrBadBoard:
			return nil, fail(StepBadBoardID, err)
		case sketch.ErrTruncated:
			return nil, fail(StepNegativeSize, err)
		}
		return nil, fail(StepShortRead, err)
	}
	opts.report(HeaderValidated)

	payloadSize, err := sketch.PayloadSize(size)
	if err != nil {
		return nil, fail(StepNegativeSize, err)
	}
	opts.report(SizeComputed)

	buf, err := sketch.NewBuffer(payloadSize)
	if err != nil {
		return nil, fail(StepAllocate, err)
	}
	if err := sketch.ReadPayload(r, buf, payloadSize); err != nil {
		return nil, fail(StepShortRead, err)
	}
	opts.report(PayloadLoaded)

	sketch.SwapWords(buf)
	opts.report(ByteSwapped)
	glog.V(1).Infof("sketch: %d bytes, aligned %d", payloadSize, len(buf))
	return buf, nil
}

// Install writes a prepared image: assert reset, seek to the load offset,
// write, release reset. A failure to close the device is reported only if
// everything else succeeded.
func Install(ctx context.Context, data []byte, open OpenFunc, opts *Opts) (err error) {
	t, err := open(ctx)
	if err != nil {
		return fail(StepOpenDevice, errors.Trace(err))
	}
	defer func() {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = fail(StepCloseDevice, errors.Annotatef(cerr, "failed to close device"))
		}
	}()

	if err := t.SetReset(ctx, true); err != nil {
		return fail(StepAssertReset, errors.Trace(err))
	}
	opts.report(ResetAsserted)

	off := opts.loadOffset()
	pos, err := t.Seek(ctx, off, io.SeekStart)
	if err != nil {
		return fail(StepSeek, errors.Annotatef(err, "cannot seek to 0x%x", off))
	}
	if pos != off {
		return fail(StepSeek, errors.Errorf("seek to 0x%x ended at 0x%x", off, pos))
	}

	n, err := t.Write(ctx, data)
	if err != nil {
		return fail(StepShortWrite, errors.Annotatef(err, "wrote %d of %d bytes", n, len(data)))
	}
	if n != len(data) {
		return fail(StepShortWrite, errors.Annotatef(ErrShortWrite, "wrote %d of %d bytes", n, len(data)))
	}
	opts.report(Written)

	glog.Infof("Removing reset.")
	if err := t.SetReset(ctx, false); err != nil {
		return fail(StepReleaseReset, errors.Trace(err))
	}
	opts.report(ResetReleased)
	return nil
}
