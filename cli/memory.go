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
package main

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/cli/devutil"
	"github.com/mongoose-os/zpuino/zpu"
)

// withSession attaches the board and runs f with an open memory session.
func withSession(ctx context.Context, b *config.Board, f func(s *zpu.Session) error) (err error) {
	h, err := devutil.OpenDevice(ctx, b, nil)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if cerr := h.Close(); err == nil {
			err = cerr
		}
	}()
	s, err := h.Open(ctx)
	if err != nil {
		return errors.Annotatef(err, "failed to open memory")
	}
	defer s.Close()
	return f(s)
}

func parseAddr(s, what string) (int64, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid %s", what)
	}
	return int64(v), nil
}

func memRead(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 4 {
		return errors.Errorf("address, length and output file are required")
	}
	addr, err := parseAddr(args[1], "address")
	if err != nil {
		return errors.Trace(err)
	}
	length, err := parseAddr(args[2], "length")
	if err != nil {
		return errors.Trace(err)
	}
	outFile := args[3]

	data := make([]byte, length)
	var n int
	err = withSession(ctx, b, func(s *zpu.Session) error {
		if _, err := s.Seek(ctx, addr, io.SeekStart); err != nil {
			return errors.Annotatef(err, "invalid address 0x%x", addr)
		}
		var err error
		n, err = s.Read(ctx, data)
		if err == nil && n < len(data) {
			reportf("Read truncated at end of memory (0x%x), got %d bytes", s.MemSize(), n)
		}
		return errors.Trace(err)
	})
	if err != nil {
		return errors.Trace(err)
	}

	if outFile == "-" {
		_, err = os.Stdout.Write(data[:n])
	} else {
		err = ioutil.WriteFile(outFile, data[:n], 0644)
		if err == nil {
			reportf("Wrote %s", outFile)
		}
	}
	return errors.Trace(err)
}

func memWrite(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 3 {
		return errors.Errorf("address and file are required")
	}
	addr, err := parseAddr(args[1], "address")
	if err != nil {
		return errors.Trace(err)
	}
	inFile := args[2]
	data, err := readInput(inFile)
	if err != nil {
		return errors.Annotatef(err, "failed to read %s", inFile)
	}

	return withSession(ctx, b, func(s *zpu.Session) error {
		if _, err := s.Seek(ctx, addr, io.SeekStart); err != nil {
			return errors.Annotatef(err, "invalid address 0x%x", addr)
		}
		n, err := s.Write(ctx, data)
		if err != nil {
			return errors.Annotatef(err, "write failed after %d bytes", n)
		}
		if n < len(data) {
			reportf("Write truncated at end of memory (0x%x), %d of %d bytes written", s.MemSize(), n, len(data))
		} else {
			reportf("Wrote %d bytes at 0x%08x", n, addr)
		}
		return nil
	})
}
