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
	"io/ioutil"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/zpuino/cli/config"
	"github.com/mongoose-os/zpuino/zpu/sketch"
)

// packSketch wraps a raw big-endian program image into a loadable container.
func packSketch(ctx context.Context, b *config.Board) error {
	args := flag.Args()
	if len(args) != 3 {
		return errors.Errorf("input image and output file are required")
	}
	inFile, outFile := args[1], args[2]
	img, err := readInput(inFile)
	if err != nil {
		return errors.Annotatef(err, "failed to read %s", inFile)
	}
	data := sketch.Build(img)
	sk, err := sketch.Parse(data)
	if err != nil {
		return errors.Annotatef(err, "image %s cannot be packed", inFile)
	}
	if err := ioutil.WriteFile(outFile, data, 0644); err != nil {
		return errors.Trace(err)
	}
	reportf("Wrote %s: %d bytes payload, %d bytes on target", outFile, sk.PayloadSize, len(sk.Data))
	return nil
}
