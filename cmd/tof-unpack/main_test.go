// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"compress/flate"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/raw"
	"github.com/klauspost/compress/zstd"
	"go-hep.org/x/hep/lcio"
)

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-unpack-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	msg.SetOutput(io.Discard)
	defer msg.SetOutput(os.Stdout)

	var (
		w0   = tof.WindowIndex(5, 0)
		w1   = tof.WindowIndex(5, 2*geo.BCsPerWindow)
		bc0  = tof.Window{Index: w0}.FirstBC()
		bc1  = tof.Window{Index: w1}.FirstBC()
		want = []tof.Window{
			{
				Index: w0,
				Digits: []tof.Digit{
					{Channel: int32(geo.ECH(0, 1, 0, 2, 3)), TDC: 100, TOT: 30, BC: bc0 + 4},
					{Channel: int32(geo.ECH(0, 3, 1, 0, 0)), TDC: 5, TOT: 12, BC: bc0 + 64},
				},
			},
			{
				Index: w1,
				Digits: []tof.Digit{
					{Channel: int32(geo.ECH(0, 9, 1, 14, 7)), TDC: 1023, TOT: 2, BC: bc1 + 1000},
				},
			},
		}
	)

	link := new(bytes.Buffer)
	enc := raw.NewEncoder([]io.Writer{link})
	for _, win := range want {
		err = enc.EncodeWindow(win.Digits, win.Index)
		if err != nil {
			t.Fatalf("could not encode window %d: %+v", win.Index, err)
		}
	}
	err = enc.Close()
	if err != nil {
		t.Fatalf("could not close encoder: %+v", err)
	}

	outs, _, err := compress.CompressLinks(
		[][]byte{link.Bytes()},
		compress.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("could not compress link: %+v", err)
	}

	for _, zst := range []bool{false, true} {
		name := "plain"
		if zst {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			buf := outs[0]
			if zst {
				zw, err := zstd.NewWriter(nil)
				if err != nil {
					t.Fatalf("could not create zstd writer: %+v", err)
				}
				buf = zw.EncodeAll(buf, nil)
				_ = zw.Close()
			}

			var (
				fname = filepath.Join(tmp, name+".cmp")
				oname = filepath.Join(tmp, name+".lcio")
			)
			err := os.WriteFile(fname, buf, 0644)
			if err != nil {
				t.Fatalf("could not write compressed file: %+v", err)
			}

			stdout := new(strings.Builder)
			err = process(stdout, oname, flate.DefaultCompression, 42, zst, fname)
			if err != nil {
				t.Fatalf("could not unpack: %+v", err)
			}
			for _, line := range []string{
				"events:      2\n",
				"malformed:   0\n",
			} {
				if !strings.Contains(stdout.String(), line) {
					t.Fatalf("missing %q in summary:\n%s", line, stdout.String())
				}
			}

			r, err := lcio.Open(oname)
			if err != nil {
				t.Fatalf("could not open LCIO file: %+v", err)
			}
			defer r.Close()

			got, err := xcnv.LCIO2Digits(r, 1, log.New(io.Discard, "", 0))
			if err != nil {
				t.Fatalf("could not read back digits: %+v", err)
			}
			for i := range got {
				tof.SortDigits(got[i].Digits, nil)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid windows:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}
