// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"compress/flate"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/raw"
	"go-hep.org/x/hep/lcio"
)

func TestRunNbrFrom(t *testing.T) {
	for _, tc := range []struct {
		fname string
		run   int32
	}{
		{
			fname: "./tof_000063_00.raw",
			run:   63,
		},
		{
			fname: "/some/dir/tof_000663_71.raw",
			run:   663,
		},
		{
			fname: "../some/dir/tof_9_3.raw",
			run:   9,
		},
	} {
		t.Run(tc.fname, func(t *testing.T) {
			got, err := runNbrFrom(tc.fname)
			if err != nil {
				t.Fatalf("could not infer run-nbr: %+v", err)
			}
			if got != tc.run {
				t.Fatalf("invalid run: got=%d, want=%d", got, tc.run)
			}
		})
	}

	_, err := runNbrFrom("link.raw")
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-decode-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	msg.SetOutput(io.Discard)
	defer msg.SetOutput(os.Stdout)

	var (
		win  = tof.WindowIndex(7, geo.BCsPerWindow)
		bc0  = tof.Window{Index: win}.FirstBC()
		want = []tof.Digit{
			{Channel: int32(geo.ECH(0, 1, 0, 2, 3)), TDC: 100, TOT: 30, BC: bc0 + 4},
			{Channel: int32(geo.ECH(1, 9, 1, 14, 7)), TDC: 1, TOT: 2, BC: bc0 + 1000},
		}
		fnames = []string{
			filepath.Join(tmp, "tof_000042_00.raw"),
			filepath.Join(tmp, "tof_000042_01.raw"),
		}
	)

	ws := make([]io.Writer, len(fnames))
	for i, fname := range fnames {
		f, err := os.Create(fname)
		if err != nil {
			t.Fatalf("could not create link file: %+v", err)
		}
		defer f.Close()
		ws[i] = f
	}
	enc := raw.NewEncoder(ws)
	err = enc.EncodeWindow(want, win)
	if err != nil {
		t.Fatalf("could not encode window: %+v", err)
	}
	err = enc.Close()
	if err != nil {
		t.Fatalf("could not close encoder: %+v", err)
	}
	for _, w := range ws {
		_ = w.(*os.File).Close()
	}

	oname := filepath.Join(tmp, "out.lcio")
	stdout := new(strings.Builder)
	missing := filepath.Join(tmp, "tof_000042_02.raw")
	err = process(stdout, oname, flate.DefaultCompression, 42, raw.DefaultResyncLimit, append(fnames, missing))
	if err != nil {
		t.Fatalf("could not process link files: %+v", err)
	}

	if !strings.Contains(stdout.String(), "digits:          2\n") {
		t.Fatalf("invalid summary:\n%s", stdout.String())
	}

	r, err := lcio.Open(oname)
	if err != nil {
		t.Fatalf("could not open LCIO file: %+v", err)
	}
	defer r.Close()

	wins, err := xcnv.LCIO2Digits(r, 1, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("could not read back digits: %+v", err)
	}
	if len(wins) != 1 || wins[0].Index != win {
		t.Fatalf("invalid windows: %+v", wins)
	}
	if got := wins[0].Digits; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid digits:\ngot= %+v\nwant=%+v", got, want)
	}

	err = process(io.Discard, oname, flate.DefaultCompression, 42, raw.DefaultResyncLimit, []string{missing})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), "could not open any raw link file"; got != want {
		t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
	}
}
