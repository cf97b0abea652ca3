// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/conddb"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/raw"
	"go-hep.org/x/hep/lcio"
)

type windows map[uint64][]tof.Digit

func (ws windows) Windows() []uint64 {
	o := make([]uint64, 0, len(ws))
	for k := range ws {
		o = append(o, k)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

func (ws windows) Take(win uint64) []tof.Digit {
	ds := ws[win]
	delete(ws, win)
	return ds
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-encode-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	var (
		w0   = tof.WindowIndex(3, 0)
		w1   = tof.WindowIndex(3, 2*geo.BCsPerWindow)
		bc0  = tof.Window{Index: w0}.FirstBC()
		bc1  = tof.Window{Index: w1}.FirstBC()
		wins = []tof.Window{
			{
				Index: w0,
				Digits: []tof.Digit{
					{Channel: int32(geo.ECH(0, 0, 0, 0, 1)), TDC: 3, TOT: 4, BC: bc0 + 5},
				},
			},
			{
				Index: w1,
				Digits: []tof.Digit{
					{Channel: int32(geo.ECH(0, 5, 1, 2, 3)), TDC: 6, TOT: 7, BC: bc1 + 8},
					{Channel: int32(geo.ECH(1, 5, 1, 2, 3)), TDC: 9, TOT: 10, BC: bc1 + 11},
				},
			},
		}
	)

	fname := filepath.Join(tmp, "in.lcio")
	{
		w, err := lcio.Create(fname)
		if err != nil {
			t.Fatalf("could not create LCIO file: %+v", err)
		}
		defer w.Close()

		src := make(windows)
		for _, win := range wins {
			src[win.Index] = append([]tof.Digit(nil), win.Digits...)
		}
		err = xcnv.Digits2LCIO(w, src, 42, log.New(io.Discard, "", 0))
		if err != nil {
			t.Fatalf("could not write LCIO file: %+v", err)
		}
		err = w.Close()
		if err != nil {
			t.Fatalf("could not close LCIO file: %+v", err)
		}
	}

	for _, tc := range []struct {
		name  string
		cfg   config
		files []string
		err   string
	}{
		{
			name:  "all-links",
			cfg:   config{run: 42, nlinks: 2, thresh: 1 << 20, page: 8 << 10},
			files: []string{"tof_000042_00.raw", "tof_000042_01.raw"},
		},
		{
			name: "conddb",
			cfg: config{
				run: 42, nlinks: 3, thresh: 1 << 20, page: 8 << 10,
				links: []conddb.Link{
					{Crate: 0, EnableMask: 0x7fe, Enabled: true},
					{Crate: 1, EnableMask: 0x040, Enabled: true},
					{Crate: 2, EnableMask: 0x7fe, Enabled: false},
				},
			},
			files: []string{"tof_000042_00.raw", "tof_000042_01.raw"},
		},
		{
			name: "disabled-trm",
			cfg: config{
				run: 42, nlinks: 2, thresh: 1 << 20, page: 8 << 10,
				links: []conddb.Link{
					{Crate: 0, EnableMask: 0x7fe, Enabled: true},
					{Crate: 1, EnableMask: 0x002, Enabled: true},
				},
			},
			err: fmt.Sprintf(
				"could not encode window %d: raw: digit for disabled TRM 5 of link 1 (channel=%d)",
				w1, geo.ECH(1, 5, 1, 2, 3),
			),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			odir := filepath.Join(tmp, tc.name)
			err := process(odir, fname, tc.cfg)
			switch {
			case err != nil && tc.err != "":
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
				}
				return
			case err != nil:
				t.Fatalf("could not encode: %+v", err)
			case tc.err != "":
				t.Fatalf("expected an error")
			}

			names, err := filepath.Glob(filepath.Join(odir, "*.raw"))
			if err != nil {
				t.Fatalf("could not list link files: %+v", err)
			}
			if len(names) != len(tc.files) {
				t.Fatalf("invalid link files: %q", names)
			}

			bufs := make([][]byte, len(names))
			for i, name := range names {
				if got, want := filepath.Base(name), tc.files[i]; got != want {
					t.Fatalf("invalid link file: got=%q, want=%q", got, want)
				}
				bufs[i], err = os.ReadFile(name)
				if err != nil {
					t.Fatalf("could not read link file: %+v", err)
				}
			}

			dec, err := raw.DecodeLinks(bufs, raw.WithLogger(log.New(io.Discard, "", 0)))
			if err != nil {
				t.Fatalf("could not decode links: %+v", err)
			}
			for _, win := range wins {
				if got, want := dec.Take(win.Index), win.Digits; !reflect.DeepEqual(got, want) {
					t.Fatalf("invalid digits for window %d:\ngot= %+v\nwant=%+v", win.Index, got, want)
				}
			}
		})
	}
}
