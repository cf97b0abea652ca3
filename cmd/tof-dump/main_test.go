// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/raw"
)

func rawLink(t *testing.T) []byte {
	t.Helper()

	o := new(bytes.Buffer)
	enc := raw.NewEncoder([]io.Writer{o})
	win := tof.WindowIndex(12, 0)
	bc0 := tof.Window{Index: win}.FirstBC()
	err := enc.EncodeWindow([]tof.Digit{
		{Channel: int32(geo.ECH(0, 0, 0, 1, 2)), TDC: 10, TOT: 20, BC: bc0 + 1},
		{Channel: int32(geo.ECH(0, 3, 1, 4, 5)), TDC: 11, TOT: 21, BC: bc0 + 2},
	}, win)
	if err != nil {
		t.Fatalf("could not encode window: %+v", err)
	}
	err = enc.Close()
	if err != nil {
		t.Fatalf("could not close encoder: %+v", err)
	}
	return o.Bytes()
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	link := rawLink(t)
	cmp, err := compress.NewCompressor(compress.WithLogger(log.New(io.Discard, "", 0))).CompressLink(link)
	if err != nil {
		t.Fatalf("could not compress link: %+v", err)
	}

	for _, tc := range []struct {
		name string
		data []byte
		opts options
		want []string
	}{
		{
			name: "link-00.raw",
			data: link,
			opts: options{},
			want: []string{"=== page 0 (offset=0) ===\n", "stop=1\n"},
		},
		{
			name: "link-00-words.raw",
			data: link,
			opts: options{words: true, npage: 1},
			want: []string{
				"  0000 0x", "DRM Common Header\n",
				"DRM Orbit Header\n", "DRM Global Header\n",
				"DRM Status Header\n", "TRM Global Header\n",
				"TRM Chain-A Header\n", "TDC Hit\n", "TRM Chain-B Trailer\n",
				"TRM Global Trailer\n", "DRM Global Trailer\n",
			},
		},
		{
			name: "run.cmp",
			data: cmp,
			opts: options{words: true, cmp: true},
			want: []string{
				"Crate Header", "Crate Orbit 12\n",
				"Frame Header", "Packed Hit", "Crate Trailer",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name)
			err := os.WriteFile(fname, tc.data, 0644)
			if err != nil {
				t.Fatalf("could not write input file: %+v", err)
			}

			o := new(strings.Builder)
			err = process(o, fname, tc.opts)
			if err != nil {
				t.Fatalf("could not dump file: %+v", err)
			}

			for _, want := range tc.want {
				if !strings.Contains(o.String(), want) {
					t.Fatalf("missing %q in output:\n%s", want, o.String())
				}
			}
		})
	}
}

func TestExec(t *testing.T) {
	link := rawLink(t)
	o := new(strings.Builder)
	d := newDumper(o, append(append([]byte(nil), link...), link...), options{})

	for _, tc := range []struct {
		args []string
		want string
		err  error
	}{
		{args: nil, want: "=== page 0 (offset=0) ===\n"},
		{args: []string{"n"}, want: "=== page 1 "},
		{args: []string{"w"}},
		{args: []string{"g", "0"}, want: "DRM Common Header\n"},
		{args: []string{"g", "2"}, err: io.EOF},
		{args: []string{"q"}, err: errQuit},
	} {
		o.Reset()
		err := d.exec(tc.args)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%v: invalid error: got=%v, want=%v", tc.args, err, tc.err)
		}
		if !strings.Contains(o.String(), tc.want) {
			t.Fatalf("%v: missing %q in output:\n%s", tc.args, tc.want, o.String())
		}
	}

	for _, args := range [][]string{
		{"g"},
		{"g", "x"},
		{"foo"},
	} {
		if err := d.exec(args); err == nil {
			t.Fatalf("%v: expected an error", args)
		}
	}
}
