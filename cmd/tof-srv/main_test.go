// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/raw"
)

func TestProcess(t *testing.T) {
	var (
		msg  = log.New(io.Discard, "", 0)
		srv  = newServer(msg)
		win  = tof.WindowIndex(9, 0)
		bc0  = tof.Window{Index: win}.FirstBC()
		want = []tof.Digit{
			{Channel: int32(geo.ECH(3, 2, 0, 4, 1)), TDC: 12, TOT: 40, BC: bc0 + 10},
			{Channel: int32(geo.ECH(3, 7, 1, 9, 6)), TDC: 999, TOT: 8, BC: bc0 + 1000},
		}
	)

	links := make([]io.Writer, 4)
	link3 := new(bytes.Buffer)
	links[3] = link3

	enc := raw.NewEncoder(links)
	err := enc.EncodeWindow(want, win)
	if err != nil {
		t.Fatalf("could not encode window: %+v", err)
	}
	err = enc.Close()
	if err != nil {
		t.Fatalf("could not close encoder: %+v", err)
	}

	frame := make([]byte, 4+link3.Len())
	binary.LittleEndian.PutUint32(frame, 3)
	copy(frame[4:], link3.Bytes())

	for i := 0; i < 2; i++ {
		out, err := srv.process(frame)
		if err != nil {
			t.Fatalf("could not process frame: %+v", err)
		}
		if got, want := binary.LittleEndian.Uint32(out), uint32(3); got != want {
			t.Fatalf("invalid link id: got=%d, want=%d", got, want)
		}

		dec := compress.NewDecoder(compress.WithLogger(msg))
		err = dec.Decode(out[4:])
		if err != nil {
			t.Fatalf("could not decode compressed frame: %+v", err)
		}
		got := dec.Take(win)
		tof.SortDigits(got, nil)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid digits:\ngot= %+v\nwant=%+v", got, want)
		}
	}

	o := new(strings.Builder)
	if got, want := srv.report(o), 2; got != want {
		t.Fatalf("invalid number of frames: got=%d, want=%d", got, want)
	}
	if !strings.Contains(o.String(), "--- summary counters: 2 events") {
		t.Fatalf("invalid report:\n%s", o.String())
	}

	srv.reset()
	o.Reset()
	if got, want := srv.report(o), 0; got != want {
		t.Fatalf("invalid number of frames after reset: got=%d, want=%d", got, want)
	}
}

func TestProcessErrors(t *testing.T) {
	srv := newServer(log.New(io.Discard, "", 0))

	frame := func(link uint32, body []byte) []byte {
		o := make([]byte, 4+len(body))
		binary.LittleEndian.PutUint32(o, link)
		copy(o[4:], body)
		return o
	}

	for _, tc := range []struct {
		name string
		body []byte
		want string
	}{
		{
			name: "short",
			body: []byte{1, 2},
			want: "frame too short (len=2)",
		},
		{
			name: "invalid-link",
			body: frame(geo.NCrates, nil),
			want: "invalid link 72",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.process(tc.body)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := err.Error(), tc.want; got != want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}
