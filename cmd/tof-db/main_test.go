// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/tof/conddb"
)

type fakeStore struct {
	last  uint32
	runs  []conddb.Run
	links map[uint32][]conddb.Link
}

func (db *fakeStore) LastRun(ctx context.Context) (uint32, error) {
	if db.last == 0 {
		return 0, fmt.Errorf("no run")
	}
	return db.last, nil
}

func (db *fakeStore) Runs(ctx context.Context) ([]conddb.Run, error) {
	return db.runs, nil
}

func (db *fakeStore) Links(ctx context.Context, run uint32) ([]conddb.Link, error) {
	links, ok := db.links[run]
	if !ok {
		return nil, fmt.Errorf("unknown run %d", run)
	}
	return links, nil
}

func TestDoQuery(t *testing.T) {
	db := &fakeStore{
		last: 42,
		runs: []conddb.Run{
			{ID: 41, Start: time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC), Comment: "cosmics"},
			{ID: 42, Start: time.Date(2020, 5, 2, 11, 30, 0, 0, time.UTC), Comment: "beam"},
		},
		links: map[uint32][]conddb.Link{
			41: {
				{Crate: 0, EnableMask: 0x7ff, Enabled: true},
			},
			42: {
				{Crate: 0, EnableMask: 0x7ff, Enabled: true},
				{Crate: 1, EnableMask: 0x00f, Enabled: false},
			},
		},
	}

	for _, tc := range []struct {
		name string
		run  uint32
		runs bool
		want string
		err  string
	}{
		{
			name: "last",
			want: `run: 42
links: 2 (enabled: 1)
>>> crate=00 mask=0x7ff on
>>> crate=01 mask=0x00f off
`,
		},
		{
			name: "run-41",
			run:  41,
			want: `run: 41
links: 1 (enabled: 1)
>>> crate=00 mask=0x7ff on
`,
		},
		{
			name: "runs",
			runs: true,
			want: `runs: 2
run=000041 start=2020-05-01T10:00:00Z "cosmics"
run=000042 start=2020-05-02T11:30:00Z "beam"
`,
		},
		{
			name: "unknown",
			run:  7,
			err:  "could not get line configuration of run 7: unknown run 7",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := new(strings.Builder)
			err := doQuery(o, db, tc.run, tc.runs)
			switch {
			case err != nil && tc.err != "":
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
				}
				return
			case err != nil:
				t.Fatalf("could not run query: %+v", err)
			case tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			}
			if got, want := o.String(), tc.want; got != want {
				t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}
