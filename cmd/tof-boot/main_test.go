// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/exec"
	"reflect"
	"testing"
	"time"
)

func TestCommands(t *testing.T) {
	cmds, err := commands([]string{"sleep 1", "  tof-srv -id srv-00   -lvl dbg "})
	if err != nil {
		t.Fatalf("could not parse commands: %+v", err)
	}
	if got, want := len(cmds), 2; got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}
	if got, want := cmds[1].Args, []string{"tof-srv", "-id", "srv-00", "-lvl", "dbg"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid args:\ngot= %q\nwant=%q", got, want)
	}

	_, err = commands([]string{"sleep 1", "  "})
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestRun(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("could not find sleep: %+v", err)
	}

	for _, tc := range []struct {
		name string
		args []string
		mon  bool
		stop bool
	}{
		{
			name: "simple",
			args: []string{"2", "2"},
		},
		{
			name: "simple-pmon",
			args: []string{"3", "3"},
			mon:  true,
		},
		{
			name: "simple-stop",
			args: []string{"20", "20"},
			stop: true,
		},
		{
			name: "simple-stop-pmon",
			args: []string{"20", "20"},
			stop: true,
			mon:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir, err := os.MkdirTemp("", "tof-boot-")
			if err != nil {
				t.Fatalf("could not create tmpdir: %+v", err)
			}
			defer os.RemoveAll(dir)

			cmds := make([]*exec.Cmd, len(tc.args))
			for i, arg := range tc.args {
				cmds[i] = exec.Command(sleep, arg)
			}

			stop := make(chan os.Signal, 1)
			if tc.stop {
				go func() {
					time.Sleep(2 * time.Second)
					stop <- os.Interrupt
				}()
			}
			err = run(tc.mon, 1*time.Second, cmds, dir, stop)
			if err != nil {
				t.Fatalf("could not run processes: %+v", err)
			}
		})
	}
}
