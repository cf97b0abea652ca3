// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
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
	"github.com/go-lpc/tof/raw"
	"github.com/klauspost/compress/zstd"
)

func TestLoadConfig(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-compress-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "cfg.yaml")
	err = os.WriteFile(fname, []byte(`output: run42.cmp
zstd: true
logs:
  directory: /var/log/tof
  maxSizeMB: 5
  compress: true
alert:
  maxFaultRate: 0.2
`), 0644)
	if err != nil {
		t.Fatalf("could not write config: %+v", err)
	}

	for _, tc := range []struct {
		name string
		want config
	}{
		{
			name: "",
			want: func() config {
				var cfg config
				cfg.Output = "out.cmp"
				cfg.Logs = logConfig{MaxSizeMB: 100, MaxAgeDays: 30, MaxBackups: 10}
				cfg.Alert.MaxFaultRate = 0.05
				return cfg
			}(),
		},
		{
			name: fname,
			want: func() config {
				var cfg config
				cfg.Output = "run42.cmp"
				cfg.Zstd = true
				cfg.Logs = logConfig{
					Directory:  "/var/log/tof",
					MaxSizeMB:  5,
					MaxAgeDays: 30,
					MaxBackups: 10,
					Compress:   true,
				}
				cfg.Alert.MaxFaultRate = 0.2
				return cfg
			}(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := loadConfig(tc.name)
			if err != nil {
				t.Fatalf("could not load config: %+v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", got, tc.want)
			}
		})
	}

	_, err = loadConfig(filepath.Join(tmp, "not-there.yaml"))
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "tof-compress-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	var (
		win  = tof.WindowIndex(11, 0)
		bc0  = tof.Window{Index: win}.FirstBC()
		want = []tof.Digit{
			{Channel: int32(geo.ECH(0, 0, 0, 1, 2)), TDC: 10, TOT: 20, BC: bc0 + 3},
			{Channel: int32(geo.ECH(0, 4, 1, 7, 5)), TDC: 1000, TOT: 300, BC: bc0 + 700},
			{Channel: int32(geo.ECH(1, 2, 0, 0, 0)), TDC: 0, TOT: 1, BC: bc0 + 1100},
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

	for _, zst := range []bool{false, true} {
		name := "plain"
		if zst {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			cfg, err := loadConfig("")
			if err != nil {
				t.Fatalf("could not load default config: %+v", err)
			}
			cfg.Output = filepath.Join(tmp, name+".cmp")
			cfg.QC = filepath.Join(tmp, name+".yoda")
			cfg.Zstd = zst

			stdout := new(strings.Builder)
			cnt, err := process(stdout, cfg, fnames)
			if err != nil {
				t.Fatalf("could not process link files: %+v", err)
			}

			if got, want := cnt.Crate.Events, 2; got != want {
				t.Fatalf("invalid number of events: got=%d, want=%d", got, want)
			}
			if got := cnt.FaultRate(); got != 0 {
				t.Fatalf("invalid fault rate: got=%v, want=0", got)
			}
			if !strings.Contains(stdout.String(), "--- summary counters: 2 events") {
				t.Fatalf("invalid report:\n%s", stdout.String())
			}

			qc, err := os.ReadFile(cfg.QC)
			if err != nil {
				t.Fatalf("could not read QC file: %+v", err)
			}
			if !bytes.Contains(qc, []byte("/tof/tot\n")) {
				t.Fatalf("invalid QC file:\n%s", qc)
			}

			buf, err := os.ReadFile(cfg.Output)
			if err != nil {
				t.Fatalf("could not read output file: %+v", err)
			}
			if zst {
				zr, err := zstd.NewReader(nil)
				if err != nil {
					t.Fatalf("could not create zstd reader: %+v", err)
				}
				defer zr.Close()
				buf, err = zr.DecodeAll(buf, nil)
				if err != nil {
					t.Fatalf("could not decompress output: %+v", err)
				}
			}

			dec := compress.NewDecoder(compress.WithLogger(log.New(io.Discard, "", 0)))
			err = dec.Decode(buf)
			if err != nil {
				t.Fatalf("could not decode output: %+v", err)
			}
			if got, want := dec.Windows(), []uint64{win}; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid windows: got=%v, want=%v", got, want)
			}
			got := dec.Take(win)
			tof.SortDigits(got, nil)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid digits:\ngot= %+v\nwant=%+v", got, want)
			}
		})
	}
}

func TestAlertMessage(t *testing.T) {
	var cfg config
	cfg.Output = "run42.cmp"
	cfg.Alert.MaxFaultRate = 0.1

	msg := alertMessage(cfg, 0.5, []string{"tof_000042_00.raw", "tof_000042_01.raw"})
	buf := new(bytes.Buffer)
	_, err := msg.WriteTo(buf)
	if err != nil {
		t.Fatalf("could not write message: %+v", err)
	}

	for _, want := range []string{
		"Subject: [tof-compress] fault rate alert: 50.0 %",
		"fault rate: 0.500",
		"threshold:  0.100",
		" - tof_000042_01.raw",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in message:\n%s", want, buf.String())
		}
	}
}
