// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-decode decodes TOF raw link files into an LCIO file of digits.
package main // import "github.com/go-lpc/tof/cmd/tof-decode"

import (
	"compress/flate"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-lpc/tof/internal/mmap"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/raw"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "tof-decode: ", 0)
)

func main() {
	var (
		oname  = flag.String("o", "out.lcio", "path to output LCIO file")
		compr  = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		run    = flag.Int("run", -1, "run number (default: inferred from the first input file name)")
		resync = flag.Int("resync", raw.DefaultResyncLimit, "maximum number of consecutive unrecognized words")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof-decode [OPTIONS] link1.raw [link2.raw [...]]

ex:
 $> tof-decode -o out.lcio -lvl=9 ./tof_000042_00.raw ./tof_000042_01.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		msg.Fatalf("missing input raw link file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	irun := int32(*run)
	if irun < 0 {
		v, err := runNbrFrom(flag.Arg(0))
		if err != nil {
			msg.Fatalf("could not infer run from %q: %+v", flag.Arg(0), err)
		}
		irun = v
	}

	err := process(os.Stdout, *oname, *compr, irun, *resync, flag.Args())
	if err != nil {
		msg.Fatalf("could not decode raw link files: %+v", err)
	}
}

func process(stdout io.Writer, oname string, lvl int, run int32, resync int, fnames []string) error {
	bufs := make([][]byte, 0, len(fnames))
	for _, fname := range fnames {
		f, err := mmap.Open(fname)
		if err != nil {
			msg.Printf("could not open raw link file %q: %+v", fname, err)
			continue
		}
		defer f.Close()
		bufs = append(bufs, f.Bytes())
	}
	if len(bufs) == 0 {
		return fmt.Errorf("could not open any raw link file")
	}

	dec, err := raw.DecodeLinks(bufs,
		raw.WithLogger(msg),
		raw.WithResyncLimit(resync),
	)
	if err != nil {
		return fmt.Errorf("could not decode raw links: %w", err)
	}

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	err = xcnv.Digits2LCIO(w, dec, run, msg)
	if err != nil {
		return fmt.Errorf("could not convert digits to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	dec.Summary().Report(stdout)
	return nil
}

func runNbrFrom(fname string) (int32, error) {
	var (
		name = filepath.Base(fname)
		run  int32
		link int32
	)
	_, err := fmt.Sscanf(name, "tof_%d_%d.raw", &run, &link)
	return run, err
}
