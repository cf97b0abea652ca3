// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-unpack decodes a stream of TOF compressed pages into an LCIO
// file of digits.
package main // import "github.com/go-lpc/tof/cmd/tof-unpack"

import (
	"compress/flate"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/internal/mmap"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/klauspost/compress/zstd"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "tof-unpack: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		run   = flag.Int("run", 0, "run number")
		zst   = flag.Bool("zstd", false, "input is zstd compressed")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof-unpack [OPTIONS] file.cmp

ex:
 $> tof-unpack -o out.lcio ./run42.cmp
 $> tof-unpack -zstd -run 42 -o out.lcio ./run42.cmp.zst

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input compressed file")
	}

	err := process(os.Stdout, *oname, *compr, int32(*run), *zst, flag.Arg(0))
	if err != nil {
		msg.Fatalf("could not unpack compressed file: %+v", err)
	}
}

func process(stdout io.Writer, oname string, lvl int, run int32, zst bool, fname string) error {
	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open compressed file: %w", err)
	}
	defer f.Close()

	buf := f.Bytes()
	if zst {
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return fmt.Errorf("could not create zstd reader: %w", err)
		}
		defer zr.Close()

		buf, err = zr.DecodeAll(buf, nil)
		if err != nil {
			return fmt.Errorf("could not decompress %q: %w", fname, err)
		}
	}

	dec := compress.NewDecoder(compress.WithLogger(msg))
	err = dec.Decode(buf)
	if err != nil {
		return fmt.Errorf("could not decode compressed pages: %w", err)
	}

	var (
		nevts = dec.Events()
		ndiag = dec.Diagnostics()
		nbad  = dec.Malformed()
	)

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

	fmt.Fprintf(stdout, "events:      %d\n", nevts)
	fmt.Fprintf(stdout, "diagnostics: %d\n", ndiag)
	fmt.Fprintf(stdout, "malformed:   %d\n", nbad)
	return nil
}
