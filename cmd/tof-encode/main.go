// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-encode encodes the digits of an LCIO file into TOF raw link files.
//
// The line configuration (enabled links and TRMs) can be retrieved from the
// condition database.
package main // import "github.com/go-lpc/tof/cmd/tof-encode"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-lpc/tof/conddb"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/raw"
	"go-hep.org/x/hep/lcio"
)

func main() {
	log.SetPrefix("tof-encode: ")
	log.SetFlags(0)

	var (
		odir   = flag.String("o", ".", "path to output directory")
		nlinks = flag.Int("links", geo.NCrates, "number of links to write")
		thresh = flag.Int("threshold", 1<<20, "size of link buffers triggering a flush, in bytes")
		page   = flag.Int("page", 8<<10, "maximum size of a page, in bytes")
		run    = flag.Int("run", 0, "run number")
		dbname = flag.String("db", "", "name of the condition database holding the line configuration")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof-encode [OPTIONS] file.lcio

ex:
 $> tof-encode -o ./data -links 2 ./input.lcio
 $> tof-encode -o ./data -db tofdb -run 42 ./input.lcio

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input LCIO file")
	}

	cfg := config{
		run:    int32(*run),
		nlinks: *nlinks,
		thresh: *thresh,
		page:   *page,
	}

	if *dbname != "" {
		links, err := linksFrom(*dbname, uint32(*run))
		if err != nil {
			log.Fatalf("could not retrieve line configuration: %+v", err)
		}
		cfg.links = links
	}

	err := process(*odir, flag.Arg(0), cfg)
	if err != nil {
		log.Fatalf("could not encode LCIO file: %+v", err)
	}
}

type config struct {
	run    int32
	nlinks int
	thresh int
	page   int
	links  []conddb.Link // line configuration, if any
}

func linksFrom(dbname string, run uint32) ([]conddb.Link, error) {
	db, err := conddb.Open(dbname)
	if err != nil {
		return nil, fmt.Errorf("could not open condition db: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if run == 0 {
		run, err = db.LastRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve last run: %w", err)
		}
	}

	links, err := db.Links(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve links of run %d: %w", run, err)
	}
	log.Printf("run %d: %d links", run, len(links))
	return links, nil
}

func process(odir, fname string, cfg config) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	wins, err := xcnv.LCIO2Digits(r, 100, log.Default())
	if err != nil {
		return fmt.Errorf("could not read digits: %w", err)
	}

	enabled := make(map[int]bool, cfg.nlinks)
	for i := 0; i < cfg.nlinks; i++ {
		enabled[i] = cfg.links == nil
	}
	for _, link := range cfg.links {
		enabled[link.Crate] = link.Enabled && link.Crate < cfg.nlinks
	}

	err = os.MkdirAll(odir, 0755)
	if err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	ws := make([]io.Writer, cfg.nlinks)
	fs := make([]*os.File, 0, cfg.nlinks)
	for i := range ws {
		if !enabled[i] {
			continue
		}
		f, err := os.Create(filepath.Join(odir, fmt.Sprintf("tof_%06d_%02d.raw", cfg.run, i)))
		if err != nil {
			return fmt.Errorf("could not create link file %d: %w", i, err)
		}
		defer f.Close()
		ws[i] = f
		fs = append(fs, f)
	}

	opts := []raw.Option{
		raw.WithThreshold(cfg.thresh),
		raw.WithPageSize(cfg.page),
	}
	if cfg.links != nil {
		opts = append(opts, raw.WithEnableMasks(conddb.Masks(cfg.links)))
	}

	enc := raw.NewEncoder(ws, opts...)
	for _, win := range wins {
		err = enc.EncodeWindow(win.Digits, win.Index)
		if err != nil {
			return fmt.Errorf("could not encode window %d: %w", win.Index, err)
		}
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("could not close encoder: %w", err)
	}

	for _, f := range fs {
		err = f.Close()
		if err != nil {
			return fmt.Errorf("could not close link file %q: %w", f.Name(), err)
		}
	}

	log.Printf("encoded %d windows into %d links", len(wins), len(fs))
	return nil
}
