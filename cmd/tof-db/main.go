// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-db inspects the runs and line configuration stored in the
// TOF condition database.
package main // import "github.com/go-lpc/tof/cmd/tof-db"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/tof/conddb"
)

func main() {
	log.SetPrefix("tof-db: ")
	log.SetFlags(0)

	var (
		run  = flag.Int("run", 0, "run to inspect (default: last run)")
		runs = flag.Bool("runs", false, "list all runs")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof-db [OPTIONS] dbname

ex:
 $> tof-db tofdb
 $> tof-db -run 42 tofdb
 $> tof-db -runs tofdb

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing database name")
	}

	db, err := conddb.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("could not open TOF db: %+v", err)
	}
	defer db.Close()

	err = doQuery(os.Stdout, db, uint32(*run), *runs)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

type store interface {
	LastRun(ctx context.Context) (uint32, error)
	Runs(ctx context.Context) ([]conddb.Run, error)
	Links(ctx context.Context, run uint32) ([]conddb.Link, error)
}

func doQuery(w io.Writer, db store, run uint32, runs bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if runs {
		rs, err := db.Runs(ctx)
		if err != nil {
			return fmt.Errorf("could not retrieve runs: %w", err)
		}
		fmt.Fprintf(w, "runs: %d\n", len(rs))
		for _, r := range rs {
			fmt.Fprintf(w, "run=%06d start=%s %q\n", r.ID, r.Start.UTC().Format(time.RFC3339), r.Comment)
		}
		return nil
	}

	if run == 0 {
		v, err := db.LastRun(ctx)
		if err != nil {
			return fmt.Errorf("could not get last run: %w", err)
		}
		run = v
	}

	links, err := db.Links(ctx, run)
	if err != nil {
		return fmt.Errorf("could not get line configuration of run %d: %w", run, err)
	}

	enabled := 0
	for _, link := range links {
		if link.Enabled {
			enabled++
		}
	}
	fmt.Fprintf(w, "run: %d\n", run)
	fmt.Fprintf(w, "links: %d (enabled: %d)\n", len(links), enabled)
	for _, link := range links {
		fmt.Fprintf(w, ">>> %v\n", link)
	}
	return nil
}
