// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tof-dump decodes and displays the pages of TOF raw or compressed link files.
//
// Usage: tof-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> tof-dump -words ./link-00.raw
//  === page 0 (offset=0) ===
//  fee=  0 link=  0 orbit=12 bc=0 size= 240 next= 240 pages=0 stop=1
//    0000 0x40000002  DRM Common Header
//    0001 0x0000000c  DRM Orbit Header
//    0002 0x40000121  DRM Global Header
//  [...]
//
// In interactive mode (-i), pages are displayed one at a time.
package main // import "github.com/go-lpc/tof/cmd/tof-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/internal/mmap"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("tof-dump: ")
	log.SetFlags(0)

	var (
		words = flag.Bool("words", false, "display the words of each page")
		cmp   = flag.Bool("cmp", false, "input files are compressed link files")
		npage = flag.Int("n", 0, "maximum number of pages to display per file (0: all)")
		inter = flag.Bool("i", false, "enable interactive mode")
	)

	flag.Usage = func() {
		fmt.Printf(`tof-dump decodes and displays the pages of TOF raw or compressed link files.

Usage: tof-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tof-dump -words ./link-00.raw
 $> tof-dump -i -cmp ./run.cmp

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input link file")
	}

	opts := options{words: *words, cmp: *cmp, npage: *npage}
	for _, fname := range flag.Args() {
		var err error
		switch {
		case *inter:
			err = interactive(fname, opts)
		default:
			err = process(os.Stdout, fname, opts)
		}
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

type options struct {
	words bool
	cmp   bool
	npage int
}

func process(w io.Writer, fname string, opts options) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	d := newDumper(wbuf, f.Bytes(), opts)
	for i := 0; opts.npage <= 0 || i < opts.npage; i++ {
		err = d.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not dump page %d: %w", i, err)
		}
	}

	return wbuf.Flush()
}

func interactive(fname string, opts options) error {
	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	opts.words = true
	d := newDumper(os.Stdout, f.Bytes(), opts)
	fmt.Printf("%s: %d bytes. commands: [n]ext, [g]oto N, [w]ords, [q]uit\n", fname, f.Len())

	for {
		o, err := term.Prompt("tof-dump> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		term.AppendHistory(o)

		err = d.exec(strings.Fields(o))
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, io.EOF):
			fmt.Printf("end of file\n")
		case err != nil:
			fmt.Printf("error: %+v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

type dumper struct {
	w    io.Writer
	buf  []byte
	opts options

	pos  int // offset of the next page
	page int // index of the next page
	lvl  eformat.Level
	nst  int // status headers seen
}

func newDumper(w io.Writer, buf []byte, opts options) *dumper {
	return &dumper{w: w, buf: buf, opts: opts}
}

// exec runs one interactive command.
func (d *dumper) exec(args []string) error {
	if len(args) == 0 {
		return d.next()
	}
	switch args[0] {
	case "n", "next":
		return d.next()
	case "g", "goto":
		if len(args) != 2 {
			return fmt.Errorf("goto: missing page index")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("goto: invalid page index %q: %w", args[1], err)
		}
		return d.seek(n)
	case "w", "words":
		d.opts.words = !d.opts.words
		return nil
	case "q", "quit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// seek moves to page n and displays it.
func (d *dumper) seek(n int) error {
	d.pos = 0
	d.page = 0
	d.lvl = eformat.LevelCommon
	w := d.w
	d.w = io.Discard
	for d.page < n {
		err := d.next()
		if err != nil {
			d.w = w
			return err
		}
	}
	d.w = w
	return d.next()
}

// next displays the next page.
func (d *dumper) next() error {
	if d.pos >= len(d.buf) {
		return io.EOF
	}
	hdr, err := eformat.ReadRDH(d.buf[d.pos:])
	if err != nil {
		return fmt.Errorf("could not read page header at offset %d: %w", d.pos, err)
	}
	off := int(hdr.OffsetToNext)
	size := int(hdr.MemorySize)
	if off < eformat.RDHSize || d.pos+off > len(d.buf) || size > off {
		return fmt.Errorf("invalid page at offset %d (size=%d, next=%d)", d.pos, size, off)
	}

	fmt.Fprintf(d.w, "=== page %d (offset=%d) ===\n", d.page, d.pos)
	fmt.Fprintf(d.w,
		"fee=%3d link=%3d orbit=%d bc=%d size=%4d next=%4d pages=%d stop=%d\n",
		hdr.FEEID, hdr.LinkID, hdr.TriggerOrbit, hdr.TriggerBC,
		size, off, hdr.PagesCounter, hdr.StopBit,
	)

	payload := d.buf[d.pos+eformat.RDHSize : d.pos+size]
	d.pos += off
	d.page++

	if !d.opts.words {
		return nil
	}
	if d.opts.cmp {
		d.dumpCompressed(payload)
		return nil
	}
	d.dumpRaw(payload)
	return nil
}

func (d *dumper) dumpRaw(p []byte) {
	i := 0
	for beg := 0; beg+eformat.GBTSize <= len(p); beg += eformat.GBTSize {
		for j := 0; j < eformat.GBTWords; j++ {
			w := eformat.Word(p[beg:], j)
			fmt.Fprintf(d.w, "  %04d 0x%08x  %v\n", i, w, d.classify(w))
			i++
		}
	}
}

// classify returns the kind of w and tracks the nesting level of the
// following word.
func (d *dumper) classify(w uint32) eformat.Kind {
	if w == eformat.Filler {
		return eformat.KindFiller
	}
	k := eformat.Classify(d.lvl, w)
	switch k {
	case eformat.KindDRMCommonHeader:
		d.lvl = eformat.LevelOrbit
	case eformat.KindDRMOrbitHeader:
		d.lvl = eformat.LevelDRM
	case eformat.KindDRMGlobalHeader:
		if d.lvl == eformat.LevelDRM {
			d.lvl = eformat.LevelStatus
			d.nst = 0
		}
	case eformat.KindDRMStatusHeader:
		d.nst++
		if d.nst == 5 {
			d.lvl = eformat.LevelDRM
		}
	case eformat.KindLTMGlobalHeader:
		d.lvl = eformat.LevelLTM
	case eformat.KindLTMGlobalTrailer, eformat.KindTRMGlobalTrailer:
		d.lvl = eformat.LevelDRM
	case eformat.KindTRMGlobalHeader:
		d.lvl = eformat.LevelTRM
	case eformat.KindChainAHeader, eformat.KindChainBHeader:
		d.lvl = eformat.LevelChain
	case eformat.KindChainATrailer, eformat.KindChainBTrailer:
		d.lvl = eformat.LevelTRM
	case eformat.KindDRMGlobalTrailer:
		d.lvl = eformat.LevelCommon
	case eformat.Unknown:
		if d.lvl == eformat.LevelStatus {
			d.lvl = eformat.LevelDRM
		}
	}
	return k
}

func (d *dumper) dumpCompressed(p []byte) {
	var (
		n     = len(p) / eformat.WordSize
		state = 0 // 0: crate header, 1: orbit, 2: body
		hits  = 0
		diags = 0
	)
	for i := 0; i < n; i++ {
		w := eformat.Word(p, i)
		fmt.Fprintf(d.w, "  %04d 0x%08x  ", i, w)
		switch {
		case diags > 0:
			fmt.Fprintf(d.w, "%v\n", eformat.DecodeDiagnostic(w))
			diags--
			if diags == 0 {
				state = 0
			}
		case state == 0:
			fmt.Fprintf(d.w, "Crate Header %+v\n", eformat.DecodeCrateHeader(w))
			state = 1
		case state == 1:
			fmt.Fprintf(d.w, "Crate Orbit %d\n", w)
			state = 2
		case hits > 0:
			fmt.Fprintf(d.w, "Packed Hit %+v\n", eformat.DecodePackedHit(w))
			hits--
		case eformat.IsCrateWord(w):
			tr := eformat.DecodeCrateTrailer(w)
			fmt.Fprintf(d.w, "Crate Trailer %+v\n", tr)
			diags = int(tr.NumberOfDiagnostics)
			if diags == 0 {
				state = 0
			}
		default:
			fh := eformat.DecodeFrameHeader(w)
			fmt.Fprintf(d.w, "Frame Header %+v\n", fh)
			hits = int(fh.NumberOfHits)
		}
	}
}
