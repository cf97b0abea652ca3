// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"fmt"
	"io"
	"time"

	"github.com/go-lpc/tof/eformat"
)

// Summary holds the statistics of a decoding session.
type Summary struct {
	Pages          int // number of pages
	EmptyPages     int // number of pages without payload
	Events         int // number of events (stop-bit closed page sequences)
	Records        int // number of crate records
	Capacity       int // number of page capacity faults
	Desync         int // number of unrecognized words skipped
	MissingHeader  int // number of records without DRM header block
	MissingTrailer int // number of records without DRM trailer
	Overflows      int // number of hits dropped by the pairing buffers
	Digits         int // number of decoded digits

	Bytes   int64
	Elapsed time.Duration
}

// Throughput returns the decoding throughput, in MB/s.
func (s Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) / 1e6 / s.Elapsed.Seconds()
}

// Add accumulates the statistics of o into s.
func (s *Summary) Add(o Summary) {
	s.Pages += o.Pages
	s.EmptyPages += o.EmptyPages
	s.Events += o.Events
	s.Records += o.Records
	s.Capacity += o.Capacity
	s.Desync += o.Desync
	s.MissingHeader += o.MissingHeader
	s.MissingTrailer += o.MissingTrailer
	s.Overflows += o.Overflows
	s.Digits += o.Digits
	s.Bytes += o.Bytes
	s.Elapsed += o.Elapsed
}

// Report writes a human readable version of the summary to w.
func (s Summary) Report(w io.Writer) {
	fmt.Fprintf(w, "pages:           %d (empty: %d)\n", s.Pages, s.EmptyPages)
	fmt.Fprintf(w, "events:          %d\n", s.Events)
	fmt.Fprintf(w, "records:         %d\n", s.Records)
	fmt.Fprintf(w, "digits:          %d\n", s.Digits)
	fmt.Fprintf(w, "capacity faults: %d\n", s.Capacity)
	fmt.Fprintf(w, "desync words:    %d\n", s.Desync)
	fmt.Fprintf(w, "missing header:  %d\n", s.MissingHeader)
	fmt.Fprintf(w, "missing trailer: %d\n", s.MissingTrailer)
	fmt.Fprintf(w, "hit overflows:   %d\n", s.Overflows)
	fmt.Fprintf(w, "throughput:      %.3f MB/s (%d bytes in %v)\n", s.Throughput(), s.Bytes, s.Elapsed)
}

// Scanner iterates over the crate records of a link buffer.
type Scanner struct {
	walk   walker
	parser parser

	words []uint32 // remaining words of the current event
	rec   *Record
	trunc bool // whether the current event was truncated
	stats Summary
}

// NewScanner returns a scanner over the provided link buffer.
func NewScanner(buf []byte, opts ...Option) *Scanner {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	sc := &Scanner{
		walk:   walker{msg: cfg.msg},
		parser: parser{msg: cfg.msg, limit: cfg.resync},
	}
	sc.Reset(buf)
	return sc
}

// Reset resets the scanner to iterate over buf.
func (sc *Scanner) Reset(buf []byte) {
	sc.walk.reset(buf)
	sc.words = nil
	sc.rec = nil
	sc.stats = Summary{Bytes: int64(len(buf))}
}

// Next advances the scanner to the next crate record.
func (sc *Scanner) Next() bool {
	for {
		for len(sc.words) > 0 {
			rec, n := sc.parser.parse(sc.words)
			sc.words = sc.words[n:]
			if rec == nil {
				continue
			}
			rec.Capacity = sc.trunc
			sc.stats.Records++
			sc.stats.Desync += rec.Desync
			if !rec.HasHeader() {
				sc.stats.MissingHeader++
			}
			if rec.Trailer == 0 {
				sc.stats.MissingTrailer++
			}
			sc.rec = rec
			return true
		}

		if !sc.walk.next() {
			sc.sync()
			sc.rec = nil
			return false
		}
		sc.stats.Events++
		sc.words = sc.walk.words
		sc.trunc = sc.walk.trunc
	}
}

// Record returns the current crate record.
func (sc *Scanner) Record() *Record { return sc.rec }

// Header returns the header of the first page of the current event.
func (sc *Scanner) Header() eformat.RDH { return sc.walk.hdr }

// Stats returns the statistics collected so far.
func (sc *Scanner) Stats() Summary {
	sc.sync()
	return sc.stats
}

func (sc *Scanner) sync() {
	sc.stats.Pages = sc.walk.pages
	sc.stats.EmptyPages = sc.walk.empty
	sc.stats.Capacity = sc.walk.capacity
}
