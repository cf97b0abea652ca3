// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"log"
	"time"

	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/raw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const nframes = 1 << (21 - geo.FrameBits)

// Compressor converts raw link buffers into compressed buffers.
type Compressor struct {
	msg *log.Logger
	cfg config
	sc  *raw.Scanner
	sp  raw.Spider

	pairs  []raw.Pair
	evt    []byte            // compressed words of the current event
	frames [nframes][]uint32 // packed hits, per frame
	diag   []uint32          // diagnostic words of the current event

	cnt    Counters
	faults map[int][]uint32 // diagnostic words, per faulty event
	sum    raw.Summary
}

// NewCompressor returns a new compressor.
func NewCompressor(opts ...Option) *Compressor {
	cfg := newConfig(opts)
	return &Compressor{
		msg: cfg.msg,
		cfg: cfg,
		sc: raw.NewScanner(nil,
			raw.WithLogger(cfg.msg),
			raw.WithResyncLimit(cfg.resync),
		),
		faults: make(map[int][]uint32),
	}
}

// CompressLink compresses all the crate records of the provided raw link
// buffer. Every record is written as one or more pages, each made of the
// header of its first raw page and of a slice of the compressed event.
// Only the last page of an event has the stop bit set.
func (c *Compressor) CompressLink(buf []byte) ([]byte, error) {
	if buf == nil {
		return nil, xerrors.Errorf("compress: nil link buffer")
	}

	var (
		start = time.Now()
		out   = make([]byte, 0, len(buf)/2)
	)

	c.sc.Reset(buf)
	for c.sc.Next() {
		c.evt = c.CompressEvent(c.sc.Record(), c.evt[:0])
		out = c.appendPages(out, c.sc.Header(), c.evt)
	}

	sum := c.sc.Stats()
	sum.Elapsed = time.Since(start)
	c.sum.Add(sum)
	return out, nil
}

// appendPages appends the compressed event evt to dst, split over pages
// of at most the configured page size.
func (c *Compressor) appendPages(dst []byte, hdr eformat.RDH, evt []byte) []byte {
	max := c.cfg.page - eformat.RDHSize

	hdr.Version = eformat.RDHVersion
	hdr.HeaderSize = eformat.RDHSize
	hdr.PagesCounter = 0
	for {
		n := len(evt)
		if n > max {
			n = max
		}
		size := eformat.RDHSize + n
		hdr.OffsetToNext = uint16(size)
		hdr.MemorySize = uint16(size)
		hdr.StopBit = 0
		if n == len(evt) {
			hdr.StopBit = 1
		}

		beg := len(dst)
		dst = append(dst, make([]byte, eformat.RDHSize)...)
		hdr.Put(dst[beg:])
		dst = append(dst, evt[:n]...)

		evt = evt[n:]
		if len(evt) == 0 {
			return dst
		}
		hdr.PagesCounter++
	}
}

// CompressEvent appends the compressed version of the crate record rec to
// dst and returns the extended buffer.
// The record is checked and its diagnostic words are appended after the
// crate trailer.
func (c *Compressor) CompressEvent(rec *raw.Record, dst []byte) []byte {
	hdr := eformat.CrateHeader{}
	if rec.HasHeader() {
		hdr = eformat.CrateHeader{
			BunchID:        rec.L0BCID(),
			SlotEnableMask: eformat.DecodeDRMStatusHeader2(rec.Status[1]).SlotEnableMask,
			DRMID:          rec.DRMID(),
		}
	}
	dst = eformat.AppendWord(dst, hdr.Word())
	dst = eformat.AppendWord(dst, rec.Orbit)

	if rec.HasHeader() {
		for itrm := range rec.TRMs {
			trm := &rec.TRMs[itrm]
			if trm.Header == 0 || !hasHits(trm) {
				continue
			}
			dst = c.appendFrames(dst, trm, uint8(itrm+geo.FirstTRMSlot))
		}
	}

	c.check(rec)

	var evc uint16
	if rec.Trailer != 0 {
		evc = eformat.DecodeDRMGlobalTrailer(rec.Trailer).LocalEventCounter
	}
	dst = eformat.AppendWord(dst, eformat.CrateTrailer{
		NumberOfDiagnostics: uint8(len(c.diag)),
		EventCounter:        evc,
	}.Word())
	for _, w := range c.diag {
		dst = eformat.AppendWord(dst, w)
	}
	return dst
}

// appendFrames pairs the hits of trm and appends the non-empty frames
// of packed hits to dst.
func (c *Compressor) appendFrames(dst []byte, trm *raw.TRM, slot uint8) []byte {
	c.pairs = c.sp.Pairs(c.pairs[:0], trm)

	first, last := nframes, -1
	for _, p := range c.pairs {
		tot := p.TOT
		if tot > eformat.MaxTOT {
			tot = eformat.MaxTOT
		}
		iframe := int(p.Time >> geo.FrameBits)
		c.frames[iframe] = append(c.frames[iframe], eformat.PackedHit{
			TOT:     uint16(tot),
			Time:    uint16(p.Time & (1<<geo.FrameBits - 1)),
			Channel: p.Channel,
			TDCID:   p.TDC,
			Chain:   p.Chain,
		}.Word())
		if iframe < first {
			first = iframe
		}
		if iframe > last {
			last = iframe
		}
	}

	for iframe := first; iframe <= last; iframe++ {
		hits := c.frames[iframe]
		if len(hits) == 0 {
			continue
		}
		dst = eformat.AppendWord(dst, eformat.FrameHeader{
			NumberOfHits: uint16(len(hits)),
			FrameID:      uint8(iframe),
			TRMID:        slot,
		}.Word())
		for _, w := range hits {
			dst = eformat.AppendWord(dst, w)
		}
		c.frames[iframe] = hits[:0]
	}
	return dst
}

// Counters returns the cumulative fault counters.
func (c *Compressor) Counters() Counters {
	return c.cnt
}

// Events returns the number of checked events.
func (c *Compressor) Events() int {
	return c.cnt.Crate.Events
}

// DiagnosticWords returns the diagnostic words of the provided event,
// counted from zero. Events without faults have no diagnostic word.
func (c *Compressor) DiagnosticWords(event int) []uint32 {
	return c.faults[event]
}

// Summary returns the statistics of the raw data compressed so far.
func (c *Compressor) Summary() raw.Summary {
	s := c.sum
	s.Overflows = c.sp.Overflows
	return s
}

// Reset clears the counters and the diagnostic words.
func (c *Compressor) Reset() {
	c.cnt.Reset()
	c.faults = make(map[int][]uint32)
	c.sum = raw.Summary{}
	c.sp.Overflows = 0
}

// CompressLinks compresses the provided link buffers concurrently,
// one compressor per link.
// The counters of all the links are merged once all links are done.
func CompressLinks(bufs [][]byte, opts ...Option) ([][]byte, Counters, error) {
	var (
		grp  errgroup.Group
		outs = make([][]byte, len(bufs))
		cmps = make([]*Compressor, len(bufs))
		cnt  Counters
	)
	for i := range bufs {
		i := i
		cmps[i] = NewCompressor(opts...)
		grp.Go(func() error {
			out, err := cmps[i].CompressLink(bufs[i])
			outs[i] = out
			if err != nil {
				return xerrors.Errorf("compress: could not compress link %d: %w", i, err)
			}
			return nil
		})
	}
	err := grp.Wait()

	for _, c := range cmps {
		cnt.Add(c.Counters())
	}
	return outs, cnt, err
}
