// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"log"
	"sort"
	"time"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/geo"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Decoder decodes link buffers into digits, grouped by readout window.
type Decoder struct {
	msg   *log.Logger
	cfg   config
	sc    *Scanner
	sp    Spider
	pairs []Pair

	wins map[uint64][]tof.Digit
	sum  Summary
}

// NewDecoder returns a new raw data decoder.
func NewDecoder(opts ...Option) *Decoder {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.chmap == nil {
		cfg.chmap = geo.Identity
	}
	return &Decoder{
		msg:  cfg.msg,
		cfg:  cfg,
		sc:   NewScanner(nil, opts...),
		wins: make(map[uint64][]tof.Digit),
	}
}

// DecodeLink decodes all the pages of the provided link buffer.
// Data faults are logged and accounted for in the summary:
// only a nil buffer is reported as an error.
func (dec *Decoder) DecodeLink(buf []byte) error {
	if buf == nil {
		return xerrors.Errorf("raw: nil link buffer")
	}

	start := time.Now()
	ovf := dec.sp.Overflows
	digits := 0

	dec.sc.Reset(buf)
	for dec.sc.Next() {
		digits += dec.record(dec.sc.Record())
	}

	sum := dec.sc.Stats()
	sum.Overflows = dec.sp.Overflows - ovf
	sum.Digits = digits
	sum.Elapsed = time.Since(start)
	dec.sum.Add(sum)
	return nil
}

func (dec *Decoder) record(rec *Record) int {
	if !rec.HasHeader() {
		return 0
	}

	crate := int(rec.DRMID())
	if crate >= geo.NCrates {
		dec.msg.Printf("invalid DRM id %d: dropping record", crate)
		return 0
	}

	var (
		orbit = rec.Orbit
		bc0   = uint64(orbit)*geo.BCsPerOrbit + uint64(rec.L0BCID())
		win   = rec.Window()
		ds    = dec.wins[win]
		n     = len(ds)
	)
	for itrm := range rec.TRMs {
		trm := &rec.TRMs[itrm]
		if trm.Header == 0 {
			continue
		}
		dec.pairs = dec.sp.Pairs(dec.pairs[:0], trm)
		for _, p := range dec.pairs {
			ech := geo.ECH(crate, itrm, int(p.Chain), int(p.TDC), int(p.Channel))
			ds = append(ds, tof.Digit{
				Channel: dec.cfg.chmap.Channel(ech),
				TDC:     uint16(p.Time % geo.TDCBinsPerBC),
				TOT:     p.TOT,
				BC:      bc0 + uint64(p.Time/geo.TDCBinsPerBC),
			})
		}
	}
	dec.wins[win] = ds
	return len(ds) - n
}

// Take returns and removes the digits of the provided readout window.
func (dec *Decoder) Take(window uint64) []tof.Digit {
	ds := dec.wins[window]
	delete(dec.wins, window)
	return ds
}

// Windows returns the sorted indices of the readout windows
// currently held by the decoder.
func (dec *Decoder) Windows() []uint64 {
	ws := maps.Keys(dec.wins)
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	return ws
}

// Summary returns the statistics of the decoding session.
func (dec *Decoder) Summary() Summary {
	return dec.sum
}

// merge moves the windows of o into dec, after the digits already held.
func (dec *Decoder) merge(o *Decoder) {
	for win, ds := range o.wins {
		dec.wins[win] = append(dec.wins[win], ds...)
	}
	o.wins = make(map[uint64][]tof.Digit)
	dec.sum.Add(o.sum)
}

// DecodeLinks decodes the provided link buffers concurrently, one worker
// per link. Digits are merged per readout window in link order.
//
// A failing link does not prevent the other links from being decoded:
// the returned decoder holds the digits of all the successful links.
func DecodeLinks(bufs [][]byte, opts ...Option) (*Decoder, error) {
	var (
		grp   errgroup.Group
		decs  = make([]*Decoder, len(bufs))
		start = time.Now()
	)
	for i := range bufs {
		i := i
		decs[i] = NewDecoder(opts...)
		grp.Go(func() error {
			err := decs[i].DecodeLink(bufs[i])
			if err != nil {
				return xerrors.Errorf("raw: could not decode link %d: %w", i, err)
			}
			return nil
		})
	}
	err := grp.Wait()

	dec := NewDecoder(opts...)
	for _, o := range decs {
		dec.merge(o)
	}
	dec.sum.Elapsed = time.Since(start)
	return dec, err
}
