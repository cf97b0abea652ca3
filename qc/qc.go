// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qc fills quality-control histograms from decoded digits and
// from the fault counters of the compressor.
package qc // import "github.com/go-lpc/tof/qc"

import (
	"io"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hbook/yodacnv"
	"golang.org/x/xerrors"
)

// Faults lists the names of the bins of the fault histogram.
var Faults = []string{
	"drm-header", "drm-trailer", "drm-enable-mask", "drm-cbit",
	"drm-fault-id", "drm-rto-bit", "drm-desync", "drm-capacity",
	"trm-unexpected", "trm-header", "trm-trailer", "trm-event-counter", "trm-ebit",
	"chain-header", "chain-trailer", "chain-tdc-errors",
	"chain-event-counter", "chain-status", "chain-bunch-id",
}

// Histos holds the quality-control histograms.
type Histos struct {
	chmap geo.ChannelMap

	TOT    *hbook.H1D // time-over-threshold of digits
	TDC    *hbook.H1D // fine time of digits
	BC     *hbook.H1D // bunch crossing of digits, relative to their window
	TRM    *hbook.H1D // occupancy per TRM (crate*10+trm)
	Hits   *hbook.H1D // number of digits per window
	Faults *hbook.H1D // fault counts, see Faults
}

// New returns new empty histograms.
// A nil channel map is the identity.
func New(chmap geo.ChannelMap) *Histos {
	if chmap == nil {
		chmap = geo.Identity
	}
	ntrms := geo.NCrates * geo.NTRMs
	h := &Histos{
		chmap:  chmap,
		TOT:    hbook.NewH1D(eformat.MaxTOT+1, 0, eformat.MaxTOT+1),
		TDC:    hbook.NewH1D(geo.TDCBinsPerBC, 0, geo.TDCBinsPerBC),
		BC:     hbook.NewH1D(2048, 0, 2048),
		TRM:    hbook.NewH1D(ntrms, 0, float64(ntrms)),
		Hits:   hbook.NewH1D(100, 0, 1000),
		Faults: hbook.NewH1D(len(Faults), 0, float64(len(Faults))),
	}
	for _, v := range []struct {
		h    *hbook.H1D
		name string
	}{
		{h.TOT, "tot"},
		{h.TDC, "tdc"},
		{h.BC, "bc"},
		{h.TRM, "trm-occupancy"},
		{h.Hits, "window-hits"},
		{h.Faults, "faults"},
	} {
		v.h.Annotation()["name"] = v.name
		v.h.Annotation()["path"] = "/tof/" + v.name
	}
	return h
}

// FillDigits fills the digit histograms with the digits of win.
func (h *Histos) FillDigits(win tof.Window) {
	bc0 := win.FirstBC()
	h.Hits.Fill(float64(len(win.Digits)), 1)
	for _, d := range win.Digits {
		h.TOT.Fill(float64(d.TOT), 1)
		h.TDC.Fill(float64(d.TDC), 1)
		if d.BC >= bc0 {
			h.BC.Fill(float64(d.BC-bc0), 1)
		}
		crate, trm, _, _, _ := geo.Split(h.chmap.Electronic(d.Channel))
		h.TRM.Fill(float64(crate*geo.NTRMs+trm), 1)
	}
}

// FillCounters adds the fault counters of the compressor to the fault
// histogram.
func (h *Histos) FillCounters(cnt compress.Counters) {
	fill := func(i, n int) {
		if n == 0 {
			return
		}
		h.Faults.Fill(float64(i)+0.5, float64(n))
	}

	crate := cnt.Crate
	fill(0, crate.MissingHeader)
	fill(1, crate.MissingTrailer)
	fill(2, crate.EnableMask)
	fill(3, crate.CBit)
	fill(4, crate.Fault)
	fill(5, crate.RTOBit)
	fill(6, crate.Desync)
	fill(7, crate.Capacity)

	for i, trm := range cnt.TRMs {
		fill(8, trm.Unexpected)
		fill(9, trm.MissingHeader)
		fill(10, trm.MissingTrailer)
		fill(11, trm.EventCounter)
		fill(12, trm.EBit)
		for _, ch := range cnt.Chains[i] {
			fill(13, ch.MissingHeader)
			fill(14, ch.MissingTrailer)
			fill(15, ch.TDCErrors)
			fill(16, ch.EventCounter)
			fill(17, ch.BadStatus)
			fill(18, ch.BunchID)
		}
	}
}

// Write writes all the histograms to w, in the YODA format.
func (h *Histos) Write(w io.Writer) error {
	err := yodacnv.Write(w, h.TOT, h.TDC, h.BC, h.TRM, h.Hits, h.Faults)
	if err != nil {
		return xerrors.Errorf("qc: could not write histograms: %w", err)
	}
	return nil
}
