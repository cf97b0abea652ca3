// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"fmt"
	"io"

	"github.com/go-lpc/tof/geo"
)

// Counters holds the cumulative structural fault counters of a crate.
type Counters struct {
	Crate  CrateCounters
	TRMs   [geo.NTRMs]TRMCounters
	Chains [geo.NTRMs][geo.NChains]ChainCounters
}

type CrateCounters struct {
	Events         int // number of checked events
	Faulty         int // number of events with at least one diagnostic word
	Headers        int
	MissingHeader  int
	MissingTrailer int
	EnableMask     int // participating and enable masks differ
	CBit           int
	Fault          int
	RTOBit         int
	Desync         int // events with unrecognized words
	Capacity       int // events truncated by page faults
}

type TRMCounters struct {
	Headers        int
	Unexpected     int // TRM data from a non-participating slot
	MissingHeader  int
	MissingTrailer int
	Empty          int
	EventCounter   int
	EBit           int
}

type ChainCounters struct {
	Headers        int
	MissingHeader  int
	MissingTrailer int
	TDCErrors      int
	EventCounter   int
	BadStatus      int
	BunchID        int
}

// Add accumulates the counters of o into c.
func (c *Counters) Add(o Counters) {
	c.Crate.Events += o.Crate.Events
	c.Crate.Faulty += o.Crate.Faulty
	c.Crate.Headers += o.Crate.Headers
	c.Crate.MissingHeader += o.Crate.MissingHeader
	c.Crate.MissingTrailer += o.Crate.MissingTrailer
	c.Crate.EnableMask += o.Crate.EnableMask
	c.Crate.CBit += o.Crate.CBit
	c.Crate.Fault += o.Crate.Fault
	c.Crate.RTOBit += o.Crate.RTOBit
	c.Crate.Desync += o.Crate.Desync
	c.Crate.Capacity += o.Crate.Capacity

	for i := range c.TRMs {
		trm := &c.TRMs[i]
		src := o.TRMs[i]
		trm.Headers += src.Headers
		trm.Unexpected += src.Unexpected
		trm.MissingHeader += src.MissingHeader
		trm.MissingTrailer += src.MissingTrailer
		trm.Empty += src.Empty
		trm.EventCounter += src.EventCounter
		trm.EBit += src.EBit

		for j := range c.Chains[i] {
			ch := &c.Chains[i][j]
			src := o.Chains[i][j]
			ch.Headers += src.Headers
			ch.MissingHeader += src.MissingHeader
			ch.MissingTrailer += src.MissingTrailer
			ch.TDCErrors += src.TDCErrors
			ch.EventCounter += src.EventCounter
			ch.BadStatus += src.BadStatus
			ch.BunchID += src.BunchID
		}
	}
}

// Reset zeroes all the counters.
func (c *Counters) Reset() {
	*c = Counters{}
}

// FaultRate returns the fraction of checked events with at least one
// diagnostic word.
func (c Counters) FaultRate() float64 {
	if c.Crate.Events == 0 {
		return 0
	}
	return float64(c.Crate.Faulty) / float64(c.Crate.Events)
}

// Report writes a summary of the counters to w, as percentages of the
// relevant number of headers.
func (c Counters) Report(w io.Writer) {
	pct := func(n, d int) float64 {
		if d == 0 {
			return 0
		}
		return 100 * float64(n) / float64(d)
	}

	fmt.Fprintf(w, "--- summary counters: %d events (faulty: %5.1f %%)\n", c.Crate.Events, pct(c.Crate.Faulty, c.Crate.Events))
	if c.Crate.Events == 0 {
		return
	}
	fmt.Fprintf(w,
		"    DRM   headers: %5.1f %%  desync: %5.1f %%  capacity: %5.1f %%\n",
		pct(c.Crate.Headers, c.Crate.Events),
		pct(c.Crate.Desync, c.Crate.Events),
		pct(c.Crate.Capacity, c.Crate.Events),
	)
	if c.Crate.Headers == 0 {
		return
	}
	fmt.Fprintf(w,
		"          mask: %5.1f %%    cbit: %5.1f %%     fault: %5.1f %%  rtobit: %5.1f %%\n",
		pct(c.Crate.EnableMask, c.Crate.Headers),
		pct(c.Crate.CBit, c.Crate.Headers),
		pct(c.Crate.Fault, c.Crate.Headers),
		pct(c.Crate.RTOBit, c.Crate.Headers),
	)

	const chname = "ab"
	for i, trm := range c.TRMs {
		if trm.Headers == 0 && trm.Unexpected == 0 && trm.MissingHeader == 0 {
			continue
		}
		fmt.Fprintf(w,
			" %2d TRM   headers: %5.1f %%   empty: %5.1f %%  evcount: %5.1f %%    ebit: %5.1f %%\n",
			i+geo.FirstTRMSlot,
			pct(trm.Headers, c.Crate.Headers),
			pct(trm.Empty, trm.Headers),
			pct(trm.EventCounter, trm.Headers),
			pct(trm.EBit, trm.Headers),
		)
		if trm.Unexpected > 0 || trm.MissingTrailer > 0 {
			fmt.Fprintf(w,
				"       unexpected: %d  missing-trailer: %d\n",
				trm.Unexpected, trm.MissingTrailer,
			)
		}
		for j, ch := range c.Chains[i] {
			if ch.Headers == 0 {
				continue
			}
			fmt.Fprintf(w,
				"      %c  headers: %5.1f %%  status: %5.1f %%     bcid: %5.1f %%  tdcerr: %5.1f %%  trailer: %5.1f %%\n",
				chname[j],
				pct(ch.Headers, trm.Headers),
				pct(ch.BadStatus, ch.Headers),
				pct(ch.BunchID, ch.Headers),
				pct(ch.TDCErrors, ch.Headers),
				pct(ch.MissingTrailer, ch.Headers),
			)
		}
	}
}
