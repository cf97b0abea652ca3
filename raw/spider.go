// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
)

// MaxHitsPerTDC is the capacity of the per-TDC pairing buffers.
const MaxHitsPerTDC = 256

// Pair is a leading edge paired with its trailing edge.
type Pair struct {
	Chain   uint8
	TDC     uint8
	Channel uint8
	Time    uint32 // leading edge time, in TDC bins
	TOT     uint32 // time-over-threshold, zero when unmatched
	EBit    bool
}

// Spider pairs the leading and trailing edges of the hits of a TRM.
// Hits are bucketed per (chain, TDC) in fixed-capacity buffers.
type Spider struct {
	hits [geo.NChains][geo.NTDCs][MaxHitsPerTDC]uint32
	n    [geo.NChains][geo.NTDCs]int

	Overflows int // number of hits dropped because a buffer was full
}

// Pairs appends the pairs of the hits of trm to dst, ordered by chain,
// TDC and leading edge arrival.
func (sp *Spider) Pairs(dst []Pair, trm *TRM) []Pair {
	for ich := range trm.Chains {
		for _, w := range trm.Chains[ich].Hits {
			tdc := eformat.DecodeTDCHit(w).TDCID
			if int(tdc) >= geo.NTDCs {
				sp.Overflows++
				continue
			}
			n := sp.n[ich][tdc]
			if n == MaxHitsPerTDC {
				sp.Overflows++
				continue
			}
			sp.hits[ich][tdc][n] = w
			sp.n[ich][tdc] = n + 1
		}
	}

	for ich := range sp.n {
		for tdc := range sp.n[ich] {
			n := sp.n[ich][tdc]
			if n == 0 {
				continue
			}
			buf := sp.hits[ich][tdc][:n]
			for i, lw := range buf {
				if lw == 0 {
					continue // consumed trailing edge
				}
				lead := eformat.DecodeTDCHit(lw)
				if lead.PSBits != eformat.Leading {
					continue
				}
				var tot uint32
				for j := i + 1; j < n; j++ {
					tw := buf[j]
					if tw == 0 {
						continue
					}
					trail := eformat.DecodeTDCHit(tw)
					if trail.PSBits != eformat.Trailing || trail.Chan != lead.Chan {
						continue
					}
					if trail.HitTime > lead.HitTime {
						tot = (trail.HitTime - lead.HitTime) / geo.RatioTOTTDCBin
					}
					buf[j] = 0
					break
				}
				dst = append(dst, Pair{
					Chain:   uint8(ich),
					TDC:     uint8(tdc),
					Channel: lead.Chan,
					Time:    lead.HitTime,
					TOT:     tot,
					EBit:    lead.EBit,
				})
			}
			sp.n[ich][tdc] = 0
		}
	}
	return dst
}
