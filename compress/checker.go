// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/raw"
)

// check validates the structure of rec, updates the counters and fills
// the diagnostic words of the event.
// Faults never prevent the event from being compressed.
func (c *Compressor) check(rec *raw.Record) {
	c.diag = c.diag[:0]
	cnt := &c.cnt
	cnt.Crate.Events++

	drm := eformat.Diagnostic{SlotID: geo.DRMSlot}
	if rec.Desync > 0 {
		cnt.Crate.Desync++
		drm.FaultBits |= eformat.DiagDRMDesync
	}
	if rec.Capacity {
		cnt.Crate.Capacity++
		drm.FaultBits |= eformat.DiagDRMCapacity
	}

	switch {
	case !rec.HasHeader():
		cnt.Crate.MissingHeader++
		drm.FaultBits |= eformat.DiagDRMHeader
		c.emit(drm)
		c.commit()
		return
	case rec.Trailer == 0:
		cnt.Crate.MissingTrailer++
		drm.FaultBits |= eformat.DiagDRMTrailer
		c.emit(drm)
		c.commit()
		return
	}
	cnt.Crate.Headers++

	var (
		st1  = eformat.DecodeDRMStatusHeader1(rec.Status[0])
		st2  = eformat.DecodeDRMStatusHeader2(rec.Status[1])
		part = st1.ParticipatingSlotID
		l0   = rec.L0BCID()
		evc  = eformat.DecodeDRMGlobalTrailer(rec.Trailer).LocalEventCounter
	)

	if part != st2.SlotEnableMask {
		c.msg.Printf(
			"enable and participating masks differ: 0x%03x/0x%03x",
			st2.SlotEnableMask, part,
		)
		cnt.Crate.EnableMask++
		drm.FaultBits |= eformat.DiagDRMEnableMask
	}
	if st1.CBit {
		cnt.Crate.CBit++
		drm.FaultBits |= eformat.DiagDRMCBit
	}
	if st2.FaultID != 0 {
		cnt.Crate.Fault++
		drm.FaultBits |= eformat.DiagDRMFaultID
	}
	if st2.RTOBit {
		cnt.Crate.RTOBit++
		drm.FaultBits |= eformat.DiagDRMRTOBit
	}
	c.emit(drm)

	for itrm := range rec.TRMs {
		diag := eformat.Diagnostic{SlotID: uint8(itrm + geo.FirstTRMSlot)}
		diag.FaultBits = c.checkTRM(&rec.TRMs[itrm], itrm, part, l0, evc)
		c.emit(diag)
	}
	c.commit()
}

func (c *Compressor) checkTRM(trm *raw.TRM, itrm int, part, l0, evc uint16) uint32 {
	var (
		bits uint32
		cnt  = &c.cnt.TRMs[itrm]
	)

	if part&(1<<(itrm+1)) == 0 {
		if trm.Header != 0 {
			cnt.Unexpected++
			bits |= eformat.DiagTRMUnexpected
		}
		return bits
	}

	if trm.Header == 0 {
		cnt.MissingHeader++
		return bits | eformat.DiagTRMHeader
	}
	if trm.Trailer == 0 {
		cnt.MissingTrailer++
		return bits | eformat.DiagTRMTrailer
	}
	cnt.Headers++

	if !hasHits(trm) {
		cnt.Empty++
	}

	hdr := eformat.DecodeTRMGlobalHeader(trm.Header)
	if hdr.EventNumber != evc%1024 {
		cnt.EventCounter++
		return bits | eformat.DiagTRMEventCounter
	}
	if hdr.EBit {
		cnt.EBit++
		bits |= eformat.DiagTRMEBit
	}

	for ich := range trm.Chains {
		var (
			ch = &trm.Chains[ich]
			cc = &c.cnt.Chains[itrm][ich]
		)
		if ch.Header == 0 {
			cc.MissingHeader++
			bits |= eformat.DiagChain(eformat.DiagChainHeader, ich)
			continue
		}
		cc.Headers++

		if ch.Trailer == 0 {
			cc.MissingTrailer++
			bits |= eformat.DiagChain(eformat.DiagChainTrailer, ich)
			continue
		}

		if ch.Errors > 0 {
			cc.TDCErrors++
			bits |= eformat.DiagChain(eformat.DiagChainTDCErrors, ich)
		}

		tr := eformat.DecodeChainTrailer(ch.Trailer)
		if tr.EventCounter != evc {
			cc.EventCounter++
			bits |= eformat.DiagChain(eformat.DiagChainEventCounter, ich)
		}
		if tr.Status != 0 {
			cc.BadStatus++
			bits |= eformat.DiagChain(eformat.DiagChainStatus, ich)
		}
		if eformat.DecodeChainHeader(ch.Header).BunchID != l0 {
			cc.BunchID++
			bits |= eformat.DiagChain(eformat.DiagChainBunchID, ich)
		}
	}
	return bits
}

// emit appends the diagnostic word d to the event when it carries faults.
func (c *Compressor) emit(d eformat.Diagnostic) {
	if d.FaultBits == 0 {
		return
	}
	if len(c.diag) == eformat.MaxDiagnostics {
		c.msg.Printf("too many diagnostic words: dropping %v", d)
		return
	}
	c.diag = append(c.diag, d.Word())
}

// commit records the diagnostic words of the current event.
func (c *Compressor) commit() {
	if len(c.diag) == 0 {
		return
	}
	c.cnt.Crate.Faulty++
	c.faults[c.cnt.Crate.Events-1] = append([]uint32(nil), c.diag...)
}

func hasHits(trm *raw.TRM) bool {
	for i := range trm.Chains {
		if len(trm.Chains[i].Hits) > 0 {
			return true
		}
	}
	return false
}
