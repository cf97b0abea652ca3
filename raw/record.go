// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"log"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
)

// Record is a decoded crate record.
// Header and trailer words are zero when missing from the data stream.
//
// A Record is reused from one call to the next: users must copy
// any value they want to retain.
type Record struct {
	Common  uint32
	Orbit   uint32
	Header  uint32 // DRM global header
	Status  [5]uint32
	Trailer uint32 // DRM global trailer
	LTM     bool   // whether an LTM block was seen

	TRMs [geo.NTRMs]TRM

	Desync   int  // number of unrecognized words skipped
	Dropped  bool // whether the tail of the event was dropped
	Capacity bool // whether the event was truncated by a page fault
}

// TRM holds the words of a TRM block.
type TRM struct {
	Header  uint32
	Trailer uint32
	Chains  [geo.NChains]Chain
}

// Chain holds the words of a chain block.
type Chain struct {
	Header  uint32
	Trailer uint32
	Hits    []uint32 // TDC hits, in arrival order
	Errors  int      // number of TDC error words
}

func (rec *Record) reset() {
	rec.Common = 0
	rec.Orbit = 0
	rec.Header = 0
	rec.Status = [5]uint32{}
	rec.Trailer = 0
	rec.LTM = false
	for i := range rec.TRMs {
		trm := &rec.TRMs[i]
		trm.Header = 0
		trm.Trailer = 0
		for j := range trm.Chains {
			ch := &trm.Chains[j]
			ch.Header = 0
			ch.Trailer = 0
			ch.Hits = ch.Hits[:0]
			ch.Errors = 0
		}
	}
	rec.Desync = 0
	rec.Dropped = false
	rec.Capacity = false
}

// HasHeader returns whether the DRM header block was found.
func (rec *Record) HasHeader() bool { return rec.Header != 0 }

// DRMID returns the crate id of the record.
func (rec *Record) DRMID() uint8 {
	return eformat.DecodeDRMGlobalHeader(rec.Header).DRMID
}

// L0BCID returns the local bunch crossing of the trigger.
func (rec *Record) L0BCID() uint16 {
	return eformat.DecodeDRMStatusHeader3(rec.Status[2]).L0BCID
}

// Window returns the index of the readout window of the record.
func (rec *Record) Window() uint64 {
	return tof.WindowIndex(rec.Orbit, rec.L0BCID())
}

// parser decodes crate records from the useful words of an event.
type parser struct {
	msg   *log.Logger
	limit int

	rec   Record
	miss  int  // consecutive unrecognized words
	abort bool // resync limit reached
}

// parse decodes the first crate record of words.
// It returns the decoded record (nil if words only held fillers or garbage)
// and the number of consumed words.
func (p *parser) parse(words []uint32) (*Record, int) {
	rec := &p.rec
	rec.reset()
	p.miss = 0
	p.abort = false

	var (
		i = 0
		n = len(words)
	)

	for i < n && eformat.Classify(eformat.LevelCommon, words[i]) != eformat.KindDRMCommonHeader {
		if words[i] != eformat.Filler {
			p.desync(words[i], eformat.LevelCommon)
			if p.abort {
				return nil, n
			}
		}
		i++
	}
	if i == n {
		return nil, n
	}
	p.miss = 0
	rec.Common = words[i]
	i++

	if n-i < 7 {
		p.msg.Printf("truncated DRM header block (words=%d)", n-i)
		rec.Dropped = true
		return rec, n
	}
	rec.Orbit = words[i]
	i++

	if eformat.Classify(eformat.LevelDRM, words[i]) != eformat.KindDRMGlobalHeader {
		p.msg.Printf("missing DRM global header (word=0x%08x)", words[i])
		return rec, p.skipRecord(words, i)
	}
	hdr := words[i]
	for j := range rec.Status {
		w := words[i+1+j]
		if eformat.Classify(eformat.LevelStatus, w) != eformat.KindDRMStatusHeader {
			p.msg.Printf("invalid DRM status header %d (word=0x%08x)", j+1, w)
			rec.Status = [5]uint32{}
			return rec, p.skipRecord(words, i+1+j)
		}
		rec.Status[j] = w
	}
	rec.Header = hdr
	i += 1 + len(rec.Status)

	for i < n && !p.abort {
		w := words[i]
		switch eformat.Classify(eformat.LevelDRM, w) {
		case eformat.KindLTMGlobalHeader:
			rec.LTM = true
			i = p.skipLTM(words, i+1)
		case eformat.KindTRMGlobalHeader:
			i = p.parseTRM(words, i)
		case eformat.KindDRMGlobalTrailer:
			rec.Trailer = w
			i++
			for i < n && words[i] == eformat.Filler {
				i++
			}
			return rec, i
		case eformat.KindFiller:
			i++
		default:
			p.desync(w, eformat.LevelDRM)
			i++
		}
	}
	if p.abort {
		rec.Dropped = true
		return rec, n
	}
	return rec, i
}

// skipRecord drops words until the DRM global trailer.
func (p *parser) skipRecord(words []uint32, i int) int {
	for ; i < len(words); i++ {
		if eformat.Classify(eformat.LevelDRM, words[i]) == eformat.KindDRMGlobalTrailer {
			p.rec.Trailer = words[i]
			i++
			for i < len(words) && words[i] == eformat.Filler {
				i++
			}
			return i
		}
	}
	return i
}

func (p *parser) skipLTM(words []uint32, i int) int {
	for i < len(words) {
		switch eformat.Classify(eformat.LevelLTM, words[i]) {
		case eformat.KindLTMGlobalTrailer:
			return i + 1
		case eformat.KindTRMGlobalHeader, eformat.KindDRMGlobalTrailer:
			p.msg.Printf("missing LTM global trailer (word=0x%08x)", words[i])
			return i
		}
		i++
	}
	return i
}

func (p *parser) parseTRM(words []uint32, i int) int {
	var (
		w    = words[i]
		hdr  = eformat.DecodeTRMGlobalHeader(w)
		itrm = int(hdr.SlotID) - geo.FirstTRMSlot
		trm  = &p.rec.TRMs[itrm]
		n    = len(words)
	)
	if trm.Header != 0 {
		p.msg.Printf("duplicate TRM global header (slot=%d)", hdr.SlotID)
	}
	p.miss = 0
	trm.Header = w
	i++

	for i < n && !p.abort {
		w := words[i]
		switch k := eformat.Classify(eformat.LevelTRM, w); k {
		case eformat.KindChainAHeader, eformat.KindChainBHeader:
			ch := eformat.DecodeChainHeader(w)
			if ch.SlotID != hdr.SlotID {
				p.desync(w, eformat.LevelTRM)
				i++
				continue
			}
			i = p.parseChain(words, i, trm, int(ch.Chain))
		case eformat.KindTRMGlobalTrailer:
			p.miss = 0
			trm.Trailer = w
			i++
			if i < n && words[i] == eformat.Filler {
				i++
			}
			return i
		case eformat.KindFiller:
			i++
		case eformat.KindTRMGlobalHeader, eformat.KindDRMGlobalTrailer, eformat.KindLTMGlobalHeader:
			p.msg.Printf("missing TRM global trailer (slot=%d, word=0x%08x)", hdr.SlotID, w)
			return i
		default:
			p.desync(w, eformat.LevelTRM)
			i++
		}
	}
	return i
}

func (p *parser) parseChain(words []uint32, i int, trm *TRM, ichain int) int {
	ch := &trm.Chains[ichain]
	if ch.Header != 0 {
		p.msg.Printf("duplicate chain header (chain=%d, word=0x%08x)", ichain, words[i])
	}
	p.miss = 0
	ch.Header = words[i]
	i++

	for i < len(words) && !p.abort {
		w := words[i]
		switch k := eformat.Classify(eformat.LevelChain, w); k {
		case eformat.KindTDCHit:
			p.miss = 0
			ch.Hits = append(ch.Hits, w)
			i++
		case eformat.KindTDCError:
			p.miss = 0
			ch.Errors++
			i++
		case eformat.KindChainATrailer, eformat.KindChainBTrailer:
			if int(eformat.DecodeChainTrailer(w).Chain) != ichain {
				p.desync(w, eformat.LevelChain)
				i++
				continue
			}
			p.miss = 0
			ch.Trailer = w
			return i + 1
		case eformat.KindChainAHeader, eformat.KindChainBHeader,
			eformat.KindTRMGlobalTrailer, eformat.KindTRMGlobalHeader,
			eformat.KindDRMGlobalTrailer:
			p.msg.Printf("missing chain trailer (chain=%d, word=0x%08x)", ichain, w)
			return i
		default:
			p.desync(w, eformat.LevelChain)
			i++
		}
	}
	return i
}

func (p *parser) desync(w uint32, lvl eformat.Level) {
	p.rec.Desync++
	p.miss++
	if p.miss == 1 {
		p.msg.Printf("unrecognized word 0x%08x (level=%d)", w, lvl)
	}
	if p.limit > 0 && p.miss >= p.limit {
		p.msg.Printf("could not resynchronize after %d words: dropping event", p.miss)
		p.abort = true
	}
}
