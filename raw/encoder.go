// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"io"
	"math"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"golang.org/x/xerrors"
)

const (
	maxHitTime  = 1<<21 - 1
	triggerType = 0x10 // physics trigger
)

// Encoder encodes windows of digits into link buffers.
type Encoder struct {
	cfg   config
	err   error
	links []link

	digits []tof.Digit
	hits   []hit
}

type link struct {
	w    io.Writer
	mask uint16

	buf     []byte   // pages not yet flushed
	words   []uint32 // useful words of the current event
	packets uint8
	events  uint32
}

// hit is a digit converted to its electronic coordinates.
type hit struct {
	crate int
	trm   int
	chain uint8
	tdc   uint8
	ch    uint8
	lead  uint32
	trail uint32
}

// NewEncoder returns a new encoder writing one link buffer per writer.
// The link index is the crate id. A nil writer disables its link.
func NewEncoder(ws []io.Writer, opts ...Option) *Encoder {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.chmap == nil {
		cfg.chmap = geo.Identity
	}

	enc := &Encoder{
		cfg:   cfg,
		links: make([]link, len(ws)),
	}
	for i, w := range ws {
		enc.links[i] = link{w: w, mask: cfg.mask(i)}
	}

	switch {
	case len(ws) > geo.NCrates:
		enc.err = xerrors.Errorf("raw: too many links (got=%d, max=%d)", len(ws), geo.NCrates)
	case cfg.page < eformat.RDHSize+eformat.GBTSize || cfg.page > math.MaxUint16:
		enc.err = xerrors.Errorf("raw: invalid page size %d", cfg.page)
	}
	return enc
}

// EncodeWindow encodes the digits of the provided readout window.
// Every enabled link receives one event, even when it holds no digit.
func (enc *Encoder) EncodeWindow(digits []tof.Digit, window uint64) error {
	if enc.err != nil {
		return enc.err
	}

	enc.digits = append(enc.digits[:0], digits...)
	tof.SortDigits(enc.digits, enc.cfg.chmap)

	var (
		orbit, bc = tof.WindowStart(window)
		first     = uint64(orbit)*geo.BCsPerOrbit + uint64(bc)
	)

	enc.hits = enc.hits[:0]
	for _, d := range enc.digits {
		ech := enc.cfg.chmap.Electronic(d.Channel)
		if ech < 0 || ech >= geo.NECH {
			return xerrors.Errorf("raw: invalid channel %d (window=%d)", d.Channel, window)
		}
		crate, trm, chain, tdc, ch := geo.Split(ech)
		if crate >= len(enc.links) || enc.links[crate].w == nil {
			return xerrors.Errorf("raw: digit for disabled link %d (channel=%d)", crate, d.Channel)
		}
		if enc.links[crate].mask&(1<<(trm+1)) == 0 {
			return xerrors.Errorf(
				"raw: digit for disabled TRM %d of link %d (channel=%d)",
				trm, crate, d.Channel,
			)
		}
		if d.BC < first || d.TDC >= geo.TDCBinsPerBC {
			return xerrors.Errorf(
				"raw: digit outside window %d (channel=%d, bc=%d, tdc=%d)",
				window, d.Channel, d.BC, d.TDC,
			)
		}
		lead := (d.BC-first)*geo.TDCBinsPerBC + uint64(d.TDC)
		trail := lead + uint64(d.TOT)*geo.RatioTOTTDCBin
		if trail > maxHitTime {
			return xerrors.Errorf(
				"raw: digit hit time overflow in window %d (channel=%d, bc=%d, tdc=%d, tot=%d)",
				window, d.Channel, d.BC, d.TDC, d.TOT,
			)
		}
		enc.hits = append(enc.hits, hit{
			crate: crate,
			trm:   trm,
			chain: uint8(chain),
			tdc:   uint8(tdc),
			ch:    uint8(ch),
			lead:  uint32(lead),
			trail: uint32(trail),
		})
	}

	// TRM sizes of all links are checked before any link is encoded.
	for beg := 0; beg < len(enc.hits); {
		end := beg + 1
		for end < len(enc.hits) && enc.hits[end].crate == enc.hits[beg].crate && enc.hits[end].trm == enc.hits[beg].trm {
			end++
		}
		if nw := trmWords(end - beg); nw > maxTRMWords {
			return xerrors.Errorf(
				"raw: too many words for TRM %d of link %d (window=%d, words=%d)",
				enc.hits[beg].trm, enc.hits[beg].crate, window, nw,
			)
		}
		beg = end
	}

	var (
		hits  = enc.hits
		flush = false
	)
	for i := range enc.links {
		lnk := &enc.links[i]
		if lnk.w == nil {
			continue
		}
		n := 0
		for n < len(hits) && hits[n].crate == i {
			n++
		}
		err := lnk.encode(i, orbit, bc, hits[:n], enc.cfg.page)
		if err != nil {
			return xerrors.Errorf("raw: could not encode window %d for link %d: %w", window, i, err)
		}
		hits = hits[n:]
		if len(lnk.buf) >= enc.cfg.thresh {
			flush = true
		}
	}

	if flush {
		return enc.Flush()
	}
	return nil
}

// Flush writes the buffered pages of all the links.
func (enc *Encoder) Flush() error {
	if enc.err != nil {
		return enc.err
	}
	for i := range enc.links {
		lnk := &enc.links[i]
		if lnk.w == nil || len(lnk.buf) == 0 {
			continue
		}
		_, err := lnk.w.Write(lnk.buf)
		if err != nil {
			enc.err = xerrors.Errorf("raw: could not write link %d: %w", i, err)
			return enc.err
		}
		lnk.buf = lnk.buf[:0]
	}
	return nil
}

// Close flushes the buffered pages of all the links.
func (enc *Encoder) Close() error {
	return enc.Flush()
}

func (lnk *link) encode(crate int, orbit uint32, bc uint16, hits []hit, page int) error {
	cnt := uint16(lnk.events & 0xfff)

	ws := append(lnk.words[:0],
		0, // common header
		orbit,
		0, // global header
		eformat.DRMStatusHeader1{ParticipatingSlotID: lnk.mask, DRMhSize: 5}.Word(),
		eformat.DRMStatusHeader2{SlotEnableMask: lnk.mask}.Word(),
		eformat.DRMStatusHeader3{L0BCID: bc}.Word(),
		eformat.DRMStatusHeader4{}.Word(),
		eformat.DRMStatusHeader5,
	)
	if lnk.mask&1 != 0 {
		ws = append(ws, eformat.LTMGlobalHeader, eformat.LTMGlobalTrailer)
	}

	for itrm := 0; itrm < geo.NTRMs; itrm++ {
		if lnk.mask&(1<<(itrm+1)) == 0 {
			continue
		}
		slot := uint8(itrm + geo.FirstTRMSlot)
		beg := len(ws)
		ws = append(ws, 0) // TRM global header
		for ich := uint8(0); ich < geo.NChains; ich++ {
			ws = append(ws, eformat.ChainHeader{Chain: ich, SlotID: slot, BunchID: bc}.Word())
			for len(hits) > 0 && hits[0].trm == itrm && hits[0].chain == ich {
				h := hits[0]
				hits = hits[1:]
				ws = append(ws,
					eformat.TDCHit{HitTime: h.lead, Chan: h.ch, TDCID: h.tdc, PSBits: eformat.Leading}.Word(),
					eformat.TDCHit{HitTime: h.trail, Chan: h.ch, TDCID: h.tdc, PSBits: eformat.Trailing}.Word(),
				)
			}
			ws = append(ws, eformat.ChainTrailer{Chain: ich, EventCounter: cnt}.Word())
		}
		ws = append(ws, eformat.TRMGlobalTrailer{}.Word())

		nw := len(ws) - beg
		if nw > maxTRMWords {
			lnk.words = ws
			return xerrors.Errorf("too many words for TRM %d (words=%d)", itrm, nw)
		}
		ws[beg] = eformat.TRMGlobalHeader{
			SlotID:      slot,
			EventWords:  uint16(nw),
			EventNumber: cnt % 1024,
		}.Word()
	}

	ws = append(ws, eformat.DRMGlobalTrailer{LocalEventCounter: cnt}.Word())
	if len(ws)%eformat.GBTWords != 0 {
		ws = append(ws, eformat.Filler)
	}
	ws[0] = eformat.DRMCommonHeader{Payload: uint32(len(ws) - 1)}.Word()
	ws[2] = eformat.DRMGlobalHeader{EventWords: uint32(len(ws)), DRMID: uint8(crate)}.Word()

	lnk.words = ws
	lnk.events++
	lnk.paginate(crate, orbit, bc, page)
	return nil
}

// maxTRMWords is the largest number of words of a TRM block.
const maxTRMWords = 1<<13 - 1

// trmWords returns the number of words of a TRM block holding n hits:
// global header and trailer, chain headers and trailers, and one
// leading plus one trailing word per hit.
func trmWords(n int) int {
	return 2 + 2*geo.NChains + 2*n
}

// paginate appends the pages of the current event to the link buffer.
func (lnk *link) paginate(crate int, orbit uint32, bc uint16, page int) {
	var (
		ws   = lnk.words
		ngbt = len(ws) / eformat.GBTWords
		nmax = (page - eformat.RDHSize) / eformat.GBTSize
	)

	for i, ipage := 0, 0; i < ngbt; ipage++ {
		n := ngbt - i
		if n > nmax {
			n = nmax
		}
		size := eformat.RDHSize + n*eformat.GBTSize
		beg := len(lnk.buf)
		lnk.buf = grow(lnk.buf, size)
		p := lnk.buf[beg:]
		for g := 0; g < n; g++ {
			gbt := p[eformat.RDHSize+g*eformat.GBTSize:]
			eformat.PutWord(gbt, 0, ws[2*(i+g)])
			eformat.PutWord(gbt, 1, ws[2*(i+g)+1])
			for j := 2 * eformat.WordSize; j < eformat.GBTSize; j++ {
				gbt[j] = 0
			}
		}
		i += n

		hdr := eformat.RDH{
			Version:        eformat.RDHVersion,
			HeaderSize:     eformat.RDHSize,
			FEEID:          uint16(crate),
			OffsetToNext:   uint16(size),
			MemorySize:     uint16(size),
			LinkID:         uint8(crate),
			PacketCounter:  lnk.packets,
			TriggerOrbit:   orbit,
			HeartbeatOrbit: orbit,
			TriggerBC:      bc,
			HeartbeatBC:    bc,
			TriggerType:    triggerType,
			PagesCounter:   uint16(ipage),
		}
		if i == ngbt {
			hdr.StopBit = 1
		}
		hdr.Put(p)
		lnk.packets++
	}
}

// grow extends p by n bytes.
func grow(p []byte, n int) []byte {
	if len(p)+n > cap(p) {
		buf := make([]byte, len(p), 2*cap(p)+n)
		copy(buf, p)
		p = buf
	}
	return p[:len(p)+n]
}
