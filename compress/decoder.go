// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"log"
	"sort"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"golang.org/x/exp/maps"
	"golang.org/x/xerrors"
)

// Decoder decodes compressed buffers into digits, grouped by readout window.
type Decoder struct {
	msg   *log.Logger
	chmap geo.ChannelMap

	words []uint32
	evt   []tof.Digit // digits of the event being decoded
	wins  map[uint64][]tof.Digit

	events int
	diags  int
	bad    int
}

// NewDecoder returns a new compressed data decoder.
func NewDecoder(opts ...Option) *Decoder {
	cfg := newConfig(opts)
	return &Decoder{
		msg:   cfg.msg,
		chmap: cfg.chmap,
		wins:  make(map[uint64][]tof.Digit),
	}
}

// Decode decodes all the pages of the provided compressed buffer.
// Malformed pages and events are logged, counted and dropped.
func (dec *Decoder) Decode(buf []byte) error {
	if buf == nil {
		return xerrors.Errorf("compress: nil buffer")
	}

	dec.words = dec.words[:0]
	for pos := 0; pos < len(buf); {
		hdr, err := eformat.ReadRDH(buf[pos:])
		if err != nil {
			dec.msg.Printf("could not read page header at offset %d: %+v", pos, err)
			dec.bad++
			break
		}
		var (
			off  = int(hdr.OffsetToNext)
			size = int(hdr.MemorySize)
		)
		if off < eformat.RDHSize || pos+off > len(buf) {
			dec.msg.Printf("invalid page offset at %d (offset=%d)", pos, off)
			dec.bad++
			break
		}
		if size > off || size%eformat.WordSize != 0 {
			dec.msg.Printf("invalid page size at %d (memory-size=%d, offset=%d)", pos, size, off)
			dec.bad++
			dec.words = dec.words[:0]
			pos += off
			continue
		}

		for i := pos + eformat.RDHSize; i < pos+size; i += eformat.WordSize {
			dec.words = append(dec.words, eformat.Word(buf[i:], 0))
		}
		pos += off

		if hdr.StopBit != 0 {
			dec.decodeEvents(dec.words)
			dec.words = dec.words[:0]
		}
	}
	if len(dec.words) > 0 {
		dec.msg.Printf("event without stop page at end of buffer")
		dec.decodeEvents(dec.words)
		dec.words = dec.words[:0]
	}
	return nil
}

func (dec *Decoder) decodeEvents(words []uint32) {
	for len(words) > 0 {
		n, ok := dec.decodeEvent(words)
		if !ok {
			dec.bad++
			return
		}
		words = words[n:]
	}
}

// decodeEvent decodes the compressed event at the start of words and
// returns the number of consumed words.
func (dec *Decoder) decodeEvent(words []uint32) (int, bool) {
	dec.evt = dec.evt[:0]
	if len(words) < 3 || !eformat.IsCrateWord(words[0]) {
		dec.msg.Printf("invalid crate header (words=%d)", len(words))
		return 0, false
	}

	var (
		hdr   = eformat.DecodeCrateHeader(words[0])
		orbit = words[1]
		bc0   = uint64(orbit)*geo.BCsPerOrbit + uint64(hdr.BunchID)
		crate = int(hdr.DRMID)
		i     = 2
		n     = len(words)
	)

	for i < n && !eformat.IsCrateWord(words[i]) {
		fh := eformat.DecodeFrameHeader(words[i])
		itrm := int(fh.TRMID) - geo.FirstTRMSlot
		nhits := int(fh.NumberOfHits)
		if itrm < 0 || itrm >= geo.NTRMs || i+1+nhits > n {
			dec.msg.Printf(
				"invalid frame header 0x%08x (trm=%d, hits=%d, words=%d)",
				words[i], fh.TRMID, nhits, n-i-1,
			)
			return 0, false
		}
		i++
		for _, w := range words[i : i+nhits] {
			ph := eformat.DecodePackedHit(w)
			t := uint32(fh.FrameID)<<geo.FrameBits | uint32(ph.Time)
			if int(ph.TDCID) >= geo.NTDCs {
				dec.msg.Printf("invalid packed hit 0x%08x", w)
				return 0, false
			}
			ech := geo.ECH(crate, itrm, int(ph.Chain), int(ph.TDCID), int(ph.Channel))
			dec.evt = append(dec.evt, tof.Digit{
				Channel: dec.chmap.Channel(ech),
				TDC:     uint16(t % geo.TDCBinsPerBC),
				TOT:     uint32(ph.TOT),
				BC:      bc0 + uint64(t/geo.TDCBinsPerBC),
			})
		}
		i += nhits
	}

	if i == n {
		dec.msg.Printf("missing crate trailer")
		return 0, false
	}
	tr := eformat.DecodeCrateTrailer(words[i])
	i++
	ndiags := int(tr.NumberOfDiagnostics)
	if i+ndiags > n {
		dec.msg.Printf("truncated diagnostic words (want=%d, got=%d)", ndiags, n-i)
		return 0, false
	}

	valid := true
	for _, w := range words[i : i+ndiags] {
		d := eformat.DecodeDiagnostic(w)
		if d.SlotID == geo.DRMSlot && d.FaultBits&eformat.DiagDRMHeader != 0 {
			valid = false
		}
	}
	i += ndiags
	dec.events++
	dec.diags += ndiags

	if !valid {
		return i, true
	}
	if crate >= geo.NCrates {
		dec.msg.Printf("invalid DRM id %d: dropping event", crate)
		return i, true
	}

	win := tof.WindowIndex(orbit, hdr.BunchID)
	dec.wins[win] = append(dec.wins[win], dec.evt...)
	return i, true
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

// Events returns the number of decoded events.
func (dec *Decoder) Events() int { return dec.events }

// Diagnostics returns the number of diagnostic words seen.
func (dec *Decoder) Diagnostics() int { return dec.diags }

// Malformed returns the number of malformed pages and events dropped.
func (dec *Decoder) Malformed() int { return dec.bad }
