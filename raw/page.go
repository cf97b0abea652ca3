// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"encoding/binary"
	"log"

	"github.com/go-lpc/tof/eformat"
)

// walker iterates over the events of a link buffer.
// The payloads of consecutive pages are concatenated until a page with
// the stop bit set closes the event.
type walker struct {
	msg *log.Logger
	buf []byte
	pos int

	hdr   eformat.RDH // header of the first page of the current event
	words []uint32    // useful words of the current event
	trunc bool        // current event was not closed by a stop page

	pages    int
	empty    int
	capacity int
}

func (w *walker) reset(buf []byte) {
	w.buf = buf
	w.pos = 0
	w.words = w.words[:0]
	w.trunc = false
	w.pages = 0
	w.empty = 0
	w.capacity = 0
}

// next advances to the next complete event.
func (w *walker) next() bool {
	w.words = w.words[:0]
	w.trunc = false

	for w.pos < len(w.buf) {
		beg := w.pos
		hdr, err := eformat.ReadRDH(w.buf[beg:])
		off := int(hdr.OffsetToNext)
		if err != nil {
			w.capacity++
			w.words = w.words[:0]
			if len(w.buf)-beg < eformat.RDHSize || off < eformat.RDHSize || beg+off > len(w.buf) {
				w.msg.Printf("could not read page header at offset %d: %+v", beg, err)
				w.pos = len(w.buf)
				return false
			}
			w.msg.Printf(
				"could not read page header at offset %d: %+v: dropping page and event",
				beg, err,
			)
			w.pos += off
			w.pages++
			continue
		}

		if off < eformat.RDHSize || beg+off > len(w.buf) {
			w.msg.Printf(
				"invalid page offset at %d (offset=%d, len=%d): dropping %d bytes",
				beg, off, len(w.buf), len(w.buf)-beg,
			)
			w.capacity++
			w.pos = len(w.buf)
			w.words = w.words[:0]
			return false
		}
		w.pos += off
		w.pages++

		size := int(hdr.MemorySize)
		switch {
		case size < int(hdr.HeaderSize) || size == eformat.RDHSize:
			w.empty++
			if hdr.StopBit != 0 && len(w.words) > 0 {
				return true
			}
			continue
		case size > off || (size-eformat.RDHSize)%eformat.GBTSize != 0:
			w.msg.Printf(
				"page capacity fault at %d (memory-size=%d, offset=%d): dropping page and event",
				beg, size, off,
			)
			w.capacity++
			w.words = w.words[:0]
			continue
		}

		if len(w.words) == 0 {
			w.hdr = hdr
		}
		payload := w.buf[beg+eformat.RDHSize : beg+size]
		for i := 0; i < len(payload); i += eformat.GBTSize {
			w.words = append(w.words,
				binary.LittleEndian.Uint32(payload[i:]),
				binary.LittleEndian.Uint32(payload[i+eformat.WordSize:]),
			)
		}

		if hdr.StopBit != 0 {
			return true
		}
	}

	if len(w.words) > 0 {
		w.msg.Printf("event without stop page at end of buffer (words=%d)", len(w.words))
		w.capacity++
		w.trunc = true
		return true
	}
	return false
}
