// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eformat

// CrateHeader opens a compressed crate event.
type CrateHeader struct {
	BunchID        uint16
	SlotEnableMask uint16
	DRMID          uint8
}

func DecodeCrateHeader(w uint32) CrateHeader {
	return CrateHeader{
		BunchID:        uint16(bits(w, 0, 12)),
		SlotEnableMask: uint16(bits(w, 12, 11)),
		DRMID:          uint8(bits(w, 24, 7)),
	}
}

func (h CrateHeader) Word() uint32 {
	return field(uint32(h.BunchID), 0, 12) |
		field(uint32(h.SlotEnableMask), 12, 11) |
		field(uint32(h.DRMID), 24, 7) |
		1<<31
}

// FrameHeader opens a frame of packed hits of one TRM.
type FrameHeader struct {
	NumberOfHits uint16
	FrameID      uint8
	TRMID        uint8 // slot id of the TRM
	DeltaBC      uint8
}

func DecodeFrameHeader(w uint32) FrameHeader {
	return FrameHeader{
		NumberOfHits: uint16(bits(w, 0, 16)),
		FrameID:      uint8(bits(w, 16, 8)),
		TRMID:        uint8(bits(w, 24, 4)),
		DeltaBC:      uint8(bits(w, 28, 3)),
	}
}

func (h FrameHeader) Word() uint32 {
	return field(uint32(h.NumberOfHits), 0, 16) |
		field(uint32(h.FrameID), 16, 8) |
		field(uint32(h.TRMID), 24, 4) |
		field(uint32(h.DeltaBC), 28, 3)
}

// PackedHit is a paired leading/trailing measurement inside a frame.
type PackedHit struct {
	TOT     uint16 // 11 bits
	Time    uint16 // 13 bits, residual within the frame
	Channel uint8
	TDCID   uint8
	Chain   uint8
}

func DecodePackedHit(w uint32) PackedHit {
	return PackedHit{
		TOT:     uint16(bits(w, 0, 11)),
		Time:    uint16(bits(w, 11, 13)),
		Channel: uint8(bits(w, 24, 3)),
		TDCID:   uint8(bits(w, 27, 4)),
		Chain:   uint8(bits(w, 31, 1)),
	}
}

func (h PackedHit) Word() uint32 {
	return field(uint32(h.TOT), 0, 11) |
		field(uint32(h.Time), 11, 13) |
		field(uint32(h.Channel), 24, 3) |
		field(uint32(h.TDCID), 27, 4) |
		field(uint32(h.Chain), 31, 1)
}

// MaxTOT is the largest time-over-threshold a packed hit can hold.
const MaxTOT = 1<<11 - 1

// CrateTrailer closes a compressed crate event.
// It is followed by NumberOfDiagnostics diagnostic words.
type CrateTrailer struct {
	NumberOfDiagnostics uint8
	EventCounter        uint16
}

func DecodeCrateTrailer(w uint32) CrateTrailer {
	return CrateTrailer{
		NumberOfDiagnostics: uint8(bits(w, 0, 4)),
		EventCounter:        uint16(bits(w, 4, 12)),
	}
}

func (t CrateTrailer) Word() uint32 {
	return field(uint32(t.NumberOfDiagnostics), 0, 4) |
		field(uint32(t.EventCounter), 4, 12) |
		1<<31
}

// MaxDiagnostics is the largest number of diagnostic words per event.
const MaxDiagnostics = 1<<4 - 1

// IsCrateWord returns whether w is a crate header or a crate trailer.
func IsCrateWord(w uint32) bool {
	return w&0x80000000 != 0
}
