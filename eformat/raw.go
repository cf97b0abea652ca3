// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eformat

// Hit phases.
const (
	Leading  = 0x1
	Trailing = 0x2
)

// DRMCommonHeader is the first word of a crate record.
type DRMCommonHeader struct {
	Payload uint32 // number of payload words
}

func DecodeDRMCommonHeader(w uint32) DRMCommonHeader {
	return DRMCommonHeader{Payload: bits(w, 0, 28)}
}

func (h DRMCommonHeader) Word() uint32 {
	return field(h.Payload, 0, 28) | 0x4<<28
}

type DRMGlobalHeader struct {
	EventWords uint32
	DRMID      uint8
}

func DecodeDRMGlobalHeader(w uint32) DRMGlobalHeader {
	return DRMGlobalHeader{
		EventWords: bits(w, 4, 17),
		DRMID:      uint8(bits(w, 21, 7)),
	}
}

func (h DRMGlobalHeader) Word() uint32 {
	return 0x1 |
		field(h.EventWords, 4, 17) |
		field(uint32(h.DRMID), 21, 7) |
		0x4<<28
}

type DRMStatusHeader1 struct {
	ParticipatingSlotID uint16
	CBit                bool
	VersID              uint8
	DRMhSize            uint8
}

func DecodeDRMStatusHeader1(w uint32) DRMStatusHeader1 {
	return DRMStatusHeader1{
		ParticipatingSlotID: uint16(bits(w, 4, 11)),
		CBit:                bits(w, 15, 1) == 1,
		VersID:              uint8(bits(w, 16, 5)),
		DRMhSize:            uint8(bits(w, 21, 4)),
	}
}

func (h DRMStatusHeader1) Word() uint32 {
	return 0x1 |
		field(uint32(h.ParticipatingSlotID), 4, 11) |
		flag(h.CBit, 15) |
		field(uint32(h.VersID), 16, 5) |
		field(uint32(h.DRMhSize), 21, 4) |
		0x4<<28
}

type DRMStatusHeader2 struct {
	SlotEnableMask uint16
	FaultID        uint16
	RTOBit         bool
}

func DecodeDRMStatusHeader2(w uint32) DRMStatusHeader2 {
	return DRMStatusHeader2{
		SlotEnableMask: uint16(bits(w, 4, 11)),
		FaultID:        uint16(bits(w, 16, 11)),
		RTOBit:         bits(w, 27, 1) == 1,
	}
}

func (h DRMStatusHeader2) Word() uint32 {
	return 0x1 |
		field(uint32(h.SlotEnableMask), 4, 11) |
		field(uint32(h.FaultID), 16, 11) |
		flag(h.RTOBit, 27) |
		0x4<<28
}

type DRMStatusHeader3 struct {
	L0BCID      uint16
	RunTimeInfo uint16
}

func DecodeDRMStatusHeader3(w uint32) DRMStatusHeader3 {
	return DRMStatusHeader3{
		L0BCID:      uint16(bits(w, 4, 12)),
		RunTimeInfo: uint16(bits(w, 16, 12)),
	}
}

func (h DRMStatusHeader3) Word() uint32 {
	return 0x1 |
		field(uint32(h.L0BCID), 4, 12) |
		field(uint32(h.RunTimeInfo), 16, 12) |
		0x4<<28
}

type DRMStatusHeader4 struct {
	Temperature uint16
	ACKSelect   bool
	SensAD      uint8
}

func DecodeDRMStatusHeader4(w uint32) DRMStatusHeader4 {
	return DRMStatusHeader4{
		Temperature: uint16(bits(w, 4, 10)),
		ACKSelect:   bits(w, 15, 1) == 1,
		SensAD:      uint8(bits(w, 16, 3)),
	}
}

func (h DRMStatusHeader4) Word() uint32 {
	return 0x1 |
		field(uint32(h.Temperature), 4, 10) |
		flag(h.ACKSelect, 15) |
		field(uint32(h.SensAD), 16, 3) |
		0x4<<28
}

// DRMStatusHeader5 carries no information.
const DRMStatusHeader5 = 0x40000001

type DRMGlobalTrailer struct {
	LocalEventCounter uint16
}

func DecodeDRMGlobalTrailer(w uint32) DRMGlobalTrailer {
	return DRMGlobalTrailer{LocalEventCounter: uint16(bits(w, 4, 12))}
}

func (t DRMGlobalTrailer) Word() uint32 {
	return 0x1 | field(uint32(t.LocalEventCounter), 4, 12) | 0x5<<28
}

const (
	LTMGlobalHeader  = 0x40000002
	LTMGlobalTrailer = 0x50000002
)

type TRMGlobalHeader struct {
	SlotID      uint8
	EventWords  uint16
	EventNumber uint16
	EBit        bool
}

func DecodeTRMGlobalHeader(w uint32) TRMGlobalHeader {
	return TRMGlobalHeader{
		SlotID:      slotID(w),
		EventWords:  uint16(bits(w, 4, 13)),
		EventNumber: uint16(bits(w, 17, 10)),
		EBit:        bits(w, 27, 1) == 1,
	}
}

func (h TRMGlobalHeader) Word() uint32 {
	return field(uint32(h.SlotID), 0, 4) |
		field(uint32(h.EventWords), 4, 13) |
		field(uint32(h.EventNumber), 17, 10) |
		flag(h.EBit, 27) |
		0x4<<28
}

type TRMGlobalTrailer struct {
	EventCRC uint16
	Temp     uint8
	SendAd   uint8
	Chain    uint8
	TSBit    bool
	LBit     bool
}

func DecodeTRMGlobalTrailer(w uint32) TRMGlobalTrailer {
	return TRMGlobalTrailer{
		EventCRC: uint16(bits(w, 2, 12)),
		Temp:     uint8(bits(w, 14, 8)),
		SendAd:   uint8(bits(w, 22, 3)),
		Chain:    uint8(bits(w, 25, 1)),
		TSBit:    bits(w, 26, 1) == 1,
		LBit:     bits(w, 27, 1) == 1,
	}
}

func (t TRMGlobalTrailer) Word() uint32 {
	return 0x3 |
		field(uint32(t.EventCRC), 2, 12) |
		field(uint32(t.Temp), 14, 8) |
		field(uint32(t.SendAd), 22, 3) |
		field(uint32(t.Chain), 25, 1) |
		flag(t.TSBit, 26) |
		flag(t.LBit, 27) |
		0x5<<28
}

// ChainHeader is the header of chain A (Chain=0) or chain B (Chain=1).
type ChainHeader struct {
	Chain    uint8
	SlotID   uint8
	BunchID  uint16
	PB24Temp uint8
	PB24ID   uint8
	TSBit    bool
}

func DecodeChainHeader(w uint32) ChainHeader {
	return ChainHeader{
		Chain:    uint8(wordType(w) >> 1),
		SlotID:   slotID(w),
		BunchID:  uint16(bits(w, 4, 12)),
		PB24Temp: uint8(bits(w, 16, 8)),
		PB24ID:   uint8(bits(w, 24, 3)),
		TSBit:    bits(w, 27, 1) == 1,
	}
}

func (h ChainHeader) Word() uint32 {
	return field(uint32(h.SlotID), 0, 4) |
		field(uint32(h.BunchID), 4, 12) |
		field(uint32(h.PB24Temp), 16, 8) |
		field(uint32(h.PB24ID), 24, 3) |
		flag(h.TSBit, 27) |
		field(uint32(h.Chain)<<1, 28, 4)
}

// ChainTrailer is the trailer of chain A (Chain=0) or chain B (Chain=1).
type ChainTrailer struct {
	Chain        uint8
	Status       uint8
	EventCounter uint16
}

func DecodeChainTrailer(w uint32) ChainTrailer {
	return ChainTrailer{
		Chain:        uint8(wordType(w) >> 1),
		Status:       uint8(bits(w, 0, 4)),
		EventCounter: uint16(bits(w, 16, 12)),
	}
}

func (t ChainTrailer) Word() uint32 {
	return field(uint32(t.Status), 0, 4) |
		field(uint32(t.EventCounter), 16, 12) |
		field(uint32(t.Chain)<<1|1, 28, 4)
}

// TDCHit is a leading or trailing edge measured by a TDC.
type TDCHit struct {
	HitTime uint32 // 21-bit fine time
	Chan    uint8
	TDCID   uint8
	EBit    bool
	PSBits  uint8 // Leading or Trailing
}

func DecodeTDCHit(w uint32) TDCHit {
	return TDCHit{
		HitTime: bits(w, 0, 21),
		Chan:    uint8(bits(w, 21, 3)),
		TDCID:   uint8(bits(w, 24, 4)),
		EBit:    bits(w, 28, 1) == 1,
		PSBits:  uint8(bits(w, 29, 2)),
	}
}

func (h TDCHit) Word() uint32 {
	return field(h.HitTime, 0, 21) |
		field(uint32(h.Chan), 21, 3) |
		field(uint32(h.TDCID), 24, 4) |
		flag(h.EBit, 28) |
		field(uint32(h.PSBits), 29, 2) |
		1<<31
}

type TDCError struct {
	Flags uint16
	TDCID uint8
}

func DecodeTDCError(w uint32) TDCError {
	return TDCError{
		Flags: uint16(bits(w, 0, 15)),
		TDCID: uint8(bits(w, 24, 4)),
	}
}

func (e TDCError) Word() uint32 {
	return field(uint32(e.Flags), 0, 15) |
		field(uint32(e.TDCID), 24, 4) |
		0x6<<28
}
