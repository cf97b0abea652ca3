// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eformat

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

const (
	RDHSize    = 64 // size of a page header, in bytes
	RDHVersion = 4
)

// RDH is the header of a readout page.
type RDH struct {
	Version        uint8
	HeaderSize     uint8
	BlockLength    uint16
	FEEID          uint16 // crate id
	Priority       uint8
	OffsetToNext   uint16 // offset to the next page, in bytes
	MemorySize     uint16 // size of header and payload, in bytes
	LinkID         uint8
	PacketCounter  uint8
	CRUID          uint16 // 12 bits
	DPWID          uint8  // 4 bits
	TriggerOrbit   uint32
	HeartbeatOrbit uint32
	TriggerBC      uint16
	HeartbeatBC    uint16
	TriggerType    uint32
	PagesCounter   uint16
	StopBit        uint8
}

// ReadRDH decodes a page header from p.
func ReadRDH(p []byte) (RDH, error) {
	var h RDH
	if len(p) < RDHSize {
		return h, xerrors.Errorf("eformat: short RDH buffer (len=%d)", len(p))
	}
	h.Version = p[0]
	h.HeaderSize = p[1]
	h.BlockLength = binary.LittleEndian.Uint16(p[2:])
	h.FEEID = binary.LittleEndian.Uint16(p[4:])
	h.Priority = p[6]
	h.OffsetToNext = binary.LittleEndian.Uint16(p[8:])
	h.MemorySize = binary.LittleEndian.Uint16(p[10:])
	h.LinkID = p[12]
	h.PacketCounter = p[13]
	cru := binary.LittleEndian.Uint16(p[14:])
	h.CRUID = cru & 0xfff
	h.DPWID = uint8(cru >> 12)
	h.TriggerOrbit = binary.LittleEndian.Uint32(p[16:])
	h.HeartbeatOrbit = binary.LittleEndian.Uint32(p[20:])
	h.TriggerBC = binary.LittleEndian.Uint16(p[32:]) & 0xfff
	h.HeartbeatBC = binary.LittleEndian.Uint16(p[34:]) & 0xfff
	h.TriggerType = binary.LittleEndian.Uint32(p[36:])
	h.PagesCounter = binary.LittleEndian.Uint16(p[40:])
	h.StopBit = p[42]

	if h.HeaderSize != RDHSize {
		return h, xerrors.Errorf("eformat: invalid RDH header size (got=%d, want=%d)", h.HeaderSize, RDHSize)
	}
	return h, nil
}

// Put encodes the page header into p.
// Put panics if p is shorter than RDHSize.
func (h *RDH) Put(p []byte) {
	_ = p[RDHSize-1]
	for i := range p[:RDHSize] {
		p[i] = 0
	}
	p[0] = h.Version
	p[1] = h.HeaderSize
	binary.LittleEndian.PutUint16(p[2:], h.BlockLength)
	binary.LittleEndian.PutUint16(p[4:], h.FEEID)
	p[6] = h.Priority
	binary.LittleEndian.PutUint16(p[8:], h.OffsetToNext)
	binary.LittleEndian.PutUint16(p[10:], h.MemorySize)
	p[12] = h.LinkID
	p[13] = h.PacketCounter
	binary.LittleEndian.PutUint16(p[14:], h.CRUID&0xfff|uint16(h.DPWID&0xf)<<12)
	binary.LittleEndian.PutUint32(p[16:], h.TriggerOrbit)
	binary.LittleEndian.PutUint32(p[20:], h.HeartbeatOrbit)
	binary.LittleEndian.PutUint16(p[32:], h.TriggerBC&0xfff)
	binary.LittleEndian.PutUint16(p[34:], h.HeartbeatBC&0xfff)
	binary.LittleEndian.PutUint32(p[36:], h.TriggerType)
	binary.LittleEndian.PutUint16(p[40:], h.PagesCounter)
	p[42] = h.StopBit
}
