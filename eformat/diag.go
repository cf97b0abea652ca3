// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eformat

import (
	"fmt"
	"strings"
)

// Fault bits of the crate diagnostic word (slot 1).
const (
	DiagDRMHeader     = 1 << 4
	DiagDRMTrailer    = 1 << 5
	DiagDRMEnableMask = 1 << 6
	DiagDRMCBit       = 1 << 7
	DiagDRMFaultID    = 1 << 8
	DiagDRMRTOBit     = 1 << 9
	DiagDRMDesync     = 1 << 10
	DiagDRMCapacity   = 1 << 11
)

// Fault bits of a TRM diagnostic word (slots 3 to 12).
const (
	DiagTRMUnexpected   = 1 << 4
	DiagTRMHeader       = 1 << 5
	DiagTRMTrailer      = 1 << 6
	DiagTRMEventCounter = 1 << 7
	DiagTRMEBit         = 1 << 8
)

// Fault bits of chain A inside a TRM diagnostic word.
// Chain B bits are obtained with DiagChain.
const (
	DiagChainHeader       = 1 << 9
	DiagChainTrailer      = 1 << 10
	DiagChainTDCErrors    = 1 << 11
	DiagChainEventCounter = 1 << 12
	DiagChainStatus       = 1 << 13
	DiagChainBunchID      = 1 << 14

	chainShift = 6
)

// DiagChain returns the chain fault bit for the provided chain.
func DiagChain(bit uint32, chain int) uint32 {
	return bit << (chainShift * chain)
}

// Diagnostic is a per-slot diagnostic word.
type Diagnostic struct {
	SlotID    uint8
	FaultBits uint32
}

func DecodeDiagnostic(w uint32) Diagnostic {
	return Diagnostic{
		SlotID:    slotID(w),
		FaultBits: w &^ 0xf,
	}
}

func (d Diagnostic) Word() uint32 {
	return uint32(d.SlotID&0xf) | d.FaultBits&^0xf
}

var (
	drmFaults = []struct {
		bit  uint32
		name string
	}{
		{DiagDRMHeader, "drm-header"},
		{DiagDRMTrailer, "drm-trailer"},
		{DiagDRMEnableMask, "enable-mask"},
		{DiagDRMCBit, "cbit"},
		{DiagDRMFaultID, "fault-id"},
		{DiagDRMRTOBit, "rto-bit"},
		{DiagDRMDesync, "desync"},
		{DiagDRMCapacity, "capacity"},
	}
	trmFaults = []struct {
		bit  uint32
		name string
	}{
		{DiagTRMUnexpected, "unexpected"},
		{DiagTRMHeader, "trm-header"},
		{DiagTRMTrailer, "trm-trailer"},
		{DiagTRMEventCounter, "event-counter"},
		{DiagTRMEBit, "ebit"},
	}
	chainFaults = []struct {
		bit  uint32
		name string
	}{
		{DiagChainHeader, "header"},
		{DiagChainTrailer, "trailer"},
		{DiagChainTDCErrors, "tdc-errors"},
		{DiagChainEventCounter, "event-counter"},
		{DiagChainStatus, "status"},
		{DiagChainBunchID, "bunch-id"},
	}
)

// Faults returns the names of the faults flagged in the diagnostic word.
func (d Diagnostic) Faults() []string {
	var o []string
	switch {
	case d.SlotID == 1:
		for _, f := range drmFaults {
			if d.FaultBits&f.bit != 0 {
				o = append(o, f.name)
			}
		}
	case 3 <= d.SlotID && d.SlotID <= 12:
		for _, f := range trmFaults {
			if d.FaultBits&f.bit != 0 {
				o = append(o, f.name)
			}
		}
		for i, chain := range []string{"chain-a", "chain-b"} {
			for _, f := range chainFaults {
				if d.FaultBits&DiagChain(f.bit, i) != 0 {
					o = append(o, chain+"-"+f.name)
				}
			}
		}
	}
	return o
}

func (d Diagnostic) String() string {
	o := new(strings.Builder)
	o.WriteString("slot=")
	o.WriteString(slotName(d.SlotID))
	o.WriteString(" faults=[")
	o.WriteString(strings.Join(d.Faults(), ","))
	o.WriteString("]")
	return o.String()
}

func slotName(slot uint8) string {
	switch {
	case slot == 1:
		return "drm"
	case slot == 2:
		return "ltm"
	case 3 <= slot && slot <= 12:
		return fmt.Sprintf("trm-%02d", slot-3)
	}
	return "unknown"
}
