// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert TOF digits to/from LCIO.
//
// Each readout window is stored as one LCIO event, whose time stamp is
// the window index. The digits of the window are stored in the TOFDigits
// collection of generic objects, one object per digit holding
// [channel, tdc, tot, bc>>32, bc&0xffffffff].
package xcnv // import "github.com/go-lpc/tof/internal/xcnv"

import (
	"github.com/go-lpc/tof"
)

const (
	// Collection is the name of the LCIO collection of digits.
	Collection = "TOFDigits"

	detector = "TOF"
	nfields  = 5
)

// Source is a decoder holding digits grouped by readout window.
type Source interface {
	Windows() []uint64
	Take(window uint64) []tof.Digit
}

func i32sFrom(d tof.Digit) []int32 {
	return []int32{
		d.Channel,
		int32(d.TDC),
		int32(d.TOT),
		int32(uint32(d.BC >> 32)),
		int32(uint32(d.BC)),
	}
}

func digitFrom(raw []int32) tof.Digit {
	return tof.Digit{
		Channel: raw[0],
		TDC:     uint16(raw[1]),
		TOT:     uint32(raw[2]),
		BC:      uint64(uint32(raw[3]))<<32 | uint64(uint32(raw[4])),
	}
}
