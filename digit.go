// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tof

import (
	"sort"

	"github.com/go-lpc/tof/geo"
)

// Digit is a decoded TOF measurement.
type Digit struct {
	Channel int32  // channel index
	TDC     uint16 // fine time residual, in [0, 1024)
	TOT     uint32 // time-over-threshold
	BC      uint64 // absolute bunch crossing
}

// Window holds the digits of one readout window.
type Window struct {
	Index  uint64
	Digits []Digit
}

// Orbit returns the orbit of the window.
func (w Window) Orbit() uint32 {
	orbit, _ := WindowStart(w.Index)
	return orbit
}

// FirstBC returns the absolute bunch crossing opening the window.
func (w Window) FirstBC() uint64 {
	orbit, bc := WindowStart(w.Index)
	return uint64(orbit)*geo.BCsPerOrbit + uint64(bc)
}

// WindowIndex returns the index of the readout window opened at the
// provided orbit and local bunch crossing.
func WindowIndex(orbit uint32, bc uint16) uint64 {
	sub := uint64(bc) / geo.BCsPerWindow
	if sub >= geo.WindowsPerOrbit {
		sub = geo.WindowsPerOrbit - 1
	}
	return uint64(orbit)*geo.WindowsPerOrbit + sub
}

// WindowStart returns the orbit and local bunch crossing opening
// the readout window idx.
func WindowStart(idx uint64) (orbit uint32, bc uint16) {
	orbit = uint32(idx / geo.WindowsPerOrbit)
	bc = uint16(idx%geo.WindowsPerOrbit) * geo.BCsPerWindow
	return orbit, bc
}

// SortDigits sorts the provided digits by electronic index,
// preserving the order of digits sharing the same index.
func SortDigits(ds []Digit, m geo.ChannelMap) {
	if m == nil {
		m = geo.Identity
	}
	sort.SliceStable(ds, func(i, j int) bool {
		return m.Electronic(ds[i].Channel) < m.Electronic(ds[j].Channel)
	})
}
