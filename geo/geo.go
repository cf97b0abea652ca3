// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package geo holds the readout geometry constants of the TOF detector
// and the mapping between electronic indices and channel indices.
package geo // import "github.com/go-lpc/tof/geo"

const (
	NCrates   = 72 // number of readout crates (one link per crate)
	NTRMs     = 10 // number of TRMs per crate
	NChains   = 2  // number of chains per TRM
	NTDCs     = 15 // number of TDCs per chain
	NChannels = 8  // number of channels per TDC

	// NECH is the total number of electronic channels.
	NECH = NCrates * NTRMs * NChains * NTDCs * NChannels

	FirstTRMSlot = 3 // slot id of the first TRM in a crate
	LTMSlot      = 2 // slot id of the LTM
	DRMSlot      = 1 // slot id of the DRM

	BCsPerOrbit     = 3564
	WindowsPerOrbit = 3
	BCsPerWindow    = BCsPerOrbit / WindowsPerOrbit

	TDCBinsPerBC   = 1024 // fine time bins per bunch crossing
	RatioTOTTDCBin = 2    // TDC bins per TOT bin

	FrameBits = 13 // compressed frames cover 1<<FrameBits fine time bins
)

// ECH returns the electronic index of the channel identified by its
// crate, TRM (0-based), chain, TDC and channel numbers.
func ECH(crate, trm, chain, tdc, ch int) int {
	return (((crate*NTRMs+trm)*NChains+chain)*NTDCs+tdc)*NChannels + ch
}

// Split decomposes an electronic index.
func Split(ech int) (crate, trm, chain, tdc, ch int) {
	ch = ech % NChannels
	ech /= NChannels
	tdc = ech % NTDCs
	ech /= NTDCs
	chain = ech % NChains
	ech /= NChains
	trm = ech % NTRMs
	crate = ech / NTRMs
	return crate, trm, chain, tdc, ch
}

// ChannelMap converts electronic indices to detector channel indices
// and back.
type ChannelMap interface {
	Channel(ech int) int32
	Electronic(ch int32) int
}

// Identity is the channel map where channel and electronic indices coincide.
var Identity ChannelMap = identity{}

type identity struct{}

func (identity) Channel(ech int) int32   { return int32(ech) }
func (identity) Electronic(ch int32) int { return int(ch) }
