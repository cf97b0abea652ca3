// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eformat describes the 32-bit words of the TOF raw and
// compressed data formats, and the header of readout pages.
//
// All words are stored in little-endian byte order.
package eformat // import "github.com/go-lpc/tof/eformat"

import (
	"encoding/binary"
)

const (
	WordSize = 4  // size of a data word, in bytes
	GBTSize  = 16 // size of a GBT word, in bytes
	GBTWords = 2  // number of useful data words per GBT word

	Filler = 0x70000000 // filler word
)

// Level describes the nesting level at which a raw word is decoded.
type Level uint8

const (
	LevelCommon Level = iota // first word of a crate record
	LevelOrbit               // second word of a crate record
	LevelStatus              // DRM status headers
	LevelDRM                 // crate record body
	LevelLTM                 // inside an LTM block
	LevelTRM                 // inside a TRM block
	LevelChain               // inside a TRM chain
)

// Kind is the kind of a raw word.
type Kind uint8

const (
	Unknown Kind = iota
	KindDRMCommonHeader
	KindDRMOrbitHeader
	KindDRMGlobalHeader
	KindDRMStatusHeader
	KindDRMGlobalTrailer
	KindLTMGlobalHeader
	KindLTMData
	KindLTMGlobalTrailer
	KindTRMGlobalHeader
	KindTRMGlobalTrailer
	KindChainAHeader
	KindChainATrailer
	KindChainBHeader
	KindChainBTrailer
	KindTDCHit
	KindTDCError
	KindFiller
)

var kindNames = [...]string{
	Unknown:              "Unknown",
	KindDRMCommonHeader:  "DRM Common Header",
	KindDRMOrbitHeader:   "DRM Orbit Header",
	KindDRMGlobalHeader:  "DRM Global Header",
	KindDRMStatusHeader:  "DRM Status Header",
	KindDRMGlobalTrailer: "DRM Global Trailer",
	KindLTMGlobalHeader:  "LTM Global Header",
	KindLTMData:          "LTM Data",
	KindLTMGlobalTrailer: "LTM Global Trailer",
	KindTRMGlobalHeader:  "TRM Global Header",
	KindTRMGlobalTrailer: "TRM Global Trailer",
	KindChainAHeader:     "TRM Chain-A Header",
	KindChainATrailer:    "TRM Chain-A Trailer",
	KindChainBHeader:     "TRM Chain-B Header",
	KindChainBTrailer:    "TRM Chain-B Trailer",
	KindTDCHit:           "TDC Hit",
	KindTDCError:         "TDC Error",
	KindFiller:           "Filler",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[Unknown]
}

// Classify returns the kind of the raw word w, decoded at nesting level lvl.
func Classify(lvl Level, w uint32) Kind {
	switch lvl {
	case LevelCommon:
		if wordType(w) == 0x4 {
			return KindDRMCommonHeader
		}
		return Unknown
	case LevelOrbit:
		return KindDRMOrbitHeader
	case LevelStatus:
		if w&0xf000000f == 0x40000001 {
			return KindDRMStatusHeader
		}
		return Unknown
	}

	k := classify(w)
	if lvl == LevelLTM {
		switch k {
		case KindLTMGlobalTrailer, KindTRMGlobalHeader, KindDRMGlobalTrailer:
			return k
		}
		return KindLTMData
	}
	return k
}

func classify(w uint32) Kind {
	if w&0x80000000 != 0 {
		return KindTDCHit
	}
	switch wordType(w) {
	case 0x0:
		return KindChainAHeader
	case 0x1:
		return KindChainATrailer
	case 0x2:
		return KindChainBHeader
	case 0x3:
		return KindChainBTrailer
	case 0x4:
		switch slot := slotID(w); {
		case slot == 1:
			return KindDRMGlobalHeader
		case slot == 2:
			return KindLTMGlobalHeader
		case 3 <= slot && slot <= 12:
			return KindTRMGlobalHeader
		}
	case 0x5:
		switch {
		case w&0xf == 0x1:
			return KindDRMGlobalTrailer
		case w&0xf == 0x2:
			return KindLTMGlobalTrailer
		case w&0x3 == 0x3:
			return KindTRMGlobalTrailer
		}
	case 0x6:
		return KindTDCError
	case 0x7:
		if w == Filler {
			return KindFiller
		}
	}
	return Unknown
}

func wordType(w uint32) uint32 { return w >> 28 }
func slotID(w uint32) uint8    { return uint8(w & 0xf) }

func bits(w uint32, off, n uint) uint32 {
	return (w >> off) & (1<<n - 1)
}

func field(v uint32, off, n uint) uint32 {
	return (v & (1<<n - 1)) << off
}

func flag(v bool, off uint) uint32 {
	if v {
		return 1 << off
	}
	return 0
}

// Word returns the i-th little-endian word of p.
func Word(p []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(p[i*WordSize:])
}

// PutWord stores w as the i-th little-endian word of p.
func PutWord(p []byte, i int, w uint32) {
	binary.LittleEndian.PutUint32(p[i*WordSize:], w)
}

// AppendWord appends the little-endian encoding of w to p.
func AppendWord(p []byte, w uint32) []byte {
	return append(p, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
}
