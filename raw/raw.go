// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package raw decodes and encodes the raw hierarchical data format of the
// TOF readout links.
//
// A link buffer is a sequence of readout pages, each made of a page header
// (RDH) and a payload of 128-bit GBT words.
// The payloads of consecutive pages, up to the page with the stop bit set,
// hold one crate record: DRM headers, an optional LTM block, TRM blocks
// (each with two chains of TDC hits) and the DRM trailer.
package raw // import "github.com/go-lpc/tof/raw"

import (
	"log"
	"os"

	"github.com/go-lpc/tof/geo"
)

const (
	// DefaultEnableMask enables all TRMs of a crate.
	DefaultEnableMask = 0x7fe

	// DefaultResyncLimit is the default maximum number of consecutive
	// unrecognized words skipped while resynchronizing.
	DefaultResyncLimit = 1024

	defaultThreshold = 1 << 20
	defaultPageSize  = 8 << 10
)

type config struct {
	msg    *log.Logger
	chmap  geo.ChannelMap
	resync int // max number of consecutive unrecognized words

	thresh int // flush threshold, in bytes
	page   int // max page size, in bytes
	masks  map[int]uint16
}

func newConfig() config {
	return config{
		msg:    log.New(os.Stdout, "raw: ", 0),
		chmap:  geo.Identity,
		resync: DefaultResyncLimit,
		thresh: defaultThreshold,
		page:   defaultPageSize,
	}
}

func (cfg *config) mask(crate int) uint16 {
	if m, ok := cfg.masks[crate]; ok {
		return m
	}
	return DefaultEnableMask
}

// Option configures a Decoder or an Encoder.
type Option func(*config)

// WithLogger sets the logger used to report data faults.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithChannelMap sets the mapping between electronic and channel indices.
func WithChannelMap(m geo.ChannelMap) Option {
	return func(cfg *config) {
		cfg.chmap = m
	}
}

// WithResyncLimit sets the maximum number of consecutive unrecognized
// words skipped while resynchronizing, before the rest of the event is
// dropped.
func WithResyncLimit(n int) Option {
	return func(cfg *config) {
		cfg.resync = n
	}
}

// WithThreshold sets the size, in bytes, a link buffer has to reach
// for all the link buffers of an Encoder to be flushed.
func WithThreshold(n int) Option {
	return func(cfg *config) {
		cfg.thresh = n
	}
}

// WithPageSize sets the maximum size, in bytes, of the pages
// written by an Encoder.
func WithPageSize(n int) Option {
	return func(cfg *config) {
		cfg.page = n
	}
}

// WithEnableMasks sets the TRM enable masks of the crates, indexed by
// crate id. Crates without an entry use DefaultEnableMask.
func WithEnableMasks(masks map[int]uint16) Option {
	return func(cfg *config) {
		cfg.masks = make(map[int]uint16, len(masks))
		for k, v := range masks {
			cfg.masks[k] = v
		}
	}
}
