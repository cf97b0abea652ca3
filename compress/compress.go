// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress converts raw TOF link buffers into the compressed data
// format, validating the structure of every crate record on the way, and
// decodes compressed buffers back into digits.
//
// A compressed event holds a crate header, the crate orbit, the frames of
// packed hits of every TRM with hits, a crate trailer and the diagnostic
// words of the slots with faults.
package compress // import "github.com/go-lpc/tof/compress"

import (
	"log"
	"math"
	"os"

	"github.com/go-lpc/tof/eformat"
	"github.com/go-lpc/tof/geo"
	"github.com/go-lpc/tof/raw"
)

// MaxPageSize is the largest size of a compressed page, in bytes.
const MaxPageSize = math.MaxUint16 &^ (eformat.WordSize - 1)

type config struct {
	msg    *log.Logger
	chmap  geo.ChannelMap
	resync int
	page   int
}

func newConfig(opts []Option) config {
	cfg := config{
		msg:    log.New(os.Stdout, "compress: ", 0),
		chmap:  geo.Identity,
		resync: raw.DefaultResyncLimit,
		page:   MaxPageSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.chmap == nil {
		cfg.chmap = geo.Identity
	}
	switch {
	case cfg.page > MaxPageSize:
		cfg.page = MaxPageSize
	case cfg.page < eformat.RDHSize+eformat.WordSize:
		cfg.page = eformat.RDHSize + eformat.WordSize
	}
	cfg.page &^= eformat.WordSize - 1
	return cfg
}

// Option configures a Compressor or a Decoder.
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

// WithResyncLimit sets the maximum number of consecutive unrecognized raw
// words skipped while resynchronizing.
func WithResyncLimit(n int) Option {
	return func(cfg *config) {
		cfg.resync = n
	}
}

// WithPageSize sets the maximum size of a compressed page, in bytes.
// Larger events are split over several pages.
func WithPageSize(n int) Option {
	return func(cfg *config) {
		cfg.page = n
	}
}
