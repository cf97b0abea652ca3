// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"fmt"
	"time"
)

// Run describes a data taking period.
type Run struct {
	ID      uint32
	Start   time.Time
	Comment string
}

// Link is the line configuration of one readout crate.
type Link struct {
	Crate      int
	EnableMask uint16 // bit 0: LTM, bit i+1: TRM i
	Enabled    bool
}

func (link Link) String() string {
	state := "off"
	if link.Enabled {
		state = "on"
	}
	return fmt.Sprintf("crate=%02d mask=0x%03x %s", link.Crate, link.EnableMask, state)
}

// Masks returns the enable masks of the provided links, indexed by crate.
// Disabled links get an empty mask: their records only carry the DRM blocks.
func Masks(links []Link) map[int]uint16 {
	masks := make(map[int]uint16, len(links))
	for _, link := range links {
		mask := link.EnableMask & 0x7ff
		if !link.Enabled {
			mask = 0
		}
		masks[link.Crate] = mask
	}
	return masks
}
