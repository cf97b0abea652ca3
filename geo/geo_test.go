// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geo

import "testing"

func TestECH(t *testing.T) {
	for _, tc := range []struct {
		crate, trm, chain, tdc, ch int
		want                       int
	}{
		{0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 7, 7},
		{0, 0, 0, 1, 0, 8},
		{0, 0, 1, 0, 0, 120},
		{0, 1, 0, 0, 0, 240},
		{1, 0, 0, 0, 0, 2400},
		{71, 9, 1, 14, 7, NECH - 1},
	} {
		got := ECH(tc.crate, tc.trm, tc.chain, tc.tdc, tc.ch)
		if got != tc.want {
			t.Fatalf("invalid ech(%d,%d,%d,%d,%d): got=%d, want=%d",
				tc.crate, tc.trm, tc.chain, tc.tdc, tc.ch, got, tc.want,
			)
		}
		crate, trm, chain, tdc, ch := Split(got)
		if crate != tc.crate || trm != tc.trm || chain != tc.chain || tdc != tc.tdc || ch != tc.ch {
			t.Fatalf("invalid split(%d): got=(%d,%d,%d,%d,%d)",
				got, crate, trm, chain, tdc, ch,
			)
		}
	}
}

func TestIdentity(t *testing.T) {
	for _, ech := range []int{0, 1, 1234, NECH - 1} {
		ch := Identity.Channel(ech)
		if got := Identity.Electronic(ch); got != ech {
			t.Fatalf("invalid round-trip: got=%d, want=%d", got, ech)
		}
	}
}
