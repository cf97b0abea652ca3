// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raw

import (
	"reflect"
	"testing"

	"github.com/go-lpc/tof/eformat"
)

func lead(tdc, ch uint8, t uint32) uint32 {
	return eformat.TDCHit{HitTime: t, Chan: ch, TDCID: tdc, PSBits: eformat.Leading}.Word()
}

func trail(tdc, ch uint8, t uint32) uint32 {
	return eformat.TDCHit{HitTime: t, Chan: ch, TDCID: tdc, PSBits: eformat.Trailing}.Word()
}

func TestSpider(t *testing.T) {
	for _, tc := range []struct {
		name  string
		hits  [2][]uint32
		want  []Pair
		ovfls int
	}{
		{
			name: "empty",
		},
		{
			name: "pair",
			hits: [2][]uint32{{lead(0, 1, 100), trail(0, 1, 144)}},
			want: []Pair{{Chain: 0, TDC: 0, Channel: 1, Time: 100, TOT: 22}},
		},
		{
			name: "unmatched-leading",
			hits: [2][]uint32{{lead(0, 1, 100), trail(0, 2, 144)}},
			want: []Pair{{Chain: 0, TDC: 0, Channel: 1, Time: 100, TOT: 0}},
		},
		{
			name: "orphan-trailing",
			hits: [2][]uint32{{trail(0, 1, 50), lead(0, 1, 100), trail(0, 1, 110)}},
			want: []Pair{{Chain: 0, TDC: 0, Channel: 1, Time: 100, TOT: 5}},
		},
		{
			name: "interleaved",
			hits: [2][]uint32{{
				lead(0, 1, 100), lead(0, 2, 110), trail(0, 1, 144),
				lead(0, 1, 300), trail(0, 2, 130),
			}},
			want: []Pair{
				{Chain: 0, TDC: 0, Channel: 1, Time: 100, TOT: 22},
				{Chain: 0, TDC: 0, Channel: 2, Time: 110, TOT: 10},
				{Chain: 0, TDC: 0, Channel: 1, Time: 300, TOT: 0},
			},
		},
		{
			name: "trailing-before-leading-time",
			hits: [2][]uint32{{lead(0, 1, 100), trail(0, 1, 90)}},
			want: []Pair{{Chain: 0, TDC: 0, Channel: 1, Time: 100, TOT: 0}},
		},
		{
			name: "chains-and-tdcs",
			hits: [2][]uint32{
				{lead(14, 7, 10), trail(14, 7, 12), lead(3, 0, 20), trail(3, 0, 24)},
				{lead(1, 5, 2000), trail(1, 5, 2010)},
			},
			want: []Pair{
				{Chain: 0, TDC: 3, Channel: 0, Time: 20, TOT: 2},
				{Chain: 0, TDC: 14, Channel: 7, Time: 10, TOT: 1},
				{Chain: 1, TDC: 1, Channel: 5, Time: 2000, TOT: 5},
			},
		},
		{
			name:  "invalid-tdc",
			hits:  [2][]uint32{{lead(15, 0, 10), trail(15, 0, 12)}},
			ovfls: 2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				sp  Spider
				trm TRM
			)
			for i := range tc.hits {
				trm.Chains[i].Hits = tc.hits[i]
			}
			got := sp.Pairs(nil, &trm)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid pairs:\ngot= %+v\nwant=%+v", got, tc.want)
			}
			if got, want := sp.Overflows, tc.ovfls; got != want {
				t.Fatalf("invalid overflows: got=%d, want=%d", got, want)
			}

			// buffers are reset.
			got = sp.Pairs(nil, &TRM{})
			if len(got) != 0 {
				t.Fatalf("spider buffers not reset: %+v", got)
			}
		})
	}
}

func TestSpiderOverflow(t *testing.T) {
	var (
		sp  Spider
		trm TRM
	)
	for i := 0; i < MaxHitsPerTDC+3; i++ {
		trm.Chains[1].Hits = append(trm.Chains[1].Hits, lead(2, 4, uint32(i)))
	}
	got := sp.Pairs(nil, &trm)
	if got, want := len(got), MaxHitsPerTDC; got != want {
		t.Fatalf("invalid number of pairs: got=%d, want=%d", got, want)
	}
	if got, want := sp.Overflows, 3; got != want {
		t.Fatalf("invalid overflows: got=%d, want=%d", got, want)
	}
}
