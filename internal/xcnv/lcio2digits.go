// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/tof"
	"go-hep.org/x/hep/lcio"
)

// LCIO2Digits reads all the windows stored in r.
func LCIO2Digits(r *lcio.Reader, freq int, msg *log.Logger) ([]tof.Window, error) {
	if freq <= 0 {
		freq = 1
	}

	var wins []tof.Window
	for i := 0; r.Next(); i++ {
		if i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}
		evt := r.Event()
		win := tof.Window{Index: uint64(evt.TimeStamp)}

		obj, ok := evt.Get(Collection).(*lcio.GenericObject)
		if !ok {
			return wins, fmt.Errorf("could not find %q collection in event %d", Collection, evt.EventNumber)
		}
		win.Digits = make([]tof.Digit, 0, len(obj.Data))
		for j, data := range obj.Data {
			if len(data.I32s) != nfields {
				return wins, fmt.Errorf(
					"invalid digit %d in event %d (fields=%d)",
					j, evt.EventNumber, len(data.I32s),
				)
			}
			win.Digits = append(win.Digits, digitFrom(data.I32s))
		}
		wins = append(wins, win)
	}

	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return wins, fmt.Errorf("could not read LCIO events: %w", err)
	}
	return wins, nil
}
