// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"fmt"
	"log"

	"github.com/go-lpc/tof/geo"
	"go-hep.org/x/hep/lcio"
)

// Digits2LCIO writes all the windows held by src to w, in window order.
func Digits2LCIO(w *lcio.Writer, src Source, run int32, msg *log.Logger) error {
	err := w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  detector,
		Descr:     "",
		Params: lcio.Params{
			Ints: map[string][]int32{
				"BCsPerOrbit":  {geo.BCsPerOrbit},
				"TDCBinsPerBC": {geo.TDCBinsPerBC},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

	for i, win := range src.Windows() {
		if i%100 == 0 {
			msg.Printf("processing window %d...", i)
		}
		digits := src.Take(win)

		obj := &lcio.GenericObject{
			Data: make([]lcio.GenericObjectData, len(digits)),
		}
		for j, d := range digits {
			obj.Data[j].I32s = i32sFrom(d)
		}

		evt := lcio.Event{
			RunNumber:   run,
			EventNumber: int32(i),
			TimeStamp:   int64(win),
			Detector:    detector,
		}
		evt.Add(Collection, obj)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write window %d: %w", win, err)
		}
	}

	return nil
}
