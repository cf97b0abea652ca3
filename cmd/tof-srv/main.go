// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-srv starts a TDAQ process compressing TOF raw link data.
//
// Frames received on the /raw input carry a little-endian uint32 link
// identifier followed by raw pages of that link.
// The compressed pages are sent on the /compressed output, prefixed
// with the same link identifier.
package main // import "github.com/go-lpc/tof/cmd/tof-srv"

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/geo"
)

func main() {
	cmd := flags.New()

	srv := newServer(log.New(os.Stdout, "tof-srv: ", 0))

	proc := tdaq.New(cmd, os.Stdout)
	proc.CmdHandle("/config", srv.OnConfig)
	proc.CmdHandle("/init", srv.OnInit)
	proc.CmdHandle("/reset", srv.OnReset)
	proc.CmdHandle("/start", srv.OnStart)
	proc.CmdHandle("/stop", srv.OnStop)
	proc.CmdHandle("/quit", srv.OnQuit)

	proc.InputHandle("/raw", srv.input)
	proc.OutputHandle("/compressed", srv.output)

	err := proc.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type server struct {
	msg *log.Logger

	mu   sync.Mutex
	cmps map[uint32]*compress.Compressor
	data chan []byte

	n int // number of processed frames
}

func newServer(msg *log.Logger) *server {
	srv := &server{msg: msg}
	srv.reset()
	return srv
}

func (srv *server) reset() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.cmps = make(map[uint32]*compress.Compressor)
	srv.data = make(chan []byte, 1024)
	srv.n = 0
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.reset()
	return nil
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.reset()
	return nil
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	o := new(strings.Builder)
	n := srv.report(o)
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	ctx.Msg.Infof("%s", o.String())
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

func (srv *server) input(ctx tdaq.Context, src tdaq.Frame) error {
	out, err := srv.process(src.Body)
	if err != nil {
		ctx.Msg.Errorf("could not process raw frame: %+v", err)
		return err
	}

	select {
	case <-ctx.Ctx.Done():
		return nil
	case srv.data <- out:
	}
	return nil
}

func (srv *server) output(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// process compresses the raw pages of a /raw frame and returns the
// corresponding /compressed frame.
func (srv *server) process(body []byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("frame too short (len=%d)", len(body))
	}
	link := binary.LittleEndian.Uint32(body[:4])
	if link >= geo.NCrates {
		return nil, fmt.Errorf("invalid link %d", link)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	cmp, ok := srv.cmps[link]
	if !ok {
		cmp = compress.NewCompressor(compress.WithLogger(srv.msg))
		srv.cmps[link] = cmp
	}

	out, err := cmp.CompressLink(body[4:])
	if err != nil {
		return nil, fmt.Errorf("could not compress link %d: %w", link, err)
	}
	srv.n++

	frame := make([]byte, 4+len(out))
	binary.LittleEndian.PutUint32(frame[:4], link)
	copy(frame[4:], out)
	return frame, nil
}

// report writes the merged counters of all links to w and returns the
// number of processed frames.
func (srv *server) report(w io.Writer) int {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	var cnt compress.Counters
	for _, cmp := range srv.cmps {
		cnt.Add(cmp.Counters())
	}
	cnt.Report(w)
	return srv.n
}
