// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-compress compresses TOF raw link files into a single stream
// of compressed pages.
//
// The structural checks performed while compressing are summarized on
// standard output. An alert mail is sent when the fraction of faulty
// events exceeds the configured threshold.
//
// Mail alerts are configured through the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/go-lpc/tof/cmd/tof-compress"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-lpc/tof"
	"github.com/go-lpc/tof/compress"
	"github.com/go-lpc/tof/internal/mmap"
	"github.com/go-lpc/tof/qc"
	"github.com/klauspost/compress/zstd"
	mail "gopkg.in/gomail.v2"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

func main() {
	log.SetPrefix("tof-compress: ")
	log.SetFlags(0)

	var (
		cname = flag.String("cfg", "", "path to YAML configuration file")
		oname = flag.String("o", "", "path to output compressed file (overrides configuration)")
		zst   = flag.Bool("zstd", false, "wrap output with zstd compression")
		qname = flag.String("qc", "", "path to output QC histograms file, in YODA format (overrides configuration)")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof-compress [OPTIONS] link1.raw [link2.raw [...]]

ex:
 $> tof-compress -o run42.cmp ./tof_000042_*.raw
 $> tof-compress -cfg tof.yaml -zstd -qc qc.yoda ./tof_000042_*.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing input raw link file")
	}

	cfg, err := loadConfig(*cname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}
	if *oname != "" {
		cfg.Output = *oname
	}
	if *qname != "" {
		cfg.QC = *qname
	}
	cfg.Zstd = cfg.Zstd || *zst

	err = setupLogging(cfg.Logs)
	if err != nil {
		log.Fatalf("could not setup logging: %+v", err)
	}

	cnt, err := process(os.Stdout, cfg, flag.Args())
	if err != nil {
		log.Fatalf("could not compress raw link files: %+v", err)
	}

	if rate := cnt.FaultRate(); rate > cfg.Alert.MaxFaultRate {
		alert(cfg, rate, flag.Args())
	}
}

type config struct {
	Output string    `yaml:"output"`
	Zstd   bool      `yaml:"zstd"`
	QC     string    `yaml:"qc"`
	Logs   logConfig `yaml:"logs"`
	Alert  struct {
		MaxFaultRate float64 `yaml:"maxFaultRate"`
	} `yaml:"alert"`
}

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

func loadConfig(fname string) (config, error) {
	var cfg config
	if fname != "" {
		f, err := os.Open(fname)
		if err != nil {
			return cfg, fmt.Errorf("could not open config file: %w", err)
		}
		defer f.Close()

		err = yaml.NewDecoder(f).Decode(&cfg)
		if err != nil && err != io.EOF {
			return cfg, fmt.Errorf("could not decode config file %q: %w", fname, err)
		}
	}

	if cfg.Output == "" {
		cfg.Output = "out.cmp"
	}
	if cfg.Logs.MaxSizeMB == 0 {
		cfg.Logs.MaxSizeMB = 100
	}
	if cfg.Logs.MaxAgeDays == 0 {
		cfg.Logs.MaxAgeDays = 30
	}
	if cfg.Logs.MaxBackups == 0 {
		cfg.Logs.MaxBackups = 10
	}
	if cfg.Alert.MaxFaultRate == 0 {
		cfg.Alert.MaxFaultRate = 0.05
	}
	return cfg, nil
}

func setupLogging(cfg logConfig) error {
	if cfg.Directory == "" {
		return nil
	}
	err := os.MkdirAll(cfg.Directory, 0755)
	if err != nil {
		return fmt.Errorf("could not create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "tof-compress.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

func process(stdout io.Writer, cfg config, fnames []string) (compress.Counters, error) {
	var cnt compress.Counters

	bufs := make([][]byte, len(fnames))
	for i, fname := range fnames {
		f, err := mmap.Open(fname)
		if err != nil {
			return cnt, fmt.Errorf("could not open raw link file: %w", err)
		}
		defer f.Close()
		bufs[i] = f.Bytes()
	}

	outs, cnt, err := compress.CompressLinks(bufs, compress.WithLogger(log.Default()))
	if err != nil {
		return cnt, fmt.Errorf("could not compress raw links: %w", err)
	}

	o, err := os.Create(cfg.Output)
	if err != nil {
		return cnt, fmt.Errorf("could not create output file: %w", err)
	}
	defer o.Close()

	var (
		w     io.Writer = o
		zw    *zstd.Encoder
		nevts int
		size  int
	)
	if cfg.Zstd {
		zw, err = zstd.NewWriter(o)
		if err != nil {
			return cnt, fmt.Errorf("could not create zstd writer: %w", err)
		}
		defer zw.Close()
		w = zw
	}

	for i, out := range outs {
		_, err = w.Write(out)
		if err != nil {
			return cnt, fmt.Errorf("could not write compressed link %d: %w", i, err)
		}
		size += len(out)
	}

	if zw != nil {
		err = zw.Close()
		if err != nil {
			return cnt, fmt.Errorf("could not close zstd writer: %w", err)
		}
	}

	err = o.Close()
	if err != nil {
		return cnt, fmt.Errorf("could not close output file: %w", err)
	}

	if cfg.QC != "" {
		nevts, err = fillQC(cfg.QC, outs, cnt)
		if err != nil {
			return cnt, fmt.Errorf("could not produce QC histograms: %w", err)
		}
		log.Printf("QC: %d events", nevts)
	}

	log.Printf("compressed %d links into %q (%d bytes)", len(outs), cfg.Output, size)
	cnt.Report(stdout)
	return cnt, nil
}

func fillQC(fname string, outs [][]byte, cnt compress.Counters) (int, error) {
	dec := compress.NewDecoder(compress.WithLogger(log.Default()))
	for i, out := range outs {
		err := dec.Decode(out)
		if err != nil {
			return 0, fmt.Errorf("could not decode compressed link %d: %w", i, err)
		}
	}

	h := qc.New(nil)
	h.FillCounters(cnt)
	for _, idx := range dec.Windows() {
		h.FillDigits(tof.Window{Index: idx, Digits: dec.Take(idx)})
	}

	f, err := os.Create(fname)
	if err != nil {
		return 0, fmt.Errorf("could not create QC file: %w", err)
	}
	defer f.Close()

	err = h.Write(f)
	if err != nil {
		return 0, err
	}

	err = f.Close()
	if err != nil {
		return 0, fmt.Errorf("could not close QC file: %w", err)
	}
	return dec.Events(), nil
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func alert(cfg config, rate float64, fnames []string) {
	log.Printf("fault rate %.3f above threshold %.3f", rate, cfg.Alert.MaxFaultRate)

	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 || alertMailTgts[0] == "" {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := alertMessage(cfg, rate, fnames)
	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func alertMessage(cfg config, rate float64, fnames []string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[tof-compress] fault rate alert: %.1f %%", 100*rate))
	msg.SetBody("text/plain", fmt.Sprintf(
		"fault rate: %.3f\nthreshold:  %.3f\noutput:     %q\nlinks:\n - %s\n",
		rate, cfg.Alert.MaxFaultRate, cfg.Output,
		strings.Join(fnames, "\n - "),
	))
	return msg
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
