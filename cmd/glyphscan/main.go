// glyphscan recognizes the text on screenshots, locally from a glyph
// dictionary or through a remote recognizer.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/glyphscan/internal/config"
	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/grpcclient"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/recorder"
	"github.com/GriffinCanCode/glyphscan/internal/orchestrator/timestamp"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
)

// scanner turns one encoded image into a report.
type scanner func(ctx context.Context, data []byte) (recognize.Report, *recognize.Result, error)

func main() {
	// defaults come from the same environment the server reads
	cfg := config.Load()

	dict := flag.String("dict", cfg.DictionaryPath, "glyph manifest")
	addr := flag.String("addr", "", "remote recognizer address; empty recognizes locally")
	policy := flag.String("policy", cfg.PrimaryPolicy, "primary matching policy (exact, exact-linear, tolerant)")
	secondary := flag.String("secondary", cfg.SecondaryPolicy, "secondary matching policy; empty for one pass")
	record := flag.String("record", "", "append the recognized screens to this archive")
	color := flag.String("color", "auto", "colored output: auto, on, off")
	verbose := flag.Bool("v", false, "print match counters")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	colorMode, err := parseColor(*color)
	if err != nil {
		fatal(err)
	}
	cfg.PrimaryPolicy, cfg.SecondaryPolicy = *policy, *secondary
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var scan scanner
	if *addr != "" {
		if *record != "" {
			fatal(fmt.Errorf("-record needs local recognition"))
		}
		client, err := grpcclient.New(*addr, grpcclient.DefaultConfig())
		if err != nil {
			fatal(err)
		}
		defer func() { _ = client.Close() }()
		scan = func(ctx context.Context, data []byte) (recognize.Report, *recognize.Result, error) {
			rep, err := client.Recognize(ctx, data)
			return rep, nil, err
		}
	} else {
		d, err := glyph.LoadManifest(*dict)
		if err != nil {
			fatal(err)
		}
		rec, err := recognize.New(d, cfg.RecognizeOptions())
		if err != nil {
			fatal(err)
		}
		scan = localScanner(rec)
	}

	var archive *recorder.Recorder
	if *record != "" {
		archive = recorder.New(*record, recorder.DefaultMaxPending, recorder.DefaultFlushDelay)
		if err := archive.Start(); err != nil {
			fatal(err)
		}
	}

	out := newPrinter(os.Stdout, colorMode)
	failed := run(ctx, scan, archive, out, flag.Args(), *verbose)
	if err := out.flush(); err != nil {
		fatal(err)
	}
	if archive != nil {
		if err := archive.Stop(); err != nil {
			fatal(err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func localScanner(rec *recognize.Recognizer) scanner {
	return func(ctx context.Context, data []byte) (recognize.Report, *recognize.Result, error) {
		img, err := frame.Decode(bytes.NewReader(data))
		if err != nil {
			return recognize.Report{}, nil, err
		}
		res, err := rec.RecognizeImage(ctx, img)
		if err != nil {
			return recognize.Report{}, nil, err
		}
		return res.Report(), res, nil
	}
}

// run recognizes every file in order and returns how many failed.
func run(ctx context.Context, scan scanner, archive *recorder.Recorder, out *printer, files []string, verbose bool) int {
	failed := 0
	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		data, err := os.ReadFile(name)
		if err == nil {
			var rep recognize.Report
			var res *recognize.Result
			if rep, res, err = scan(ctx, data); err == nil {
				out.report(name, rep, verbose)
				if archive != nil && res != nil {
					archive.ObserveScreen(ctx, res, time.Now(), timestamp.Stamp{})
				}
				continue
			}
		}
		out.failure(name, err)
		failed++
	}
	return failed
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "glyphscan: %v\n", err)
	os.Exit(1)
}
