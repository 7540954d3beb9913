package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"

	"github.com/GriffinCanCode/glyphscan/internal/recognize"
)

type useColor int

const (
	colorAuto useColor = iota
	colorOn
	colorOff
)

func parseColor(s string) (useColor, error) {
	switch s {
	case "auto":
		return colorAuto, nil
	case "on", "always":
		return colorOn, nil
	case "off", "never":
		return colorOff, nil
	}
	return colorAuto, fmt.Errorf("unknown color mode %q", s)
}

// index 0 is uncolored
var (
	headerFormats = [2]string{"== %s ==\n", "\033[36m== %s ==\033[0m\n"}
	lineFormats   = [2]string{"%4d  %s\n", "\033[37m%4d\033[0m  \033[32m%s\033[0m\n"}
	errorFormats  = [2]string{"error: %v\n", "\033[31merror:\033[0m %v\n"}
	statFormats   = [2]string{"-- %d glyphs, %d agreed, %d windows%s\n", "\033[37m-- %d glyphs, %d agreed, %d windows%s\033[0m\n"}
)

// printer writes recognition reports, colored when attached to a terminal.
type printer struct {
	w *bufio.Writer
	t int
}

func newPrinter(f *os.File, c useColor) *printer {
	p := &printer{}
	fd := f.Fd()
	if c == colorOn || (c == colorAuto && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))) {
		p.w = bufio.NewWriter(colorable.NewColorable(f))
		p.t = 1
	} else {
		p.w = bufio.NewWriter(f)
	}
	return p
}

func newPlainPrinter(w io.Writer) *printer {
	return &printer{w: bufio.NewWriter(w)}
}

func (p *printer) report(name string, rep recognize.Report, verbose bool) {
	fmt.Fprintf(p.w, headerFormats[p.t], name)
	for _, l := range rep.Lines {
		fmt.Fprintf(p.w, lineFormats[p.t], l.Y, l.Text)
	}
	if verbose {
		more := ""
		if rep.Truncated {
			more = ", truncated"
		}
		fmt.Fprintf(p.w, statFormats[p.t], len(rep.Matches), rep.Agreement, rep.Considered, more)
	}
}

func (p *printer) failure(name string, err error) {
	fmt.Fprintf(p.w, headerFormats[p.t], name)
	fmt.Fprintf(p.w, errorFormats[p.t], err)
}

func (p *printer) flush() error {
	return p.w.Flush()
}
