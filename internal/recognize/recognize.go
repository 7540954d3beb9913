// Package recognize runs the scanner over captured screens.
//
// A Recognizer owns one scanner per pass. The primary pass is required; the
// optional secondary pass reads the same screen with a second policy and the
// two match lists are reconciled, which corroborates glyphs both passes saw
// and rejects the frame when they disagree. Exact policies read the screen
// after quantization, the tolerant policy reads raw gray levels.
package recognize

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/match"
	"github.com/GriffinCanCode/glyphscan/internal/palette"
	"github.com/GriffinCanCode/glyphscan/internal/reconcile"
	"github.com/GriffinCanCode/glyphscan/internal/scan"
)

// Options configures a Recognizer.
type Options struct {
	Primary match.Kind
	// Secondary is empty for a single pass.
	Secondary     match.Kind
	Match         match.Options
	Scan          scan.Options
	Extract       frame.ExtractOptions
	QuantizeShift uint
}

// DefaultOptions returns the dual-pass setup the recognizer ships with.
func DefaultOptions() Options {
	return Options{
		Primary:       match.KindExact,
		Secondary:     match.KindTolerant,
		Match:         match.DefaultOptions(),
		Scan:          scan.DefaultOptions(),
		Extract:       frame.DefaultExtractOptions(),
		QuantizeShift: 6,
	}
}

// Line is the text of one glyph row.
type Line struct {
	Y    int    `json:"y"`
	Text string `json:"text"`
}

// Result is the outcome of recognizing one screen.
type Result struct {
	// Screen is the extracted gray frame.
	Screen  *frame.Frame
	Matches []scan.Match
	Lines   []Line
	// Agreement counts glyphs both passes reported; zero for one pass.
	Agreement int
	// Considered counts tiles handed to a policy over all passes.
	Considered int
	// Truncated reports that some pass filled its match capacity.
	Truncated bool
	Passes    int
}

// Text joins the lines with newlines.
func (r *Result) Text() string {
	parts := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

type pass struct {
	scanner  *scan.Scanner
	quantize bool
}

// Recognizer turns captured images into text. It is safe for concurrent use.
type Recognizer struct {
	dict   *glyph.Dictionary
	opts   Options
	quant  palette.Table
	passes []pass
}

// New builds the scanners for every configured pass.
func New(dict *glyph.Dictionary, opts Options) (*Recognizer, error) {
	if opts.QuantizeShift > 7 {
		return nil, fmt.Errorf("recognize: quantize shift %d: %w", opts.QuantizeShift, match.ErrOptions)
	}
	r := &Recognizer{dict: dict, opts: opts, quant: palette.Quantize(opts.QuantizeShift)}
	kinds := []match.Kind{opts.Primary}
	if opts.Secondary != "" {
		kinds = append(kinds, opts.Secondary)
	}
	for _, k := range kinds {
		p, err := match.New(k, dict, opts.Match)
		if err != nil {
			return nil, err
		}
		s, err := scan.New(p, opts.Scan)
		if err != nil {
			return nil, err
		}
		r.passes = append(r.passes, pass{scanner: s, quantize: k != match.KindTolerant})
	}
	return r, nil
}

// Dictionary returns the glyph set the passes match against.
func (r *Recognizer) Dictionary() *glyph.Dictionary { return r.dict }

// Options returns the configuration r was built with.
func (r *Recognizer) Options() Options { return r.opts }

// RecognizeImage extracts the screen from a captured image and recognizes it.
func (r *Recognizer) RecognizeImage(ctx context.Context, img image.Image) (*Result, error) {
	f, err := frame.FromImage(img, r.opts.Extract)
	if err != nil {
		return nil, err
	}
	return r.RecognizeFrame(ctx, f)
}

// RecognizeFrame recognizes an extracted gray frame. On a conflict between
// passes the error wraps reconcile.ErrConflict and no result is returned.
func (r *Recognizer) RecognizeFrame(ctx context.Context, gray *frame.Frame) (*Result, error) {
	var quantized *frame.Frame
	lists := make([][]scan.Match, len(r.passes))
	res := &Result{Screen: gray, Passes: len(r.passes)}

	for i, p := range r.passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := gray
		if p.quantize {
			if quantized == nil {
				quantized = gray.Clone()
				if err := palette.Translate(quantized.Samples(), r.quant); err != nil {
					return nil, err
				}
			}
			f = quantized
		}
		ms, st, err := p.scanner.Scan(f)
		if err != nil {
			return nil, fmt.Errorf("recognize: %s pass: %w", p.scanner.Policy().Name(), err)
		}
		lists[i] = ms
		res.Considered += st.Considered
		res.Truncated = res.Truncated || st.Truncated
	}

	res.Matches = lists[0]
	if len(lists) == 2 {
		dst := make([]scan.Match, r.opts.Scan.MaxMatches)
		mr, err := reconcile.MergeInto(dst, lists[0], lists[1], r.opts.Scan.SpaceGap)
		if err != nil {
			return nil, err
		}
		res.Matches = dst[:mr.Count]
		res.Agreement = mr.Agreement
		res.Truncated = res.Truncated || mr.Truncated
	}
	res.Lines = Render(res.Matches)
	return res, nil
}

// Render groups matches by row and concatenates their labels, inserting a
// space before every match flagged as spaced.
func Render(ms []scan.Match) []Line {
	var lines []Line
	var b strings.Builder
	for i, m := range ms {
		if i > 0 && m.Y != ms[i-1].Y {
			lines = append(lines, Line{Y: ms[i-1].Y, Text: b.String()})
			b.Reset()
		}
		if m.Space {
			b.WriteByte(' ')
		}
		b.WriteString(m.Glyph.Text())
	}
	if len(ms) > 0 {
		lines = append(lines, Line{Y: ms[len(ms)-1].Y, Text: b.String()})
	}
	return lines
}

// Glyph is the wire form of one match.
type Glyph struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Width int    `json:"width"`
	Space bool   `json:"space,omitempty"`
}

// Report is the wire form of a Result.
type Report struct {
	Lines      []Line  `json:"lines"`
	Matches    []Glyph `json:"matches"`
	Agreement  int     `json:"agreement"`
	Considered int     `json:"considered"`
	Truncated  bool    `json:"truncated"`
}

// Report converts r for JSON and RPC responses.
func (r *Result) Report() Report {
	out := Report{
		Lines:      r.Lines,
		Matches:    make([]Glyph, len(r.Matches)),
		Agreement:  r.Agreement,
		Considered: r.Considered,
		Truncated:  r.Truncated,
	}
	if out.Lines == nil {
		out.Lines = []Line{}
	}
	for i, m := range r.Matches {
		out.Matches[i] = Glyph{X: m.X, Y: m.Y, ID: m.Glyph.ID, Text: m.Glyph.Text(), Width: m.Glyph.Width, Space: m.Space}
	}
	return out
}
