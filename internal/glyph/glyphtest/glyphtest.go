// Package glyphtest builds glyphs and synthetic frames from ASCII art for
// tests. Art uses '.' for background, '#' for ink and '+' for shadow.
package glyphtest

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
)

// Sample values painted for each art character.
const (
	Background uint8 = 200
	Ink        uint8 = 20
	Shadow     uint8 = 110
)

// Letters used across engine tests, all 14 rows tall.
var (
	A = []string{
		".....",
		".....",
		".###.",
		"#+..#",
		"#+..#",
		"#+..#",
		"#####",
		"#+..#",
		"#+..#",
		"#+..#",
		"+...+",
		".....",
		".....",
		".....",
	}
	B = []string{
		".....",
		".....",
		"####.",
		"#+..#",
		"#+..#",
		"####.",
		"#+..#",
		"#+..#",
		"#+..#",
		"####.",
		"++++.",
		".....",
		".....",
		".....",
	}
	I = []string{
		"..",
		"#+",
		"..",
		"#+",
		"#+",
		"#+",
		"#+",
		"#+",
		"#+",
		"#+",
		"..",
		"..",
		"..",
		"..",
	}
)

// Value maps an art character to its sample.
func Value(ch byte) uint8 {
	switch ch {
	case '#':
		return Ink
	case '+':
		return Shadow
	default:
		return Background
	}
}

// Glyph builds a glyph from art rows. It panics on malformed art.
func Glyph(id int, label string, rows []string) glyph.Glyph {
	h, w := len(rows), len(rows[0])
	samples := make([]uint8, 0, w*h)
	for c := 0; c < w; c++ {
		for _, row := range rows {
			samples = append(samples, Value(row[c]))
		}
	}
	ranks, _ := glyph.Normalize(samples)
	g, err := glyph.FromRanks(id, label, h, ranks)
	if err != nil {
		panic(fmt.Sprintf("glyphtest: %s: %v", label, err))
	}
	return g
}

// Dictionary returns the A, B and I glyphs with IDs 1, 2 and 3.
func Dictionary() *glyph.Dictionary {
	d, err := glyph.NewDictionary(14, []glyph.Glyph{
		Glyph(1, "A", A),
		Glyph(2, "B", B),
		Glyph(3, "I", I),
	})
	if err != nil {
		panic(err)
	}
	return d
}

// Blank returns a column-major frame filled with Background.
func Blank(w, h int) *frame.Frame {
	f, err := frame.New(w, h, frame.ColumnMajor)
	if err != nil {
		panic(err)
	}
	f.Fill(Background)
	return f
}

// Paint draws art with its top-left corner at (x, y).
func Paint(f *frame.Frame, x, y int, rows []string) {
	for r, row := range rows {
		for c := 0; c < len(row); c++ {
			if err := f.Set(x+c, y+r, Value(row[c])); err != nil {
				panic(err)
			}
		}
	}
}

// Page paints two lines of text on a full-size screen: "AB I" at y=20 and
// "B A" at y=60, with a wide gap before the last glyph of each line.
func Page() *frame.Frame {
	f := Blank(frame.DefaultWidth, frame.DefaultHeight)
	Paint(f, 10, 20, A)
	Paint(f, 15, 20, B)
	Paint(f, 24, 20, I)
	Paint(f, 10, 60, B)
	Paint(f, 30, 60, A)
	return f
}

// PNG encodes f as an 8-bit gray PNG.
func PNG(f *frame.Frame) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image(1)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
