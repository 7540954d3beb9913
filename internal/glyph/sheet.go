package glyph

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// SheetOptions describes the cell grid of a sprite sheet.
type SheetOptions struct {
	CellWidth  int
	CellHeight int
	// GlyphHeight rows are read from the top of every cell.
	GlyphHeight int
	// IDOffset is added to the row-major cell index to form glyph IDs.
	IDOffset int
	// Labels maps glyph IDs to display text.
	Labels map[int]string
}

// DefaultSheetOptions matches the font sheet layout: 8×16 cells, 14 rows used.
func DefaultSheetOptions() SheetOptions {
	return SheetOptions{CellWidth: 8, CellHeight: 16, GlyphHeight: DefaultHeight}
}

// LoadSheet cuts a sprite sheet into normalized glyphs. Single-colour cells are
// blank and skipped; background-only columns are trimmed from both sides.
func LoadSheet(img image.Image, opts SheetOptions) ([]Glyph, error) {
	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		return nil, fmt.Errorf("%w: cell %d×%d", ErrSheet, opts.CellWidth, opts.CellHeight)
	}
	if opts.GlyphHeight <= 0 || opts.GlyphHeight > opts.CellHeight || opts.GlyphHeight > MaxHeight {
		return nil, fmt.Errorf("%w: glyph height %d in %d-row cell", ErrHeight, opts.GlyphHeight, opts.CellHeight)
	}

	gray := imaging.Grayscale(img)
	cols := gray.Bounds().Dx() / opts.CellWidth
	rows := gray.Bounds().Dy() / opts.CellHeight
	h := opts.GlyphHeight

	var out []Glyph
	cell := make([]uint8, opts.CellWidth*h)
	n := -1
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			n++
			for c := 0; c < opts.CellWidth; c++ {
				for r := 0; r < h; r++ {
					x, y := cx*opts.CellWidth+c, cy*opts.CellHeight+r
					cell[r+c*h] = gray.Pix[y*gray.Stride+x*4]
				}
			}
			ranks, colors := Normalize(cell)
			if colors == 1 {
				continue
			}
			ranks = trimBackground(ranks, h)
			ranks, colors = Normalize(ranks)
			if colors != Colors {
				return nil, fmt.Errorf("%w: cell (%d, %d) has %d colors", ErrSheet, cx, cy, colors)
			}
			id := n + opts.IDOffset
			g, err := FromRanks(id, opts.Labels[id], h, ranks)
			if err != nil {
				return nil, fmt.Errorf("cell (%d, %d): %w", cx, cy, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

// trimBackground drops leading and trailing columns made only of rank 0.
func trimBackground(ranks []uint8, h int) []uint8 {
	blank := func(c int) bool {
		for _, r := range ranks[c*h : (c+1)*h] {
			if r != 0 {
				return false
			}
		}
		return true
	}
	first, last := 0, len(ranks)/h-1
	for last >= first && blank(last) {
		last--
	}
	for first <= last && blank(first) {
		first++
	}
	return ranks[first*h : (last+1)*h]
}
