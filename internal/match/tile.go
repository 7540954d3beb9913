package match

import (
	"fmt"

	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
)

// TileWidth is the width of every candidate tile.
const TileWidth = glyph.MaxWidth

const tileCap = TileWidth * glyph.MaxHeight

// Tile is a candidate region read from a frame together with its locally
// discovered palette. Ranks are assigned in column-major discovery order and
// are only meaningful for the lifetime of one extraction.
type Tile struct {
	height  int
	colors  int
	raw     [tileCap]uint8
	ranks   [tileCap]uint8
	columns [TileWidth]uint32
}

// Extract fills t from the TileWidth×height region whose top-left corner is
// (x, y).
func (t *Tile) Extract(f *frame.Frame, x, y, height int) error {
	if height <= 0 || height > glyph.MaxHeight {
		return fmt.Errorf("%w: %d", ErrTileHeight, height)
	}
	if !f.InBounds(x, y) || !f.InBounds(x+TileWidth-1, y+height-1) {
		return fmt.Errorf("%w: tile at (%d, %d)", frame.ErrOutOfBounds, x, y)
	}
	var order [256]uint8
	t.height = height
	t.colors = 0
	for c := 0; c < TileWidth; c++ {
		var col uint32
		for r := 0; r < height; r++ {
			v := f.At(x+c, y+r)
			if order[v] == 0 {
				t.colors++
				order[v] = uint8(t.colors)
			}
			rank := order[v] - 1
			i := r + c*height
			t.raw[i] = v
			t.ranks[i] = rank
			col = col<<2 | uint32(rank&3)
		}
		t.columns[c] = col
	}
	return nil
}

// Height returns the number of rows extracted.
func (t *Tile) Height() int { return t.height }

// Colors returns the number of distinct raw values in the tile.
func (t *Tile) Colors() int { return t.colors }

// Raw returns the raw sample at column c, row r.
func (t *Tile) Raw(c, r int) uint8 { return t.raw[r+c*t.height] }

// Rank returns the discovery-order rank at column c, row r.
func (t *Tile) Rank(c, r int) uint8 { return t.ranks[r+c*t.height] }

// Columns returns the packed base-4 rank words of the first n columns. They
// are only meaningful when the tile has at most four colors.
func (t *Tile) Columns(n int) []uint32 { return t.columns[:n] }

// Variance returns the population variance of the raw samples.
func (t *Tile) Variance() float64 {
	n := TileWidth * t.height
	if n == 0 {
		return 0
	}
	var sum, sq int
	for _, v := range t.raw[:n] {
		sum += int(v)
		sq += int(v) * int(v)
	}
	mean := float64(sum) / float64(n)
	return float64(sq)/float64(n) - mean*mean
}
