package glyph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/disintegration/imaging"
)

// Manifest describes where a dictionary comes from. It is stored as TOML:
//
//	sheet        = "tiles.png"
//	labels       = "tiles.txt"
//	cell_width   = 8
//	cell_height  = 16
//	glyph_height = 14
//	id_offset    = 0
//
// Relative paths resolve against the manifest's directory.
type Manifest struct {
	Sheet       string `toml:"sheet"`
	Labels      string `toml:"labels"`
	CellWidth   int    `toml:"cell_width"`
	CellHeight  int    `toml:"cell_height"`
	GlyphHeight int    `toml:"glyph_height"`
	IDOffset    int    `toml:"id_offset"`
}

// ReadManifest decodes a manifest file and fills defaults.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return Manifest{}, fmt.Errorf("%w: unknown key %q", ErrManifest, keys[0].String())
	}
	if m.Sheet == "" {
		return Manifest{}, fmt.Errorf("%w: sheet is required", ErrManifest)
	}
	def := DefaultSheetOptions()
	if m.CellWidth == 0 {
		m.CellWidth = def.CellWidth
	}
	if m.CellHeight == 0 {
		m.CellHeight = def.CellHeight
	}
	if m.GlyphHeight == 0 {
		m.GlyphHeight = def.GlyphHeight
	}
	dir := filepath.Dir(path)
	m.Sheet = resolve(dir, m.Sheet)
	if m.Labels != "" {
		m.Labels = resolve(dir, m.Labels)
	}
	return m, nil
}

// LoadManifest reads a manifest and builds the dictionary it describes.
func LoadManifest(path string) (*Dictionary, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.Build()
}

// Build loads the sheet and labels and assembles the dictionary.
func (m Manifest) Build() (*Dictionary, error) {
	opts := SheetOptions{
		CellWidth:   m.CellWidth,
		CellHeight:  m.CellHeight,
		GlyphHeight: m.GlyphHeight,
		IDOffset:    m.IDOffset,
	}
	if m.Labels != "" {
		f, err := os.Open(m.Labels)
		if err != nil {
			return nil, fmt.Errorf("open labels: %w", err)
		}
		opts.Labels, err = ParseLabels(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse labels %s: %w", m.Labels, err)
		}
	}
	img, err := imaging.Open(m.Sheet)
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	glyphs, err := LoadSheet(img, opts)
	if err != nil {
		return nil, fmt.Errorf("load sheet %s: %w", m.Sheet, err)
	}
	return NewDictionary(m.GlyphHeight, glyphs)
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
