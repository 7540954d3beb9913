// Package frame holds one captured screen as a grid of small integer samples.
//
// A Frame owns a contiguous buffer and exposes bounds-checked accessors over it.
// The storage order is an explicit Layout rather than an implicit index macro:
// the scanner's hot loops read columns, so ColumnMajor is the default.
package frame

import "fmt"

// Layout selects how (x, y) maps onto the flat sample buffer.
type Layout int

const (
	// ColumnMajor stores index = y + x*height.
	ColumnMajor Layout = iota
	// RowMajor stores index = x + y*width.
	RowMajor
)

func (l Layout) String() string {
	switch l {
	case ColumnMajor:
		return "column-major"
	case RowMajor:
		return "row-major"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Frame is a width×height grid of samples. It is immutable for the duration
// of one scan; callers that transform samples in place do so between scans.
type Frame struct {
	width, height int
	layout        Layout
	pix           []uint8
}

// New allocates a zeroed frame.
func New(width, height int, layout Layout) (*Frame, error) {
	if err := checkDims(width, height, layout); err != nil {
		return nil, err
	}
	return &Frame{width: width, height: height, layout: layout, pix: make([]uint8, width*height)}, nil
}

// FromSamples copies pix into a new frame stored in the given layout.
func FromSamples(width, height int, layout Layout, pix []uint8) (*Frame, error) {
	if err := checkDims(width, height, layout); err != nil {
		return nil, err
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: got %d samples, want %d×%d=%d",
			ErrSampleCount, len(pix), width, height, width*height)
	}
	buf := make([]uint8, len(pix))
	copy(buf, pix)
	return &Frame{width: width, height: height, layout: layout, pix: buf}, nil
}

func checkDims(width, height int, layout Layout) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %d×%d", ErrDimensions, width, height)
	}
	if layout != ColumnMajor && layout != RowMajor {
		return fmt.Errorf("%w: %v", ErrLayout, layout)
	}
	return nil
}

// Width returns the number of columns.
func (f *Frame) Width() int { return f.width }

// Height returns the number of rows.
func (f *Frame) Height() int { return f.height }

// Layout returns the storage order of Samples.
func (f *Frame) Layout() Layout { return f.layout }

// InBounds reports whether (x, y) addresses a sample.
func (f *Frame) InBounds(x, y int) bool {
	return x >= 0 && x < f.width && y >= 0 && y < f.height
}

func (f *Frame) index(x, y int) int {
	if f.layout == ColumnMajor {
		return y + x*f.height
	}
	return x + y*f.width
}

// At returns the sample at (x, y). It panics when (x, y) is outside the frame;
// use Sample for caller-supplied coordinates.
func (f *Frame) At(x, y int) uint8 {
	if !f.InBounds(x, y) {
		panic(fmt.Sprintf("frame: At(%d, %d) outside %d×%d", x, y, f.width, f.height))
	}
	return f.pix[f.index(x, y)]
}

// Sample returns the sample at (x, y) or ErrOutOfBounds.
func (f *Frame) Sample(x, y int) (uint8, error) {
	if !f.InBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d, %d) outside %d×%d", ErrOutOfBounds, x, y, f.width, f.height)
	}
	return f.pix[f.index(x, y)], nil
}

// Set stores v at (x, y).
func (f *Frame) Set(x, y int, v uint8) error {
	if !f.InBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d) outside %d×%d", ErrOutOfBounds, x, y, f.width, f.height)
	}
	f.pix[f.index(x, y)] = v
	return nil
}

// Fill sets every sample to v.
func (f *Frame) Fill(v uint8) {
	for i := range f.pix {
		f.pix[i] = v
	}
}

// Samples returns the backing buffer in Layout order. Writes through the
// returned slice modify the frame; it is exposed for whole-buffer transforms
// such as palette translation.
func (f *Frame) Samples() []uint8 { return f.pix }

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	buf := make([]uint8, len(f.pix))
	copy(buf, f.pix)
	return &Frame{width: f.width, height: f.height, layout: f.layout, pix: buf}
}

// Convert returns a copy stored in the requested layout.
func (f *Frame) Convert(layout Layout) (*Frame, error) {
	if layout == f.layout {
		return f.Clone(), nil
	}
	out, err := New(f.width, f.height, layout)
	if err != nil {
		return nil, err
	}
	for x := 0; x < f.width; x++ {
		for y := 0; y < f.height; y++ {
			out.pix[out.index(x, y)] = f.pix[f.index(x, y)]
		}
	}
	return out, nil
}

// Equal reports whether both frames have the same size and samples,
// regardless of layout.
func (f *Frame) Equal(o *Frame) bool {
	if o == nil || f.width != o.width || f.height != o.height {
		return false
	}
	if f.layout == o.layout {
		for i := range f.pix {
			if f.pix[i] != o.pix[i] {
				return false
			}
		}
		return true
	}
	for x := 0; x < f.width; x++ {
		for y := 0; y < f.height; y++ {
			if f.pix[f.index(x, y)] != o.pix[o.index(x, y)] {
				return false
			}
		}
	}
	return true
}
