package frame

import (
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/webp" // WebP decoder
)

// Screen geometry of the handheld the recognizer was tuned for.
const (
	DefaultWidth  = 240
	DefaultHeight = 160
)

// ExtractOptions describes where the console screen sits inside a captured
// video frame and the resolution to resample it to.
type ExtractOptions struct {
	// Screen is the crop rectangle relative to the source image origin.
	// An empty rectangle selects the whole image.
	Screen image.Rectangle
	Width  int
	Height int
	// Filter is the resampling filter; the zero value selects imaging.Box,
	// an area average.
	Filter imaging.ResampleFilter
}

// DefaultExtractOptions matches a 960×640 stream overlay offset by 8px.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Screen: image.Rect(8, 8, 8+960, 8+640),
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Filter: imaging.Box,
	}
}

// Decode reads any registered image format.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// FromImage crops the screen out of img, resamples it and stores the 8-bit
// gray level of every pixel in a column-major frame.
func FromImage(img image.Image, opts ExtractOptions) (*Frame, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %d×%d", ErrDimensions, opts.Width, opts.Height)
	}
	bounds := img.Bounds()
	src := img
	if !opts.Screen.Empty() {
		r := opts.Screen.Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			return nil, fmt.Errorf("%w: %v not within %v", ErrScreenRect, opts.Screen, bounds)
		}
		src = imaging.Crop(img, r)
	}

	var scaled *image.NRGBA
	if b := src.Bounds(); b.Dx() == opts.Width && b.Dy() == opts.Height {
		scaled = imaging.Grayscale(src)
	} else {
		filter := opts.Filter
		if filter.Support == 0 && filter.Kernel == nil {
			filter = imaging.Box
		}
		scaled = imaging.Grayscale(imaging.Resize(src, opts.Width, opts.Height, filter))
	}

	f := &Frame{width: opts.Width, height: opts.Height, layout: ColumnMajor, pix: make([]uint8, opts.Width*opts.Height)}
	for x := 0; x < opts.Width; x++ {
		for y := 0; y < opts.Height; y++ {
			// Grayscale leaves R == G == B.
			f.pix[f.index(x, y)] = scaled.Pix[y*scaled.Stride+x*4]
		}
	}
	return f, nil
}

// Image renders the frame as an 8-bit gray image, scaling samples by mul
// (use 1 for gray frames, 85 for 2-bit indexed frames).
func (f *Frame) Image(mul uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.Pix[y*img.Stride+x] = f.pix[f.index(x, y)] * mul
		}
	}
	return img
}
