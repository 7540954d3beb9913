// Package pack repacks 2-bit indexed screens into tile-major order.
//
// Console sprites are 8×8, so storing each block contiguously lets a general
// purpose compressor encode repeated tiles once instead of splitting them over
// eight scanlines. Every block becomes 16 bytes: two bytes per row, four
// pixels per byte, the leftmost pixel in the low two bits.
package pack

import "fmt"

const (
	// BlockSize is the edge length of a tile in pixels.
	BlockSize = 8
	// BlockBytes is the packed size of one tile.
	BlockBytes = BlockSize * BlockSize / PixelsPerByte
	// PixelsPerByte is the number of 2-bit samples in one output byte.
	PixelsPerByte = 4
	// MaxSample is the largest value a 2-bit sample may hold.
	MaxSample = 3

	// ScreenWidth and ScreenHeight are the native handheld resolution.
	ScreenWidth  = 160
	ScreenHeight = 144
	// ScreenBytes is the unpacked size of a native screen.
	ScreenBytes = ScreenWidth * ScreenHeight
	// PackedBytes is the packed size of a native screen.
	PackedBytes = ScreenBytes / PixelsPerByte
)

// PackedLen returns the packed size of a width×height screen.
func PackedLen(width, height int) int {
	return width * height / PixelsPerByte
}

func checkGeometry(width, height int) error {
	if width <= 0 || height <= 0 || width%BlockSize != 0 || height%BlockSize != 0 {
		return fmt.Errorf("%w: %d×%d", ErrGeometry, width, height)
	}
	return nil
}

// Pack2bpp packs a native 160×144 row-major screen into out, which must hold
// at least PackedBytes bytes.
func Pack2bpp(in, out []byte) error {
	return PackInto(out, in, ScreenWidth, ScreenHeight)
}

// Pack returns the tile-major packing of a row-major width×height screen.
func Pack(in []byte, width, height int) ([]byte, error) {
	if err := checkGeometry(width, height); err != nil {
		return nil, err
	}
	out := make([]byte, PackedLen(width, height))
	if err := PackInto(out, in, width, height); err != nil {
		return nil, err
	}
	return out, nil
}

// PackInto writes the packing of in to out. Preconditions are checked before
// anything is written: in must be exactly width*height samples in [0, 3] and
// out must hold PackedLen(width, height) bytes.
func PackInto(out, in []byte, width, height int) error {
	if err := checkGeometry(width, height); err != nil {
		return err
	}
	if len(in) != width*height {
		return fmt.Errorf("%w: input has %d samples, want %d", ErrLength, len(in), width*height)
	}
	if len(out) < PackedLen(width, height) {
		return fmt.Errorf("%w: output holds %d bytes, want %d", ErrLength, len(out), PackedLen(width, height))
	}
	for i, v := range in {
		if v > MaxSample {
			return fmt.Errorf("%w: sample %d at offset %d", ErrSampleRange, v, i)
		}
	}

	o := 0
	for by := 0; by < height/BlockSize; by++ {
		for bx := 0; bx < width/BlockSize; bx++ {
			for n := 0; n < BlockSize; n++ {
				ind := (by*BlockSize+n)*width + bx*BlockSize
				out[o] = in[ind] | in[ind+1]<<2 | in[ind+2]<<4 | in[ind+3]<<6
				ind += PixelsPerByte
				out[o+1] = in[ind] | in[ind+1]<<2 | in[ind+2]<<4 | in[ind+3]<<6
				o += 2
			}
		}
	}
	return nil
}

// Unpack inverts Pack, returning a row-major width×height screen.
func Unpack(packed []byte, width, height int) ([]byte, error) {
	if err := checkGeometry(width, height); err != nil {
		return nil, err
	}
	if len(packed) != PackedLen(width, height) {
		return nil, fmt.Errorf("%w: packed input has %d bytes, want %d", ErrLength, len(packed), PackedLen(width, height))
	}

	out := make([]byte, width*height)
	off := 0
	for by := 0; by < height/BlockSize; by++ {
		for bx := 0; bx < width/BlockSize; bx++ {
			for n := 0; n < BlockSize; n++ {
				row := uint16(packed[off]) | uint16(packed[off+1])<<8
				off += 2
				base := (by*BlockSize+n)*width + bx*BlockSize
				for nx := 0; nx < BlockSize; nx++ {
					out[base+nx] = byte(row & MaxSample)
					row >>= 2
				}
			}
		}
	}
	return out, nil
}
