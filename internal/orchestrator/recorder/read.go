package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/GriffinCanCode/glyphscan/internal/pack"
)

// ErrCorrupt is returned by ReadRecords for a record that does not start
// with Magic or ends early.
var ErrCorrupt = errors.New("recorder: corrupt archive")

// Record is one decoded archive entry.
type Record struct {
	Timestamp uint32
	Counter   uint8
	Samples   []byte // row-major, one 2-bit shade per pixel
}

// ReadRecords decodes every record of a width×height archive. Concatenated
// gzip members are read as one stream.
func ReadRecords(r io.Reader, width, height int) ([]Record, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	var (
		out []Record
		hdr [HeaderLen]byte
		buf = make([]byte, pack.PackedLen(width, height))
	)
	for {
		if _, err := io.ReadFull(zr, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%w: record %d header: %v", ErrCorrupt, len(out), err)
		}
		if !bytes.Equal(hdr[:len(Magic)], Magic[:]) {
			return out, fmt.Errorf("%w: record %d has magic %x", ErrCorrupt, len(out), hdr[:len(Magic)])
		}
		if _, err := io.ReadFull(zr, buf); err != nil {
			return out, fmt.Errorf("%w: record %d payload: %v", ErrCorrupt, len(out), err)
		}
		samples, err := pack.Unpack(buf, width, height)
		if err != nil {
			return out, err
		}
		out = append(out, Record{
			Timestamp: binary.LittleEndian.Uint32(hdr[len(Magic):]),
			Counter:   hdr[HeaderLen-1],
			Samples:   samples,
		})
	}
}
