package glyph

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ExtendedOffset is added to cell numbers of lines carrying the x flag.
const ExtendedOffset = 1024

var labelLine = regexp.MustCompile(`^([0-9A-F]+)([a-z]*):(.*)$`)

// ParseLabels reads a label file. Each line has the form HEX[flags]:text and
// labels consecutive cells starting at HEX, one character per cell. Flags:
//
//	w  two characters per cell; the label is the first character followed by
//	   the pair (or the second character followed by the pair with s)
//	x  cell numbers start at ExtendedOffset
//	l  the whole text labels the single cell HEX
//
// A space skips a cell. Lines that do not match are ignored.
func ParseLabels(r io.Reader) (map[int]string, error) {
	out := make(map[int]string)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		m := labelLine.FindStringSubmatch(strings.TrimRight(sc.Text(), "\r"))
		if m == nil {
			continue
		}
		offset, err := strconv.ParseInt(m[1], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		flags, text := m[2], []rune(m[3])
		if strings.ContainsRune(flags, 'x') {
			offset += ExtendedOffset
		}
		if strings.ContainsRune(flags, 'l') {
			out[int(offset)] = string(text)
			continue
		}
		wide := strings.ContainsRune(flags, 'w')
		step := 1
		if wide {
			step = 2
		}
		for i := 0; i < len(text); i += step {
			cell := text[i:min(i+step, len(text))]
			if len(cell) == 1 && cell[0] == ' ' {
				continue
			}
			out[int(offset)+i/step] = wideLabel(cell, wide, strings.ContainsRune(flags, 's'))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func wideLabel(cell []rune, wide, second bool) string {
	if !wide || len(strings.TrimSpace(string(cell))) < 2 {
		return string(cell[0])
	}
	if second {
		return string(cell[1]) + string(cell)
	}
	return string(cell[0]) + string(cell)
}
