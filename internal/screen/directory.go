package screen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gobwas/glob"
)

// dirBackend replays image files from a directory in name order.
type dirBackend struct {
	dir   string
	files []string
	next  int
	loop  bool
}

// NewDirectory returns a capturer replaying the files in dir whose names
// match pattern. With loop set the replay restarts after the last file;
// otherwise Capture returns ErrExhausted.
func NewDirectory(dir, pattern string, loop bool) (Capturer, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrSource, pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && g.Match(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in %s match %q", ErrSource, dir, pattern)
	}
	slices.Sort(files)
	return newBase(&dirBackend{dir: dir, files: files, loop: loop}), nil
}

func (d *dirBackend) captureRaw(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next == len(d.files) {
		if !d.loop {
			return nil, ErrExhausted
		}
		d.next = 0
	}
	name := d.files[d.next]
	d.next++
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return nil, fmt.Errorf("screen: replay %s: %w", name, err)
	}
	return data, nil
}

func (d *dirBackend) cleanup() error { return nil }
