// Package config handles recognizer configuration
package config

import (
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/frame"
	"github.com/GriffinCanCode/glyphscan/internal/glyph"
	"github.com/GriffinCanCode/glyphscan/internal/match"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/scan"
)

// Recognizer modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	RecognizerAddr string
	RecognizerMode string // "local" loads the dictionary, "remote" calls RecognizerAddr
	LogLevel       string

	DictionaryPath  string
	PrimaryPolicy   string
	SecondaryPolicy string // empty disables the second pass

	GlyphHeight       int
	Tolerance         int
	VarianceThreshold float64
	MismatchSlack     int
	MaxMatches        int
	SpaceGap          int

	FrameWidth    int
	FrameHeight   int
	ScreenRect    []int // x, y, width, height in the captured image
	ClockRect     []int // stream clock region; zero width or height disables it
	QuantizeShift int

	FrameSource      string   // directory to replay, or "command"
	FramePattern     string   // glob applied to directory entries
	CaptureCommand   []string // argv printing one image to stdout
	CaptureRate      float64  // Hz
	SkipHashDistance int      // negative disables perceptual skipping

	DialogTopRow  int
	DialogMaxDist int

	RecordPath    string // empty disables the recorder
	RecordOnStart bool
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":50051"),
		RecognizerAddr:    getEnv("RECOGNIZER_ADDR", "localhost:50051"),
		RecognizerMode:    strings.ToLower(getEnv("RECOGNIZER_MODE", ModeLocal)),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DictionaryPath:    getEnv("DICTIONARY_PATH", "glyphs.toml"),
		PrimaryPolicy:     getEnv("PRIMARY_POLICY", string(match.KindExact)),
		SecondaryPolicy:   getEnvOptional("SECONDARY_POLICY", string(match.KindTolerant)),
		GlyphHeight:       getEnvInt("GLYPH_HEIGHT", glyph.DefaultHeight),
		Tolerance:         getEnvInt("TOLERANCE", 5),
		VarianceThreshold: getEnvFloat("VARIANCE_THRESHOLD", 1500),
		MismatchSlack:     getEnvInt("MISMATCH_SLACK", 2),
		MaxMatches:        getEnvInt("MAX_MATCHES", 128),
		SpaceGap:          getEnvInt("SPACE_GAP", 3),
		FrameWidth:        getEnvInt("FRAME_WIDTH", frame.DefaultWidth),
		FrameHeight:       getEnvInt("FRAME_HEIGHT", frame.DefaultHeight),
		ScreenRect:        getEnvInts("SCREEN_RECT", []int{8, 8, 960, 640}),
		ClockRect:         getEnvInts("CLOCK_RECT", []int{232, 9, 146, 25}),
		QuantizeShift:     getEnvInt("QUANTIZE_SHIFT", 6),
		FrameSource:       getEnv("FRAME_SOURCE", ""),
		FramePattern:      getEnv("FRAME_PATTERN", "*.png"),
		CaptureCommand:    strings.Fields(getEnv("CAPTURE_COMMAND", "")),
		CaptureRate:       getEnvFloat("CAPTURE_RATE", 2.0),
		SkipHashDistance:  getEnvInt("SKIP_HASH_DISTANCE", 0),
		DialogTopRow:      getEnvInt("DIALOG_TOP_ROW", 121),
		DialogMaxDist:     getEnvInt("DIALOG_MAX_DIST", 3),
		RecordPath:        getEnv("RECORD_PATH", ""),
		RecordOnStart:     getEnvBool("RECORD_ON_START", false),
	}
}

// Validate reports the first setting no component can work with.
func (c *Config) Validate() error {
	if c.RecognizerMode != ModeLocal && c.RecognizerMode != ModeRemote {
		return invalid("RECOGNIZER_MODE", c.RecognizerMode, nil)
	}
	if _, err := match.ParseKind(c.PrimaryPolicy); err != nil {
		return invalid("PRIMARY_POLICY", c.PrimaryPolicy, err)
	}
	if c.SecondaryPolicy != "" {
		if _, err := match.ParseKind(c.SecondaryPolicy); err != nil {
			return invalid("SECONDARY_POLICY", c.SecondaryPolicy, err)
		}
	}
	if c.GlyphHeight < 1 || c.GlyphHeight > glyph.MaxHeight {
		return invalid("GLYPH_HEIGHT", c.GlyphHeight, nil)
	}
	if err := c.MatchOptions().Validate(); err != nil {
		return errors.Wrap(err, errors.ConfigInvalid, "invalid matching options")
	}
	if c.MaxMatches < 1 {
		return invalid("MAX_MATCHES", c.MaxMatches, nil)
	}
	if c.SpaceGap < 0 {
		return invalid("SPACE_GAP", c.SpaceGap, nil)
	}
	if c.FrameWidth <= match.TileWidth || c.FrameHeight <= c.GlyphHeight+1 {
		return invalid("FRAME_WIDTH/FRAME_HEIGHT", []int{c.FrameWidth, c.FrameHeight}, nil)
	}
	if len(c.ScreenRect) != 4 || c.ScreenRect[2] <= 0 || c.ScreenRect[3] <= 0 {
		return invalid("SCREEN_RECT", c.ScreenRect, nil)
	}
	if len(c.ClockRect) != 4 || min(c.ClockRect[0], c.ClockRect[1], c.ClockRect[2], c.ClockRect[3]) < 0 {
		return invalid("CLOCK_RECT", c.ClockRect, nil)
	}
	if c.QuantizeShift < 0 || c.QuantizeShift > 7 {
		return invalid("QUANTIZE_SHIFT", c.QuantizeShift, nil)
	}
	if c.CaptureRate <= 0 {
		return invalid("CAPTURE_RATE", c.CaptureRate, nil)
	}
	if c.FrameSource == "command" && len(c.CaptureCommand) == 0 {
		return errors.New(errors.ConfigMissing, "FRAME_SOURCE=command needs CAPTURE_COMMAND")
	}
	if c.DialogMaxDist < 1 {
		return invalid("DIALOG_MAX_DIST", c.DialogMaxDist, nil)
	}
	return nil
}

func invalid(key string, v any, cause error) *errors.AppError {
	return errors.Wrapf(cause, errors.ConfigInvalid, "invalid %s: %v", key, v).WithMetadata("key", key)
}

// MatchOptions derives the tolerant policy tuning.
func (c *Config) MatchOptions() match.Options {
	return match.Options{
		Tolerance:         c.Tolerance,
		VarianceThreshold: c.VarianceThreshold,
		MismatchSlack:     c.MismatchSlack,
	}
}

// ScanOptions derives the scanner bounds.
func (c *Config) ScanOptions() scan.Options {
	return scan.Options{MaxMatches: c.MaxMatches, SpaceGap: c.SpaceGap}
}

// RecognizeOptions derives the full recognizer setup.
func (c *Config) RecognizeOptions() recognize.Options {
	return recognize.Options{
		Primary:       match.Kind(strings.ToLower(c.PrimaryPolicy)),
		Secondary:     match.Kind(strings.ToLower(c.SecondaryPolicy)),
		Match:         c.MatchOptions(),
		Scan:          c.ScanOptions(),
		Extract:       c.ExtractOptions(),
		QuantizeShift: uint(c.QuantizeShift),
	}
}

// ExtractOptions derives how captured images become frames.
func (c *Config) ExtractOptions() frame.ExtractOptions {
	opts := frame.DefaultExtractOptions()
	opts.Width, opts.Height = c.FrameWidth, c.FrameHeight
	if len(c.ScreenRect) == 4 {
		x, y := c.ScreenRect[0], c.ScreenRect[1]
		opts.Screen = image.Rect(x, y, x+c.ScreenRect[2], y+c.ScreenRect[3])
	}
	return opts
}

// ClockRegion is where the stream clock is read, or the empty rectangle
// when clock reading is off.
func (c *Config) ClockRegion() image.Rectangle {
	if len(c.ClockRect) != 4 {
		return image.Rectangle{}
	}
	x, y := c.ClockRect[0], c.ClockRect[1]
	return image.Rect(x, y, x+c.ClockRect[2], y+c.ClockRect[3])
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOptional is getEnv where an explicitly empty value wins over def.
func getEnvOptional(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// getEnvInts parses a comma separated list of integers, falling back to def
// if any element is malformed.
func getEnvInts(key string, def []int) []int {
	parts := getEnvList(key, nil)
	if parts == nil {
		return def
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return def
		}
		out[i] = n
	}
	return out
}
