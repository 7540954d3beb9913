package config

import (
	"image"
	"testing"

	"github.com/GriffinCanCode/glyphscan/internal/errors"
)

var allKeys = []string{
	"HTTP_ADDR", "GRPC_ADDR", "RECOGNIZER_ADDR", "RECOGNIZER_MODE", "LOG_LEVEL", "DICTIONARY_PATH",
	"PRIMARY_POLICY", "SECONDARY_POLICY", "GLYPH_HEIGHT", "TOLERANCE",
	"VARIANCE_THRESHOLD", "MISMATCH_SLACK", "MAX_MATCHES", "SPACE_GAP",
	"FRAME_WIDTH", "FRAME_HEIGHT", "SCREEN_RECT", "CLOCK_RECT", "QUANTIZE_SHIFT",
	"FRAME_SOURCE", "FRAME_PATTERN", "CAPTURE_COMMAND", "CAPTURE_RATE",
	"SKIP_HASH_DISTANCE", "DIALOG_TOP_ROW", "DIALOG_MAX_DIST",
	"RECORD_PATH", "RECORD_ON_START",
}

// clearEnv blanks every key for the test. Empty values read as unset,
// except SECONDARY_POLICY where empty disables the pass, so that one is
// left alone unless a test sets it.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		if k == "SECONDARY_POLICY" {
			continue
		}
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.GRPCAddr != ":50051" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":50051")
	}
	if cfg.PrimaryPolicy != "exact" {
		t.Errorf("PrimaryPolicy = %q, want exact", cfg.PrimaryPolicy)
	}
	if cfg.RecognizerMode != ModeLocal {
		t.Errorf("RecognizerMode = %q, want %q", cfg.RecognizerMode, ModeLocal)
	}
	if cfg.GlyphHeight != 14 {
		t.Errorf("GlyphHeight = %d, want 14", cfg.GlyphHeight)
	}
	if cfg.Tolerance != 5 || cfg.VarianceThreshold != 1500 || cfg.MismatchSlack != 2 {
		t.Errorf("tolerant tuning = (%d, %v, %d), want (5, 1500, 2)",
			cfg.Tolerance, cfg.VarianceThreshold, cfg.MismatchSlack)
	}
	if cfg.MaxMatches != 128 || cfg.SpaceGap != 3 {
		t.Errorf("scan bounds = (%d, %d), want (128, 3)", cfg.MaxMatches, cfg.SpaceGap)
	}
	if cfg.FrameWidth != 240 || cfg.FrameHeight != 160 {
		t.Errorf("frame = %d×%d, want 240×160", cfg.FrameWidth, cfg.FrameHeight)
	}
	if cfg.CaptureRate != 2.0 {
		t.Errorf("CaptureRate = %f, want 2.0", cfg.CaptureRate)
	}
	if cfg.CaptureCommand != nil {
		t.Errorf("CaptureCommand = %v, want nil", cfg.CaptureCommand)
	}
	if cfg.RecordOnStart {
		t.Error("RecordOnStart should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("PRIMARY_POLICY", "exact-linear")
	t.Setenv("SECONDARY_POLICY", "")
	t.Setenv("TOLERANCE", "8")
	t.Setenv("VARIANCE_THRESHOLD", "900.5")
	t.Setenv("SCREEN_RECT", "0, 0, 480, 320")
	t.Setenv("CAPTURE_COMMAND", "ffmpeg -i /dev/video0 -frames:v 1 -f image2pipe -")
	t.Setenv("RECORD_ON_START", "true")

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.PrimaryPolicy != "exact-linear" {
		t.Errorf("PrimaryPolicy = %q, want exact-linear", cfg.PrimaryPolicy)
	}
	if cfg.SecondaryPolicy != "" {
		t.Errorf("SecondaryPolicy = %q, want empty", cfg.SecondaryPolicy)
	}
	if cfg.Tolerance != 8 || cfg.VarianceThreshold != 900.5 {
		t.Errorf("tuning = (%d, %v), want (8, 900.5)", cfg.Tolerance, cfg.VarianceThreshold)
	}
	if len(cfg.CaptureCommand) != 8 || cfg.CaptureCommand[0] != "ffmpeg" {
		t.Errorf("CaptureCommand = %q", cfg.CaptureCommand)
	}
	if !cfg.RecordOnStart {
		t.Error("RecordOnStart = false, want true")
	}
	if got, want := cfg.ExtractOptions().Screen, image.Rect(0, 0, 480, 320); got != want {
		t.Errorf("Screen = %v, want %v", got, want)
	}
}

func TestSecondaryPolicyDefault(t *testing.T) {
	clearEnv(t)
	if cfg := Load(); cfg.SecondaryPolicy != "tolerant" {
		t.Errorf("SecondaryPolicy = %q, want tolerant", cfg.SecondaryPolicy)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_MATCHES", "many")
	t.Setenv("CAPTURE_RATE", "fast")
	t.Setenv("SCREEN_RECT", "8,8,wide,640")

	cfg := Load()

	if cfg.MaxMatches != 128 {
		t.Errorf("MaxMatches = %d, want default 128", cfg.MaxMatches)
	}
	if cfg.CaptureRate != 2.0 {
		t.Errorf("CaptureRate = %f, want default 2.0", cfg.CaptureRate)
	}
	if len(cfg.ScreenRect) != 4 || cfg.ScreenRect[2] != 960 {
		t.Errorf("ScreenRect = %v, want default", cfg.ScreenRect)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.Code
	}{
		{"unknown mode", func(c *Config) { c.RecognizerMode = "hybrid" }, errors.ConfigInvalid},
		{"unknown policy", func(c *Config) { c.PrimaryPolicy = "fuzzy" }, errors.ConfigInvalid},
		{"unknown secondary", func(c *Config) { c.SecondaryPolicy = "fuzzy" }, errors.ConfigInvalid},
		{"tall glyphs", func(c *Config) { c.GlyphHeight = 17 }, errors.ConfigInvalid},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }, errors.ConfigInvalid},
		{"no capacity", func(c *Config) { c.MaxMatches = 0 }, errors.ConfigInvalid},
		{"tiny frame", func(c *Config) { c.FrameWidth = 7 }, errors.ConfigInvalid},
		{"short frame", func(c *Config) { c.FrameHeight = 15 }, errors.ConfigInvalid},
		{"bad rect", func(c *Config) { c.ScreenRect = []int{0, 0, 10} }, errors.ConfigInvalid},
		{"bad clock rect", func(c *Config) { c.ClockRect = []int{0, 0, -1, 25} }, errors.ConfigInvalid},
		{"bad shift", func(c *Config) { c.QuantizeShift = 8 }, errors.ConfigInvalid},
		{"zero rate", func(c *Config) { c.CaptureRate = 0 }, errors.ConfigInvalid},
		{"command without argv", func(c *Config) { c.FrameSource = "command" }, errors.ConfigMissing},
		{"dialog dist", func(c *Config) { c.DialogMaxDist = 0 }, errors.ConfigInvalid},
	}

	clearEnv(t)
	for _, tt := range tests {
		cfg := Load()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
			continue
		}
		if !errors.IsCode(err, tt.code) {
			t.Errorf("%s: Validate() = %v, want code %s", tt.name, err, tt.code)
		}
	}
}

func TestDerivedOptions(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if m := cfg.MatchOptions(); m.Tolerance != 5 || m.MismatchSlack != 2 {
		t.Errorf("MatchOptions = %+v", m)
	}
	if s := cfg.ScanOptions(); s.MaxMatches != 128 || s.SpaceGap != 3 {
		t.Errorf("ScanOptions = %+v", s)
	}
	if r := cfg.RecognizeOptions(); r.Primary != "exact" || r.Secondary != "tolerant" || r.QuantizeShift != 6 {
		t.Errorf("RecognizeOptions = %+v", r)
	}
	e := cfg.ExtractOptions()
	if e.Width != 240 || e.Height != 160 {
		t.Errorf("ExtractOptions size = %d×%d, want 240×160", e.Width, e.Height)
	}
	if want := image.Rect(8, 8, 968, 648); e.Screen != want {
		t.Errorf("Screen = %v, want %v", e.Screen, want)
	}
	if want := image.Rect(232, 9, 378, 34); cfg.ClockRegion() != want {
		t.Errorf("ClockRegion() = %v, want %v", cfg.ClockRegion(), want)
	}
}

func TestClockRegionDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOCK_RECT", "0,0,0,0")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if !cfg.ClockRegion().Empty() {
		t.Errorf("ClockRegion() = %v, want empty", cfg.ClockRegion())
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "3.14")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_LIST", "a, b,,c")

	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want 42", v)
	}
	if v := getEnvFloat("TEST_FLOAT", 0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want 3.14", v)
	}
	if v := getEnvBool("TEST_BOOL", false); !v {
		t.Error("getEnvBool = false, want true")
	}
	if v := getEnvList("TEST_LIST", nil); len(v) != 3 || v[2] != "c" {
		t.Errorf("getEnvList = %v, want [a b c]", v)
	}
	if v := getEnvInt("TEST_MISSING", 7); v != 7 {
		t.Errorf("getEnvInt default = %d, want 7", v)
	}
}
