package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FFFFFF", color.NRGBA{255, 255, 255, 255}, false},
		{"#000000", color.NRGBA{0, 0, 0, 255}, false},
		{"#1a2B3c", color.NRGBA{0x1a, 0x2b, 0x3c, 255}, false},
		{"#f00", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#12345", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadDefaults(t *testing.T) {
	c := NewConfig()
	if err := c.Read(""); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Image.TargetWidth != 1024 || c.Image.TargetHeight != 1024 {
		t.Errorf("target = %dx%d, want 1024x1024", c.Image.TargetWidth, c.Image.TargetHeight)
	}
	if c.Audio.Bitrate != "192k" {
		t.Errorf("Bitrate = %q, want %q", c.Audio.Bitrate, "192k")
	}
	if c.Lock.TTLSeconds != 600 {
		t.Errorf("TTLSeconds = %d, want 600", c.Lock.TTLSeconds)
	}
	if c.Bus.JobsChannel != "converter:requests" || c.Bus.ResultsChannel != "converter:responses" {
		t.Errorf("channels = %q/%q", c.Bus.JobsChannel, c.Bus.ResultsChannel)
	}
	if got := c.Image.BackgroundColor(); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("BackgroundColor = %v, want white", got)
	}
	if len(c.Worker.FallbackOrder) != 2 || c.Worker.FallbackOrder[0] != "image" {
		t.Errorf("FallbackOrder = %v, want [image audio]", c.Worker.FallbackOrder)
	}
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("IMAGE_TARGET_WIDTH", "640")
	t.Setenv("IMAGE_TARGET_HEIGHT", "480")
	t.Setenv("IMAGE_BG_COLOR", "#000")
	t.Setenv("AUDIO_BITRATE", "128k")
	t.Setenv("LOCK_TTL_SECONDS", "30")
	t.Setenv("FALLBACK_ORDER", "audio,image")

	c := NewConfig()
	if err := c.Read(""); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Image.TargetWidth != 640 || c.Image.TargetHeight != 480 {
		t.Errorf("target = %dx%d, want 640x480", c.Image.TargetWidth, c.Image.TargetHeight)
	}
	if got := c.Image.BackgroundColor(); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("BackgroundColor = %v, want black", got)
	}
	if c.Audio.Bitrate != "128k" {
		t.Errorf("Bitrate = %q, want 128k", c.Audio.Bitrate)
	}
	if c.Lock.TTL().Seconds() != 30 {
		t.Errorf("TTL = %v, want 30s", c.Lock.TTL())
	}
	if c.Worker.FallbackOrder[0] != "audio" {
		t.Errorf("FallbackOrder = %v, want audio first", c.Worker.FallbackOrder)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"image": {"target_width": 300, "target_height": 200, "background": "#00FF00"}, "server": {"port": 8080}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Image.TargetWidth != 300 || c.Image.TargetHeight != 200 {
		t.Errorf("target = %dx%d, want 300x200", c.Image.TargetWidth, c.Image.TargetHeight)
	}
	if c.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", c.Server.Port)
	}
	// untouched fields still get their defaults
	if c.Audio.Bitrate != "192k" {
		t.Errorf("Bitrate = %q, want 192k", c.Audio.Bitrate)
	}
}

func TestValidateRejectsBadColor(t *testing.T) {
	t.Setenv("IMAGE_BG_COLOR", "white")
	c := NewConfig()
	if err := c.Read(""); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for non-hex color")
	}
}
