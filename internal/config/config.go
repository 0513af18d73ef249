package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Create new config instance
func NewConfig() *Config {
	return &Config{}
}

// Load reads an optional .env file, then the json config file if it exists,
// then environment variables on top.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	c := NewConfig()
	if err := c.Read(file); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load configuration file in json format, overlaid with the environment.
// A missing file is not an error.
func (c *Config) Read(file string) error {
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			return cleanenv.ReadConfig(file, c)
		}
	}
	return cleanenv.ReadEnv(c)
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := ParseHexColor(c.Image.Background); err != nil {
		return fmt.Errorf("invalid config: image background: %w", err)
	}
	return nil
}

var errBadColor = errors.New("expected #rgb or #rrggbb")

// ParseHexColor turns "#rrggbb" or "#rgb" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("%q: %w", s, errBadColor)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%q: %w", s, errBadColor)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
