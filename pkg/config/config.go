// Package config holds the editor configuration: where images come from and
// go to, the blend defaults and the canvas defaults offered to the UI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/canvas"
)

// Config is the top-level configuration.
type Config struct {
	Addr           string       `yaml:"addr" toml:"addr"`
	ImageDir       string       `yaml:"image_dir" toml:"image_dir"`   // folder-scan source; empty disables it
	OutputDir      string       `yaml:"output_dir" toml:"output_dir"` // where Save writes; empty means next to the source
	MaxUploadBytes int64        `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	OpenBrowser    bool         `yaml:"open_browser" toml:"open_browser"`
	Debug          bool         `yaml:"debug" toml:"debug"`
	Blend          BlendConfig  `yaml:"blend" toml:"blend"`
	Canvas         CanvasConfig `yaml:"canvas" toml:"canvas"`
	Live           LiveConfig   `yaml:"live" toml:"live"`
	Batch          BatchConfig  `yaml:"batch" toml:"batch"`
}

// BlendConfig holds the blend target and the default slider value.
type BlendConfig struct {
	Target       string  `yaml:"target" toml:"target"`               // color accepted by blend.ParseColor
	ChannelOrder string  `yaml:"channel_order" toml:"channel_order"` // "bgr" or "rgb"
	Intensity    float64 `yaml:"intensity" toml:"intensity"`
	ReduceNoise  bool    `yaml:"reduce_noise" toml:"reduce_noise"`
}

// CanvasConfig holds drawing-tool defaults for the browser canvas.
type CanvasConfig struct {
	StrokeWidth     int    `yaml:"stroke_width" toml:"stroke_width"`
	StrokeColor     string `yaml:"stroke_color" toml:"stroke_color"`
	BackgroundColor string `yaml:"background_color" toml:"background_color"`
	DrawingMode     string `yaml:"drawing_mode" toml:"drawing_mode"`
}

// LiveConfig throttles live redraws over the websocket.
type LiveConfig struct {
	MaxFPS float64 `yaml:"max_fps" toml:"max_fps"`
}

// BatchConfig sizes the batch worker pool; 0 means one worker per CPU.
type BatchConfig struct {
	Workers int `yaml:"workers" toml:"workers"`
}

const (
	MinStrokeWidth = 1
	MaxStrokeWidth = 50
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:           "127.0.0.1:8501",
		MaxUploadBytes: 64 << 20,
		Blend: BlendConfig{
			Target:       blend.FlatNormal.Hex(),
			ChannelOrder: blend.BGR.String(),
			Intensity:    0.5,
		},
		Canvas: CanvasConfig{
			StrokeWidth:     5,
			StrokeColor:     "#FF0000",
			BackgroundColor: "#FFFFFF",
			DrawingMode:     string(canvas.ModeFreedraw),
		},
		Live: LiveConfig{MaxFPS: 15},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over Default().
// ${VAR} and $VAR references are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(expanded, &cfg)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(expanded, &cfg)
	default:
		return Config{}, fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from path. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overlays NMEDIT_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("NMEDIT_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("NMEDIT_IMAGE_DIR"); v != "" {
		c.ImageDir = v
	}
	if v := os.Getenv("NMEDIT_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("NMEDIT_TARGET"); v != "" {
		c.Blend.Target = v
	}
	if v := os.Getenv("NMEDIT_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: NMEDIT_DEBUG: %w", err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max_upload_bytes must be positive")
	}
	if _, err := c.Engine(); err != nil {
		return fmt.Errorf("config: blend: %w", err)
	}
	if c.Blend.Intensity < 0 || c.Blend.Intensity > 1 {
		return fmt.Errorf("config: blend: intensity %v outside [0,1]", c.Blend.Intensity)
	}
	if c.Canvas.StrokeWidth < MinStrokeWidth || c.Canvas.StrokeWidth > MaxStrokeWidth {
		return fmt.Errorf("config: canvas: stroke_width %d outside [%d,%d]", c.Canvas.StrokeWidth, MinStrokeWidth, MaxStrokeWidth)
	}
	if _, err := canvas.ParseMode(c.Canvas.DrawingMode); err != nil {
		return fmt.Errorf("config: canvas: %w", err)
	}
	for name, col := range map[string]string{"stroke_color": c.Canvas.StrokeColor, "background_color": c.Canvas.BackgroundColor} {
		if _, err := blend.ParseColor(col); err != nil {
			return fmt.Errorf("config: canvas: %s: %w", name, err)
		}
	}
	if c.Live.MaxFPS < 0 {
		return fmt.Errorf("config: live: max_fps must not be negative")
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("config: batch: workers must not be negative")
	}
	return nil
}

// Engine builds the blend engine described by the blend section.
func (c Config) Engine() (*blend.Engine, error) {
	target, err := blend.ParseColor(c.Blend.Target)
	if err != nil {
		return nil, err
	}
	order, err := blend.ParseChannelOrder(c.Blend.ChannelOrder)
	if err != nil {
		return nil, err
	}
	return &blend.Engine{Target: target, Order: order}, nil
}
