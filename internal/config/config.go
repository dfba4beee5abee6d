package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EffectConfig holds the effect durations in seconds.
type EffectConfig struct {
	Transition float64 `yaml:"transition" json:"transition"`
	FadeIn     float64 `yaml:"fade_in" json:"fade_in"`
	FadeOut    float64 `yaml:"fade_out" json:"fade_out"`
}

// DefaultEffects returns the 1s/1s/1s effect set.
func DefaultEffects() EffectConfig {
	return EffectConfig{
		Transition: 1.0,
		FadeIn:     1.0,
		FadeOut:    1.0,
	}
}

// Validate rejects negative durations.
func (e EffectConfig) Validate() error {
	if e.Transition < 0 || e.FadeIn < 0 || e.FadeOut < 0 {
		return fmt.Errorf("effect durations must be non-negative (transition=%.2f, fade_in=%.2f, fade_out=%.2f)",
			e.Transition, e.FadeIn, e.FadeOut)
	}
	return nil
}

type VideoConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	Encoder    string `yaml:"encoder"` // empty = libx264, "auto" = detect hardware
	Quality    int    `yaml:"quality"` // 0 = per-encoder default
	AutoAspect bool   `yaml:"auto_aspect"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	PublicURL   string `yaml:"public_url"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Config is the application configuration.
type Config struct {
	Effects   EffectConfig `yaml:"effects"`
	Video     VideoConfig  `yaml:"video"`
	Workers   int          `yaml:"workers"` // 0 = sized from the host
	OutputDir string       `yaml:"output_dir"`
	TempDir   string       `yaml:"temp_dir"`
	InputDir  string       `yaml:"input_dir"`
	Server    ServerConfig `yaml:"server"`
	S3        S3Config     `yaml:"s3"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Effects: DefaultEffects(),
		Video: VideoConfig{
			Width:      1280,
			Height:     720,
			FPS:        24,
			AutoAspect: true,
		},
		OutputDir: "output",
		InputDir:  "input",
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 512,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// falls back to the well-known locations; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if err := c.Effects.Validate(); err != nil {
		return err
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("video fps must be positive, got %d", c.Video.FPS)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return fmt.Errorf("video size must be even for yuv420p, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MUSICVIDEO_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("MUSICVIDEO_TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv("MUSICVIDEO_S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("MUSICVIDEO_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

func findConfigFile() string {
	candidates := []string{
		"./musicvideo.yaml",
		"./musicvideo.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".musicvideo", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

type contextKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or the defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}
