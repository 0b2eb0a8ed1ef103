package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a pipeline run. It is built once per
// invocation and passed into the processor explicitly.
type Config struct {
	Roots            []string `yaml:"roots"`
	SourceExtensions []string `yaml:"source_extensions"`
	Widths           []int    `yaml:"widths"`
	Format           string   `yaml:"format"`
	Quality          int      `yaml:"quality"`
	Workers          int      `yaml:"workers"`
	MaxSourceBytes   int64    `yaml:"max_source_bytes"`
	LogLevel         string   `yaml:"log_level"`
}

// Supported output formats.
const (
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// DefaultMaxSourceBytes caps the size of a single source image.
const DefaultMaxSourceBytes = 100 << 20

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Roots:            []string{"public/images", "src/assets/images"},
		SourceExtensions: []string{".png", ".jpg", ".jpeg", ".webp"},
		Widths:           []int{768, 1200},
		Format:           FormatWebP,
		Quality:          62,
		Workers:          runtime.NumCPU(),
		MaxSourceBytes:   DefaultMaxSourceBytes,
		LogLevel:         "info",
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file when one exists. Variables
// already present in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides fields from VARIANTS_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("VARIANTS_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("VARIANTS_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VARIANTS_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv("VARIANTS_QUALITY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VARIANTS_QUALITY: %w", err)
		}
		c.Quality = n
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot use.
func (c *Config) Validate() error {
	if len(c.Widths) == 0 {
		return fmt.Errorf("widths must not be empty")
	}
	for _, w := range c.Widths {
		if w <= 0 {
			return fmt.Errorf("width %d must be positive", w)
		}
	}
	if len(c.SourceExtensions) == 0 {
		return fmt.Errorf("source_extensions must not be empty")
	}
	switch c.Format {
	case FormatWebP, FormatJPEG, FormatPNG:
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality %d out of range 1-100", c.Quality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.MaxSourceBytes < 0 {
		return fmt.Errorf("max_source_bytes must not be negative")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// OutputExt is the file extension of variants for the configured format.
func (c *Config) OutputExt() string {
	switch c.Format {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	default:
		return ".webp"
	}
}

// WorkerCount returns Workers, falling back to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
