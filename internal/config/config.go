package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ServerConfig is the startup configuration of the HTTP service.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Debug   bool   `yaml:"debug"`
	Prefork bool   `yaml:"prefork"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// PDFConfig controls the renderer and the export endpoint.
type PDFConfig struct {
	DefaultPaper    string               `yaml:"default_paper"`
	PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
	MarginInches    float64              `yaml:"margin_inches"`
	ApplyStylesheet bool                 `yaml:"apply_stylesheet"`
	Filename        string               `yaml:"filename"`
	TempDir         string               `yaml:"temp_dir"`
	TimeoutSecs     int                  `yaml:"timeout_secs"`
	ChromePath      string               `yaml:"chrome_path"`
	ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
	ChromePoolSize  int                  `yaml:"chrome_pool_size"`
	UserDataDir     string               `yaml:"user_data_dir"`
}

// Paper returns the default paper size, falling back to A4.
func (p PDFConfig) Paper() PaperSize {
	if size, ok := p.PaperSizes[p.DefaultPaper]; ok {
		return size
	}
	return PaperSize{Width: 8.27, Height: 11.69}
}

// Timeout returns the per-render timeout.
func (p PDFConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

type LimitsConfig struct {
	MaxBodyBytes int `yaml:"max_body_bytes"`
}

type CacheConfig struct {
	PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
	PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
	RedisHost       string        `yaml:"redis_host"`
	RateLimitDB     int           `yaml:"redis_rate_db"`
	PDFCacheDB      int           `yaml:"redis_pdf_db"`
}

type RateLimiterConfig struct {
	UserLimit int           `yaml:"user_limit"`
	Interval  time.Duration `yaml:"interval"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	Enabled        bool           `yaml:"enabled"`
	ReloadInterval time.Duration  `yaml:"reload_interval"`
	Postgres       PostgresConfig `yaml:"postgres"`
}

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logger      LoggerConfig      `yaml:"logger"`
	PDF         PDFConfig         `yaml:"pdf"`
	Limits      LimitsConfig      `yaml:"limits"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		PDF: PDFConfig{
			DefaultPaper: "A4",
			PaperSizes: map[string]PaperSize{
				"A4":     {Width: 8.27, Height: 11.69},
				"LETTER": {Width: 8.5, Height: 11},
			},
			MarginInches:    0.4,
			ApplyStylesheet: true,
			Filename:        "documento.pdf",
			TimeoutSecs:     60,
			ChromeNoSandbox: true,
		},
		Limits: LimitsConfig{
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		Cache: CacheConfig{
			PDFCacheTTL: time.Minute,
			PDFCacheDB:  1,
		},
		RateLimiter: RateLimiterConfig{
			Interval: time.Minute,
		},
		Auth: AuthConfig{
			ReloadInterval: time.Minute,
		},
	}
}

// Load reads the file named by CONFIG_PATH, or DefaultPath.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML file at path on top of Default.
// A missing file yields the defaults. Invalid configuration panics; it is
// only called during startup.
func LoadFrom(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	// Allow common container env var to override chrome_path.
	if cfg.PDF.ChromePath == "" {
		cfg.PDF.ChromePath = os.Getenv("CHROME_BIN")
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.PDF.TimeoutSecs <= 0 {
		return fmt.Errorf("pdf.timeout_secs must be positive")
	}
	if c.PDF.ChromePoolSize < 0 {
		return fmt.Errorf("pdf.chrome_pool_size must not be negative")
	}
	if c.PDF.MarginInches < 0 {
		return fmt.Errorf("pdf.margin_inches must not be negative")
	}
	if _, ok := c.PDF.PaperSizes[c.PDF.DefaultPaper]; !ok {
		return fmt.Errorf("pdf.default_paper %q not in paper_sizes", c.PDF.DefaultPaper)
	}
	if c.PDF.Filename == "" {
		return fmt.Errorf("pdf.filename is empty")
	}
	if c.Limits.MaxBodyBytes <= 0 {
		return fmt.Errorf("limits.max_body_bytes must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.UserLimit > 0 && c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if c.Auth.Enabled && c.Auth.ReloadInterval <= 0 {
		return fmt.Errorf("auth.reload_interval must be positive")
	}
	return nil
}
