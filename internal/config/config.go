package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kdstore/internal/storage"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8080
	DefaultMaxMemoryMB  = 1024
	DefaultBinDirectory = "bin"

	BackendLocal = "local"
	BackendMinio = "minio"
)

type Config struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	MaxMemoryMB  int64  `yaml:"max_memory_mb"`
	BinDirectory string `yaml:"bin_directory"`
	// Compression is one of none, lz4 or zstd.
	Compression string `yaml:"compression"`

	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MetricsConfig toggles the Prometheus endpoint at GET /metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig selects where tree files live. Bucket settings apply to the
// minio backend only.
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// RateLimitConfig enables a token bucket in front of the HTTP API when
// RequestsPerSecond is positive.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// NewConfig returns the defaults with tree files stored under dir.
func NewConfig(dir string) (*Config, error) {
	binDir := DefaultBinDirectory
	if dir != "" && dir != "." {
		binDir = filepath.Join(dir, DefaultBinDirectory)
	}
	conf := &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		MaxMemoryMB:  DefaultMaxMemoryMB,
		BinDirectory: binDir,
		Compression:  storage.CompressionNone.String(),
		Storage: StorageConfig{
			Backend: BackendLocal,
			Bucket:  "kdstore",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
	return conf, conf.Validate()
}

// FromFile reads a YAML file over the defaults.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	conf, err := NewConfig(".")
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Load reads path when it is non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	var (
		conf *Config
		err  error
	)
	if path != "" {
		conf, err = FromFile(path)
	} else {
		conf, err = NewConfig(".")
	}
	if err != nil {
		return nil, err
	}
	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return conf, conf.Validate()
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HOST", &c.Host)
	str("BIN_DIRECTORY", &c.BinDirectory)
	str("COMPRESSION", &c.Compression)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("MINIO_ENDPOINT", &c.Storage.Endpoint)
	str("MINIO_BUCKET", &c.Storage.Bucket)
	str("MINIO_ACCESS_KEY", &c.Storage.AccessKey)
	str("MINIO_SECRET_KEY", &c.Storage.SecretKey)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("METRICS_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err)
		}
		c.Metrics.Enabled = enabled
	}
	if v, ok := lookup("MAX_MEMORY_MB"); ok && v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_MEMORY_MB %q: %w", v, err)
		}
		c.MaxMemoryMB = mb
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxMemoryMB < 0 {
		return fmt.Errorf("max_memory_mb must not be negative, got %d", c.MaxMemoryMB)
	}
	if _, err := storage.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case BackendLocal:
		if c.BinDirectory == "" {
			return fmt.Errorf("bin_directory must not be empty")
		}
	case BackendMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("minio backend needs endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// MemoryBudget returns the cache budget in bytes. Zero means unlimited.
func (c *Config) MemoryBudget() int64 {
	return c.MaxMemoryMB * 1024 * 1024
}

func (c *Config) CompressionCodec() storage.Compression {
	codec, err := storage.ParseCompression(c.Compression)
	if err != nil {
		return storage.CompressionNone
	}
	return codec
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
