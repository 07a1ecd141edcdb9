// Package config holds the mock server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage types.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Routing RoutingConfig `mapstructure:"routing" yaml:"routing"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int       `mapstructure:"port" yaml:"port"`
	Host string    `mapstructure:"host" yaml:"host"`
	TLS  TLSConfig `mapstructure:"tls" yaml:"tls"`
}

// Addr is the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TLSConfig holds TLS configuration. With Enabled set the server accepts
// HTTP and HTTPS on the same port.
type TLSConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	CertFile     string `mapstructure:"certFile" yaml:"certFile"`
	KeyFile      string `mapstructure:"keyFile" yaml:"keyFile"`
	AutoGenerate bool   `mapstructure:"autoGenerate" yaml:"autoGenerate"`
	// StorePath holds generated certificates; empty means <storage.path>/certs.
	StorePath string `mapstructure:"storePath" yaml:"storePath"`
}

// RoutingConfig controls how request paths are matched against the
// document's path templates. It satisfies metadata.RoutingConfig.
type RoutingConfig struct {
	Case        bool `mapstructure:"caseSensitive" yaml:"caseSensitive"`
	StrictSlash bool `mapstructure:"strict" yaml:"strict"`
}

func (r RoutingConfig) CaseSensitive() bool { return r.Case }
func (r RoutingConfig) Strict() bool        { return r.StrictSlash }

// APIConfig names the API document to mock.
type APIConfig struct {
	File     string        `mapstructure:"file" yaml:"file"`
	Watch    bool          `mapstructure:"watch" yaml:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "memory" or "file"
	Path string `mapstructure:"path" yaml:"path"` // directory for file storage
}

// TracingConfig holds request tracing configuration
type TracingConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	MaxTraces   int  `mapstructure:"maxTraces" yaml:"maxTraces"`
	MaxBodySize int  `mapstructure:"maxBodySize" yaml:"maxBodySize"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
			TLS: TLSConfig{
				AutoGenerate: true,
			},
		},
		API: APIConfig{
			File:     "openapi.yaml",
			Watch:    true,
			Debounce: 300 * time.Millisecond,
		},
		Storage: StorageConfig{
			Type: StorageMemory,
			Path: "./data",
		},
		Tracing: TracingConfig{
			Enabled:     true,
			MaxTraces:   1000,
			MaxBodySize: 64 << 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.API.File == "":
		return fmt.Errorf("api.file is required")
	case c.Storage.Type != StorageMemory && c.Storage.Type != StorageFile:
		return fmt.Errorf("storage.type %q must be %q or %q", c.Storage.Type, StorageMemory, StorageFile)
	case c.Storage.Type == StorageFile && c.Storage.Path == "":
		return fmt.Errorf("storage.path is required for file storage")
	case c.Tracing.MaxTraces < 0:
		return fmt.Errorf("tracing.maxTraces must not be negative")
	case c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == ""):
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile must be set together")
	}
	return nil
}

// CertDir is where generated TLS certificates are kept.
func (c *Config) CertDir() string {
	if c.Server.TLS.StorePath != "" {
		return c.Server.TLS.StorePath
	}
	return c.Storage.Path + "/certs"
}
