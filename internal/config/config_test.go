package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.False(t, cfg.Server.TLS.Enabled)
	assert.True(t, cfg.Server.TLS.AutoGenerate)
	assert.False(t, cfg.Routing.CaseSensitive())
	assert.False(t, cfg.Routing.Strict())
	assert.Equal(t, "openapi.yaml", cfg.API.File)
	assert.Equal(t, 300*time.Millisecond, cfg.API.Debounce)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 1000, cfg.Tracing.MaxTraces)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "./data/certs", cfg.CertDir())
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
routing:
  caseSensitive: true
  strict: true
api:
  file: petstore.yaml
  debounce: 1s
storage:
  type: file
  path: /var/lib/mockapi
logging:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Routing.CaseSensitive())
	assert.True(t, cfg.Routing.Strict())
	assert.Equal(t, "petstore.yaml", cfg.API.File)
	assert.Equal(t, time.Second, cfg.API.Debounce)
	assert.True(t, cfg.API.Watch)
	assert.Equal(t, StorageFile, cfg.Storage.Type)
	assert.Equal(t, "/var/lib/mockapi/certs", cfg.CertDir())
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: redis\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "storage.type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"api file", func(c *Config) { c.API.File = "" }, "api.file"},
		{"file storage path", func(c *Config) { c.Storage = StorageConfig{Type: StorageFile} }, "storage.path"},
		{"traces", func(c *Config) { c.Tracing.MaxTraces = -1 }, "maxTraces"},
		{"tls pair", func(c *Config) {
			c.Server.TLS.Enabled = true
			c.Server.TLS.CertFile = "a.crt"
		}, "keyFile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("api:\n  file: pets.json\ntracing:\n  enabled: false\n")))
	v.Set("server.port", 7000)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "pets.json", cfg.API.File)
	assert.Equal(t, 300*time.Millisecond, cfg.API.Debounce)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1000, cfg.Tracing.MaxTraces)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
}
