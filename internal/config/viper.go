package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MOCKAPI_SERVER_PORT.
const EnvPrefix = "MOCKAPI"

// SetDefaults registers every default with v so env variables and flags
// can override keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.tls.enabled", d.Server.TLS.Enabled)
	v.SetDefault("server.tls.certFile", d.Server.TLS.CertFile)
	v.SetDefault("server.tls.keyFile", d.Server.TLS.KeyFile)
	v.SetDefault("server.tls.autoGenerate", d.Server.TLS.AutoGenerate)
	v.SetDefault("server.tls.storePath", d.Server.TLS.StorePath)

	v.SetDefault("routing.caseSensitive", d.Routing.Case)
	v.SetDefault("routing.strict", d.Routing.StrictSlash)

	v.SetDefault("api.file", d.API.File)
	v.SetDefault("api.watch", d.API.Watch)
	v.SetDefault("api.debounce", d.API.Debounce.String())

	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.maxTraces", d.Tracing.MaxTraces)
	v.SetDefault("tracing.maxBodySize", d.Tracing.MaxBodySize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// FromViper decodes the layered settings in v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
