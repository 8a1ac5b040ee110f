package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/infra/confloader"
	"github.com/yndnr/mbaas-go/internal/storage"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

// Load loads CLI configuration. A missing file is not an error; defaults,
// environment and overrides still apply. Override keys are dotted paths such
// as "auth.keyid".
func Load(path string, overrides map[string]any) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return domain.ErrInvalidArgument.WithDetails("host is required")
	}

	switch c.Output {
	case "table", "json", "yaml":
	default:
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown output format %q", c.Output))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}

	if c.Transport.Timeout <= 0 {
		return domain.ErrInvalidArgument.WithDetails("transport.timeout must be positive")
	}
	if c.Transport.RateLimit < 0 {
		return domain.ErrInvalidArgument.WithDetails("transport.ratelimit must not be negative")
	}
	if err := c.Transport.TLS().Validate(); err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}
	if c.Watch.Interval <= 0 {
		return domain.ErrInvalidArgument.WithDetails("watch.interval must be positive")
	}

	if !c.Storage.InMemory && c.Storage.Dir == "" {
		return domain.ErrInvalidArgument.WithDetails("storage.dir is required unless storage.inmemory is set")
	}
	if c.Storage.Passphrase != "" {
		seal := storage.SealConfig{Passphrase: []byte(c.Storage.Passphrase), Cipher: c.Storage.Cipher}
		if err := seal.Validate(); err != nil {
			return domain.ErrInvalidArgument.WithCause(err)
		}
	}

	return nil
}

// Save writes cfg to path as YAML, readable by the owner only.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
