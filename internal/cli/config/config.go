package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/mbaas-go/internal/infra/tlsroots"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

// Config is the configuration for mbaas-cli.
type Config struct {
	// Host is the backend base URL.
	Host string `koanf:"host" json:"host" yaml:"host"`

	// Output is the default output format: table, json, yaml.
	Output string `koanf:"output" json:"output" yaml:"output"`

	Auth      AuthConfig      `koanf:"auth" json:"auth" yaml:"auth"`
	Transport TransportConfig `koanf:"transport" json:"transport" yaml:"transport"`
	Storage   StorageConfig   `koanf:"storage" json:"storage" yaml:"storage"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Metrics   MetricsConfig   `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Watch     WatchConfig     `koanf:"watch" json:"watch" yaml:"watch"`
}

// AuthConfig holds the API key attached to requests made with useAuth.
type AuthConfig struct {
	KeyID string `koanf:"keyid" json:"keyid" yaml:"keyid"`
	Key   string `koanf:"key" json:"key" yaml:"key"`
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	Timeout Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`

	// RateLimit is the maximum requests per second; 0 disables limiting.
	RateLimit float64 `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
	Burst     int     `koanf:"burst" json:"burst" yaml:"burst"`

	// CAFile is a PEM bundle trusted for https hosts besides the system roots.
	CAFile string `koanf:"cafile" json:"cafile,omitempty" yaml:"cafile,omitempty"`

	// CertFile and KeyFile enable mutual TLS with the backend.
	CertFile string `koanf:"certfile" json:"certfile,omitempty" yaml:"certfile,omitempty"`
	KeyFile  string `koanf:"keyfile" json:"keyfile,omitempty" yaml:"keyfile,omitempty"`
}

// TLS returns the TLS options of the transport.
func (t TransportConfig) TLS() tlsroots.ClientOptions {
	return tlsroots.ClientOptions{
		CAFile:   t.CAFile,
		CertFile: t.CertFile,
		KeyFile:  t.KeyFile,
	}
}

// StorageConfig configures the local token store.
type StorageConfig struct {
	Dir      string `koanf:"dir" json:"dir" yaml:"dir"`
	InMemory bool   `koanf:"inmemory" json:"inmemory" yaml:"inmemory"`

	// Passphrase enables at-rest sealing of stored values when set.
	Passphrase string `koanf:"passphrase" json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	Cipher     string `koanf:"cipher" json:"cipher" yaml:"cipher"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsConfig configures the metrics endpoint of long-running commands.
type MetricsConfig struct {
	// Address to serve /metrics on; empty disables the endpoint.
	Address string `koanf:"address" json:"address" yaml:"address"`
}

// WatchConfig configures "session watch".
type WatchConfig struct {
	Interval     Duration `koanf:"interval" json:"interval" yaml:"interval"`
	ClearInvalid bool     `koanf:"clearinvalid" json:"clearinvalid" yaml:"clearinvalid"`
}

// Duration is a time.Duration written as text ("30s") in config files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultConfigDir returns the directory holding the CLI config and data.
func DefaultConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".mbaas")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "cli.yaml")
}

// Default returns the default CLI configuration.
func Default() *Config {
	return &Config{
		Host:   "http://localhost:8080",
		Output: "table",
		Transport: TransportConfig{
			Timeout: Duration(30 * time.Second),
			Burst:   1,
		},
		Storage: StorageConfig{
			Dir:    filepath.Join(DefaultConfigDir(), "data"),
			Cipher: "auto",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Watch: WatchConfig{
			Interval: Duration(5 * time.Minute),
		},
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Key != "" {
		out.Auth.Key = logger.RedactString(out.Auth.Key)
	}
	if out.Storage.Passphrase != "" {
		out.Storage.Passphrase = logger.RedactString(out.Storage.Passphrase)
	}
	return &out
}
