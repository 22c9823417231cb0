package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort      = 8080
	DefaultMaxUploadMB   = 20
	DefaultMaxArchiveMB  = 64
	DefaultMaxMembers    = 64
	DefaultTrendDays     = 30
	MaxTrendDays         = 365
	DefaultRunListLimit  = 50
	MaxRunListLimit      = 200
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// DataPath is the SQLite database file. Empty selects the in-memory
	// store (history is lost on restart).
	DataPath string `yaml:"data_path"`

	// Ingest bounds what an upload may cost. These reload at runtime.
	Ingest IngestConfig `yaml:"ingest"`
}

// IngestConfig bounds untrusted archive uploads.
type IngestConfig struct {
	// MaxUploadMB caps the compressed upload body.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// MaxArchiveMB caps the total decompressed size of an archive.
	MaxArchiveMB int `yaml:"max_archive_mb"`

	// MaxMembers caps the number of tar entries.
	MaxMembers int `yaml:"max_members"`
}

// MaxUploadBytes returns the compressed upload cap in bytes.
func (c IngestConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// MaxArchiveBytes returns the decompressed size cap in bytes.
func (c IngestConfig) MaxArchiveBytes() int64 { return int64(c.MaxArchiveMB) << 20 }

// Load reads and parses the config file at path. A missing file is not an
// error: defaults apply, matching a bare `opslens-server` invocation.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Ingest: IngestConfig{
				MaxUploadMB:  DefaultMaxUploadMB,
				MaxArchiveMB: DefaultMaxArchiveMB,
				MaxMembers:   DefaultMaxMembers,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.Ingest.MaxUploadMB <= 0 {
		return fmt.Errorf("server.ingest.max_upload_mb must be positive")
	}
	if cfg.Server.Ingest.MaxArchiveMB <= 0 {
		return fmt.Errorf("server.ingest.max_archive_mb must be positive")
	}
	if cfg.Server.Ingest.MaxMembers <= 0 {
		return fmt.Errorf("server.ingest.max_members must be positive")
	}
	return nil
}
