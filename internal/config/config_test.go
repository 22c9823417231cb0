package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `server:
  data_path: "/var/lib/opslens/opslens.db"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Ingest.MaxUploadMB != DefaultMaxUploadMB {
		t.Errorf("max_upload_mb: got %d, want %d", cfg.Server.Ingest.MaxUploadMB, DefaultMaxUploadMB)
	}
	if cfg.Server.DataPath != "/var/lib/opslens/opslens.db" {
		t.Errorf("data_path: got %q", cfg.Server.DataPath)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  data_path: opslens.db
  ingest:
    max_upload_mb: 5
    max_archive_mb: 16
    max_members: 32
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if got := cfg.Server.Ingest.MaxUploadBytes(); got != 5<<20 {
		t.Errorf("MaxUploadBytes: got %d, want %d", got, 5<<20)
	}
	if got := cfg.Server.Ingest.MaxArchiveBytes(); got != 16<<20 {
		t.Errorf("MaxArchiveBytes: got %d, want %d", got, 16<<20)
	}
	if cfg.Server.Ingest.MaxMembers != 32 {
		t.Errorf("max_members: got %d, want 32", cfg.Server.Ingest.MaxMembers)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want default", cfg.Server.HTTPPort)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a mapping\n")
	if _, err := Load(p); err == nil {
		t.Fatal("Load: expected error for invalid yaml")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  http_port: 70000\n"},
		{"zero upload cap", "server:\n  ingest:\n    max_upload_mb: 0\n"},
		{"negative members", "server:\n  ingest:\n    max_members: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load: expected validation error")
			}
		})
	}
}
