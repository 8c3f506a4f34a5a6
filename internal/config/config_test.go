package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nickromney-org/ota-release-selector/internal/selector"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ota.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
repository: acme/widget-firmware
filename: widget.bin
current_version: v1.2.0
newer: true
capacity: 5
install:
  path: /var/lib/widget/firmware.bin
  backup: false
watch:
  interval: 15m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Repository != "acme/widget-firmware" {
		t.Errorf("Repository = %v", cfg.Repository)
	}
	if cfg.Filename != "widget.bin" {
		t.Errorf("Filename = %v, want widget.bin", cfg.Filename)
	}
	if !cfg.Newer || cfg.CurrentVersion != "v1.2.0" {
		t.Errorf("Newer/CurrentVersion = %v/%v", cfg.Newer, cfg.CurrentVersion)
	}
	if cfg.Capacity != 5 {
		t.Errorf("Capacity = %d, want 5", cfg.Capacity)
	}
	if cfg.Install.Path != "/var/lib/widget/firmware.bin" || cfg.Install.Backup {
		t.Errorf("Install = %+v", cfg.Install)
	}
	if cfg.Watch.Interval != 15*time.Minute {
		t.Errorf("Watch.Interval = %v, want 15m", cfg.Watch.Interval)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// unset keys keep their defaults
	if cfg.Install.Timeout != 10*time.Minute {
		t.Errorf("Install.Timeout = %v, want default", cfg.Install.Timeout)
	}
	if cfg.Watch.MaxFailures != 3 {
		t.Errorf("Watch.MaxFailures = %d, want default", cfg.Watch.MaxFailures)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := DefaultConfig()
	if cfg.Filename != def.Filename {
		t.Errorf("Filename = %v, want %v", cfg.Filename, def.Filename)
	}
	if cfg.Capacity != selector.DefaultCapacity {
		t.Errorf("Capacity = %d, want %d", cfg.Capacity, selector.DefaultCapacity)
	}
	if cfg.Watch.Interval != def.Watch.Interval {
		t.Errorf("Watch.Interval = %v, want %v", cfg.Watch.Interval, def.Watch.Interval)
	}
}

func TestLoad_Environment(t *testing.T) {
	path := writeConfig(t, "filename: from-file.bin\n")
	t.Setenv("OTA_FILENAME", "from-env.bin")
	t.Setenv("OTA_TOKEN", "ghp_env")
	t.Setenv("OTA_INSTALL_PATH", "/tmp/env.bin")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Filename != "from-env.bin" {
		t.Errorf("Filename = %v, want from-env.bin", cfg.Filename)
	}
	if cfg.Token != "ghp_env" {
		t.Errorf("Token = %v, want ghp_env", cfg.Token)
	}
	if cfg.Install.Path != "/tmp/env.bin" {
		t.Errorf("Install.Path = %v, want /tmp/env.bin", cfg.Install.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "filename: [unterminated\n")
		if _, err := Load(path); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestConfig_Selection(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want selector.Config
	}{
		{
			name: "version ignored without newer",
			cfg:  Config{Filename: "fw.bin", CurrentVersion: "1.0.0"},
			want: selector.Config{TargetFilename: "fw.bin"},
		},
		{
			name: "newer uses current version",
			cfg:  Config{Filename: "fw.bin", CurrentVersion: "1.0.0", Newer: true, Latest: true},
			want: selector.Config{TargetFilename: "fw.bin", NewerThan: "1.0.0", LatestOnly: true},
		},
		{
			name: "prerelease and id",
			cfg:  Config{Filename: "fw.bin", Prerelease: true, ReleaseID: 42, Capacity: 3},
			want: selector.Config{TargetFilename: "fw.bin", Prerelease: true, ReleaseID: 42, Capacity: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Selection(); got != tt.want {
				t.Errorf("Selection() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "newer without version", mutate: func(c *Config) { c.Newer = true }, wantErr: true},
		{name: "newer with version", mutate: func(c *Config) { c.Newer = true; c.CurrentVersion = "1.0.0" }},
		{name: "no filename", mutate: func(c *Config) { c.Filename = "" }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Watch.Interval = 0 }, wantErr: true},
		{name: "negative capacity", mutate: func(c *Config) { c.Capacity = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
