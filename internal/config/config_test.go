package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAndDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[feed]
base_url = "http://receiver.local/tar1090/"

[aircraft_db]
enabled = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Feed.BaseURL != "http://receiver.local/tar1090" {
		t.Errorf("Feed.BaseURL = %q, want trailing slash trimmed", cfg.Feed.BaseURL)
	}
	if cfg.Feed.AircraftPath != "/data/aircraft.json" {
		t.Errorf("Feed.AircraftPath = %q", cfg.Feed.AircraftPath)
	}
	if cfg.Feed.IntervalMs != 1000 {
		t.Errorf("Feed.IntervalMs = %d, want 1000", cfg.Feed.IntervalMs)
	}
	if cfg.Feed.ReapAfterSecs != 120 {
		t.Errorf("Feed.ReapAfterSecs = %d, want 120", cfg.Feed.ReapAfterSecs)
	}
	if cfg.Feed.TrackMaxPoints != 50 {
		t.Errorf("Feed.TrackMaxPoints = %d, want 50", cfg.Feed.TrackMaxPoints)
	}
	if cfg.AircraftDB.BaseURL != cfg.Feed.BaseURL {
		t.Errorf("AircraftDB.BaseURL = %q, want feed base %q", cfg.AircraftDB.BaseURL, cfg.Feed.BaseURL)
	}
	if cfg.History.Store != "http" || cfg.History.Concurrency != 2 || cfg.History.BasePath != "globe_history/" {
		t.Errorf("History defaults = %+v", cfg.History)
	}
	if cfg.Reporting.ThrottleSecs != 60 {
		t.Errorf("Reporting.ThrottleSecs = %d, want 60", cfg.Reporting.ThrottleSecs)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing feed",
			body: `[server]
port = 8080`,
			want: "feed.base_url",
		},
		{
			name: "bad port",
			body: `[server]
port = 70000
[feed]
base_url = "http://x"`,
			want: "invalid server port",
		},
		{
			name: "duplicate port",
			body: `[server]
port = 8080
additional_ports = [8080]
[feed]
base_url = "http://x"`,
			want: "duplicate port",
		},
		{
			name: "unknown store",
			body: `[feed]
base_url = "http://x"
[history]
store = "ftp"`,
			want: "unknown history store",
		},
		{
			name: "gcs without bucket",
			body: `[feed]
base_url = "http://x"
[history]
store = "gcs"`,
			want: "gcs_bucket",
		},
		{
			name: "csv without sqlite",
			body: `[feed]
base_url = "http://x"
[aircraft_db]
enabled = true
csv_import_path = "aircraft.csv"`,
			want: "sqlite_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadWithFallbackMissing(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	if _, err := LoadWithFallback(""); err == nil {
		t.Error("LoadWithFallback with no files succeeded, want error")
	}

	if err := os.WriteFile("config.toml", []byte("[feed]\nbase_url = \"http://x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWithFallback("missing.toml")
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Feed.BaseURL != "http://x" {
		t.Errorf("Feed.BaseURL = %q, want http://x", cfg.Feed.BaseURL)
	}
}
