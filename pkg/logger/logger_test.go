package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"", false},
		{"debug", false},
		{"INFO", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := New(Config{Level: tt.level})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(level=%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New(format=xml) succeeded, want error")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	log, err := New(Config{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Named("test").Info("hello", String("k", "v"), Int("n", 3))
	_ = log.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(b) == 0 {
		t.Error("log file is empty")
	}
}
