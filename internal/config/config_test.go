package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORAGE_BACKEND", "DEFAULT_FORMAT", "MAX_UPLOAD_BYTES", "ENABLE_OCR"} {
		t.Setenv(key, "")
	}

	cfg, dotEnv, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dotEnv {
		t.Error("dotEnv: got true for a missing file")
	}
	if cfg.Port != "3001" {
		t.Errorf("port: got %q, want %q", cfg.Port, "3001")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("max upload: got %d, want %d", cfg.MaxUploadBytes, 10<<20)
	}
	if cfg.StorageBackend != "local" || cfg.DefaultFormat != "xlsx" || cfg.EnableOCR {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DEFAULT_FORMAT=csv\nENABLE_OCR=true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set.
	for _, key := range []string{"DEFAULT_FORMAT", "ENABLE_OCR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("PORT", "8080")

	cfg, dotEnv, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dotEnv {
		t.Error("dotEnv: got false, want true")
	}
	if cfg.DefaultFormat != "csv" {
		t.Errorf("format: got %q, want %q", cfg.DefaultFormat, "csv")
	}
	if !cfg.EnableOCR {
		t.Error("EnableOCR: got false, want true")
	}
	if cfg.Port != "8080" {
		t.Errorf("port: got %q, want %q", cfg.Port, "8080")
	}
}

func TestValidate(t *testing.T) {
	base := Config{StorageBackend: "local", DefaultFormat: "xlsx", MaxUploadBytes: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"gcs without bucket", func(c *Config) { c.StorageBackend = "gcs" }, true},
		{"gcs with bucket", func(c *Config) { c.StorageBackend = "gcs"; c.GCSBucket = "b" }, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "s3" }, true},
		{"unknown format", func(c *Config) { c.DefaultFormat = "pdf" }, true},
		{"zero upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
