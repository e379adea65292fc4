package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration shared by the server and the CLI.
type Config struct {
	Port           string
	StaticDir      string
	MaxUploadBytes int64
	CORSOrigins    string

	DownloadDir    string
	StorageBackend string // "local" or "gcs"
	GCSBucket      string
	GCSPrefix      string

	DefaultFormat string // "xlsx" or "csv"
	EnableOCR     bool

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when one exists, then the environment. DotEnv
// reports whether a .env file was found.
func Load(files ...string) (cfg Config, dotEnv bool, err error) {
	dotEnv = godotenv.Load(files...) == nil

	cfg = Config{
		Port:           getEnv("PORT", "3001"),
		StaticDir:      getEnv("STATIC_DIR", ""),
		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		CORSOrigins:    getEnv("CORS_ORIGINS", "*"),
		DownloadDir:    getEnv("DOWNLOAD_DIR", "downloads"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		GCSPrefix:      getEnv("GCS_PREFIX", "statements/"),
		DefaultFormat:  strings.ToLower(getEnv("DEFAULT_FORMAT", "xlsx")),
		EnableOCR:      getEnvAsBool("ENABLE_OCR", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
	}
	return cfg, dotEnv, cfg.Validate()
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.DefaultFormat != "xlsx" && c.DefaultFormat != "csv" {
		return fmt.Errorf("unknown DEFAULT_FORMAT %q", c.DefaultFormat)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
