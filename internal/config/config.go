// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// External text-generation engine
	EngineBaseURL string
	EngineEnabled bool

	// S3-compatible object storage
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	StoragePrefix string // environment namespace inside the bucket ("dev", "prod", ...)
	PublicRead    bool   // objects are served via public URLs instead of signed ones
	URLStyle      string // "direct" | "console"
	ConsoleURL    string // storage console base, used when URLStyle is "console"

	// Image generation API
	ImageAPIKey  string
	ImageBaseURL string
	ImageModel   string
	ImageSize    string
	ImageQuality string

	// ESP (email service provider) REST API
	ESPAuthURL      string
	ESPClientID     string
	ESPClientSecret string
	ESPAccountID    string
	ESPCategoryID   int

	// Allowed web origins for CORS (comma-separated in env)
	AllowedOrigins []string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		EngineBaseURL: strings.TrimRight(envOrDefault("ENGINE_BASE_URL", "http://127.0.0.1:8000"), "/"),
		EngineEnabled: envBool("ENGINE_ENABLED"),

		S3Endpoint:    strings.TrimRight(os.Getenv("S3_ENDPOINT"), "/"),
		S3Region:      envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		StoragePrefix: envOrDefault("STORAGE_PREFIX", "dev"),
		PublicRead:    envBool("STORAGE_PUBLIC_READ"),
		URLStyle:      strings.ToLower(envOrDefault("STORAGE_URL_STYLE", "direct")),
		ConsoleURL:    strings.TrimRight(os.Getenv("STORAGE_CONSOLE_URL"), "/"),

		ImageAPIKey:  os.Getenv("IMAGE_API_KEY"),
		ImageBaseURL: strings.TrimRight(envOrDefault("IMAGE_BASE_URL", "https://api.openai.com/v1"), "/"),
		ImageModel:   envOrDefault("IMAGE_MODEL", "gpt-image-1"),
		ImageSize:    envOrDefault("IMAGE_SIZE", "1536x1024"),
		ImageQuality: envOrDefault("IMAGE_QUALITY", "low"),

		ESPAuthURL:      strings.TrimRight(os.Getenv("ESP_AUTH_URL"), "/"),
		ESPClientID:     os.Getenv("ESP_CLIENT_ID"),
		ESPClientSecret: os.Getenv("ESP_CLIENT_SECRET"),
		ESPAccountID:    os.Getenv("ESP_ACCOUNT_ID"),

		AllowedOrigins: splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8081")),
	}

	if raw := os.Getenv("ESP_CATEGORY_ID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("ESP_CATEGORY_ID must be numeric, got %q", raw)
		}
		cfg.ESPCategoryID = id
	}

	if cfg.URLStyle != "direct" && cfg.URLStyle != "console" {
		return nil, fmt.Errorf("STORAGE_URL_STYLE must be \"direct\" or \"console\", got %q", cfg.URLStyle)
	}

	if cfg.Env == "production" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET must be set in production")
	}

	return cfg, nil
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool treats "1", "true" and "yes" (any case) as true.
func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// splitList splits a comma-separated env value into trimmed, non-empty parts.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
