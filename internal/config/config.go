package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/stremio-sub-translator/internal/language"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults.
//
// Environment Variables:
// Translation provider:
// - TRANSLATOR_PROVIDER: "openai" or "gemini" (default: openai)
// - TRANSLATOR_API_KEY: API key for the provider (required)
// - TRANSLATOR_API_URL: override the provider endpoint (optional)
// - TRANSLATOR_MODEL: model name (default: gpt-4o-mini)
// - TRANSLATOR_MAX_TOKENS: max completion tokens (default: 8000)
// - TRANSLATOR_TEMPERATURE: sampling temperature (default: 0.3)
// - TRANSLATOR_TIMEOUT: per-request timeout in seconds (default: 60)
// - TRANSLATOR_MAX_CHUNK_CHARS: batch size limit per request (default: 6000)
// - TRANSLATOR_MAX_ATTEMPTS: retries per chunk (default: 3)
//
// Subtitle catalog:
// - OPENSUBTITLES_API_KEY: OpenSubtitles API key (required)
// - OPENSUBTITLES_API_URL: API base URL (default: official endpoint)
// - SOURCE_LANGUAGE: language searched for source tracks (default: en)
//
// Cache:
// - CACHE_DIR: root directory for the database and artifacts (default: ./data)
// - CACHE_MAX_BYTES: artifact budget for LRU eviction, 0 disables (default: 0)
// - CACHE_EVICTION_CRON: eviction sweep schedule (default: every hour)
// - CACHE_REVALIDATE_AFTER: seconds a verified fingerprint is trusted (default: 3600)
//
// Jobs:
// - JOB_TIMEOUT: background translation job timeout in seconds (default: 300)
// - SUBTITLE_FORMAT: artifact serialization format, srt or vtt (default: srt)
//
// Server:
// - ADDR: listen address (default: :7000)
// - BASE_URL: externally reachable URL embedded in subtitle options
//   (default: http://127.0.0.1:7000)
// - TARGET_LANGUAGES: comma-separated target language codes (default: el)

type Config struct {
	Translator TranslatorConfig `json:"translator"`
	Catalog    CatalogConfig    `json:"catalog"`
	Cache      CacheConfig      `json:"cache"`
	Jobs       JobsConfig       `json:"jobs"`
	Server     ServerConfig     `json:"server"`
}

type TranslatorConfig struct {
	Provider      string  `json:"provider"`
	APIKey        string  `json:"api_key"`
	APIURL        string  `json:"api_url"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	MaxChunkChars int     `json:"max_chunk_chars"`
	MaxAttempts   int     `json:"max_attempts"`
}

type CatalogConfig struct {
	APIKey         string `json:"api_key"`
	APIURL         string `json:"api_url"`
	SourceLanguage string `json:"source_language"`
}

type CacheConfig struct {
	Dir             string        `json:"dir"`
	MaxBytes        int64         `json:"max_bytes"`
	EvictionCron    string        `json:"eviction_cron"`
	RevalidateAfter time.Duration `json:"revalidate_after"`
}

// DBPath is the SQLite index location under the cache root.
func (c CacheConfig) DBPath() string {
	return filepath.Join(c.Dir, "cache.db")
}

// ArtifactDir holds the serialized subtitle files.
func (c CacheConfig) ArtifactDir() string {
	return filepath.Join(c.Dir, "artifacts")
}

type JobsConfig struct {
	Timeout time.Duration `json:"timeout"`
	Format  string        `json:"format"`
}

type ServerConfig struct {
	Addr            string   `json:"addr"`
	BaseURL         string   `json:"base_url"`
	TargetLanguages []string `json:"target_languages"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Translator: TranslatorConfig{
			Provider:      getEnvString("TRANSLATOR_PROVIDER", "openai"),
			APIKey:        getEnvString("TRANSLATOR_API_KEY", ""),
			APIURL:        getEnvString("TRANSLATOR_API_URL", ""),
			Model:         getEnvString("TRANSLATOR_MODEL", "gpt-4o-mini"),
			MaxTokens:     getEnvInt("TRANSLATOR_MAX_TOKENS", 8000),
			Temperature:   getEnvFloat("TRANSLATOR_TEMPERATURE", 0.3),
			Timeout:       getEnvInt("TRANSLATOR_TIMEOUT", 60),
			MaxChunkChars: getEnvInt("TRANSLATOR_MAX_CHUNK_CHARS", 6000),
			MaxAttempts:   getEnvInt("TRANSLATOR_MAX_ATTEMPTS", 3),
		},
		Catalog: CatalogConfig{
			APIKey:         getEnvString("OPENSUBTITLES_API_KEY", ""),
			APIURL:         getEnvString("OPENSUBTITLES_API_URL", ""),
			SourceLanguage: getEnvString("SOURCE_LANGUAGE", "en"),
		},
		Cache: CacheConfig{
			Dir:             getEnvString("CACHE_DIR", "./data"),
			MaxBytes:        int64(getEnvInt("CACHE_MAX_BYTES", 0)),
			EvictionCron:    getEnvString("CACHE_EVICTION_CRON", "0 * * * *"),
			RevalidateAfter: getEnvSeconds("CACHE_REVALIDATE_AFTER", 3600),
		},
		Jobs: JobsConfig{
			Timeout: getEnvSeconds("JOB_TIMEOUT", 300),
			Format:  getEnvString("SUBTITLE_FORMAT", "srt"),
		},
		Server: ServerConfig{
			Addr:            getEnvString("ADDR", ":7000"),
			BaseURL:         strings.TrimSuffix(getEnvString("BASE_URL", "http://127.0.0.1:7000"), "/"),
			TargetLanguages: getEnvStringSlice("TARGET_LANGUAGES", []string{"el"}),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Translator.APIKey == "" {
		return fmt.Errorf("TRANSLATOR_API_KEY is required")
	}
	if c.Catalog.APIKey == "" {
		return fmt.Errorf("OPENSUBTITLES_API_KEY is required")
	}
	if c.Jobs.Format != "srt" && c.Jobs.Format != "vtt" {
		return fmt.Errorf("SUBTITLE_FORMAT must be srt or vtt, got %q", c.Jobs.Format)
	}
	if len(c.Server.TargetLanguages) == 0 {
		return fmt.Errorf("TARGET_LANGUAGES must name at least one language")
	}
	for _, lang := range c.Server.TargetLanguages {
		if !language.Known(lang) {
			return fmt.Errorf("TARGET_LANGUAGES contains unknown code %q", lang)
		}
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvSeconds reads an integer number of seconds as a duration.
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

// getEnvStringSlice reads a comma-separated list, dropping empty items.
func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
