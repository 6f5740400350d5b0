// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables always win, so deployments can keep
// a checked-in config file and override secrets at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/ingest"
)

// Config is the unified service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Log        LogConfig        `yaml:"log"`
	Security   SecurityConfig   `yaml:"security"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Diarizer   DiarizerConfig   `yaml:"diarizer"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, production
	Port string `yaml:"port"`
}

// DataConfig covers on-disk storage locations.
type DataConfig struct {
	DBPath   string `yaml:"db_path"`
	BlobsDir string `yaml:"blobs_dir"`
}

// LogConfig covers structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // console, json
	File       string `yaml:"file"`   // empty -> stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// SecurityConfig covers request authentication.
type SecurityConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// WhisperConfig points at the transcription service.
type WhisperConfig struct {
	APIURL string `yaml:"api_url"`
	Model  string `yaml:"model"`
}

// DiarizerConfig points at the speaker diarization service.
type DiarizerConfig struct {
	APIURL      string `yaml:"api_url"`
	MinSpeakers int    `yaml:"min_speakers"`
	MaxSpeakers int    `yaml:"max_speakers"`
}

// SummarizerConfig points at the completion endpoint.
type SummarizerConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// PipelineConfig tunes job execution.
type PipelineConfig struct {
	MaxConcurrentJobs int   `yaml:"max_concurrent_jobs"`
	MaxUploadMB       int64 `yaml:"max_upload_mb"`
	MergeGapMs        int64 `yaml:"merge_gap_ms"`
	RetryAttempts     int   `yaml:"retry_attempts"`
	RetryBackoffMs    int64 `yaml:"retry_backoff_ms"`
	CacheEntries      int   `yaml:"cache_entries"`
}

// GlobalConfig is the loaded configuration instance.
var GlobalConfig *Config

// LoadConfig builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	GlobalConfig = cfg
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Env: "dev", Port: "8000"},
		Data: DataConfig{
			DBPath:   "./data/meetscribe.sqlite",
			BlobsDir: "./data/blobs",
		},
		Log: LogConfig{Level: "info", Format: "console", MaxSizeMB: 100, MaxBackups: 3},
		Whisper: WhisperConfig{
			APIURL: "http://localhost:9000",
			Model:  "ggml-base",
		},
		Diarizer: DiarizerConfig{
			APIURL:      "http://localhost:9001",
			MinSpeakers: 1,
			MaxSpeakers: 8,
		},
		Summarizer: SummarizerConfig{
			APIURL: "https://api.groq.com/openai/v1",
			Model:  "llama-3.3-70b-versatile",
		},
		Pipeline: PipelineConfig{
			MaxConcurrentJobs: 4,
			MaxUploadMB:       ingest.DefaultMaxUploadBytes / (1024 * 1024),
			MergeGapMs:        300,
			RetryAttempts:     3,
			RetryBackoffMs:    500,
			CacheEntries:      64,
		},
	}
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.Server.Env, "ENV")
	setEnv(&cfg.Server.Port, "PORT")
	setEnv(&cfg.Data.DBPath, "DB_PATH")
	setEnv(&cfg.Data.BlobsDir, "BLOBS_DIR")
	setEnv(&cfg.Log.Level, "LOG_LEVEL")
	setEnv(&cfg.Log.Format, "LOG_FORMAT")
	setEnv(&cfg.Log.File, "LOG_FILE")
	setEnv(&cfg.Security.JWTSecret, "JWT_SECRET")
	setEnv(&cfg.Whisper.APIURL, "WHISPER_API_URL")
	setEnv(&cfg.Whisper.Model, "WHISPER_MODEL")
	setEnv(&cfg.Diarizer.APIURL, "DIARIZER_API_URL")
	setEnv(&cfg.Summarizer.APIURL, "SUMMARIZER_API_URL")
	setEnv(&cfg.Summarizer.APIKey, "SUMMARIZER_API_KEY")
	setEnv(&cfg.Summarizer.Model, "SUMMARIZER_MODEL")
	setEnvInt(&cfg.Pipeline.MaxConcurrentJobs, "MAX_CONCURRENT_JOBS")
	setEnvInt64(&cfg.Pipeline.MaxUploadMB, "MAX_UPLOAD_MB")
	setEnvInt64(&cfg.Pipeline.MergeGapMs, "MERGE_GAP_MS")
	setEnvInt(&cfg.Pipeline.RetryAttempts, "RETRY_ATTEMPTS")
	setEnvInt64(&cfg.Pipeline.RetryBackoffMs, "RETRY_BACKOFF_MS")
	setEnvInt(&cfg.Pipeline.CacheEntries, "CACHE_ENTRIES")
}

// ValidateConfig checks the loaded configuration for deployment mistakes.
func ValidateConfig(cfg *Config) error {
	var errors []string

	if cfg.Security.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(cfg.Security.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters long")
	}

	if cfg.Server.Env == "production" && cfg.Summarizer.APIKey == "" {
		errors = append(errors, "SUMMARIZER_API_KEY is required in production environment")
	}

	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid PORT value: %s (must be 1-65535)", cfg.Server.Port))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		errors = append(errors, fmt.Sprintf("invalid LOG_LEVEL: %s (must be: debug, info, warn, error)", cfg.Log.Level))
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Log.Format] {
		errors = append(errors, fmt.Sprintf("invalid LOG_FORMAT: %s (must be: console, json)", cfg.Log.Format))
	}

	validEnvs := map[string]bool{"dev": true, "development": true, "staging": true, "production": true}
	if !validEnvs[cfg.Server.Env] {
		errors = append(errors, fmt.Sprintf("invalid ENV: %s (must be: dev, development, staging, production)", cfg.Server.Env))
	}

	if cfg.Pipeline.MaxConcurrentJobs < 1 {
		errors = append(errors, "MAX_CONCURRENT_JOBS must be at least 1")
	}
	if cfg.Pipeline.RetryAttempts < 1 {
		errors = append(errors, "RETRY_ATTEMPTS must be at least 1")
	}
	if cfg.Diarizer.MinSpeakers < 1 || cfg.Diarizer.MaxSpeakers < cfg.Diarizer.MinSpeakers {
		errors = append(errors, "diarizer speaker bounds invalid (need 1 <= min <= max)")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "dev" || c.Server.Env == "development"
}

// GetServerAddr returns the listen address.
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Pipeline.MaxUploadMB * 1024 * 1024
}

// PrintConfig renders the configuration with secrets masked.
func (c *Config) PrintConfig() string {
	return fmt.Sprintf(`Configuration Loaded:
  Environment: %s
  Server Port: %s
  Data:
    - DB Path: %s
    - Blobs Dir: %s
  Logging:
    - Level: %s
    - Format: %s
  Security:
    - JWT Secret: %s
  Whisper:
    - API URL: %s
    - Model: %s
  Diarizer:
    - API URL: %s
    - Speakers: %d-%d
  Summarizer:
    - API URL: %s
    - API Key: %s
    - Model: %s
  Pipeline:
    - Max Concurrent Jobs: %d
    - Max Upload MB: %d
    - Merge Gap Ms: %d
    - Retry Attempts: %d`,
		c.Server.Env,
		c.Server.Port,
		c.Data.DBPath,
		c.Data.BlobsDir,
		c.Log.Level,
		c.Log.Format,
		maskSecret(c.Security.JWTSecret),
		c.Whisper.APIURL,
		c.Whisper.Model,
		c.Diarizer.APIURL,
		c.Diarizer.MinSpeakers,
		c.Diarizer.MaxSpeakers,
		c.Summarizer.APIURL,
		maskSecret(c.Summarizer.APIKey),
		c.Summarizer.Model,
		c.Pipeline.MaxConcurrentJobs,
		c.Pipeline.MaxUploadMB,
		c.Pipeline.MergeGapMs,
		c.Pipeline.RetryAttempts,
	)
}

func setEnv(dest *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func setEnvInt(dest *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dest = n
		}
	}
}

func setEnvInt64(dest *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dest = n
		}
	}
}

// maskSecret hides all but the edges of a sensitive value.
func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}
