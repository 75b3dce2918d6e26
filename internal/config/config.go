// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cron trigger
	CronSecret string

	// External services
	OpenAIAPIKey    string
	AnthropicAPIKey string
	ResendAPIKey    string
	FromEmail       string

	// Feed polling
	FeedFetchTimeout     time.Duration
	FeedMaxBodySize      int64
	PollMaxConcurrent    int
	PollMaxSubscriptions int
	MaxEpisodesPerFeed   int
	RecencyWindow        time.Duration

	// Transcription
	AudioDownloadTimeout time.Duration
	AudioMaxBytes        int64
	WhisperMaxBytes      int64
	AudioTruncateBytes   int64
	TranscribeBatchSize  int
	TranscribeTimeout    time.Duration

	// Newsletter generation
	GenerateBatchSize  int
	TranscriptMaxChars int
	CompletionModel    string
	CompletionTimeout  time.Duration

	// Digest dispatch
	DigestMaxUsers  int
	MailSendTimeout time.Duration

	// Worker intervals
	PollInterval       time.Duration
	TranscribeInterval time.Duration
	GenerateInterval   time.Duration
	DigestInterval     time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	BaseURL    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	if cfg.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if cfg.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	if cfg.ResendAPIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FromEmail = getEnvString("FROM_EMAIL", "Castletter <newsletter@castletter.app>")
	cfg.FeedFetchTimeout = getEnvDuration("FEED_FETCH_TIMEOUT", 10*time.Second)
	cfg.FeedMaxBodySize = getEnvInt64("FEED_MAX_BODY_SIZE", 5242880)
	cfg.PollMaxConcurrent = getEnvInt("POLL_MAX_CONCURRENT", 10)
	cfg.PollMaxSubscriptions = getEnvInt("POLL_MAX_SUBSCRIPTIONS", 100)
	cfg.MaxEpisodesPerFeed = getEnvInt("MAX_EPISODES_PER_FEED", 50)
	cfg.RecencyWindow = getEnvDuration("RECENCY_WINDOW", 30*24*time.Hour)
	cfg.AudioDownloadTimeout = getEnvDuration("AUDIO_DOWNLOAD_TIMEOUT", 20*time.Second)
	cfg.AudioMaxBytes = getEnvInt64("AUDIO_MAX_BYTES", 100*1024*1024)
	cfg.WhisperMaxBytes = getEnvInt64("WHISPER_MAX_BYTES", 25*1024*1024)
	cfg.AudioTruncateBytes = getEnvInt64("AUDIO_TRUNCATE_BYTES", 10*1024*1024)
	cfg.TranscribeBatchSize = getEnvInt("TRANSCRIBE_BATCH_SIZE", 1)
	cfg.TranscribeTimeout = getEnvDuration("TRANSCRIBE_TIMEOUT", 30*time.Second)
	cfg.GenerateBatchSize = getEnvInt("GENERATE_BATCH_SIZE", 2)
	cfg.TranscriptMaxChars = getEnvInt("TRANSCRIPT_MAX_CHARS", 150000)
	cfg.CompletionModel = getEnvString("COMPLETION_MODEL", "claude-sonnet-4-5")
	cfg.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", 25*time.Second)
	cfg.DigestMaxUsers = getEnvInt("DIGEST_MAX_USERS", 100)
	cfg.MailSendTimeout = getEnvDuration("MAIL_SEND_TIMEOUT", 10*time.Second)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 30*time.Minute)
	cfg.TranscribeInterval = getEnvDuration("TRANSCRIBE_INTERVAL", 2*time.Minute)
	cfg.GenerateInterval = getEnvDuration("GENERATE_INTERVAL", 2*time.Minute)
	cfg.DigestInterval = getEnvDuration("DIGEST_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
