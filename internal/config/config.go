// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	// Auth（外部IdPが発行するセッショントークンの検証）
	AuthJWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	AuthPublicKey string `envconfig:"AUTH_PUBLIC_KEY"`
	AuthIssuer    string `envconfig:"AUTH_ISSUER"`
	AuthAudience  string `envconfig:"AUTH_AUDIENCE"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral  int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitMutation int `envconfig:"RATE_LIMIT_MUTATION" default:"30"`

	// Invalidation
	RedisURL            string `envconfig:"REDIS_URL"`
	InvalidationChannel string `envconfig:"INVALIDATION_CHANNEL" default:"deskbot:invalidate"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// ErrNoAuthKey はトークン検証鍵が設定されていない場合のエラー。
var ErrNoAuthKey = errors.New("one of AUTH_JWT_SECRET or AUTH_PUBLIC_KEY must be set")

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}

	if cfg.AuthJWTSecret == "" && cfg.AuthPublicKey == "" {
		return nil, ErrNoAuthKey
	}
	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitMutation <= 0 {
		return nil, fmt.Errorf("rate limits must be positive: general=%d mutation=%d", cfg.RateLimitGeneral, cfg.RateLimitMutation)
	}

	return &cfg, nil
}

// InvalidationEnabled はキャッシュ無効化通知を配信するかどうかを返す。
func (c *Config) InvalidationEnabled() bool {
	return c.RedisURL != ""
}

// TracingEnabled はトレースをエクスポートするかどうかを返す。
func (c *Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}
