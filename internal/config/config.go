package config

import (
	"sync"
)

var (
	globalConfig Config
	initOnce     sync.Once
	initErr      error
)

type Config struct {
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_" validate:"required"`
	Database DatabaseConfig `json:"database" envPrefix:"DB_" validate:"required"`
	Redis    RedisConfig    `json:"redis" envPrefix:"REDIS_" validate:"required"`
	JWT      JWTConfig      `json:"jwt" envPrefix:"JWT_" validate:"required"`
	Refresh  RefreshConfig  `json:"refresh" envPrefix:"REFRESH_" validate:"required"`
	Login    LoginConfig    `json:"login" envPrefix:"LOGIN_"`
	LogLevel string         `json:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

type ServerConfig struct {
	Port            string   `json:"port" env:"PORT" validate:"required,numeric"`
	Host            string   `json:"host" env:"HOST" validate:"required,hostname|ip"`
	ReadTimeout     Duration `json:"read_timeout" env:"READ_TIMEOUT" validate:"duration_gt0"`
	WriteTimeout    Duration `json:"write_timeout" env:"WRITE_TIMEOUT" validate:"duration_gt0"`
	ShutdownTimeout Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"duration_gt0"`
}

type DatabaseConfig struct {
	Host     string `json:"host" env:"HOST" validate:"required,hostname|ip"`
	Port     string `json:"port" env:"PORT" validate:"required,numeric"`
	User     string `json:"user" env:"USER" validate:"required"`
	Password string `json:"password" env:"PASSWORD" validate:"required"`
	DBName   string `json:"db_name" env:"NAME" validate:"required"`
	SSLMode  string `json:"ssl_mode" env:"SSL_MODE" validate:"required,oneof=disable require verify-ca verify-full"`
}

// RedisConfig is optional: an empty Addr disables the login guard and the distributed sweep lock.
type RedisConfig struct {
	Addr     string `json:"addr" env:"ADDR" validate:"omitempty,hostname_port"`
	Password string `json:"password" env:"PASSWORD" validate:"omitempty"`
	DB       int    `json:"db" env:"DB" validate:"gte=0"`
}

// JWTConfig holds the signing secret (base64) and token lifetimes.
type JWTConfig struct {
	SecretKey       string   `json:"secret_key" env:"SECRET_KEY" validate:"required,base64|base64url"`
	AccessTokenTTL  Duration `json:"access_token_ttl" env:"ACCESS_TOKEN_TTL" validate:"duration_gt0"`
	RefreshTokenTTL Duration `json:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" validate:"duration_gt0"`
}

// RefreshConfig drives the cleanup of revoked and expired refresh tokens.
type RefreshConfig struct {
	StaleTimeDays    int      `json:"stale_time_days" env:"STALE_TIME_DAYS" validate:"gte=0"`
	CleanupBatchSize int      `json:"cleanup_batch_size" env:"CLEANUP_BATCH_SIZE" validate:"gt=0"`
	CleanupCron      string   `json:"cleanup_cron" env:"CLEANUP_CRON" validate:"required,cron"`
	CleanupLockTTL   Duration `json:"cleanup_lock_ttl" env:"CLEANUP_LOCK_TTL" validate:"duration_gt0"`
}

// LoginConfig throttles repeated failed logins. MaxAttempts of 0 disables throttling.
type LoginConfig struct {
	MaxAttempts   int      `json:"max_attempts" env:"MAX_ATTEMPTS" validate:"gte=0"`
	AttemptWindow Duration `json:"attempt_window" env:"ATTEMPT_WINDOW" validate:"duration_gt0"`
}
