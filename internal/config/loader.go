package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// GetConfig loads the configuration once and returns the shared instance. Later calls return
// the result (and error) of the first load.
func GetConfig() (*Config, error) {
	initOnce.Do(func() {
		var cfg *Config
		cfg, initErr = Load()
		if cfg != nil {
			globalConfig = *cfg
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return &globalConfig, nil
}

// Load sets default values, then overrides them with a .json config file (the path is stored in
// the CONFIG_PATH environment variable), then with environment variables, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if err := loadFromJSON(cfg, getConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load config from JSON: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server = ServerConfig{
		Port:            "8080",
		Host:            "0.0.0.0",
		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(30 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "password",
		DBName:   "taskmanager",
		SSLMode:  "disable",
	}

	cfg.Redis = RedisConfig{
		Addr: "",
		DB:   0,
	}

	// SecretKey has no default: starting without one must fail.
	cfg.JWT = JWTConfig{
		AccessTokenTTL:  Duration(15 * time.Minute),
		RefreshTokenTTL: Duration(7 * 24 * time.Hour),
	}

	cfg.Refresh = RefreshConfig{
		StaleTimeDays:    7,
		CleanupBatchSize: 500,
		CleanupCron:      "0 3 * * *",
		CleanupLockTTL:   Duration(10 * time.Minute),
	}

	cfg.Login = LoginConfig{
		MaxAttempts:   5,
		AttemptWindow: Duration(15 * time.Minute),
	}

	cfg.LogLevel = "info"
}

func loadFromJSON(cfg *Config, configPath string) error {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cfg)
}

// loadFromEnv overrides config values from the environment
func loadFromEnv(cfg *Config) error {
	return env.Parse(cfg)
}

// getConfigPath reads path to .json config from CONFIG_PATH env variable
func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join("config", "config.json")
}

func validate(cfg *Config) error {
	v := validator.New()

	// Duration must be greater than 0
	if err := v.RegisterValidation("duration_gt0", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(Duration)
		return ok && d > 0
	}); err != nil {
		return err
	}

	// Standard five-field cron expression or a descriptor such as @hourly
	if err := v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	return v.Struct(cfg)
}
