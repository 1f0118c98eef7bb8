package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 32 zero bytes, base64 encoded
const testSecret = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

func withNoConfigFile(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
}

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	withNoConfigFile(t)
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenTTL.Std())
	assert.Equal(t, 7, cfg.Refresh.StaleTimeDays)
	assert.Equal(t, 500, cfg.Refresh.CleanupBatchSize)
	assert.Equal(t, "0 3 * * *", cfg.Refresh.CleanupCron)
	assert.Equal(t, "", cfg.Redis.Addr)
}

func TestLoad_MissingSecretFails(t *testing.T) {
	withNoConfigFile(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SecretKey")
}

func TestLoad_EnvOverrides(t *testing.T) {
	withNoConfigFile(t)
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("JWT_ACCESS_TOKEN_TTL", "900")
	t.Setenv("JWT_REFRESH_TOKEN_TTL", "48h")
	t.Setenv("REFRESH_STALE_TIME_DAYS", "3")
	t.Setenv("REFRESH_CLEANUP_BATCH_SIZE", "50")
	t.Setenv("REFRESH_CLEANUP_CRON", "@hourly")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 900*time.Second, cfg.JWT.AccessTokenTTL.Std())
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshTokenTTL.Std())
	assert.Equal(t, 3, cfg.Refresh.StaleTimeDays)
	assert.Equal(t, 50, cfg.Refresh.CleanupBatchSize)
	assert.Equal(t, "@hourly", cfg.Refresh.CleanupCron)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Login.MaxAttempts)
}

func TestLoad_JSONThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, err := json.Marshal(map[string]interface{}{
		"jwt": map[string]interface{}{
			"secret_key":        testSecret,
			"access_token_ttl":  60,
			"refresh_token_ttl": "24h",
		},
		"refresh": map[string]interface{}{
			"cleanup_batch_size": 10,
			"cleanup_cron":       "*/5 * * * *",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REFRESH_CLEANUP_BATCH_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.JWT.AccessTokenTTL.Std())
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTokenTTL.Std())
	assert.Equal(t, "*/5 * * * *", cfg.Refresh.CleanupCron)
	assert.Equal(t, 20, cfg.Refresh.CleanupBatchSize)
	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Minute, cfg.Refresh.CleanupLockTTL.Std())
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "secret is not base64",
			env:  map[string]string{"JWT_SECRET_KEY": "not base64 !!"},
			want: "SecretKey",
		},
		{
			name: "bad cron expression",
			env:  map[string]string{"JWT_SECRET_KEY": testSecret, "REFRESH_CLEANUP_CRON": "every day"},
			want: "CleanupCron",
		},
		{
			name: "zero batch size",
			env:  map[string]string{"JWT_SECRET_KEY": testSecret, "REFRESH_CLEANUP_BATCH_SIZE": "0"},
			want: "CleanupBatchSize",
		},
		{
			name: "zero access ttl",
			env:  map[string]string{"JWT_SECRET_KEY": testSecret, "JWT_ACCESS_TOKEN_TTL": "0"},
			want: "AccessTokenTTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withNoConfigFile(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuration_Decoding(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "number of seconds", input: `90`, want: 90 * time.Second},
		{name: "duration string", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "numeric string", input: `"30"`, want: 30 * time.Second},
		{name: "garbage", input: `"soon"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}
