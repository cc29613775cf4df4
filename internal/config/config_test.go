package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edirooss/slowdog/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParse_defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	require.True(t, cfg.IsEnabled())
	require.Equal(t, 25*time.Second, cfg.Interval())
	require.False(t, cfg.IncludeLocals)
	require.Equal(t, zapcore.WarnLevel, cfg.Level())
	require.Equal(t, config.DefaultRedisKey, cfg.RedisKey)
	require.False(t, cfg.EmailEnabled())
	require.Equal(t, "8080", cfg.Port)
}

func TestParse_full(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
enabled: false
interval_seconds: 0.25
include_locals: true
exempt_names: ["/api/stream", "/api/ping"]
output_directory: /var/log/slowdog
email_from: watchdog@example.com
email_to: ops@example.com, oncall@example.com ,
smtp_address: localhost:25
logger_name: slowdog
log_level: error
redis_address: localhost:6379
`))
	require.NoError(t, err)

	require.False(t, cfg.IsEnabled())
	require.Equal(t, 250*time.Millisecond, cfg.Interval())
	require.True(t, cfg.IncludeLocals)
	require.Equal(t, []string{"/api/stream", "/api/ping"}, cfg.ExemptNames)
	require.True(t, cfg.EmailEnabled())
	require.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.EmailRecipients())
	require.Equal(t, zapcore.ErrorLevel, cfg.Level())
}

func TestParse_invalid(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte(`
interval_seconds: -1
log_level: loud
email_to: ops@example.com
workers: -2
`))
	require.Error(t, err)
	require.ErrorContains(t, err, "interval_seconds")
	require.ErrorContains(t, err, "log_level")
	require.ErrorContains(t, err, "email_from and email_to")
	require.ErrorContains(t, err, "smtp_address")
	require.ErrorContains(t, err, "workers")

	_, err = config.Parse([]byte(`
redis_address: "localhost"
listen_address: "bad_host"
port: "99999"
`))
	require.ErrorContains(t, err, "redis_address")
	require.ErrorContains(t, err, "listen_address")
	require.ErrorContains(t, err, "port")

	_, err = config.Parse([]byte("enabled: [nope"))
	require.ErrorContains(t, err, "decode yaml")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "slowdog-server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval_seconds: 3\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.Interval())

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
