package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_NAME", "testdb")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RABBITMQ_HOST", "mq.internal")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("NOTIFICATION_RATE_LIMIT", "10")
	t.Setenv("NOTIFICATION_RATE_WINDOW", "30s")
	t.Setenv("REALTIME_RELAY_ENABLED", "false")
	t.Setenv("RECONNECT_DELAY", "500ms")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.NotNil(t, cfg)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "testuser", cfg.DBUser)
	assert.Equal(t, "testpass", cfg.DBPassword)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "redis.internal", cfg.RedisHost)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "mq.internal", cfg.RabbitMQHost)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 10, cfg.NotificationRateLimit)
	assert.Equal(t, 30*time.Second, cfg.NotificationRateWindow)
	assert.False(t, cfg.RealtimeRelayEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 7, cfg.ReconnectMaxAttempts)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "")
	t.Setenv("REALTIME_RELAY_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, "8006", cfg.ServerPort)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, 5, cfg.ReconnectMaxAttempts)
	assert.True(t, cfg.RealtimeRelayEnabled)
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("NOTIFICATION_RATE_WINDOW", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, time.Minute, cfg.NotificationRateWindow)
}
