package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Log("step 1: clear the environment and load the config")
	for _, key := range []string{"HTTP_PORT", "GRPC_PORT", "DB_DRIVER", "DB_PATH", "DB_MAX_OPEN_CONNS", "CORS_ALLOWED_ORIGINS", "KAFKA_BROKERS", "MQTT_TOPIC", "PUBLISH_WORKERS", "PUBLISH_BUFFER"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Empty(t, cfg.GRPCPort)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "measurements.db", cfg.DatabasePath)
	assert.Equal(t, 10, cfg.DatabaseMaxOpenConns)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, "sensors/+/measurements", cfg.MQTTTopic)
	assert.Equal(t, 2, cfg.PublishWorkers)
	assert.Equal(t, 100, cfg.PublishBuffer)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Log("step 1: set environment variables")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "dsn")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "dsn", cfg.DatabaseDSN)
	assert.Equal(t, 25, cfg.DatabaseMaxOpenConns)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigIgnoresInvalidInt(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.DatabaseMaxOpenConns)
}

func TestLogConfigRedactsSecrets(t *testing.T) {
	t.Log("step 1: log a config holding secrets")
	var buf bytes.Buffer
	logger := NewLogger(&buf, "test")
	cfg := Config{DatabasePassword: "s3cret", InfluxToken: "t0ken", DatabaseDSN: "postgres://u:s3cret@h/db"}

	LogConfig(context.Background(), logger, cfg)

	t.Log("step 2: every line is JSON and no secret leaks")
	output := buf.String()
	assert.NotContains(t, output, "s3cret")
	assert.NotContains(t, output, "t0ken")

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &payload))
		assert.Equal(t, "info", payload["level"])
	}
}

func TestEmptyFallback(t *testing.T) {
	assert.Equal(t, "x", EmptyFallback("", "x"))
	assert.Equal(t, "y", EmptyFallback("y", "x"))
}
