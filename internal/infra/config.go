package infra

import (
	"context"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
	LogLevel    string

	DatabaseDriver       string
	DatabasePath         string
	DatabaseDSN          string
	DatabaseHost         string
	DatabasePort         string
	DatabaseUser         string
	DatabasePassword     string
	DatabaseName         string
	DatabaseMaxOpenConns int
	MigrationsDir        string

	CORSAllowedOrigins []string

	PublishWorkers int
	PublishBuffer  int

	KafkaBrokers []string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

func LoadConfig() Config {
	return Config{
		HTTPPort:             getEnv("HTTP_PORT", "8000"),
		GRPCPort:             os.Getenv("GRPC_PORT"),
		MetricsPort:          getEnv("METRICS_PORT", "2112"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:       getEnv("DB_DRIVER", "sqlite3"),
		DatabasePath:         getEnv("DB_PATH", "measurements.db"),
		DatabaseDSN:          os.Getenv("DB_DSN"),
		DatabaseHost:         os.Getenv("DB_HOST"),
		DatabasePort:         os.Getenv("DB_PORT"),
		DatabaseUser:         os.Getenv("DB_USER"),
		DatabasePassword:     os.Getenv("DB_PASSWORD"),
		DatabaseName:         os.Getenv("DB_NAME"),
		DatabaseMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MigrationsDir:        os.Getenv("MIGRATIONS_DIR"),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		PublishWorkers:       getEnvInt("PUBLISH_WORKERS", 2),
		PublishBuffer:        getEnvInt("PUBLISH_BUFFER", 100),
		KafkaBrokers:         getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "measurements"),
		InfluxURL:            os.Getenv("INFLUX_URL"),
		InfluxToken:          os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:            os.Getenv("INFLUX_ORG"),
		InfluxBucket:         getEnv("INFLUX_BUCKET", "measurements"),
		MQTTBroker:           os.Getenv("MQTT_BROKER"),
		MQTTTopic:            getEnv("MQTT_TOPIC", "sensors/+/measurements"),
		MQTTClientID:         getEnv("MQTT_CLIENT_ID", "measurements-service"),
	}
}

func LogConfig(ctx context.Context, logger *Logger, cfg Config) {
	logger.Printf(ctx, "HTTP_PORT=%s", cfg.HTTPPort)
	logger.Printf(ctx, "GRPC_PORT=%s", EmptyFallback(cfg.GRPCPort, "(disabled)"))
	logger.Printf(ctx, "METRICS_PORT=%s", EmptyFallback(cfg.MetricsPort, "(disabled)"))
	logger.Printf(ctx, "LOG_LEVEL=%s", cfg.LogLevel)
	logger.Printf(ctx, "DB_DRIVER=%s", cfg.DatabaseDriver)
	logger.Printf(ctx, "DB_PATH=%s", cfg.DatabasePath)
	if cfg.DatabaseDSN != "" {
		logger.Printf(ctx, "DB_DSN set (length %d)", len(cfg.DatabaseDSN))
	} else {
		logger.Println(ctx, "DB_DSN not provided")
	}
	logger.Printf(ctx, "DB_HOST=%s", EmptyFallback(cfg.DatabaseHost, "(not set)"))
	logger.Printf(ctx, "DB_PORT=%s", EmptyFallback(cfg.DatabasePort, "(not set)"))
	logger.Printf(ctx, "DB_USER=%s", EmptyFallback(cfg.DatabaseUser, "(not set)"))
	if cfg.DatabasePassword != "" {
		logger.Println(ctx, "DB_PASSWORD set (redacted)")
	} else {
		logger.Println(ctx, "DB_PASSWORD not provided")
	}
	logger.Printf(ctx, "DB_NAME=%s", EmptyFallback(cfg.DatabaseName, "(not set)"))
	logger.Printf(ctx, "DB_MAX_OPEN_CONNS=%d", cfg.DatabaseMaxOpenConns)
	logger.Printf(ctx, "MIGRATIONS_DIR=%s", EmptyFallback(cfg.MigrationsDir, "(embedded)"))
	logger.Printf(ctx, "CORS_ALLOWED_ORIGINS=%s", strings.Join(cfg.CORSAllowedOrigins, ","))
	logger.Printf(ctx, "PUBLISH_WORKERS=%d PUBLISH_BUFFER=%d", cfg.PublishWorkers, cfg.PublishBuffer)
	logger.Printf(ctx, "KAFKA_BROKERS=%s", EmptyFallback(strings.Join(cfg.KafkaBrokers, ","), "(disabled)"))
	logger.Printf(ctx, "KAFKA_TOPIC=%s", cfg.KafkaTopic)
	logger.Printf(ctx, "INFLUX_URL=%s", EmptyFallback(cfg.InfluxURL, "(disabled)"))
	if cfg.InfluxToken != "" {
		logger.Println(ctx, "INFLUX_TOKEN set (redacted)")
	}
	logger.Printf(ctx, "INFLUX_ORG=%s", EmptyFallback(cfg.InfluxOrg, "(not set)"))
	logger.Printf(ctx, "INFLUX_BUCKET=%s", cfg.InfluxBucket)
	logger.Printf(ctx, "MQTT_BROKER=%s", EmptyFallback(cfg.MQTTBroker, "(disabled)"))
	logger.Printf(ctx, "MQTT_TOPIC=%s", cfg.MQTTTopic)
	logger.Printf(ctx, "MQTT_CLIENT_ID=%s", cfg.MQTTClientID)
}

// EmptyFallback returns fallback when value is empty.
func EmptyFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
