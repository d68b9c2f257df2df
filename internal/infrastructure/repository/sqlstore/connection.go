package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"measurements-service/internal/infra"
)

// Config contains what is needed to open the measurements database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// ConfigFromEnv derives a connection config from the application config.
func ConfigFromEnv(cfg infra.Config) (Config, error) {
	if _, err := DialectFor(cfg.DatabaseDriver); err != nil {
		return Config{}, err
	}

	dsn, err := BuildDatabaseDSN(cfg)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Driver:       strings.ToLower(cfg.DatabaseDriver),
		DSN:          dsn,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
	}, nil
}

// Connect opens a pooled database handle and validates it with a ping.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db: DSN is required")
	}
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open connection: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if dialect == DialectSQLite && strings.Contains(cfg.DSN, ":memory:") {
		// every connection to :memory: is a separate database
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(5, maxOpen))
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return db, nil
}

// ShouldCheckDatabase reports whether a TCP reachability probe makes sense.
func ShouldCheckDatabase(cfg infra.Config) bool {
	dialect, err := DialectFor(cfg.DatabaseDriver)
	if err != nil || dialect != DialectPostgres {
		return false
	}
	return cfg.DatabaseDSN != "" || cfg.DatabaseHost != ""
}

// WaitForDatabase probes the configured host/port until it becomes reachable or context cancellation.
func WaitForDatabase(ctx context.Context, cfg infra.Config, logger *infra.Logger) error {
	host := cfg.DatabaseHost
	port := cfg.DatabasePort

	if (host == "" || port == "") && cfg.DatabaseDSN != "" {
		parsed, err := url.Parse(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("invalid DB_DSN: %w", err)
		}
		if host == "" {
			host = parsed.Hostname()
		}
		if port == "" {
			port = parsed.Port()
		}
	}

	if host == "" {
		return nil
	}
	if port == "" {
		port = "5432"
	}

	address := net.JoinHostPort(host, port)
	dialer := &net.Dialer{Timeout: 3 * time.Second}

	const maxAttempts = 5
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		logger.Printf(ctx, "database check attempt %d failed: %v", attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return fmt.Errorf("database not reachable at %s", address)
}

// BuildDatabaseDSN returns DB_DSN when set. Otherwise it builds a sqlite file
// URI from DB_PATH or a postgres URL from the discrete DB_* values.
func BuildDatabaseDSN(cfg infra.Config) (string, error) {
	if cfg.DatabaseDSN != "" {
		return cfg.DatabaseDSN, nil
	}

	dialect, err := DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return "", err
	}

	if dialect == DialectSQLite {
		path := cfg.DatabasePath
		if path == "" {
			return "", errors.New("database path is required for sqlite")
		}
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path), nil
	}

	if cfg.DatabaseHost == "" {
		return "", errors.New("database host is required when DSN is not provided")
	}
	if cfg.DatabaseUser == "" {
		return "", errors.New("database user is required when DSN is not provided")
	}
	if cfg.DatabaseName == "" {
		return "", errors.New("database name is required when DSN is not provided")
	}

	port := cfg.DatabasePort
	if port == "" {
		port = "5432"
	}

	connectionURL := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.DatabaseHost, port),
		Path:   "/" + cfg.DatabaseName,
		User:   url.UserPassword(cfg.DatabaseUser, cfg.DatabasePassword),
	}

	query := connectionURL.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	connectionURL.RawQuery = query.Encode()

	return connectionURL.String(), nil
}

// SetupRepository connects, migrates and returns the repository with its cleanup routine.
func SetupRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (*Repository, func(), error) {
	dbCfg, err := ConfigFromEnv(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := Connect(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf(ctx, "connected to %s database", dbCfg.Driver)

	dialect, _ := DialectFor(dbCfg.Driver)
	migrations, err := MigrationsFS(cfg.MigrationsDir, dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := ApplyMigrations(ctx, db, migrations, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	repo, err := New(db, WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := repo.Close(); err != nil {
			logger.Errorf(ctx, "failed to close repository: %v", err)
		}
	}

	return repo, cleanup, nil
}
