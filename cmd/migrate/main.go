package main

import (
	"context"
	"flag"
	"os"
	"time"

	"measurements-service/internal/infra"
	"measurements-service/internal/infrastructure/repository/sqlstore"
	_ "measurements-service/internal/pkg/dotenv/autoload"
)

func main() {
	dir := flag.String("dir", "", "directory with migration files (defaults to the embedded set)")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg := infra.LoadConfig()
	if *dir != "" {
		cfg.MigrationsDir = *dir
	}

	logger := infra.NewLoggerWithLevel(os.Stdout, "measurements-migrate", cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dbCfg, err := sqlstore.ConfigFromEnv(cfg)
	if err != nil {
		logger.Fatalf(ctx, "invalid database config: %v", err)
	}

	if sqlstore.ShouldCheckDatabase(cfg) {
		if err := sqlstore.WaitForDatabase(ctx, cfg, logger); err != nil {
			logger.Fatalf(ctx, "database not reachable: %v", err)
		}
	}

	db, err := sqlstore.Connect(ctx, dbCfg)
	if err != nil {
		logger.Fatalf(ctx, "connect: %v", err)
	}
	defer db.Close()

	dialect, _ := sqlstore.DialectFor(dbCfg.Driver)
	migrations, err := sqlstore.MigrationsFS(cfg.MigrationsDir, dialect)
	if err != nil {
		logger.Fatalf(ctx, "load migrations: %v", err)
	}

	if err := sqlstore.ApplyMigrations(ctx, db, migrations, logger); err != nil {
		logger.Fatalf(ctx, "apply migrations: %v", err)
	}
	logger.Println(ctx, "migrations applied")
}
