package main

import (
	"context"
	"io"
	"strings"

	"measurements-service/internal/application/measurements"
	"measurements-service/internal/application/worker"
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
	"measurements-service/internal/infrastructure/publisher"
	"measurements-service/internal/infrastructure/repository/memory"
	"measurements-service/internal/infrastructure/repository/sqlstore"
)

const driverMemory = "memory"

func provideConfig() infra.Config {
	return infra.LoadConfig()
}

func provideServiceName() string {
	return "measurements-service"
}

func provideLogger(out io.Writer, serviceName string, cfg infra.Config) *infra.Logger {
	return infra.NewLoggerWithLevel(out, serviceName, cfg.LogLevel)
}

func provideMeasurementService(repo domain.MeasurementRepository, pub domain.MeasurementPublisher, logger *infra.Logger) domain.MeasurementService {
	return measurements.New(repo, pub, logger)
}

func provideRepository(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.MeasurementRepository, func(), error) {
	if strings.EqualFold(cfg.DatabaseDriver, driverMemory) {
		logger.Println(ctx, "using in-memory measurement store")
		repo := memory.New()
		return repo, func() { _ = repo.Close() }, nil
	}

	if sqlstore.ShouldCheckDatabase(cfg) {
		if err := sqlstore.WaitForDatabase(ctx, cfg, logger); err != nil {
			logger.Printf(ctx, "database connectivity check failed: %v", err)
		} else {
			logger.Println(ctx, "database connectivity check succeeded")
		}
	} else {
		logger.Println(ctx, "database connectivity check skipped (no remote host configured)")
	}

	repo, cleanup, err := sqlstore.SetupRepository(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return repo, cleanup, nil
}

func providePublisher(ctx context.Context, cfg infra.Config, logger *infra.Logger) (domain.MeasurementPublisher, func(), error) {
	var sinks []publisher.Sink

	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, publisher.Sink{Name: "kafka", Publisher: kafkaPub})
		logger.Printf(ctx, "publishing measurements to kafka topic %s", cfg.KafkaTopic)
	}

	if cfg.InfluxURL != "" {
		influxPub, err := publisher.NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		if err != nil {
			for _, s := range sinks {
				_ = s.Publisher.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, publisher.Sink{Name: "influx", Publisher: influxPub})
		logger.Printf(ctx, "publishing measurements to influx bucket %s", cfg.InfluxBucket)
	}

	if len(sinks) == 0 {
		return publisher.Noop{}, func() {}, nil
	}

	pool := worker.New(cfg.PublishWorkers, cfg.PublishBuffer, publisher.NewMulti(sinks...), logger)
	cleanup := func() {
		if err := pool.Close(); err != nil {
			logger.Errorf(ctx, "failed to close publishers: %v", err)
		}
	}
	return pool, cleanup, nil
}
