package main

import (
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

type application struct {
	Config  infra.Config
	Logger  *infra.Logger
	Service domain.MeasurementService
}

func newApplication(cfg infra.Config, logger *infra.Logger, service domain.MeasurementService) *application {
	return &application{
		Config:  cfg,
		Logger:  logger,
		Service: service,
	}
}
