package domain

import "context"

// MeasurementWriter persists new measurements. Implementations assign ID and
// Timestamp.
type MeasurementWriter interface {
	Insert(ctx context.Context, m NewMeasurement) (Measurement, error)
}

// MeasurementReader exposes the read side of the store.
type MeasurementReader interface {
	// List returns measurements newest first. An empty deviceID disables
	// filtering.
	List(ctx context.Context, deviceID string) ([]Measurement, error)
	Get(ctx context.Context, id int64) (Measurement, error)
}

// MeasurementRepository aggregates the write and read capabilities required by the service.
type MeasurementRepository interface {
	MeasurementWriter
	MeasurementReader
}

// MeasurementService describes the behaviour exposed to transport layers.
type MeasurementService interface {
	Create(ctx context.Context, m NewMeasurement) (Measurement, error)
	List(ctx context.Context, deviceID string) ([]Measurement, error)
	Get(ctx context.Context, id int64) (Measurement, error)
}

// MeasurementPublisher forwards stored measurements to downstream systems.
type MeasurementPublisher interface {
	Publish(ctx context.Context, m Measurement) error
	Close() error
}
