package publisher

import (
	"context"
	"errors"
	"fmt"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

// Sink is a named publisher. The name labels publish_errors_total.
type Sink struct {
	Name      string
	Publisher domain.MeasurementPublisher
}

// Multi forwards every measurement to all configured sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti composes sinks. Sinks with a nil publisher are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s.Publisher != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len reports how many sinks are configured.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Publish sends the measurement to every sink and joins the failures.
func (m *Multi) Publish(ctx context.Context, measurement domain.Measurement) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publisher.Publish(ctx, measurement); err != nil {
			infra.IncPublishErrors(s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Noop discards measurements.
type Noop struct{}

func (Noop) Publish(context.Context, domain.Measurement) error { return nil }

func (Noop) Close() error { return nil }

var (
	_ domain.MeasurementPublisher = (*Multi)(nil)
	_ domain.MeasurementPublisher = Noop{}
)
