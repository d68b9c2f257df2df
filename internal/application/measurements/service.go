package measurements

import (
	"context"
	"errors"
	"strings"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

// Service orchestrates storage and downstream publishing of measurements.
type Service struct {
	repo      domain.MeasurementRepository
	publisher domain.MeasurementPublisher
	logger    *infra.Logger
}

// New creates a new measurements service. A nil publisher disables fan-out.
func New(repo domain.MeasurementRepository, publisher domain.MeasurementPublisher, logger *infra.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Create stores a new measurement and forwards the stored record to the publishers.
func (s *Service) Create(ctx context.Context, m domain.NewMeasurement) (domain.Measurement, error) {
	if strings.TrimSpace(m.DeviceID) == "" {
		return domain.Measurement{}, &domain.ValidationError{Field: "device_id", Reason: "must not be empty"}
	}

	stored, err := s.repo.Insert(ctx, m)
	if err != nil {
		return domain.Measurement{}, err
	}
	infra.IncMeasurementsCreated()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stored); err != nil {
			s.logger.Errorf(ctx, "publish measurement %d: %v", stored.ID, err)
		}
	}

	return stored, nil
}

// List returns measurements newest first, optionally filtered by device.
func (s *Service) List(ctx context.Context, deviceID string) ([]domain.Measurement, error) {
	items, err := s.repo.List(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Measurement{}
	}
	return items, nil
}

// Get returns a single measurement by id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Measurement, error) {
	m, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Measurement{}, &domain.NotFoundError{ID: id}
	}
	return m, err
}

var _ domain.MeasurementService = (*Service)(nil)
