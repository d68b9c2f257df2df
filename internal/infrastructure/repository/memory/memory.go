package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"measurements-service/internal/domain"
)

// Repository stores measurements in memory and satisfies the application repository contract.
type Repository struct {
	mu           sync.RWMutex
	measurements []domain.Measurement
	lastID       int64
	now          func() time.Time
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock replaces the time source used to stamp inserted measurements.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty in-memory repository instance.
func New(opts ...Option) *Repository {
	r := &Repository{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert assigns the next id and the current timestamp and stores the measurement.
func (r *Repository) Insert(_ context.Context, m domain.NewMeasurement) (domain.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	stored := domain.Measurement{
		ID:          r.lastID,
		DeviceID:    m.DeviceID,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Timestamp:   domain.FormatTimestamp(r.now()),
	}
	r.measurements = append(r.measurements, stored)
	return stored, nil
}

// List returns the stored measurements newest first, optionally filtered by device.
func (r *Repository) List(_ context.Context, deviceID string) ([]domain.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make([]domain.Measurement, 0, len(r.measurements))
	for _, m := range r.measurements {
		if deviceID != "" && m.DeviceID != deviceID {
			continue
		}
		filtered = append(filtered, m)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Timestamp != filtered[j].Timestamp {
			return filtered[i].Timestamp > filtered[j].Timestamp
		}
		return filtered[i].ID > filtered[j].ID
	})

	return filtered, nil
}

// Get returns the measurement with the given id.
func (r *Repository) Get(_ context.Context, id int64) (domain.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.measurements {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Measurement{}, domain.ErrNotFound
}

// Close is a no-op; it lets the repository stand in for the SQL one.
func (r *Repository) Close() error {
	return nil
}

var _ domain.MeasurementRepository = (*Repository)(nil)
