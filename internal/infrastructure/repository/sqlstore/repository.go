package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

const (
	insertMeasurementSQL = `
INSERT INTO measurements (device_id, temperature, humidity, "timestamp")
VALUES (?, ?, ?, ?)`
	selectMeasurementsSQL = `
SELECT id, device_id, temperature, humidity, "timestamp"
FROM measurements`
	orderNewestFirst = ` ORDER BY "timestamp" DESC, id DESC`
)

// Repository implements domain.MeasurementRepository on top of a SQL database.
type Repository struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *infra.Logger
	now     func() time.Time

	closeOnce sync.Once
}

// Option customises a Repository.
type Option func(*Repository)

// WithLogger attaches a logger used for storage diagnostics.
func WithLogger(logger *infra.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock replaces the time source used to stamp inserted measurements.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New wraps an open database handle. The dialect is derived from the driver name.
func New(db *sqlx.DB, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("sql repository: db is required")
	}
	dialect, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}

	repo := &Repository{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.db.Close()
	})
	return err
}

// Insert stamps the measurement with the current time and stores it inside a
// transaction. The transaction is rolled back on every path that does not commit.
func (r *Repository) Insert(ctx context.Context, m domain.NewMeasurement) (domain.Measurement, error) {
	start := time.Now()
	defer func() { infra.ObserveDBQuery("insert", time.Since(start)) }()

	stored := domain.Measurement{
		DeviceID:    m.DeviceID,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Timestamp:   domain.FormatTimestamp(r.now()),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("sql repository: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := r.insertRow(ctx, tx, stored)
	if err != nil {
		r.logger.Errorf(ctx, "sql repository: insert failed device=%s: %v", m.DeviceID, err)
		return domain.Measurement{}, fmt.Errorf("sql repository: insert measurement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Measurement{}, fmt.Errorf("sql repository: commit insert: %w", err)
	}

	stored.ID = id
	return stored, nil
}

func (r *Repository) insertRow(ctx context.Context, tx *sqlx.Tx, m domain.Measurement) (int64, error) {
	args := []any{m.DeviceID, m.Temperature, m.Humidity, m.Timestamp}

	if r.dialect == DialectPostgres {
		var id int64
		err := tx.QueryRowxContext(ctx, tx.Rebind(insertMeasurementSQL+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(insertMeasurementSQL), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// List returns measurements newest first. An empty deviceID returns every record.
func (r *Repository) List(ctx context.Context, deviceID string) ([]domain.Measurement, error) {
	start := time.Now()
	defer func() { infra.ObserveDBQuery("list", time.Since(start)) }()

	query := selectMeasurementsSQL
	var args []any
	if deviceID != "" {
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	query += orderNewestFirst

	measurements := []domain.Measurement{}
	if err := r.db.SelectContext(ctx, &measurements, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sql repository: list measurements: %w", err)
	}
	return measurements, nil
}

// Get returns the measurement with the given id or domain.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (domain.Measurement, error) {
	start := time.Now()
	defer func() { infra.ObserveDBQuery("get", time.Since(start)) }()

	var m domain.Measurement
	err := r.db.GetContext(ctx, &m, r.db.Rebind(selectMeasurementsSQL+" WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Measurement{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Measurement{}, fmt.Errorf("sql repository: get measurement %d: %w", id, err)
	}
	return m, nil
}

var _ domain.MeasurementRepository = (*Repository)(nil)
