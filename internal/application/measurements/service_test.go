package measurements

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
	"measurements-service/internal/infrastructure/repository/memory"
)

type recordingPublisher struct {
	published []domain.Measurement
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, m domain.Measurement) error {
	p.published = append(p.published, m)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type failingRepository struct {
	err error
}

func (r failingRepository) Insert(context.Context, domain.NewMeasurement) (domain.Measurement, error) {
	return domain.Measurement{}, r.err
}

func (r failingRepository) List(context.Context, string) ([]domain.Measurement, error) {
	return nil, r.err
}

func (r failingRepository) Get(context.Context, int64) (domain.Measurement, error) {
	return domain.Measurement{}, r.err
}

func TestCreateStoresAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(memory.New(), pub, nil)

	before := testutil.ToFloat64(infra.MeasurementsCreatedTotal)

	got, err := svc.Create(context.Background(), domain.NewMeasurement{DeviceID: "sensor-1", Temperature: 22.5, Humidity: 48})
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.ID)
	assert.NotEmpty(t, got.Timestamp)
	require.Len(t, pub.published, 1)
	assert.Equal(t, got, pub.published[0])
	assert.Equal(t, before+1, testutil.ToFloat64(infra.MeasurementsCreatedTotal))
}

func TestCreateRejectsBlankDevice(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.Create(context.Background(), domain.NewMeasurement{DeviceID: "  "})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "device_id", validationErr.Field)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateIgnoresPublisherFailure(t *testing.T) {
	var buf bytes.Buffer
	svc := New(memory.New(), &recordingPublisher{err: errors.New("broker down")}, infra.NewLogger(&buf, "test"))

	got, err := svc.Create(context.Background(), domain.NewMeasurement{DeviceID: "sensor-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Contains(t, buf.String(), "broker down")
}

func TestCreatePropagatesStorageFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(failingRepository{err: errors.New("db gone")}, pub, nil)

	_, err := svc.Create(context.Background(), domain.NewMeasurement{DeviceID: "sensor-1"})
	assert.EqualError(t, err, "db gone")
	assert.Empty(t, pub.published)
}

func TestListFiltersAndOrders(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	for _, device := range []string{"a", "b", "a"} {
		_, err := svc.Create(ctx, domain.NewMeasurement{DeviceID: device})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)

	onlyA, err := svc.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, m := range onlyA {
		assert.Equal(t, "a", m.DeviceID)
	}

	none, err := svc.List(ctx, "A")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGetNotFound(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.Get(context.Background(), 7)

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.EqualError(t, err, "Measurement with id 7 not found")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPropagatesStorageFailure(t *testing.T) {
	svc := New(failingRepository{err: errors.New("db gone")}, nil, nil)

	_, err := svc.Get(context.Background(), 1)
	assert.EqualError(t, err, "db gone")
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
