package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"measurements-service/internal/application/measurements"
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
	"measurements-service/internal/infrastructure/repository/memory"
)

type failingService struct{}

func (failingService) Create(context.Context, domain.NewMeasurement) (domain.Measurement, error) {
	return domain.Measurement{}, errors.New("db gone")
}

func (failingService) List(context.Context, string) ([]domain.Measurement, error) { return nil, nil }

func (failingService) Get(context.Context, int64) (domain.Measurement, error) {
	return domain.Measurement{}, domain.ErrNotFound
}

func counter(result string) float64 {
	return testutil.ToFloat64(infra.MQTTMessagesTotal.WithLabelValues(result))
}

func TestNewSubscriberValidatesConfig(t *testing.T) {
	_, err := NewSubscriber(Config{Topic: "t"}, nil, nil)
	assert.Error(t, err)
	_, err = NewSubscriber(Config{Broker: "tcp://localhost:1883"}, nil, nil)
	assert.Error(t, err)
}

func TestHandleStoresValidPayload(t *testing.T) {
	repo := memory.New()
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "sensors/+/measurements"}, measurements.New(repo, nil, nil), nil)
	require.NoError(t, err)

	before := counter(resultStored)
	sub.Handle(context.Background(), "sensors/s1/measurements", []byte(`{"device_id":"s1","temperature":21,"humidity":40}`))

	items, err := repo.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 21.0, items[0].Temperature)
	assert.Equal(t, before+1, counter(resultStored))
}

func TestHandleDropsInvalidPayload(t *testing.T) {
	repo := memory.New()
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "t"}, measurements.New(repo, nil, nil), nil)
	require.NoError(t, err)

	before := counter(resultRejected)
	sub.Handle(context.Background(), "t", []byte(`{"temperature":"hot"}`))
	sub.Handle(context.Background(), "t", []byte(`{"device_id":" ","temperature":1,"humidity":1}`))

	items, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, before+2, counter(resultRejected))
}

func TestHandleCountsStorageFailures(t *testing.T) {
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "t"}, failingService{}, nil)
	require.NoError(t, err)

	before := counter(resultFailed)
	sub.Handle(context.Background(), "t", []byte(`{"device_id":"s1","temperature":1,"humidity":1}`))
	assert.Equal(t, before+1, counter(resultFailed))
}

func TestCloseWithoutStart(t *testing.T) {
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "t"}, failingService{}, nil)
	require.NoError(t, err)
	assert.NoError(t, sub.Close())
}
