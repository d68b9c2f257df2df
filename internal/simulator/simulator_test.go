package simulator

import (
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "measurements-service/internal/api/http"
	"measurements-service/internal/application/measurements"
	"measurements-service/internal/infrastructure/repository/memory"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Devices: 1}, nil)
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "http://localhost"}, nil)
	assert.Error(t, err)
}

func TestTickPostsReadingForEveryDevice(t *testing.T) {
	repo := memory.New()
	api := httptest.NewServer(httpapi.NewServer(measurements.New(repo, nil, nil), nil, nil))
	defer api.Close()

	sim, err := New(Config{BaseURL: api.URL, Devices: 3, Interval: time.Millisecond}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sim.Tick(context.Background()))

	items, err := repo.List(context.Background(), "sensor-2")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.GreaterOrEqual(t, items[0].Temperature, 18.0)
	assert.Less(t, items[0].Temperature, 28.0)
	assert.GreaterOrEqual(t, items[0].Humidity, 30.0)
	assert.Less(t, items[0].Humidity, 70.0)
}

func TestReadingsAreDeterministicForSeed(t *testing.T) {
	a, err := New(Config{BaseURL: "http://localhost", Devices: 1, RandSource: rand.NewSource(7)}, nil)
	require.NoError(t, err)
	b, err := New(Config{BaseURL: "http://localhost", Devices: 1, RandSource: rand.NewSource(7)}, nil)
	require.NoError(t, err)

	assert.Equal(t, a.reading("sensor-1"), b.reading("sensor-1"))
}

func TestPostReportsRejection(t *testing.T) {
	api := httptest.NewServer(httpapi.NewServer(measurements.New(memory.New(), nil, nil), nil, nil))
	defer api.Close()

	sim, err := New(Config{BaseURL: api.URL, Devices: 1}, nil)
	require.NoError(t, err)

	err = sim.Post(context.Background(), Reading{DeviceID: ""})
	assert.ErrorContains(t, err, "422")
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := memory.New()
	api := httptest.NewServer(httpapi.NewServer(measurements.New(repo, nil, nil), nil, nil))
	defer api.Close()

	sim, err := New(Config{BaseURL: api.URL, Devices: 1, Interval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	items, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, items)
}
