package publisher

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"measurements-service/internal/domain"
)

const influxMeasurement = "measurement"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx mirrors measurements into an InfluxDB bucket.
type Influx struct {
	client influxdb2.Client
	writer pointWriter
}

// NewInflux connects to InfluxDB using a blocking write API for org and bucket.
func NewInflux(url, token, org, bucket string) (*Influx, error) {
	if url == "" || org == "" || bucket == "" {
		return nil, errors.New("influx: url, org and bucket are required")
	}

	client := influxdb2.NewClient(url, token)
	return &Influx{client: client, writer: client.WriteAPIBlocking(org, bucket)}, nil
}

func (i *Influx) Publish(ctx context.Context, m domain.Measurement) error {
	point, err := measurementPoint(m)
	if err != nil {
		return err
	}
	if err := i.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx: write point: %w", err)
	}
	return nil
}

func (i *Influx) Close() error {
	if i.client != nil {
		i.client.Close()
	}
	return nil
}

func measurementPoint(m domain.Measurement) (*write.Point, error) {
	ts, err := domain.ParseTimestamp(m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("influx: %w", err)
	}

	return influxdb2.NewPoint(influxMeasurement,
		map[string]string{"device_id": m.DeviceID},
		map[string]interface{}{
			"id":          m.ID,
			"temperature": m.Temperature,
			"humidity":    m.Humidity,
		},
		ts,
	), nil
}

var _ pointWriter = (api.WriteAPIBlocking)(nil)
