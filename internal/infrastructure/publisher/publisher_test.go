package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

var sample = domain.Measurement{
	ID:          42,
	DeviceID:    "sensor-1",
	Temperature: 22.5,
	Humidity:    48,
	Timestamp:   "2024-01-15T10:30:00.123456Z",
}

type stubPublisher struct {
	calls    int
	err      error
	closeErr error
}

func (s *stubPublisher) Publish(context.Context, domain.Measurement) error {
	s.calls++
	return s.err
}

func (s *stubPublisher) Close() error { return s.closeErr }

func TestMultiPublishesToAllSinks(t *testing.T) {
	ok := &stubPublisher{}
	broken := &stubPublisher{err: errors.New("unreachable")}
	multi := NewMulti(Sink{Name: "ok", Publisher: ok}, Sink{Name: "broken", Publisher: broken}, Sink{Name: "nil"})

	assert.Equal(t, 2, multi.Len())

	before := testutil.ToFloat64(infra.PublishErrorsTotal.WithLabelValues("broken"))
	err := multi.Publish(context.Background(), sample)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: unreachable")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(infra.PublishErrorsTotal.WithLabelValues("broken")))
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	multi := NewMulti(
		Sink{Name: "a", Publisher: &stubPublisher{}},
		Sink{Name: "b", Publisher: &stubPublisher{closeErr: errors.New("stuck")}},
	)
	assert.EqualError(t, multi.Close(), "b: stuck")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), sample))
	assert.NoError(t, Noop{}.Close())
}

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.messages = append(f.messages, msgs...)
	return f.err
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublishesJSONKeyedByDevice(t *testing.T) {
	writer := &fakeKafkaWriter{}
	pub := newKafkaWithWriter(writer)

	require.NoError(t, pub.Publish(context.Background(), sample))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "sensor-1", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, float64(42), decoded["id"])
	assert.Equal(t, "sensor-1", decoded["device_id"])
	assert.Equal(t, 22.5, decoded["temperature"])
	assert.Equal(t, "2024-01-15T10:30:00.123456Z", decoded["timestamp"])

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaWrapsWriteErrors(t *testing.T) {
	pub := newKafkaWithWriter(&fakeKafkaWriter{err: errors.New("leader not available")})
	assert.ErrorContains(t, pub.Publish(context.Background(), sample), "leader not available")
}

func TestNewKafkaValidatesConfig(t *testing.T) {
	_, err := NewKafka(nil, "measurements")
	assert.Error(t, err)
	_, err = NewKafka([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	pub, err := NewKafka([]string{"localhost:9092"}, "measurements")
	require.NoError(t, err)
	assert.NoError(t, pub.Close())
}

type fakePointWriter struct {
	points []*write.Point
}

func (f *fakePointWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	f.points = append(f.points, points...)
	return nil
}

func TestInfluxWritesTaggedPoint(t *testing.T) {
	writer := &fakePointWriter{}
	pub := &Influx{writer: writer}

	require.NoError(t, pub.Publish(context.Background(), sample))
	require.Len(t, writer.points, 1)

	point := writer.points[0]
	assert.Equal(t, "measurement", point.Name())
	require.Len(t, point.TagList(), 1)
	assert.Equal(t, "device_id", point.TagList()[0].Key)
	assert.Equal(t, "sensor-1", point.TagList()[0].Value)
	assert.Len(t, point.FieldList(), 3)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC), point.Time())

	assert.NoError(t, pub.Close())
}

func TestInfluxRejectsBadTimestamp(t *testing.T) {
	pub := &Influx{writer: &fakePointWriter{}}
	bad := sample
	bad.Timestamp = "yesterday"
	assert.Error(t, pub.Publish(context.Background(), bad))
}

func TestNewInfluxValidatesConfig(t *testing.T) {
	_, err := NewInflux("", "token", "org", "bucket")
	assert.Error(t, err)

	pub, err := NewInflux("http://localhost:8086", "token", "org", "bucket")
	require.NoError(t, err)
	assert.NoError(t, pub.Close())
}
