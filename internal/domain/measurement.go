package domain

import "time"

// TimestampLayout is the wire and storage format of Measurement.Timestamp:
// UTC with microsecond precision and a literal Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Measurement is a stored temperature/humidity reading.
type Measurement struct {
	ID          int64   `db:"id"`
	DeviceID    string  `db:"device_id"`
	Temperature float64 `db:"temperature"`
	Humidity    float64 `db:"humidity"`
	Timestamp   string  `db:"timestamp"`
}

// NewMeasurement is the client-supplied part of a measurement.
type NewMeasurement struct {
	DeviceID    string
	Temperature float64
	Humidity    float64
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(TimestampLayout, value)
}
