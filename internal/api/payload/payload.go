// Package payload decodes and validates the measurement body shared by the
// HTTP and MQTT ingress paths.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"measurements-service/internal/domain"
)

// maxBodyBytes bounds a single measurement document.
const maxBodyBytes = 1 << 20

// MeasurementRequest is the wire form of a new measurement. Pointer fields
// distinguish a missing value from a zero value.
type MeasurementRequest struct {
	DeviceID    *string  `json:"device_id" validate:"required,min=1"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Humidity    *float64 `json:"humidity" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Decode reads one JSON document from r and validates it. Every failure is a
// *domain.ValidationError.
func Decode(r io.Reader) (domain.NewMeasurement, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return domain.NewMeasurement{}, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return Parse(body)
}

// Parse validates a raw JSON document.
func Parse(body []byte) (domain.NewMeasurement, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.NewMeasurement{}, &domain.ValidationError{Field: "body", Reason: "field required"}
	}

	var req MeasurementRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.NewMeasurement{}, decodeError(err)
	}

	if err := validate.Struct(req); err != nil {
		return domain.NewMeasurement{}, validationError(err)
	}

	return domain.NewMeasurement{
		DeviceID:    *req.DeviceID,
		Temperature: *req.Temperature,
		Humidity:    *req.Humidity,
	}, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &domain.ValidationError{Field: fe.Field(), Reason: "field required"}
	case "min":
		return &domain.ValidationError{Field: fe.Field(), Reason: "must not be empty"}
	default:
		return &domain.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
	}
}
