package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"measurements-service/internal/api/payload"
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

const (
	apiName    = "IoT Temperature & Humidity API"
	apiVersion = "1.0.0"

	queryDeviceID = "device_id"
	paramID       = "id"
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	service domain.MeasurementService
	logger  *infra.Logger
}

func registerRoutes(router chi.Router, h *handler) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
	})

	router.Get("/", h.handleRoot)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Post("/measurements", h.handleCreate)
	router.Get("/measurements", h.handleList)
	router.Get("/measurements/{id}", h.handleGet)
}

type rootResponse struct {
	Status  string `json:"status"`
	API     string `json:"api"`
	Version string `json:"version"`
}

type measurementResponse struct {
	ID          int64   `json:"id"`
	DeviceID    string  `json:"device_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toResponse(m domain.Measurement) measurementResponse {
	return measurementResponse{
		ID:          m.ID,
		DeviceID:    m.DeviceID,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Timestamp:   m.Timestamp,
	}
}

func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.logger.Debugf(r.Context(), "health check OK")
	h.writeJSON(w, r, http.StatusOK, rootResponse{Status: "healthy", API: apiName, Version: apiVersion})
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, err := payload.Decode(r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toResponse(created))
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), r.URL.Query().Get(queryDeviceID))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]measurementResponse, 0, len(items))
	for _, m := range items {
		out = append(out, toResponse(m))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, paramID), 10, 64)
	if err != nil {
		h.respondError(w, r, &domain.ValidationError{Field: paramID, Reason: "value is not a valid integer"})
		return
	}

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, toResponse(m))
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *domain.NotFoundError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
	case errors.As(err, &notFound):
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Detail: notFound.Error()})
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Detail: "Measurement not found"})
	default:
		h.logger.Errorf(r.Context(), "%s %s: %v", r.Method, r.URL.Path, err)
		h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Errorf(r.Context(), "write response %s %s: %v", r.Method, r.URL.Path, err)
	}
}
