// Package simulator posts synthetic device readings to the HTTP API.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"measurements-service/internal/infra"
)

// Config controls the simulated fleet.
type Config struct {
	BaseURL  string
	Devices  int
	Interval time.Duration
	Prefix   string

	// RandSource seeds the reading generator. Nil uses the current time.
	RandSource rand.Source
}

// Reading is the body posted for one device tick.
type Reading struct {
	DeviceID    string  `json:"device_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Simulator drives a fixed set of devices against the API.
type Simulator struct {
	cfg    Config
	client *resty.Client
	logger *infra.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// New builds a simulator for cfg.
func New(cfg Config, logger *infra.Logger) (*Simulator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("simulator: base URL is required")
	}
	if cfg.Devices <= 0 {
		return nil, errors.New("simulator: at least one device is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "sensor"
	}

	source := cfg.RandSource
	if source == nil {
		source = rand.NewSource(time.Now().UnixNano())
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json")

	return &Simulator{
		cfg:    cfg,
		client: client,
		logger: logger,
		rnd:    rand.New(source),
	}, nil
}

// Run posts one reading per device on every tick until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick posts a single reading for every device and returns how many were accepted.
func (s *Simulator) Tick(ctx context.Context) int {
	accepted := 0
	for i := 1; i <= s.cfg.Devices; i++ {
		reading := s.reading(fmt.Sprintf("%s-%d", s.cfg.Prefix, i))
		if err := s.Post(ctx, reading); err != nil {
			s.logger.Errorf(ctx, "post %s: %v", reading.DeviceID, err)
			continue
		}
		accepted++
	}
	return accepted
}

// Post sends a reading to POST /measurements.
func (s *Simulator) Post(ctx context.Context, reading Reading) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(reading).
		Post("/measurements")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (s *Simulator) reading(deviceID string) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Reading{
		DeviceID:    deviceID,
		Temperature: 18 + s.rnd.Float64()*10,
		Humidity:    30 + s.rnd.Float64()*40,
	}
}
