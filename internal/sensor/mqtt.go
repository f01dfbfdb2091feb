package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
	"github.com/odlevakp/enviro-pi/internal/mqtt"
)

// MQTTSource serves the most recent complete telemetry message received from
// a remote station. Messages older than maxAge are treated as no data.
type MQTTSource struct {
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu         sync.RWMutex
	latest     types.Measurement
	receivedAt time.Time
}

func NewMQTTSource(maxAge time.Duration, logger *slog.Logger) *MQTTSource {
	return &MQTTSource{maxAge: maxAge, now: time.Now, logger: logger}
}

// Observe is the mqtt telemetry handler.
func (s *MQTTSource) Observe(t mqtt.Telemetry) {
	m, err := t.Measurement()
	if err != nil {
		s.logger.Warn("ignoring telemetry", "station_id", t.StationID, "error", err)
		return
	}
	s.mu.Lock()
	s.latest = m
	s.receivedAt = s.now()
	s.mu.Unlock()
	s.logger.Debug("telemetry received", "station_id", t.StationID, "timestamp", t.Timestamp)
}

func (s *MQTTSource) Read(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.receivedAt.IsZero() {
		return types.Measurement{}, fmt.Errorf("no telemetry received yet: %w", types.ErrSensorUnavailable)
	}
	if age := s.now().Sub(s.receivedAt); s.maxAge > 0 && age > s.maxAge {
		return types.Measurement{}, fmt.Errorf("latest telemetry is %s old: %w", age.Round(time.Second), types.ErrSensorUnavailable)
	}
	return s.latest, nil
}

func (s *MQTTSource) Close() error { return nil }
