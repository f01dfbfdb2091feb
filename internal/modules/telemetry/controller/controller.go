package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// Engine is the query side the controller serves.
type Engine interface {
	BuildSeries(ctx context.Context, w types.TimeWindow) (types.SeriesResult, error)
	BuildStatistics(ctx context.Context, w types.TimeWindow) (types.StatResult, error)
}

// Sensor provides the live snapshot for the status endpoint.
type Sensor interface {
	Read(ctx context.Context) (types.Measurement, error)
}

type TelemetryController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type telemetryControllerImpl struct {
	engine Engine
	sensor Sensor
	logger *slog.Logger
}

// NewTelemetryController wires the JSON routes. sensor may be nil, in which
// case the status route reports the sensor as unavailable.
func NewTelemetryController(engine Engine, sensor Sensor, logger *slog.Logger) TelemetryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &telemetryControllerImpl{engine: engine, sensor: sensor, logger: logger.With("component", "http")}
}

func (c *telemetryControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", c.handleStatus)
	mux.HandleFunc("GET /api/v1/charts", c.handleCharts)
	mux.HandleFunc("POST /api/v1/charts", c.handleCharts)
	mux.HandleFunc("GET /api/v1/statistics", c.handleStatistics)
	mux.HandleFunc("POST /api/v1/statistics", c.handleStatistics)
}
