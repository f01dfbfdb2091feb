package telemetry

import (
	"log/slog"
	"net/http"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/controller"
)

// RegisterFeature mounts the telemetry JSON routes on mux.
func RegisterFeature(mux *http.ServeMux, engine controller.Engine, sensor controller.Sensor, logger *slog.Logger) {
	telemetryController := controller.NewTelemetryController(engine, sensor, logger)
	telemetryController.RegisterRoutes(mux)
}
