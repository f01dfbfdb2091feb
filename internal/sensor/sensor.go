// Package sensor provides the measurement sources the sampler reads from.
package sensor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odlevakp/enviro-pi/internal/config"
	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
	"github.com/odlevakp/enviro-pi/internal/mqtt"
)

// Source is a sensor that can be read on demand. Read failures wrap
// types.ErrSensorUnavailable.
type Source interface {
	Read(ctx context.Context) (types.Measurement, error)
	Close() error
}

// Open returns the source selected by cfg.SensorDriver. The mqtt driver
// registers itself as the telemetry handler of client, so Open must run
// before client.Connect.
func Open(cfg config.Config, client *mqtt.Client, logger *slog.Logger) (Source, error) {
	logger = logger.With("component", "sensor", "driver", cfg.SensorDriver)
	switch cfg.SensorDriver {
	case config.SensorDriverBME280:
		return OpenBME280(cfg.BME280Address, logger)
	case config.SensorDriverMQTT:
		if client == nil {
			return nil, fmt.Errorf("sensor driver %q needs an mqtt client", cfg.SensorDriver)
		}
		src := NewMQTTSource(cfg.SensorMaxAge, logger)
		client.SetTelemetryHandler(src.Observe)
		return src, nil
	case config.SensorDriverSimulated:
		return NewSimulated(0), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
	}
}
