package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// BME280 reads a Bosch BME280 on the default I²C bus. The chip has a single
// temperature probe, which fills both temperature fields.
type BME280 struct {
	mu     sync.Mutex
	bus    i2c.BusCloser
	dev    *bmxx80.Dev
	logger *slog.Logger
}

func OpenBME280(addr uint16, logger *slog.Logger) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open("") // default bus, usually /dev/i2c-1
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 at %#x: %w", addr, err)
	}
	logger.Info("bme280 ready", "bus", bus.String(), "address", fmt.Sprintf("%#x", addr))
	return &BME280{bus: bus, dev: dev, logger: logger}, nil
}

func (s *BME280) Read(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		s.logger.Debug("bme280 sense failed", "error", err)
		return types.Measurement{}, fmt.Errorf("bme280 sense: %w: %v", types.ErrSensorUnavailable, err)
	}
	return measurementFromEnv(env), nil
}

func (s *BME280) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	haltErr := s.dev.Halt()
	if err := s.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

func measurementFromEnv(env physic.Env) types.Measurement {
	celsius := env.Temperature.Celsius()
	return types.Measurement{
		// physic.RelativeHumidity is fixed point in units of 0.00001 %RH.
		Humidity: float64(env.Humidity) / float64(physic.PercentRH),
		// physic.Pressure is nano pascal; 1 hPa = 100 Pa.
		Pressure:         float64(env.Pressure) / float64(100*physic.Pascal),
		TempFromHumidity: celsius,
		TempFromPressure: celsius,
	}
}
