package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// Telemetry is the JSON payload exchanged on the station topic.
type Telemetry struct {
	StationID           string    `json:"station_id"`
	Timestamp           time.Time `json:"timestamp"`
	Temperature         *float64  `json:"temperature_c,omitempty"`
	TemperaturePressure *float64  `json:"temperature_pressure_c,omitempty"`
	Humidity            *float64  `json:"humidity_pct,omitempty"`
	Pressure            *float64  `json:"pressure_hpa,omitempty"`
}

// FromReading builds the payload published for a stored reading.
func FromReading(stationID string, r types.Reading) Telemetry {
	return Telemetry{
		StationID:           stationID,
		Timestamp:           time.Unix(r.Epoch, 0).UTC(),
		Temperature:         &r.TempFromHumidity,
		TemperaturePressure: &r.TempFromPressure,
		Humidity:            &r.Humidity,
		Pressure:            &r.Pressure,
	}
}

// Measurement converts a payload into the four sensor quantities. A missing
// pressure-sensor temperature falls back to the humidity-sensor one.
func (t Telemetry) Measurement() (types.Measurement, error) {
	if t.Temperature == nil || t.Humidity == nil || t.Pressure == nil {
		return types.Measurement{}, fmt.Errorf("incomplete telemetry from %q", t.StationID)
	}
	m := types.Measurement{
		Humidity:         *t.Humidity,
		Pressure:         *t.Pressure,
		TempFromHumidity: *t.Temperature,
		TempFromPressure: *t.Temperature,
	}
	if t.TemperaturePressure != nil {
		m.TempFromPressure = *t.TemperaturePressure
	}
	return m, nil
}

func decodeTelemetry(payload []byte) (Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		return Telemetry{}, fmt.Errorf("parse telemetry: %w", err)
	}
	if err := validateTelemetry(t); err != nil {
		return Telemetry{}, err
	}
	return t, nil
}

func validateTelemetry(t Telemetry) error {
	if t.StationID == "" {
		return fmt.Errorf("station_id is required")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if t.Humidity != nil {
		if *t.Humidity < 0 || *t.Humidity > 100 {
			return fmt.Errorf("humidity_pct out of range: %f (must be 0-100)", *t.Humidity)
		}
	}
	if t.Pressure != nil {
		if *t.Pressure <= 0 {
			return fmt.Errorf("pressure_hpa must be positive: %f", *t.Pressure)
		}
	}
	if t.Temperature == nil && t.Humidity == nil && t.Pressure == nil {
		return fmt.Errorf("at least one sensor reading (temperature, humidity, or pressure) is required")
	}
	return nil
}
