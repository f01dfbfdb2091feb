package types

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{45.04, 1, 45.0},
		{45.06, 1, 45.1},
		{0.25, 1, 0.2},
		{0.75, 1, 0.8},
		{-0.25, 1, -0.2},
		{1013.256, 2, 1013.26},
		{1013.2, 2, 1013.2},
		{50, 1, 50},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v; want %v", tt.v, tt.places, got, tt.want)
		}
	}
}

func TestRound_NonFinite(t *testing.T) {
	if got := Round(math.NaN(), 1); !math.IsNaN(got) {
		t.Errorf("Round(NaN) = %v", got)
	}
	if got := Round(math.Inf(1), 1); !math.IsInf(got, 1) {
		t.Errorf("Round(+Inf) = %v", got)
	}
}

func TestMeasurement_RoundedAt(t *testing.T) {
	m := Measurement{
		Humidity:         47.3651,
		Pressure:         1008.12345,
		TempFromHumidity: 23.449,
		TempFromPressure: 22.96,
	}
	r := m.Rounded().At(1700000000)
	want := Reading{
		Epoch:            1700000000,
		Humidity:         47.4,
		Pressure:         1008.12,
		TempFromHumidity: 23.4,
		TempFromPressure: 23.0,
	}
	if r != want {
		t.Errorf("reading = %+v; want %+v", r, want)
	}
}
