package types

import "math"

// Reading is one persisted sensehat row.
type Reading struct {
	Epoch            int64   `json:"epoch"`
	Humidity         float64 `json:"humidity"`
	Pressure         float64 `json:"pressure"`
	TempFromHumidity float64 `json:"temp_from_humidity"`
	TempFromPressure float64 `json:"temp_from_pressure"`
}

// Measurement is what a sensor returns before a capture time is attached.
type Measurement struct {
	Humidity         float64 `json:"humidity"`
	Pressure         float64 `json:"pressure"`
	TempFromHumidity float64 `json:"temp_from_humidity"`
	TempFromPressure float64 `json:"temp_from_pressure"`
}

// Rounded returns m with humidity and temperatures rounded to one decimal
// place and pressure to two.
func (m Measurement) Rounded() Measurement {
	return Measurement{
		Humidity:         Round(m.Humidity, 1),
		Pressure:         Round(m.Pressure, 2),
		TempFromHumidity: Round(m.TempFromHumidity, 1),
		TempFromPressure: Round(m.TempFromPressure, 1),
	}
}

// At attaches a capture time to m.
func (m Measurement) At(epoch int64) Reading {
	return Reading{
		Epoch:            epoch,
		Humidity:         m.Humidity,
		Pressure:         m.Pressure,
		TempFromHumidity: m.TempFromHumidity,
		TempFromPressure: m.TempFromPressure,
	}
}

// Round rounds v to the given number of decimal places, ties to even.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(places)
	return math.RoundToEven(v*p) / p
}

// SeriesResult holds four parallel, equal-length sequences for charting.
type SeriesResult struct {
	Selector         string    `json:"selected_timespan"`
	Label            string    `json:"header_timespan"`
	Labels           []string  `json:"labels"`
	Humidity         []float64 `json:"humidity"`
	Pressure         []float64 `json:"pressure"`
	TempFromHumidity []float64 `json:"temp_hum"`
}

// Len is the number of points in the series.
func (s SeriesResult) Len() int { return len(s.Labels) }

// Extremum is a min or max value paired with the display time of the first
// row that held it.
type Extremum struct {
	Value float64 `json:"value"`
	Epoch int64   `json:"epoch"`
	At    string  `json:"at"`
}

// MetricStats summarizes one metric over a window.
type MetricStats struct {
	Min     Extremum `json:"min"`
	Max     Extremum `json:"max"`
	Average float64  `json:"avg"`
	Count   int      `json:"count"`
}

// StatResult is the statistics page payload: numeric summaries plus the
// nine legacy display strings.
type StatResult struct {
	Selector string `json:"selected_timespan"`
	Label    string `json:"header_timespan"`

	Humidity         MetricStats `json:"humidity"`
	Pressure         MetricStats `json:"pressure"`
	TempFromHumidity MetricStats `json:"temp_hum"`

	MinHumidity         string `json:"min_humidity"`
	MaxHumidity         string `json:"max_humidity"`
	AvgHumidity         string `json:"avg_humidity"`
	MinPressure         string `json:"min_pressure"`
	MaxPressure         string `json:"max_pressure"`
	AvgPressure         string `json:"avg_pressure"`
	MinTempFromHumidity string `json:"min_temp_hum"`
	MaxTempFromHumidity string `json:"max_temp_hum"`
	AvgTempFromHumidity string `json:"avg_temp_hum"`
}
