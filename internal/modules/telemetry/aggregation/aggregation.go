// Package aggregation turns a window of stored readings into chart series and
// min/max/avg summaries.
package aggregation

import (
	"context"
	"fmt"
	"iter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// Scanner is the read side of the time-series store.
type Scanner interface {
	Scan(ctx context.Context, from, to int64) iter.Seq2[types.Reading, error]
}

type Options struct {
	// Now is the query clock. Defaults to time.Now.
	Now func() time.Time
	// Location is used for display timestamps. Defaults to time.Local.
	Location *time.Location
}

type Engine struct {
	store Scanner
	now   func() time.Time
	loc   *time.Location
}

func NewEngine(store Scanner, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{store: store, now: opts.Now, loc: opts.Location}
}

// bounds returns the closed interval [now-window, now] in epoch seconds.
func (e *Engine) bounds(w types.TimeWindow) (int64, int64, error) {
	if !w.Valid() {
		return 0, 0, fmt.Errorf("%w: %s", types.ErrInvalidWindowSelector, w)
	}
	to := e.now().Unix()
	return to - w.Seconds(), to, nil
}

// BuildSeries returns one chart point per reading in the window, in the order
// the readings were stored. An empty window yields empty slices.
func (e *Engine) BuildSeries(ctx context.Context, w types.TimeWindow) (types.SeriesResult, error) {
	from, to, err := e.bounds(w)
	if err != nil {
		return types.SeriesResult{}, err
	}
	res := types.SeriesResult{
		Selector:         w.String(),
		Label:            w.Label(),
		Labels:           []string{},
		Humidity:         []float64{},
		Pressure:         []float64{},
		TempFromHumidity: []float64{},
	}
	for r, err := range e.store.Scan(ctx, from, to) {
		if err != nil {
			return types.SeriesResult{}, fmt.Errorf("build series: %w", err)
		}
		res.Labels = append(res.Labels, chartLabel(r.Epoch, e.loc))
		res.Humidity = append(res.Humidity, r.Humidity)
		res.Pressure = append(res.Pressure, r.Pressure)
		res.TempFromHumidity = append(res.TempFromHumidity, r.TempFromHumidity)
	}
	return res, nil
}

// BuildStatistics summarizes humidity, pressure and temp_from_humidity over the
// window. temp_from_pressure is stored but not summarized. Returns
// types.ErrEmptyWindow when no reading falls in the window.
func (e *Engine) BuildStatistics(ctx context.Context, w types.TimeWindow) (types.StatResult, error) {
	from, to, err := e.bounds(w)
	if err != nil {
		return types.StatResult{}, err
	}

	var hum, prs, tmp accumulator
	for r, err := range e.store.Scan(ctx, from, to) {
		if err != nil {
			return types.StatResult{}, fmt.Errorf("build statistics: %w", err)
		}
		hum.add(r.Humidity, r.Epoch)
		prs.add(r.Pressure, r.Epoch)
		tmp.add(r.TempFromHumidity, r.Epoch)
	}
	if hum.count() == 0 {
		return types.StatResult{}, fmt.Errorf("build statistics %s: %w", w, types.ErrEmptyWindow)
	}

	res := types.StatResult{
		Selector:         w.String(),
		Label:            w.Label(),
		Humidity:         hum.stats(e.loc),
		Pressure:         prs.stats(e.loc),
		TempFromHumidity: tmp.stats(e.loc),
	}
	res.MinHumidity = extremumText(res.Humidity.Min, unitHumidity)
	res.MaxHumidity = extremumText(res.Humidity.Max, unitHumidity)
	res.AvgHumidity = averageText(res.Humidity.Average, unitHumidity)
	res.MinPressure = extremumText(res.Pressure.Min, unitPressure)
	res.MaxPressure = extremumText(res.Pressure.Max, unitPressure)
	res.AvgPressure = averageText(res.Pressure.Average, unitPressure)
	res.MinTempFromHumidity = extremumText(res.TempFromHumidity.Min, unitTemperature)
	res.MaxTempFromHumidity = extremumText(res.TempFromHumidity.Max, unitTemperature)
	res.AvgTempFromHumidity = averageText(res.TempFromHumidity.Average, unitTemperature)
	return res, nil
}

// accumulator tracks one metric. Extremes keep the first row that reached
// them; later equal values do not replace it.
type accumulator struct {
	values             []float64
	min, max           float64
	minEpoch, maxEpoch int64
}

func (a *accumulator) add(v float64, epoch int64) {
	if len(a.values) == 0 || v < a.min {
		a.min, a.minEpoch = v, epoch
	}
	if len(a.values) == 0 || v > a.max {
		a.max, a.maxEpoch = v, epoch
	}
	a.values = append(a.values, v)
}

func (a *accumulator) count() int { return len(a.values) }

func (a *accumulator) stats(loc *time.Location) types.MetricStats {
	return types.MetricStats{
		Min:     types.Extremum{Value: types.Round(a.min, 1), Epoch: a.minEpoch, At: statsTime(a.minEpoch, loc)},
		Max:     types.Extremum{Value: types.Round(a.max, 1), Epoch: a.maxEpoch, At: statsTime(a.maxEpoch, loc)},
		Average: types.Round(stat.Mean(a.values, nil), 1),
		Count:   len(a.values),
	}
}
