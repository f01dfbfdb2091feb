package aggregation

import (
	"strconv"
	"time"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

const (
	chartLayout = "2006-01-02 15:04"
	statsLayout = "02-01-2006 15:04"
)

const (
	unitHumidity    = "% RH"
	unitPressure    = " hPa"
	unitTemperature = " °C"
)

func chartLabel(epoch int64, loc *time.Location) string {
	return time.Unix(epoch, 0).In(loc).Format(chartLayout)
}

func statsTime(epoch int64, loc *time.Location) string {
	return time.Unix(epoch, 0).In(loc).Format(statsLayout)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// extremumText renders e.g. "45.0% RH at 18-10-2026 12:00".
func extremumText(e types.Extremum, unit string) string {
	return formatValue(e.Value) + unit + " at " + e.At
}

func averageText(v float64, unit string) string {
	return formatValue(v) + unit
}
