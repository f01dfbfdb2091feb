package controller

import (
	"fmt"
	"net/http"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

const (
	queryParamWindow = "timespan"
	formFieldWindow  = "timespan_select"
)

// parseWindow reads the window selector from the timespan query parameter or
// the timespan_select form field. A GET carrying neither gets the day window.
// A form submission must name its selector; a missing or unknown one is an
// error.
func parseWindow(r *http.Request) (types.TimeWindow, error) {
	if vals, ok := r.URL.Query()[queryParamWindow]; ok {
		return types.ParseWindow(vals[0])
	}
	if r.Method != http.MethodPost {
		return types.Day, nil
	}
	if err := r.ParseForm(); err != nil {
		return 0, fmt.Errorf("%w: unreadable form", types.ErrInvalidWindowSelector)
	}
	vals, ok := r.PostForm[formFieldWindow]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s (allowed: %s)",
			types.ErrInvalidWindowSelector, formFieldWindow, types.Selectors())
	}
	return types.ParseWindow(vals[0])
}
