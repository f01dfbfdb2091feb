package types

import (
	"fmt"
	"strings"
	"time"
)

// TimeWindow is a trailing duration ending at query time.
type TimeWindow int

const (
	Day TimeWindow = iota + 1
	Week
	Month
)

const secondsInDay = 86400

type windowInfo struct {
	selector string
	seconds  int64
	label    string
}

var windows = map[TimeWindow]windowInfo{
	Day:   {selector: "day", seconds: secondsInDay, label: "Last 24 hours"},
	Week:  {selector: "week", seconds: secondsInDay * 7, label: "Last 7 days"},
	Month: {selector: "month", seconds: secondsInDay * 30, label: "Last 30 days"},
}

// ParseWindow maps a selector to a TimeWindow. The match is exact: unknown
// selectors, including "", are rejected rather than defaulted.
func ParseWindow(selector string) (TimeWindow, error) {
	for w, info := range windows {
		if info.selector == selector {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidWindowSelector, selector, Selectors())
}

// AllWindows returns the windows in ascending duration.
func AllWindows() []TimeWindow {
	return []TimeWindow{Day, Week, Month}
}

func (w TimeWindow) Seconds() int64 { return windows[w].seconds }

func (w TimeWindow) Duration() time.Duration {
	return time.Duration(windows[w].seconds) * time.Second
}

// Label is the human heading, e.g. "Last 24 hours".
func (w TimeWindow) Label() string { return windows[w].label }

// String returns the selector form ("day", "week", "month").
func (w TimeWindow) String() string {
	if info, ok := windows[w]; ok {
		return info.selector
	}
	return fmt.Sprintf("TimeWindow(%d)", int(w))
}

// Valid reports whether w is one of the defined windows.
func (w TimeWindow) Valid() bool {
	_, ok := windows[w]
	return ok
}

// Selectors lists the accepted selector strings, for usage messages.
func Selectors() string {
	out := make([]string, 0, len(windows))
	for _, w := range AllWindows() {
		out = append(out, w.String())
	}
	return strings.Join(out, ", ")
}
