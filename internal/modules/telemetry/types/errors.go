package types

import "errors"

var (
	// ErrStorageUnavailable is a transient I/O or lock failure of the store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSchema means the persisted table has an incompatible shape. Fatal.
	ErrSchema = errors.New("schema error")
	// ErrSensorUnavailable is a transient sensor read failure.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrInvalidWindowSelector is returned for anything but day, week or month.
	ErrInvalidWindowSelector = errors.New("invalid window selector")
	// ErrEmptyWindow means statistics were requested over zero records.
	ErrEmptyWindow = errors.New("no readings in window")
)
