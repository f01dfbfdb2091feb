package repository

import (
	"context"
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
)

// classify maps a driver error onto types.ErrSchema or types.ErrStorageUnavailable.
func classify(err error) error {
	if errors.Is(err, types.ErrSchema) {
		return types.ErrSchema
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrError:
			if isSchemaMessage(se.Error()) {
				return types.ErrSchema
			}
		case sqlite3.ErrMismatch:
			return types.ErrSchema
		}
	}
	return types.ErrStorageUnavailable
}

// retryable reports whether a write may succeed if attempted again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrProtocol, sqlite3.ErrSchema:
		return true
	}
	return false
}

func isSchemaMessage(msg string) bool {
	for _, s := range []string{"no such table", "no such column", "has no column named", "values were supplied"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
