package config

import "errors"

var (
	// ErrInvalidTickInterval is returned when the tick interval is invalid.
	ErrInvalidTickInterval = errors.New("tick interval must be greater than 0")

	// ErrInvalidMaxFinished is returned when the runahead bound is invalid.
	ErrInvalidMaxFinished = errors.New("max finished must be greater than 0")

	// ErrInvalidDummyRate is returned when the dummy clock-rate multiplier is invalid.
	ErrInvalidDummyRate = errors.New("dummy rate must be greater than 0")
)
