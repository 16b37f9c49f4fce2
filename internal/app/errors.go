package service

import "errors"

// Sentinel errors returned by the service.
var (
	// ErrNoData is returned when a fetch failed and no snapshot exists to fall back to.
	ErrNoData = errors.New("no tender data available")
)
