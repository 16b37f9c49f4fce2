package repository

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrNotFound     = errors.New("snapshot not found")
	ErrCacheCorrupt = errors.New("cached snapshot is corrupt")
	ErrStoreClosed  = errors.New("store closed")
)
