// Package repository persists the last good tender snapshot and the user
// preferences in a local single-slot key-value store.
package repository

import (
	"context"
	"time"

	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/internal/domain/types"
)

// Slot keys in the meta table.
const (
	KeyTenders      = "tenders"
	KeyTimestamp    = "tenders_timestamp"
	KeyEmailAlerts  = "pref_email_alerts"
	KeyDebugMode    = "pref_debug_mode"
	boolTrue        = "true"
	boolFalse       = "false"
	cacheReadHit    = "hit"
	cacheReadMiss   = "miss"
	cacheReadBroken = "corrupt"
)

// Snapshot is the classified tender list of the last successful fetch.
type Snapshot struct {
	Tenders    []model.Tender
	CapturedAt time.Time
}

// Age returns how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// Stats describes the stored snapshot.
type Stats struct {
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	Records    int       `json:"records"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	HasData    bool      `json:"has_data"`
}

// Store provides read/write access to the snapshot and preferences.
// Writes are last-write-wins and nothing expires on its own.
type Store interface {
	// Read returns the stored snapshot. Returns ErrNotFound if there is none
	// or if the stored payload cannot be decoded (the error then also wraps
	// ErrCacheCorrupt).
	Read(ctx context.Context) (Snapshot, error)

	// Write replaces the stored snapshot.
	Write(ctx context.Context, s Snapshot) error

	// Clear drops the stored snapshot, keeping preferences.
	Clear(ctx context.Context) error

	// Preferences returns the persisted toggles; unset slots read as false.
	Preferences(ctx context.Context) (types.Preferences, error)

	// SetPreferences persists both toggles.
	SetPreferences(ctx context.Context, p types.Preferences) error

	// Stats reports the size and contents of the store.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
