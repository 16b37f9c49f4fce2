// Package types contains the display and transport shapes shared by the
// HTTP API, the CLI and the dashboard.
package types

import "time"

// TenderView is a tender prepared for display.
type TenderView struct {
	ID            string     `json:"id"`
	OCID          string     `json:"ocid,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Buyer         string     `json:"buyer"`
	Organizations []string   `json:"organizations,omitempty"`
	PublishedAt   time.Time  `json:"published_at"`
	Published     string     `json:"published"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	DeadlineSoon  bool       `json:"deadline_soon"`
	Value         *float64   `json:"value,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Bucket        string     `json:"bucket"`
	Status        string     `json:"status,omitempty"`
	Link          string     `json:"link"`
}

// DateRange is the publication date span of the full dataset.
type DateRange struct {
	Oldest  time.Time `json:"oldest"`
	Newest  time.Time `json:"newest"`
	Display string    `json:"display"`
}

// FilterView echoes the filter a response was computed with.
type FilterView struct {
	Query    string   `json:"q"`
	Buckets  []string `json:"buckets"`
	Deadline string   `json:"deadline"`
	Sort     string   `json:"sort"`
}

// TendersResponse is the body of GET /api/tenders and /api/refresh.
type TendersResponse struct {
	Tenders     []TenderView `json:"tenders"`
	Count       int          `json:"count"`
	Total       int          `json:"total"`
	LastUpdated *time.Time   `json:"last_updated"`
	Stale       bool         `json:"stale"`
	FromCache   bool         `json:"from_cache"`
	Error       string       `json:"error,omitempty"`
	DateRange   *DateRange   `json:"date_range,omitempty"`
	Filter      FilterView   `json:"filter"`
}

// Preferences are the persisted user toggles.
type Preferences struct {
	EmailAlerts bool `json:"email_alerts"`
	DebugMode   bool `json:"debug_mode"`
}
