// Package view derives the filtered, sorted, display-ready tender list and
// the auxiliary values shown next to it.
package view

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidFilter is returned when a filter names an unknown bucket, window or sort key.
var ErrInvalidFilter = errors.New("invalid filter")

// DeadlineWindow restricts records to those closing within a number of days.
type DeadlineWindow string

// Deadline windows.
const (
	WindowAll DeadlineWindow = "all"
	Window7d  DeadlineWindow = "7d"
	Window14d DeadlineWindow = "14d"
	Window30d DeadlineWindow = "30d"
)

// Duration returns the window length, or 0 for WindowAll.
func (w DeadlineWindow) Duration() time.Duration {
	switch w {
	case Window7d:
		return 7 * 24 * time.Hour
	case Window14d:
		return 14 * 24 * time.Hour
	case Window30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// SortKey selects the ordering of the view.
type SortKey string

// Sort keys.
const (
	SortPublished SortKey = "published"
	SortDeadline  SortKey = "deadline"
	SortValue     SortKey = "value"
)

// Filter is the user's current filter and sort selection.
type Filter struct {
	Query    string         `json:"q"`
	Buckets  []string       `json:"buckets"`
	Deadline DeadlineWindow `json:"deadline"`
	Sort     SortKey        `json:"sort"`
}

// DefaultFilter passes everything and sorts newest first.
func DefaultFilter() Filter {
	return Filter{Buckets: []string{}, Deadline: WindowAll, Sort: SortPublished}
}

// Validate checks the filter against the default value buckets.
func (f Filter) Validate() error {
	return f.validate(DefaultBuckets)
}

// Validate checks f against the model's value buckets.
func (m *Model) Validate(f Filter) error {
	return f.validate(m.buckets)
}

func (f Filter) validate(buckets []Bucket) error {
	switch f.Deadline {
	case WindowAll, Window7d, Window14d, Window30d:
	default:
		return fmt.Errorf("%w: unknown deadline window %q", ErrInvalidFilter, f.Deadline)
	}
	switch f.Sort {
	case SortPublished, SortDeadline, SortValue:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	for _, key := range f.Buckets {
		if _, ok := findBucket(buckets, key); !ok {
			return fmt.Errorf("%w: unknown value bucket %q", ErrInvalidFilter, key)
		}
	}
	return nil
}

// hasFilterParams reports whether the query string carried any filter parameter.
func hasFilterParams(q url.Values) bool {
	for _, k := range []string{"q", "bucket", "deadline", "sort"} {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// ParseFilter builds a Filter from query parameters q, bucket (repeatable or
// comma separated), deadline and sort. Missing parameters take defaults.
// The second result reports whether any filter parameter was present.
func ParseFilter(q url.Values) (Filter, bool, error) {
	return defaultModel.ParseFilter(q)
}

// ParseFilter is the Model variant of the package-level ParseFilter.
func (m *Model) ParseFilter(q url.Values) (Filter, bool, error) {
	f := DefaultFilter()
	present := hasFilterParams(q)

	f.Query = strings.TrimSpace(q.Get("q"))
	for _, raw := range q["bucket"] {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				f.Buckets = append(f.Buckets, key)
			}
		}
	}
	if d := strings.TrimSpace(q.Get("deadline")); d != "" {
		f.Deadline = DeadlineWindow(strings.ToLower(d))
	}
	if s := strings.TrimSpace(q.Get("sort")); s != "" {
		f.Sort = SortKey(strings.ToLower(s))
	}

	if err := f.validate(m.buckets); err != nil {
		return Filter{}, present, err
	}
	return f, present, nil
}
