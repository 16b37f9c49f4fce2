package view

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tenderwatch/internal/domain/model"
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithBuckets replaces the value buckets. An empty list keeps the defaults.
func WithBuckets(buckets []Bucket) Option {
	return func(m *Model) {
		if len(buckets) > 0 {
			m.buckets = append([]Bucket(nil), buckets...)
		}
	}
}

// WithSoonWindow sets how many days ahead a deadline counts as soon.
func WithSoonWindow(days int) Option {
	return func(m *Model) {
		if days > 0 {
			m.soonDays = days
		}
	}
}

// Model holds the enumerated configuration the view is derived with.
// It carries no dataset state; every call is a pure function of its inputs.
type Model struct {
	buckets  []Bucket
	soonDays int
}

const defaultSoonDays = 14

var defaultModel = New() //nolint:gochecknoglobals // stateless default

// New creates a Model with configuration options.
func New(opts ...Option) *Model {
	m := &Model{
		buckets:  DefaultBuckets,
		soonDays: defaultSoonDays,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Buckets returns the configured value buckets.
func (m *Model) Buckets() []Bucket {
	return append([]Bucket(nil), m.buckets...)
}

// Apply filters and sorts tenders with the default model.
func Apply(tenders []model.Tender, f Filter, now time.Time) []model.Tender {
	return defaultModel.Apply(tenders, f, now)
}

// Apply returns the tenders passing every filter, sorted by f.Sort. The
// input slice is not modified.
func (m *Model) Apply(tenders []model.Tender, f Filter, now time.Time) []model.Tender {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	selected := make([]Bucket, 0, len(f.Buckets))
	for _, key := range f.Buckets {
		if b, ok := findBucket(m.buckets, key); ok {
			selected = append(selected, b)
		}
	}

	out := make([]model.Tender, 0, len(tenders))
	for _, t := range tenders {
		if !matchesQuery(t, query) || !matchesBuckets(t, selected) || !matchesWindow(t, f.Deadline, now) {
			continue
		}
		out = append(out, t)
	}
	Sort(out, f.Sort)
	return out
}

func matchesQuery(t model.Tender, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query) ||
		strings.Contains(strings.ToLower(t.BuyerName), query)
}

// matchesBuckets is an OR across the selection; an empty selection passes.
func matchesBuckets(t model.Tender, selected []Bucket) bool {
	if len(selected) == 0 {
		return true
	}
	for _, b := range selected {
		if b.Contains(t) {
			return true
		}
	}
	return false
}

// matchesWindow requires 0 <= deadline-now <= window for any window but all.
func matchesWindow(t model.Tender, w DeadlineWindow, now time.Time) bool {
	window := w.Duration()
	if window == 0 {
		return true
	}
	if t.Deadline == nil {
		return false
	}
	until := t.Deadline.Sub(now)
	return until >= 0 && until <= window
}

// Sort orders tenders in place. All orderings are stable.
//   - published: newest first
//   - deadline: soonest first, missing deadlines last
//   - value: largest first, missing values count as zero
func Sort(tenders []model.Tender, key SortKey) {
	switch key {
	case SortDeadline:
		sort.SliceStable(tenders, func(i, j int) bool {
			a, b := tenders[i].Deadline, tenders[j].Deadline
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.Before(*b)
			}
		})
	case SortValue:
		sort.SliceStable(tenders, func(i, j int) bool {
			a, _ := tenders[i].ValueAmount()
			b, _ := tenders[j].ValueAmount()
			return a > b
		})
	default:
		sort.SliceStable(tenders, func(i, j int) bool {
			return tenders[i].PublishedAt.After(tenders[j].PublishedAt)
		})
	}
}

// DeadlineSoon reports whether the deadline is between 0 and 14 whole days
// away, counting partial days up.
func DeadlineSoon(deadline *time.Time, now time.Time) bool {
	return defaultModel.DeadlineSoon(deadline, now)
}

// DeadlineSoon is the Model variant of the package-level DeadlineSoon.
func (m *Model) DeadlineSoon(deadline *time.Time, now time.Time) bool {
	if deadline == nil {
		return false
	}
	days := math.Ceil(deadline.Sub(now).Hours() / 24)
	return days >= 0 && days <= float64(m.soonDays)
}

// RelativeTime renders t relative to now: "just now", "N minutes ago",
// "N hours ago", "N days ago", or the date itself once older than 7 days.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d <= 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	default:
		return t.Format(DisplayDateLayout)
	}
}

// DisplayDateLayout is the absolute date format used on the dashboard.
const DisplayDateLayout = "02 Jan 2006"

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// DateRange is the span of publication dates in a dataset.
type DateRange struct {
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

// String renders the range as "01 Mar 2026 - 05 Mar 2026".
func (r DateRange) String() string {
	return r.Oldest.Format(DisplayDateLayout) + " - " + r.Newest.Format(DisplayDateLayout)
}

// DateRangeOf returns the min and max publication dates, ignoring records
// without one. ok is false when no record has a date.
func DateRangeOf(tenders []model.Tender) (DateRange, bool) {
	var r DateRange
	found := false
	for _, t := range tenders {
		if t.PublishedAt.IsZero() {
			continue
		}
		if !found || t.PublishedAt.Before(r.Oldest) {
			r.Oldest = t.PublishedAt
		}
		if !found || t.PublishedAt.After(r.Newest) {
			r.Newest = t.PublishedAt
		}
		found = true
	}
	return r, found
}
