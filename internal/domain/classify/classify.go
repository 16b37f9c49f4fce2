// Package classify decides whether a procurement notice is relevant by
// matching configured keyword phrases against its text fields.
package classify

import (
	"sort"
	"strings"
	"sync"

	"github.com/okian/tenderwatch/internal/domain/model"
)

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithKeywords replaces the keyword phrases. Blank phrases are ignored.
// An empty list leaves the current phrases in place.
func WithKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if kw := normalize(keywords); len(kw) > 0 {
			c.keywords = kw
		}
	}
}

// WithShowAll sets show-all mode, where every structurally valid record passes.
func WithShowAll(showAll bool) Option {
	return func(c *Classifier) {
		c.showAll = showAll
	}
}

// Classifier is a keyword membership predicate. Matching is a lowercase
// substring test and is not word-boundary aware, so "bnssg" also matches
// inside "xbnssgx".
type Classifier struct {
	mu       sync.RWMutex
	keywords []string // lowercased
	showAll  bool
}

// DefaultKeywords are used when no WithKeywords option is given.
var DefaultKeywords = []string{ //nolint:gochecknoglobals // read-only defaults
	"BNSSG",
	"Bristol, North Somerset and South Gloucestershire",
	"NHS Bristol",
	"Bristol ICB",
}

// New creates a Classifier with configuration options.
func New(opts ...Option) *Classifier {
	c := &Classifier{keywords: normalize(DefaultKeywords)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Matches reports whether the tender contains any keyword phrase, or true in show-all mode.
func (c *Classifier) Matches(t model.Tender) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.showAll {
		return true
	}
	blob := strings.ToLower(strings.Join(t.SearchFields(), " "))
	for _, kw := range c.keywords {
		if strings.Contains(blob, kw) {
			return true
		}
	}
	return false
}

// Filter converts releases to tenders, drops releases without a tender
// sub-object, keeps matches, and returns them newest first.
func (c *Classifier) Filter(releases []model.Release) []model.Tender {
	out := make([]model.Tender, 0, len(releases))
	for _, r := range releases {
		t, ok := r.ToTender()
		if !ok {
			continue
		}
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// ShowAll reports whether show-all mode is on.
func (c *Classifier) ShowAll() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showAll
}

// SetShowAll toggles show-all mode.
func (c *Classifier) SetShowAll(showAll bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showAll = showAll
}

// Keywords returns a copy of the lowercased keyword phrases.
func (c *Classifier) Keywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.keywords...)
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
