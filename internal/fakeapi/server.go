// Package fakeapi serves synthetic OCDS release packages with cursor
// pagination and scripted failures. Tests mount it on httptest servers and
// cmd/fake-api runs it standalone for local development.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tenderwatch/internal/domain/model"
)

// Default generator constants.
const (
	defaultPages      = 3
	defaultPerPage    = 5
	defaultMatchEvery = 2
	cursorPrefix      = "page-"
)

// ocidNamespace seeds deterministic OCIDs.
var ocidNamespace = uuid.MustParse("6f1c7d8e-2b1a-4c59-9a55-0f3a8e2d4b11") //nolint:gochecknoglobals // constant namespace

// Request is one request observed by the server.
type Request struct {
	Query      url.Values
	RequestID  string
	ReceivedAt time.Time
}

// Server is an http.Handler imitating the release package endpoint.
type Server struct {
	pages      int
	perPage    int
	matchEvery int
	nextAsURL  bool
	retryAfter string
	now        func() time.Time

	mu       sync.Mutex
	script   []int
	requests []Request
	hits     atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithPages sets how many pages the generator offers before the cursor runs out.
func WithPages(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pages = n
		}
	}
}

// WithPerPage sets the releases per page.
func WithPerPage(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.perPage = n
		}
	}
}

// WithMatchEvery makes every nth release mention BNSSG; 0 disables matches.
func WithMatchEvery(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.matchEvery = n
		}
	}
}

// WithNextAsURL returns links.next as a full URL instead of a bare cursor.
func WithNextAsURL(on bool) Option {
	return func(s *Server) { s.nextAsURL = on }
}

// WithRetryAfter sets the Retry-After header sent with scripted 429s.
// An empty value omits the header.
func WithRetryAfter(v string) Option {
	return func(s *Server) { s.retryAfter = v }
}

// WithClock sets the time source for generated dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScript queues status codes answered, in order, before normal pages.
// Use 0 for "answer normally" and -1 for a body without a releases array.
func WithScript(statuses ...int) Option {
	return func(s *Server) { s.script = append(s.script, statuses...) }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		pages:      defaultPages,
		perPage:    defaultPerPage,
		matchEvery: defaultMatchEvery,
		retryAfter: "1",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Script appends status codes to answer before normal pages.
func (s *Server) Script(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, statuses...)
}

// Hits returns the number of requests served.
func (s *Server) Hits() int {
	return int(s.hits.Load())
}

// Requests returns a copy of the observed requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.hits.Add(1)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Query:      r.URL.Query(),
		RequestID:  r.Header.Get("X-Request-ID"),
		ReceivedAt: s.now(),
	})
	status := 0
	if len(s.script) > 0 {
		status = s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()

	switch {
	case status == http.StatusTooManyRequests:
		if s.retryAfter != "" {
			w.Header().Set("Retry-After", s.retryAfter)
		}
		w.WriteHeader(status)
		return
	case status == -1:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"links":{}}`))
		return
	case status > 0:
		w.WriteHeader(status)
		return
	}

	page := pageFromCursor(r.URL.Query().Get("cursor"))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Page(page, r))
}

func pageFromCursor(cursor string) int {
	if len(cursor) <= len(cursorPrefix) {
		return 1
	}
	n, err := strconv.Atoi(cursor[len(cursorPrefix):])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Page builds page n (1-based). r may be nil; it is only used to build
// absolute next links.
func (s *Server) Page(n int, r *http.Request) model.ReleasePackage {
	releases := make([]model.Release, 0, s.perPage)
	if n <= s.pages {
		for i := 0; i < s.perPage; i++ {
			releases = append(releases, s.Release(n, i))
		}
	}

	pkg := model.ReleasePackage{Releases: &releases}
	if n < s.pages {
		next := cursorPrefix + strconv.Itoa(n+1)
		if s.nextAsURL && r != nil {
			u := *r.URL
			u.Scheme = "http"
			u.Host = r.Host
			q := u.Query()
			q.Set("cursor", next)
			u.RawQuery = q.Encode()
			next = u.String()
		}
		pkg.Links.Next = next
	}
	return pkg
}

// Release generates the i-th release of page n deterministically.
func (s *Server) Release(n, i int) model.Release {
	seq := (n-1)*s.perPage + i
	id := fmt.Sprintf("rel-%03d-%03d", n, i)
	published := s.now().Add(-time.Duration(seq) * time.Hour).UTC()
	deadline := published.Add(time.Duration(5+seq%40) * 24 * time.Hour)
	amount := float64(10_000 * (1 + seq%150))

	r := model.Release{
		ID:   id,
		OCID: "ocds-fake-" + uuid.NewSHA1(ocidNamespace, []byte(id)).String(),
		Date: published.Format(time.RFC3339),
		Tag:  []string{"tender"},
		Parties: []model.Party{{
			Name:    fmt.Sprintf("Council %d", seq%7),
			Roles:   []string{"buyer"},
			Address: &model.Address{Locality: "Leeds", CountryName: "United Kingdom"},
		}},
		Tender: &model.TenderInfo{
			Title:        fmt.Sprintf("Synthetic tender %d", seq),
			Description:  "Generated notice for local testing",
			Status:       "active",
			TenderPeriod: &model.Period{EndDate: deadline.Format(time.RFC3339)},
		},
	}
	if seq%5 != 4 {
		r.Tender.Value = &model.Amount{Amount: &amount, Currency: "GBP"}
	}
	if s.matchEvery > 0 && seq%s.matchEvery == 0 {
		r.Parties = append(r.Parties, model.Party{
			Name:    "NHS BNSSG Integrated Care Board",
			Address: &model.Address{Locality: "Bristol", PostalCode: "BS1 3NX"},
		})
	}
	return r
}

// Matching returns how many releases across all pages mention BNSSG.
func (s *Server) Matching() int {
	if s.matchEvery == 0 {
		return 0
	}
	total := s.pages * s.perPage
	return (total + s.matchEvery - 1) / s.matchEvery
}
