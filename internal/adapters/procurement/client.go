// Package procurement is the HTTP client for the Find a Tender OCDS release
// package API. It follows cursor pagination up to a page cap and retries a
// rate-limited request once after the advertised wait.
package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tenderwatch/internal/domain/dedupe"
	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultPageSize          = 100
	defaultMaxPages          = 10
	defaultLookback          = 30 * 24 * time.Hour
	defaultRetryAfter        = 60 * time.Second
	defaultTimeout           = 30 * time.Second
	defaultUserAgent         = "tenderwatch"
	updatedFromLayout        = "2006-01-02T15:04:05"
	maxResponseBytes         = 32 << 20
	requestIDHeader          = "X-Request-ID"
	retryAfterHeader         = "Retry-After"
	paramStages, stageTender = "stages", "tender"
)

// Result is the outcome of a FetchAll run.
type Result struct {
	Releases []model.Release
	Pages    int
	// Truncated is set when the page cap was reached while the API still
	// offered a next cursor.
	Truncated bool
	// Duplicates counts releases dropped because their id was already seen.
	Duplicates int
}

// Client fetches release packages from the procurement API.
type Client struct {
	baseURL           *url.URL
	http              *http.Client
	timeout           time.Duration
	pageSize          int
	maxPages          int
	lookback          time.Duration
	defaultRetryAfter time.Duration
	wait              Waiter
	now               func() time.Time
	log               logger.Logger
	userAgent         string
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{
		baseURL:           u,
		timeout:           defaultTimeout,
		pageSize:          defaultPageSize,
		maxPages:          defaultMaxPages,
		lookback:          defaultLookback,
		defaultRetryAfter: defaultRetryAfter,
		wait:              sleep,
		now:               time.Now,
		log:               logger.Discard(),
		userAgent:         defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// sleep is the default Waiter.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchAll retrieves every release updated within the lookback window,
// following next cursors until none is returned or the page cap is hit.
// Releases repeated across pages are kept once, first occurrence wins.
func (c *Client) FetchAll(ctx context.Context) (Result, error) {
	updatedFrom := c.now().Add(-c.lookback).UTC().Format(updatedFromLayout)
	seen := dedupe.NewInMemoryDeduper()

	var res Result
	cursor := ""
	for page := 1; page <= c.maxPages; page++ {
		pkg, err := c.fetchPage(ctx, updatedFrom, cursor)
		if err != nil {
			return Result{}, err
		}
		releases := *pkg.Releases
		res.Pages = page
		metrics.RecordPageFetched(len(releases))

		for _, r := range releases {
			if r.ID != "" && seen.SeenAndRecord(r.ID) {
				res.Duplicates++
				continue
			}
			res.Releases = append(res.Releases, r)
		}

		next := NextCursor(pkg.Links.Next)
		c.log.Debug(ctx, "page fetched",
			logger.Int("page", page),
			logger.Int("releases", len(releases)),
			logger.Bool("has_next", next != ""))
		if next == "" {
			return res, nil
		}
		if page == c.maxPages {
			res.Truncated = true
			break
		}
		cursor = next
	}

	c.log.Info(ctx, "page cap reached, remaining pages skipped", logger.Int("max_pages", c.maxPages))
	return res, nil
}

// NextCursor extracts the cursor from a links.next value, which is either a
// full URL carrying a cursor query parameter or the bare cursor itself.
func NextCursor(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}
	if u, err := url.Parse(next); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Query().Get("cursor")
	}
	return next
}

// pageURL builds the request URL for one page.
func (c *Client) pageURL(updatedFrom, cursor string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set(paramStages, stageTender)
	q.Set("updatedFrom", updatedFrom)
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// fetchPage performs one page request, retrying once after a 429.
func (c *Client) fetchPage(ctx context.Context, updatedFrom, cursor string) (model.ReleasePackage, error) {
	target := c.pageURL(updatedFrom, cursor)

	pkg, err := c.do(ctx, target)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindRateLimited {
		return pkg, err
	}

	c.log.Warn(ctx, "rate limited, retrying once",
		logger.Duration("retry_after", fe.RetryAfter),
		logger.String("cursor", cursor))
	if werr := c.wait(ctx, fe.RetryAfter); werr != nil {
		return model.ReleasePackage{}, werr
	}

	pkg, err = c.do(ctx, target)
	if errors.As(err, &fe) && fe.Kind == KindRateLimited {
		fe.Retried = true
		c.log.Warn(ctx, "rate limited again, giving up", logger.Duration("retry_after", fe.RetryAfter))
	}
	return pkg, err
}

// do performs a single GET and decodes the body.
func (c *Client) do(ctx context.Context, target string) (model.ReleasePackage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.ReleasePackage{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("error", msSince(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ReleasePackage{}, ctxErr
		}
		metrics.RecordErrorByComponent("fetcher", KindOffline.String())
		return model.ReleasePackage{}, &FetchError{Kind: KindOffline, Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(strconv.Itoa(resp.StatusCode), msSince(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		metrics.RecordRateLimitHit()
		return model.ReleasePackage{}, &FetchError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: c.retryAfter(resp.Header.Get(retryAfterHeader)),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		metrics.RecordErrorByComponent("fetcher", KindHTTP.String())
		return model.ReleasePackage{}, &FetchError{Kind: KindHTTP, StatusCode: resp.StatusCode}
	}

	var pkg model.ReleasePackage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&pkg); err != nil {
		metrics.RecordErrorByComponent("fetcher", KindParse.String())
		return model.ReleasePackage{}, &FetchError{Kind: KindParse, StatusCode: resp.StatusCode, Err: err}
	}
	if pkg.Releases == nil {
		metrics.RecordErrorByComponent("fetcher", KindParse.String())
		return model.ReleasePackage{}, &FetchError{
			Kind:       KindParse,
			StatusCode: resp.StatusCode,
			Err:        errors.New("missing releases array"),
		}
	}
	return pkg, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func (c *Client) retryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return c.defaultRetryAfter
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return c.defaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := at.Sub(c.now()); d > 0 {
			return d
		}
		return 0
	}
	return c.defaultRetryAfter
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
