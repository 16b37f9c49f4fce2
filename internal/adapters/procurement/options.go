package procurement

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/tenderwatch/pkg/logger"
)

// Waiter blocks for d or until ctx is done.
type Waiter func(ctx context.Context, d time.Duration) error

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout bounds each request when the default HTTP client is used.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithPageSize sets the limit parameter.
func WithPageSize(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.pageSize = n
		}
	}
}

// WithMaxPages caps the number of pages per FetchAll.
func WithMaxPages(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxPages = n
		}
	}
}

// WithLookbackDays sets how far back updatedFrom reaches.
func WithLookbackDays(days int) Option {
	return func(cl *Client) {
		if days > 0 {
			cl.lookback = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithDefaultRetryAfter sets the wait used when a 429 has no usable Retry-After header.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.defaultRetryAfter = d
		}
	}
}

// WithWaiter replaces the rate-limit wait, e.g. to avoid sleeping in tests.
func WithWaiter(w Waiter) Option {
	return func(cl *Client) {
		if w != nil {
			cl.wait = w
		}
	}
}

// WithClock sets the time source for updatedFrom.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}
