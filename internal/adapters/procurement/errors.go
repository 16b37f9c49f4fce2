package procurement

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a fetch failure.
type Kind int

// Fetch failure kinds.
const (
	KindOffline Kind = iota + 1
	KindRateLimited
	KindHTTP
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinel kinds for fetch errors; a *FetchError matches the sentinel of its Kind.
var (
	ErrOffline     = errors.New("procurement api unreachable")
	ErrRateLimited = errors.New("procurement api rate limited")
	ErrHTTP        = errors.New("procurement api returned an error status")
	ErrParse       = errors.New("procurement api response malformed")
	ErrInvalidURL  = errors.New("invalid procurement api url")
)

// FetchError is returned for every failed request to the procurement API.
type FetchError struct {
	Kind       Kind
	StatusCode int
	RetryAfter time.Duration
	// Retried is set on a rate limit that persisted through the client's own
	// retry of the request.
	Retried bool
	Err     error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	case KindHTTP:
		return fmt.Sprintf("request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the Kind.
func (e *FetchError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *FetchError) sentinel() error {
	switch e.Kind {
	case KindOffline:
		return ErrOffline
	case KindRateLimited:
		return ErrRateLimited
	case KindHTTP:
		return ErrHTTP
	case KindParse:
		return ErrParse
	default:
		return nil
	}
}

// Message translates a fetch error into text suitable for showing to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		return "Failed to fetch tenders: " + err.Error()
	}
	switch fe.Kind {
	case KindOffline:
		return "Unable to reach Find a Tender. Check your connection and try again."
	case KindRateLimited:
		return fmt.Sprintf("API rate limit exceeded. Please try again in %d seconds.", int(fe.RetryAfter.Round(time.Second)/time.Second))
	case KindHTTP:
		return fmt.Sprintf("API request failed: %d %s", fe.StatusCode, http.StatusText(fe.StatusCode))
	case KindParse:
		return "Invalid API response format"
	default:
		return "Failed to fetch tenders"
	}
}
