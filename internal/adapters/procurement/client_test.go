package procurement_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/tenderwatch/internal/adapters/procurement"
	"github.com/okian/tenderwatch/internal/fakeapi"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingWaiter captures requested waits without sleeping.
type recordingWaiter struct {
	waits []time.Duration
	err   error
}

func (w *recordingWaiter) wait(_ context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return w.err
}

var fixedNow = time.Date(2026, 4, 30, 9, 15, 0, 0, time.UTC)

func newClient(t *testing.T, url string, w *recordingWaiter, opts ...procurement.Option) *procurement.Client {
	t.Helper()
	opts = append([]procurement.Option{
		procurement.WithWaiter(w.wait),
		procurement.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	c, err := procurement.New(url+"/api/releases", opts...)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	Convey("Given invalid base URLs", t, func() {
		for _, raw := range []string{"", "not a url", "/relative/path", "://missing"} {
			_, err := procurement.New(raw)
			So(errors.Is(err, procurement.ErrInvalidURL), ShouldBeTrue)
		}
	})
}

func TestFetchAllPagination(t *testing.T) {
	Convey("Given an API with three pages", t, func() {
		api := fakeapi.New(fakeapi.WithPages(3), fakeapi.WithPerPage(4))
		srv := httptest.NewServer(api)
		defer srv.Close()
		w := &recordingWaiter{}
		c := newClient(t, srv.URL, w, procurement.WithPageSize(4), procurement.WithLookbackDays(30))

		res, err := c.FetchAll(context.Background())

		Convey("Then every page should be fetched", func() {
			So(err, ShouldBeNil)
			So(res.Pages, ShouldEqual, 3)
			So(len(res.Releases), ShouldEqual, 12)
			So(res.Truncated, ShouldBeFalse)
			So(api.Hits(), ShouldEqual, 3)
		})

		Convey("Then requests should carry the expected query", func() {
			reqs := api.Requests()
			So(len(reqs), ShouldEqual, 3)
			first := reqs[0].Query
			So(first.Get("stages"), ShouldEqual, "tender")
			So(first.Get("limit"), ShouldEqual, "4")
			So(first.Get("updatedFrom"), ShouldEqual, "2026-03-31T09:15:00")
			So(first.Has("cursor"), ShouldBeFalse)
			So(reqs[1].Query.Get("cursor"), ShouldEqual, "page-2")
			So(reqs[2].Query.Get("cursor"), ShouldEqual, "page-3")
			So(reqs[0].RequestID, ShouldNotBeEmpty)
			So(reqs[0].RequestID, ShouldNotEqual, reqs[1].RequestID)
		})
	})

	Convey("Given an API whose next links are full URLs", t, func() {
		api := fakeapi.New(fakeapi.WithPages(2), fakeapi.WithNextAsURL(true))
		srv := httptest.NewServer(api)
		defer srv.Close()
		c := newClient(t, srv.URL, &recordingWaiter{})

		res, err := c.FetchAll(context.Background())

		Convey("Then the cursor should be extracted from the URL", func() {
			So(err, ShouldBeNil)
			So(res.Pages, ShouldEqual, 2)
			So(api.Requests()[1].Query.Get("cursor"), ShouldEqual, "page-2")
		})
	})

	Convey("Given an API with eleven pages", t, func() {
		api := fakeapi.New(fakeapi.WithPages(11), fakeapi.WithPerPage(2))
		srv := httptest.NewServer(api)
		defer srv.Close()
		c := newClient(t, srv.URL, &recordingWaiter{})

		res, err := c.FetchAll(context.Background())

		Convey("Then exactly ten requests should be made and the cursor dropped", func() {
			So(err, ShouldBeNil)
			So(api.Hits(), ShouldEqual, 10)
			So(res.Pages, ShouldEqual, 10)
			So(res.Truncated, ShouldBeTrue)
			So(len(res.Releases), ShouldEqual, 20)
		})
	})

	Convey("Given an API repeating a release on consecutive pages", t, func() {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("cursor") == "" {
				_, _ = w.Write([]byte(`{"releases":[{"id":"a","tender":{"title":"first"}},{"id":"b"}],"links":{"next":"c2"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"releases":[{"id":"a","tender":{"title":"again"}},{"id":"c"}],"links":{}}`))
		}))
		defer srv.Close()
		c := newClient(t, srv.URL, &recordingWaiter{})

		res, err := c.FetchAll(context.Background())

		Convey("Then the first occurrence should win", func() {
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 2)
			So(len(res.Releases), ShouldEqual, 3)
			So(res.Duplicates, ShouldEqual, 1)
			So(res.Releases[0].Tender.Title, ShouldEqual, "first")
		})
	})
}

func TestFetchAllRateLimit(t *testing.T) {
	Convey("Given an API that rate limits the first request with Retry-After 5", t, func() {
		api := fakeapi.New(fakeapi.WithPages(1), fakeapi.WithRetryAfter("5"), fakeapi.WithScript(http.StatusTooManyRequests))
		srv := httptest.NewServer(api)
		defer srv.Close()
		w := &recordingWaiter{}
		c := newClient(t, srv.URL, w)

		res, err := c.FetchAll(context.Background())

		Convey("Then it should wait five seconds and retry once", func() {
			So(err, ShouldBeNil)
			So(w.waits, ShouldResemble, []time.Duration{5 * time.Second})
			So(api.Hits(), ShouldEqual, 2)
			So(res.Pages, ShouldEqual, 1)
		})
	})

	Convey("Given an API that rate limits twice", t, func() {
		api := fakeapi.New(fakeapi.WithRetryAfter("5"),
			fakeapi.WithScript(http.StatusTooManyRequests, http.StatusTooManyRequests))
		srv := httptest.NewServer(api)
		defer srv.Close()
		w := &recordingWaiter{}
		c := newClient(t, srv.URL, w)

		_, err := c.FetchAll(context.Background())

		Convey("Then the second 429 should be terminal", func() {
			So(errors.Is(err, procurement.ErrRateLimited), ShouldBeTrue)
			var fe *procurement.FetchError
			So(errors.As(err, &fe), ShouldBeTrue)
			So(fe.RetryAfter, ShouldEqual, 5*time.Second)
			So(fe.Retried, ShouldBeTrue)
			So(len(w.waits), ShouldEqual, 1)
			So(api.Hits(), ShouldEqual, 2)
			So(procurement.Message(err), ShouldEqual, "API rate limit exceeded. Please try again in 5 seconds.")
		})
	})

	Convey("Given a 429 without Retry-After", t, func() {
		api := fakeapi.New(fakeapi.WithRetryAfter(""), fakeapi.WithScript(http.StatusTooManyRequests))
		srv := httptest.NewServer(api)
		defer srv.Close()
		w := &recordingWaiter{}
		c := newClient(t, srv.URL, w, procurement.WithDefaultRetryAfter(42*time.Second))

		_, err := c.FetchAll(context.Background())

		Convey("Then the default wait should be used", func() {
			So(err, ShouldBeNil)
			So(w.waits, ShouldResemble, []time.Duration{42 * time.Second})
		})
	})

	Convey("Given a waiter interrupted by cancellation", t, func() {
		api := fakeapi.New(fakeapi.WithScript(http.StatusTooManyRequests))
		srv := httptest.NewServer(api)
		defer srv.Close()
		w := &recordingWaiter{err: context.Canceled}
		c := newClient(t, srv.URL, w)

		_, err := c.FetchAll(context.Background())

		Convey("Then the cancellation should be returned without a retry", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(api.Hits(), ShouldEqual, 1)
		})
	})
}

func TestFetchAllFailures(t *testing.T) {
	Convey("Given an API answering 503", t, func() {
		api := fakeapi.New(fakeapi.WithScript(http.StatusServiceUnavailable))
		srv := httptest.NewServer(api)
		defer srv.Close()

		_, err := newClient(t, srv.URL, &recordingWaiter{}).FetchAll(context.Background())

		Convey("Then an HTTP error with the status should be returned", func() {
			So(errors.Is(err, procurement.ErrHTTP), ShouldBeTrue)
			var fe *procurement.FetchError
			So(errors.As(err, &fe), ShouldBeTrue)
			So(fe.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			So(procurement.Message(err), ShouldEqual, "API request failed: 503 Service Unavailable")
		})
	})

	Convey("Given an API whose second page fails", t, func() {
		api := fakeapi.New(fakeapi.WithPages(3), fakeapi.WithScript(0, http.StatusInternalServerError))
		srv := httptest.NewServer(api)
		defer srv.Close()

		res, err := newClient(t, srv.URL, &recordingWaiter{}).FetchAll(context.Background())

		Convey("Then the whole fetch should fail without partial results", func() {
			So(errors.Is(err, procurement.ErrHTTP), ShouldBeTrue)
			So(res.Releases, ShouldBeEmpty)
		})
	})

	Convey("Given a body without a releases array", t, func() {
		api := fakeapi.New(fakeapi.WithScript(-1))
		srv := httptest.NewServer(api)
		defer srv.Close()

		_, err := newClient(t, srv.URL, &recordingWaiter{}).FetchAll(context.Background())

		Convey("Then a parse error should be returned", func() {
			So(errors.Is(err, procurement.ErrParse), ShouldBeTrue)
			So(procurement.Message(err), ShouldEqual, "Invalid API response format")
		})
	})

	Convey("Given a body that is not JSON", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL, &recordingWaiter{}).FetchAll(context.Background())

		Convey("Then a parse error should be returned", func() {
			So(errors.Is(err, procurement.ErrParse), ShouldBeTrue)
			So(errors.Is(err, procurement.ErrHTTP), ShouldBeFalse)
		})
	})

	Convey("Given an unreachable API", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newClient(t, url, &recordingWaiter{}).FetchAll(context.Background())

		Convey("Then an offline error should be returned", func() {
			So(errors.Is(err, procurement.ErrOffline), ShouldBeTrue)
			So(procurement.Message(err), ShouldContainSubstring, "Unable to reach")
		})
	})

	Convey("Given a cancelled context", t, func() {
		api := fakeapi.New()
		srv := httptest.NewServer(api)
		defer srv.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newClient(t, srv.URL, &recordingWaiter{}).FetchAll(ctx)

		Convey("Then the context error should be returned as is", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(errors.Is(err, procurement.ErrOffline), ShouldBeFalse)
		})
	})
}

func TestNextCursor(t *testing.T) {
	Convey("Given links.next values", t, func() {
		cases := []struct {
			in, want string
		}{
			{"", ""},
			{"   ", ""},
			{"abc123", "abc123"},
			{"https://api.example/releases?cursor=xyz&limit=100", "xyz"},
			{"https://api.example/releases?limit=100", ""},
		}
		for _, tc := range cases {
			So(procurement.NextCursor(tc.in), ShouldEqual, tc.want)
		}
	})
}

func TestMessage(t *testing.T) {
	Convey("Given errors of every kind", t, func() {
		So(procurement.Message(nil), ShouldBeEmpty)
		So(procurement.Message(errors.New("boom")), ShouldEqual, "Failed to fetch tenders: boom")
		So(procurement.Message(&procurement.FetchError{Kind: procurement.KindRateLimited, RetryAfter: 60 * time.Second}),
			ShouldEqual, "API rate limit exceeded. Please try again in 60 seconds.")
		So(procurement.Message(&procurement.FetchError{Kind: procurement.KindHTTP, StatusCode: 404}),
			ShouldEqual, "API request failed: 404 Not Found")
	})
}
