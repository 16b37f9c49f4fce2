package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tenderwatch/internal/fakeapi"
)

// run executes the root command with args and returns what it printed.
func run(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a fake procurement API and an empty cache", t, func() {
		api := fakeapi.New(fakeapi.WithPages(2), fakeapi.WithPerPage(4), fakeapi.WithMatchEvery(2))
		srv := httptest.NewServer(api)
		convey.Reset(srv.Close)

		dir := t.TempDir()
		t.Setenv("TENDERWATCH_API_BASE_URL", srv.URL+"/api/releases")
		t.Setenv("TENDERWATCH_CACHE_PATH", filepath.Join(dir, "tenders.db"))
		t.Setenv("TENDERWATCH_LOG_LEVEL", "error")

		convey.Convey("When fetch is run twice", func() {
			first, err1 := run("fetch")
			second, err2 := run("fetch")

			convey.Convey("Then the second run should use the cache", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(first, convey.ShouldContainSubstring, "Fetched 2 pages, 4 matching tenders.")
				convey.So(err2, convey.ShouldBeNil)
				convey.So(second, convey.ShouldContainSubstring, "Cache is fresh: 4 tenders")
				convey.So(api.Hits(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When fetch is forced after a fetch", func() {
			_, _ = run("fetch")
			_, err := run("fetch", "--force")

			convey.Convey("Then the API should be called again", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(api.Hits(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the API fails and there is no cache", func() {
			api.Script(http.StatusServiceUnavailable)
			_, err := run("fetch")

			convey.Convey("Then the user message should be the error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldEqual, "API request failed: 503 Service Unavailable")
			})
		})

		convey.Convey("When the list is filtered by value", func() {
			out, err := run("list", "--bucket", "unknown", "--sort", "deadline")

			convey.Convey("Then only tenders without a value should be printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "of 4 tenders")
				convey.So(out, convey.ShouldContainSubstring, "value unknown")
				convey.So(out, convey.ShouldNotContainSubstring, "£")
			})
		})

		convey.Convey("When the list names an unknown bucket", func() {
			_, err := run("list", "--bucket", "huge")

			convey.Convey("Then it should fail before fetching", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "huge")
				convey.So(api.Hits(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When exporting into a directory", func() {
			out, err := run("export", "-o", dir)
			matches, _ := filepath.Glob(filepath.Join(dir, "BNSSG_Tenders_*.csv"))

			convey.Convey("Then a dated CSV should be written there", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(matches), convey.ShouldEqual, 1)
				convey.So(out, convey.ShouldContainSubstring, matches[0])
				data, rerr := os.ReadFile(matches[0])
				convey.So(rerr, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(string(data)), "\n")
				convey.So(lines[0], convey.ShouldEqual, "Title,Organization,Notice ID,Value,Currency,Deadline,Published Date,Link")
				convey.So(len(lines), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When exporting to stdout with a search", func() {
			out, err := run("export", "-o", "-", "-q", "no such tender")

			convey.Convey("Then only the header should be printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(strings.TrimSpace(out), convey.ShouldStartWith, "Title,Organization")
				convey.So(strings.Count(out, "\n"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When debug mode is switched on", func() {
			_, err := run("prefs", "--debug-mode")
			out, _ := run("prefs")

			convey.Convey("Then it should persist and email alerts stay off", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "debug_mode:   true")
				convey.So(out, convey.ShouldContainSubstring, "email_alerts: false")
			})
		})

		convey.Convey("When the HTTP surface is built", func() {
			e, err := bootstrap(context.Background(), &globalFlags{}, io.Discard)
			convey.So(err, convey.ShouldBeNil)
			convey.Reset(e.Close)
			mux := newMux(context.Background(), e)

			get := func(target string) int {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
				return w.Code
			}

			convey.Convey("Then every route should answer", func() {
				convey.So(get("/"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/tenders"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/tenders.csv"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/preferences"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api/debug"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/stats"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/healthz"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/api-docs"), convey.ShouldEqual, http.StatusOK)
				convey.So(get("/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestVersion(t *testing.T) {
	convey.Convey("Given the version command", t, func() {
		out, err := run("version")

		convey.Convey("Then it should print the build information", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "tenderwatch dev")
		})
	})
}

func TestInvalidConfig(t *testing.T) {
	convey.Convey("Given an invalid page size in the environment", t, func() {
		t.Setenv("TENDERWATCH_CACHE_PATH", filepath.Join(t.TempDir(), "tenders.db"))
		t.Setenv("TENDERWATCH_PAGE_SIZE", "0")
		_, err := run("prefs")

		convey.Convey("Then the command should fail on configuration", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "page_size")
		})
	})
}
