package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		Convey("When registering the site handler", func() {
			Register(ctx, mux)
			get := func(target string) *httptest.ResponseRecorder {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
				return w
			}

			Convey("Then it should serve the dashboard at /", func() {
				w := get("/")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-cache")
				So(w.Body.String(), ShouldContainSubstring, "BNSSG Tender Watch")
				So(w.Body.String(), ShouldContainSubstring, `/app.js`)
			})

			Convey("And it should serve the script and stylesheet", func() {
				js := get("/app.js")
				So(js.Code, ShouldEqual, http.StatusOK)
				So(js.Body.String(), ShouldContainSubstring, "/api/tenders")
				So(js.Header().Get("Cache-Control"), ShouldBeEmpty)

				css := get("/style.css")
				So(css.Code, ShouldEqual, http.StatusOK)
				So(css.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
			})

			Convey("And unknown assets should be not found", func() {
				So(get("/some-asset").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And more specific routes should win", func() {
				mux.HandleFunc("/api/tenders", func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusTeapot)
				})
				So(get("/api/tenders").Code, ShouldEqual, http.StatusTeapot)
			})

			Convey("And writes should be refused", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
			})
		})
	})
}

func TestSiteHandlerWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		ctx := context.Background()

		Convey("When registering the site handler", func() {
			Convey("Then it should panic", func() {
				So(func() {
					Register(ctx, nil)
				}, ShouldPanic)
			})
		})
	})
}
