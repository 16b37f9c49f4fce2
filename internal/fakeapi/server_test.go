package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/tenderwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServer(t *testing.T) {
	Convey("Given a fake API with two pages of four releases", t, func() {
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		s := New(WithPages(2), WithPerPage(4), WithClock(func() time.Time { return now }))

		get := func(target string) (*httptest.ResponseRecorder, model.ReleasePackage) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			var pkg model.ReleasePackage
			if rec.Code == http.StatusOK {
				_ = json.Unmarshal(rec.Body.Bytes(), &pkg)
			}
			return rec, pkg
		}

		Convey("When the first page is requested", func() {
			rec, pkg := get("/api/releases?limit=4")

			Convey("Then it should carry a bare next cursor", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(*pkg.Releases), ShouldEqual, 4)
				So(pkg.Links.Next, ShouldEqual, "page-2")
				So(s.Hits(), ShouldEqual, 1)
				So(s.Requests()[0].Query.Get("limit"), ShouldEqual, "4")
			})
		})

		Convey("When the last page is requested", func() {
			_, pkg := get("/api/releases?cursor=page-2")

			Convey("Then no next cursor should be offered", func() {
				So(len(*pkg.Releases), ShouldEqual, 4)
				So(pkg.Links.Next, ShouldBeEmpty)
				So((*pkg.Releases)[0].ID, ShouldEqual, "rel-002-000")
			})
		})

		Convey("When releases are generated twice", func() {
			a, b := s.Release(1, 0), s.Release(1, 0)

			Convey("Then they should be identical", func() {
				So(a.OCID, ShouldEqual, b.OCID)
				So(strings.HasPrefix(a.OCID, "ocds-fake-"), ShouldBeTrue)
				So(a.Date, ShouldEqual, now.Format(time.RFC3339))
			})
		})

		Convey("When a script is queued", func() {
			s.Script(http.StatusTooManyRequests, http.StatusBadGateway, -1)

			Convey("Then responses should follow it before normal pages", func() {
				rec, _ := get("/api/releases")
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(rec.Header().Get("Retry-After"), ShouldEqual, "1")

				rec, _ = get("/api/releases")
				So(rec.Code, ShouldEqual, http.StatusBadGateway)

				rec, pkg := get("/api/releases")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(pkg.Releases, ShouldBeNil)

				_, pkg = get("/api/releases")
				So(len(*pkg.Releases), ShouldEqual, 4)
			})
		})

		Convey("Then half of the releases should mention BNSSG", func() {
			So(s.Matching(), ShouldEqual, 4)
		})
	})

	Convey("Given a fake API returning next links as URLs", t, func() {
		s := New(WithPages(2), WithNextAsURL(true))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.test/api/releases?limit=5", nil))
		var pkg model.ReleasePackage
		So(json.Unmarshal(rec.Body.Bytes(), &pkg), ShouldBeNil)

		Convey("Then the next link should keep the query and add a cursor", func() {
			So(pkg.Links.Next, ShouldStartWith, "http://example.test/api/releases?")
			So(pkg.Links.Next, ShouldContainSubstring, "cursor=page-2")
			So(pkg.Links.Next, ShouldContainSubstring, "limit=5")
		})
	})

	Convey("Given a non-GET request", t, func() {
		s := New()
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/releases", nil))

		Convey("Then it should be rejected without counting", func() {
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(s.Hits(), ShouldEqual, 0)
		})
	})
}
