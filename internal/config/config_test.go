package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/tenderwatch/internal/config"
	"github.com/okian/tenderwatch/internal/domain/classify"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.APIBaseURL, convey.ShouldEqual, config.DefaultAPIBaseURL)
			convey.So(cfg.LookbackDays, convey.ShouldEqual, 30)
			convey.So(cfg.PageSize, convey.ShouldEqual, 100)
			convey.So(cfg.MaxPages, convey.ShouldEqual, 10)
			convey.So(cfg.CacheTTL, convey.ShouldEqual, time.Hour)
			convey.So(cfg.StaleAfter, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.DefaultRetryAfter, convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.DebugBufferSize, convey.ShouldEqual, 50)
			convey.So(cfg.SoonDays, convey.ShouldEqual, 14)
			convey.So(cfg.Keywords, convey.ShouldResemble, classify.DefaultKeywords)
			convey.So(strings.HasSuffix(cfg.CachePath, "tenders.db"), convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the keyword slice should not alias the package defaults", func() {
			cfg.Keywords[0] = "changed"
			convey.So(classify.DefaultKeywords[0], convey.ShouldEqual, "BNSSG")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with defaults", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func()
		}{
			{"empty addr", func() { cfg.Addr = " " }},
			{"empty base url", func() { cfg.APIBaseURL = "" }},
			{"zero lookback", func() { cfg.LookbackDays = 0 }},
			{"zero page size", func() { cfg.PageSize = 0 }},
			{"zero max pages", func() { cfg.MaxPages = 0 }},
			{"zero http timeout", func() { cfg.HTTPTimeout = 0 }},
			{"negative ttl", func() { cfg.CacheTTL = -time.Second }},
			{"zero retry after", func() { cfg.DefaultRetryAfter = 0 }},
			{"negative poll", func() { cfg.PollInterval = -time.Second }},
			{"empty cache path", func() { cfg.CachePath = "" }},
			{"no keywords", func() { cfg.Keywords = nil }},
			{"negative debug buffer", func() { cfg.DebugBufferSize = -1 }},
			{"zero soon days", func() { cfg.SoonDays = 0 }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate()

				convey.Convey("Then validation should fail with ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When keywords are empty but show_all is set", func() {
			cfg.Keywords = nil
			cfg.ShowAll = true

			convey.Convey("Then validation should pass", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
