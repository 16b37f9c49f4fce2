package terminal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/okian/tenderwatch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRender(t *testing.T) {
	Convey("Given a response with two tenders", t, func() {
		value := 1_250_000.0
		deadline := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
		updated := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
		resp := types.TendersResponse{
			Count: 2, Total: 5,
			LastUpdated: &updated,
			FromCache:   true,
			Error:       "Unable to reach the procurement API. Showing cached results.",
			DateRange:   &types.DateRange{Display: "1 Jun 2026 - 10 Jun 2026"},
			Tenders: []types.TenderView{
				{
					Title: "Community nursing", Buyer: "NHS BNSSG ICB", Value: &value, Currency: "GBP",
					Deadline: &deadline, DeadlineSoon: true, Published: "2 hours ago",
					Description: strings.Repeat("word ", 60),
					Link:        "https://www.find-tender.service.gov.uk/Notice/abc",
				},
				{Title: "Podiatry", Buyer: "Bristol ICB", Published: "1 day ago", Link: "https://example.test/2"},
			},
		}

		var buf bytes.Buffer
		err := New(&buf, WithWidth(80)).Render(&buf, resp)
		out := buf.String()

		Convey("Then every tender and the status lines should be written", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "2 of 5 tenders")
			So(out, ShouldContainSubstring, "published 1 Jun 2026 - 10 Jun 2026")
			So(out, ShouldContainSubstring, "(cached)")
			So(out, ShouldContainSubstring, "! Unable to reach the procurement API")
			So(out, ShouldContainSubstring, "Community nursing")
			So(out, ShouldContainSubstring, "£1,250,000")
			So(out, ShouldContainSubstring, "closes 2026-06-20")
			So(out, ShouldContainSubstring, "closing soon")
			So(out, ShouldContainSubstring, "value unknown")
			So(out, ShouldContainSubstring, "https://example.test/2")
		})

		Convey("Then long descriptions should be truncated", func() {
			So(out, ShouldContainSubstring, "…")
			So(out, ShouldNotContainSubstring, strings.TrimSpace(strings.Repeat("word ", 60)))
		})
	})
}

func TestMoney(t *testing.T) {
	Convey("Given amounts to format", t, func() {
		v := func(f float64) *float64 { return &f }

		So(Money(nil, "GBP"), ShouldEqual, "value unknown")
		So(Money(v(999), "GBP"), ShouldEqual, "£999")
		So(Money(v(50000), ""), ShouldEqual, "£50,000")
		So(Money(v(1000000), "GBP"), ShouldEqual, "£1,000,000")
		So(Money(v(2500), "EUR"), ShouldEqual, "EUR 2,500")
	})
}
