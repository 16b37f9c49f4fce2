package classify_test

import (
	"testing"
	"time"

	"github.com/okian/tenderwatch/internal/domain/classify"
	"github.com/okian/tenderwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func release(id, date, title string, parties ...model.Party) model.Release {
	return model.Release{
		ID:      id,
		Date:    date,
		Parties: parties,
		Tender:  &model.TenderInfo{Title: title},
	}
}

func TestClassifierMatches(t *testing.T) {
	Convey("Given a classifier with default keywords", t, func() {
		c := classify.New()

		Convey("When a party name contains a keyword in a different case", func() {
			tender := model.Tender{Parties: []model.PartyInfo{{Name: "Nhs Bnssg Icb"}}}

			Convey("Then it should match", func() {
				So(c.Matches(tender), ShouldBeTrue)
			})
		})

		Convey("When only the title contains a keyword", func() {
			tender := model.Tender{Title: "Services for Bristol, North Somerset and South Gloucestershire"}

			Convey("Then it should match", func() {
				So(c.Matches(tender), ShouldBeTrue)
			})
		})

		Convey("When only an address field contains a keyword", func() {
			tender := model.Tender{Parties: []model.PartyInfo{{Name: "Acme", Region: "NHS Bristol area"}}}

			Convey("Then it should match", func() {
				So(c.Matches(tender), ShouldBeTrue)
			})
		})

		Convey("When the keyword is embedded in a longer word", func() {
			tender := model.Tender{Description: "ref XBNSSGX-42"}

			Convey("Then it should still match as a substring", func() {
				So(c.Matches(tender), ShouldBeTrue)
			})
		})

		Convey("When no field contains a keyword", func() {
			tender := model.Tender{Title: "Road resurfacing", BuyerName: "Leeds City Council"}

			Convey("Then it should not match", func() {
				So(c.Matches(tender), ShouldBeFalse)
			})
		})

		Convey("When every field is empty", func() {
			Convey("Then it should not match", func() {
				So(c.Matches(model.Tender{}), ShouldBeFalse)
			})
		})
	})

	Convey("Given a classifier with custom keywords", t, func() {
		c := classify.New(classify.WithKeywords([]string{"  Somerset ", ""}))

		Convey("Then keywords should be trimmed and lowercased", func() {
			So(c.Keywords(), ShouldResemble, []string{"somerset"})
			So(c.Matches(model.Tender{BuyerName: "North SOMERSET Council"}), ShouldBeTrue)
			So(c.Matches(model.Tender{BuyerName: "BNSSG"}), ShouldBeFalse)
		})
	})

	Convey("Given an empty keyword option", t, func() {
		c := classify.New(classify.WithKeywords(nil))

		Convey("Then the defaults should be kept", func() {
			So(len(c.Keywords()), ShouldEqual, len(classify.DefaultKeywords))
		})
	})
}

func TestClassifierFilter(t *testing.T) {
	Convey("Given a mix of releases", t, func() {
		releases := []model.Release{
			release("old", "2026-02-01T00:00:00Z", "BNSSG cleaning"),
			release("other", "2026-02-03T00:00:00Z", "Leeds parking"),
			{ID: "no-tender", Date: "2026-02-04T00:00:00Z", Parties: []model.Party{{Name: "BNSSG"}}},
			release("new", "2026-02-05T00:00:00Z", "Catering", model.Party{Name: "Bristol ICB"}),
		}

		Convey("When filtering with keyword matching", func() {
			out := classify.New().Filter(releases)

			Convey("Then only matches should be returned newest first", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].ID, ShouldEqual, "new")
				So(out[1].ID, ShouldEqual, "old")
			})
		})

		Convey("When filtering in show-all mode", func() {
			c := classify.New(classify.WithShowAll(true))
			out := c.Filter(releases)

			Convey("Then every release with a tender sub-object should pass", func() {
				So(c.ShowAll(), ShouldBeTrue)
				So(len(out), ShouldEqual, 3)
				for _, tender := range out {
					So(tender.ID, ShouldNotEqual, "no-tender")
				}
			})
		})

		Convey("When show-all is toggled at runtime", func() {
			c := classify.New()
			c.SetShowAll(true)
			withAll := len(c.Filter(releases))
			c.SetShowAll(false)
			without := len(c.Filter(releases))

			Convey("Then the result should follow the mode", func() {
				So(withAll, ShouldEqual, 3)
				So(without, ShouldEqual, 2)
			})
		})

		Convey("When two matches share a publication date", func() {
			same := []model.Release{
				release("first", "2026-02-01T00:00:00Z", "BNSSG a"),
				release("second", "2026-02-01T00:00:00Z", "BNSSG b"),
			}
			out := classify.New().Filter(same)

			Convey("Then their input order should be kept", func() {
				So(out[0].ID, ShouldEqual, "first")
				So(out[1].ID, ShouldEqual, "second")
				So(out[0].PublishedAt.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})
	})
}
