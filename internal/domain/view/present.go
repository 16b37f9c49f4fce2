package view

import (
	"time"

	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/internal/domain/types"
)

// Present converts a tender into its display shape.
func (m *Model) Present(t model.Tender, now time.Time) types.TenderView {
	v := types.TenderView{
		ID:            t.ID,
		OCID:          t.OCID,
		Title:         t.DisplayTitle(),
		Description:   t.Description,
		Buyer:         t.BuyerName,
		Organizations: t.TopParties(),
		PublishedAt:   t.PublishedAt,
		Published:     RelativeTime(t.PublishedAt, now),
		Deadline:      t.Deadline,
		DeadlineSoon:  m.DeadlineSoon(t.Deadline, now),
		Bucket:        m.BucketOf(t),
		Status:        t.Status,
		Link:          t.Link(),
	}
	if t.Value != nil {
		amount := t.Value.Amount
		v.Value = &amount
		v.Currency = t.Value.Currency
	}
	return v
}

// PresentAll converts every tender in order.
func (m *Model) PresentAll(tenders []model.Tender, now time.Time) []types.TenderView {
	out := make([]types.TenderView, len(tenders))
	for i, t := range tenders {
		out[i] = m.Present(t, now)
	}
	return out
}

// BucketOf returns the key of the first bucket containing the tender, or "".
func (m *Model) BucketOf(t model.Tender) string {
	for _, b := range m.buckets {
		if b.Contains(t) {
			return b.Key
		}
	}
	return ""
}

// FilterView echoes a filter in its transport shape.
func FilterView(f Filter) types.FilterView {
	buckets := f.Buckets
	if buckets == nil {
		buckets = []string{}
	}
	return types.FilterView{
		Query:    f.Query,
		Buckets:  buckets,
		Deadline: string(f.Deadline),
		Sort:     string(f.Sort),
	}
}

// DateRangeView returns the transport shape of the dataset's date range, or nil.
func DateRangeView(tenders []model.Tender) *types.DateRange {
	r, ok := DateRangeOf(tenders)
	if !ok {
		return nil
	}
	return &types.DateRange{Oldest: r.Oldest, Newest: r.Newest, Display: r.String()}
}
