package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/tenderwatch/internal/adapters/repository"
	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/internal/domain/types"
	"github.com/okian/tenderwatch/internal/domain/view"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

// ViewResult is the current dataset run through the current filter.
type ViewResult struct {
	Tenders []model.Tender
	// Total is the size of the dataset before filtering.
	Total   int
	Filter  view.Filter
	HasData bool
	// DateRange spans the whole dataset, not just the filtered rows.
	DateRange   *view.DateRange
	LastUpdated time.Time
	FromCache   bool
	Stale       bool
	// Error is the message of the last failed fetch, empty after a success.
	Error string
	Now   time.Time
}

// SetFilter replaces the current filter after validating it against the
// configured buckets.
func (s *Service) SetFilter(f view.Filter) error {
	if f.Deadline == "" {
		f.Deadline = view.WindowAll
	}
	if f.Sort == "" {
		f.Sort = view.SortPublished
	}
	if err := s.views.Validate(f); err != nil {
		return err
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return nil
}

// Filter returns the current filter.
func (s *Service) Filter() view.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.filter
	f.Buckets = append([]string{}, f.Buckets...)
	return f
}

// View derives the display list from the current dataset and filter.
func (s *Service) View() ViewResult {
	return s.ViewWith(s.Filter())
}

// ViewWith derives the display list for f without changing the current filter.
func (s *Service) ViewWith(f view.Filter) ViewResult {
	now := s.now()

	s.mu.RLock()
	tenders := s.tenders
	res := ViewResult{
		Total:     len(tenders),
		Filter:    f,
		HasData:   s.hasData,
		FromCache: s.fromCache,
		Error:     s.lastErr,
		Now:       now,
	}
	if s.hasData {
		res.LastUpdated = s.capturedAt
		res.Stale = now.Sub(s.capturedAt) > s.staleAfter
	}
	s.mu.RUnlock()

	res.Tenders = s.views.Apply(tenders, f, now)
	if r, ok := view.DateRangeOf(tenders); ok {
		res.DateRange = &r
	}
	return res
}

// Response converts a view result into the JSON body served by the API.
func (s *Service) Response(v ViewResult) types.TendersResponse {
	resp := types.TendersResponse{
		Tenders:   s.views.PresentAll(v.Tenders, v.Now),
		Count:     len(v.Tenders),
		Total:     v.Total,
		Stale:     v.Stale,
		FromCache: v.FromCache,
		Error:     v.Error,
		Filter:    view.FilterView(v.Filter),
	}
	if v.HasData {
		updated := v.LastUpdated
		resp.LastUpdated = &updated
	}
	if v.DateRange != nil {
		resp.DateRange = &types.DateRange{
			Oldest:  v.DateRange.Oldest,
			Newest:  v.DateRange.Newest,
			Display: v.DateRange.String(),
		}
	}
	return resp
}

// ExportCSV writes the current filtered view as CSV and returns the
// suggested file name.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (string, error) {
	v := s.View()
	if err := view.WriteCSV(w, v.Tenders); err != nil {
		metrics.RecordErrorByComponent("export", "write")
		return "", fmt.Errorf("export: %w", err)
	}
	s.logger.Info(ctx, "tenders exported", logger.Int("rows", len(v.Tenders)))
	return view.ExportFilename(v.Now), nil
}

// Preferences returns the persisted user toggles.
func (s *Service) Preferences(ctx context.Context) (types.Preferences, error) {
	return s.store.Preferences(ctx)
}

// SetPreferences persists the user toggles.
func (s *Service) SetPreferences(ctx context.Context, p types.Preferences) error {
	if err := s.store.SetPreferences(ctx, p); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	s.logger.Info(ctx, "preferences saved",
		logger.Bool("email_alerts", p.EmailAlerts),
		logger.Bool("debug_mode", p.DebugMode))
	return nil
}

// Status is a snapshot of the service state for monitoring.
type Status struct {
	Started      bool             `json:"started"`
	HasData      bool             `json:"has_data"`
	Records      int              `json:"records"`
	LastUpdated  *time.Time       `json:"last_updated"`
	FromCache    bool             `json:"from_cache"`
	Stale        bool             `json:"stale"`
	LastError    string           `json:"last_error,omitempty"`
	Runs         int64            `json:"runs"`
	Fetches      int64            `json:"fetches"`
	RetryPending bool             `json:"retry_pending"`
	QueueLength  int              `json:"queue_length"`
	ShowAll      bool             `json:"show_all"`
	Keywords     []string         `json:"keywords"`
	Cache        repository.Stats `json:"cache"`
}

// Status reports the service state.
func (s *Service) Status(ctx context.Context) Status {
	now := s.now()

	s.mu.RLock()
	st := Status{
		Started:      s.started,
		HasData:      s.hasData,
		Records:      len(s.tenders),
		FromCache:    s.fromCache,
		LastError:    s.lastErr,
		Runs:         s.runs,
		Fetches:      s.fetches,
		RetryPending: s.retryPending,
	}
	if s.hasData {
		updated := s.capturedAt
		st.LastUpdated = &updated
		st.Stale = now.Sub(s.capturedAt) > s.staleAfter
	}
	s.mu.RUnlock()

	st.QueueLength = s.queue.Len(ctx)
	st.ShowAll = s.classifier.ShowAll()
	st.Keywords = s.classifier.Keywords()

	cache, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache stats unavailable", logger.Error(err))
	}
	st.Cache = cache
	if st.LastUpdated != nil {
		metrics.UpdateSnapshot(*st.LastUpdated, st.Records, now)
	}
	return st
}

// GetStats returns service statistics for the /stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	st := s.Status(context.Background())
	stats := map[string]interface{}{
		"started":       st.Started,
		"has_data":      st.HasData,
		"records":       st.Records,
		"from_cache":    st.FromCache,
		"stale":         st.Stale,
		"runs":          st.Runs,
		"fetches":       st.Fetches,
		"retry_pending": st.RetryPending,
		"queue_length":  st.QueueLength,
		"show_all":      st.ShowAll,
		"keywords":      st.Keywords,
		"cache":         st.Cache,
	}
	if st.LastUpdated != nil {
		stats["last_updated"] = st.LastUpdated
	}
	if st.LastError != "" {
		stats["last_error"] = st.LastError
	}
	return stats
}
