package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tenderwatch/internal/adapters/mq/queue"
	"github.com/okian/tenderwatch/internal/adapters/procurement"
	"github.com/okian/tenderwatch/internal/adapters/repository"
	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

const loadKey = "load"

// Result describes the outcome of one pipeline run.
type Result struct {
	Tenders    []model.Tender
	CapturedAt time.Time
	// FromCache is set when the tenders come from the stored snapshot, either
	// because it was fresh or because the fetch failed.
	FromCache bool
	// Stale is set when the snapshot is older than the stale threshold.
	Stale bool
	// Fetched is set when the procurement API was called successfully.
	Fetched   bool
	Pages     int
	Truncated bool
	// Err is the fetch error a fallback result was served for.
	Err error
	// Message is Err translated for display.
	Message string
}

// Load returns the current tenders, using the stored snapshot when it is
// younger than the cache TTL and force is false. Concurrent calls share one run.
func (s *Service) Load(ctx context.Context, force bool) (Result, error) {
	return s.run(ctx, force, queue.ReasonManual)
}

// Refresh fetches from the API regardless of the snapshot age.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	return s.Load(ctx, true)
}

// HandleRefresh runs a queued refresh job.
func (s *Service) HandleRefresh(ctx context.Context, j queue.Job) error {
	if j.Reason == queue.ReasonRetry {
		s.mu.Lock()
		s.retryPending = false
		s.mu.Unlock()
	}
	_, err := s.run(ctx, j.Force, j.Reason)
	return err
}

func (s *Service) run(ctx context.Context, force bool, reason queue.Reason) (Result, error) {
	ch := s.group.DoChan(loadKey, func() (any, error) {
		lctx, cancel := s.loadContext(ctx)
		defer cancel()
		return s.load(lctx, force, reason)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			s.logger.Debug(ctx, "joined in-flight load", logger.String("reason", string(reason)))
		}
		res, _ := r.Val.(Result)
		return res, r.Err
	}
}

// loadContext detaches a shared load from the caller that started it, so a
// caller going away does not fail the others. The load is bounded by the load
// timeout and cancelled by Stop.
func (s *Service) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
	s.mu.RLock()
	stop := s.stopCh
	s.mu.RUnlock()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-lctx.Done():
			}
		}()
	}
	return lctx, cancel
}

func (s *Service) load(ctx context.Context, force bool, reason queue.Reason) (Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.Named("pipeline")

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	defer func() {
		metrics.RecordPipelineLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if !force {
		if res, ok := s.fromFreshCache(ctx); ok {
			log.Debug(ctx, "serving fresh snapshot",
				logger.String("run_id", runID),
				logger.Int("tenders", len(res.Tenders)))
			metrics.RecordPipelineRun(metrics.OutcomeCacheHit)
			return res, nil
		}
	}

	log.Info(ctx, "fetching tenders",
		logger.String("run_id", runID),
		logger.String("reason", string(reason)),
		logger.Bool("force", force))

	fetched, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return s.fallback(ctx, err, reason, runID)
	}

	tenders := s.classifier.Filter(fetched.Releases)
	snap := repository.Snapshot{Tenders: tenders, CapturedAt: s.now()}
	if werr := s.store.Write(ctx, snap); werr != nil {
		log.Warn(ctx, "could not write snapshot", logger.String("run_id", runID), logger.Error(werr))
	}

	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	s.setData(snap, false, "")

	metrics.UpdateTendersMatched(len(tenders))
	metrics.RecordPipelineRun(metrics.OutcomeSuccess)
	log.Info(ctx, "tenders refreshed",
		logger.String("run_id", runID),
		logger.Int("pages", fetched.Pages),
		logger.Int("releases", len(fetched.Releases)),
		logger.Int("matched", len(tenders)),
		logger.Bool("truncated", fetched.Truncated))

	return Result{
		Tenders:    tenders,
		CapturedAt: snap.CapturedAt,
		Fetched:    true,
		Pages:      fetched.Pages,
		Truncated:  fetched.Truncated,
	}, nil
}

// fromFreshCache returns the dataset in memory, or else the stored snapshot,
// when it is younger than the TTL. A hit clears the last fetch error.
func (s *Service) fromFreshCache(ctx context.Context) (Result, bool) {
	s.mu.Lock()
	if s.hasData {
		age := s.now().Sub(s.capturedAt)
		if age < s.cacheTTL {
			s.lastErr = ""
			res := Result{
				Tenders:    s.tenders,
				CapturedAt: s.capturedAt,
				FromCache:  true,
				Stale:      age > s.staleAfter,
			}
			s.mu.Unlock()
			return res, true
		}
	}
	s.mu.Unlock()

	snap, err := s.store.Read(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn(ctx, "cache read failed", logger.Error(err))
		}
		return Result{}, false
	}
	age := snap.Age(s.now())
	if age >= s.cacheTTL {
		return Result{}, false
	}
	s.setData(snap, true, "")
	return Result{
		Tenders:    snap.Tenders,
		CapturedAt: snap.CapturedAt,
		FromCache:  true,
		Stale:      age > s.staleAfter,
	}, true
}

// fallback serves the last good snapshot after a failed fetch.
func (s *Service) fallback(ctx context.Context, err error, reason queue.Reason, runID string) (Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{}, err
	}

	msg := procurement.Message(err)
	s.logger.Warn(ctx, "fetch failed",
		logger.String("run_id", runID),
		logger.String("message", msg),
		logger.Error(err))
	metrics.RecordErrorByComponent("pipeline", errorKind(err))

	rateLimited := errors.Is(err, procurement.ErrRateLimited)
	if rateLimited {
		s.scheduleRetry(ctx, err, reason)
	}
	outcome := func(o string) {
		if rateLimited {
			o = metrics.OutcomeRateLimited
		}
		metrics.RecordPipelineRun(o)
	}

	snap, ok := s.lastGood(ctx)
	if !ok {
		s.mu.Lock()
		s.lastErr = msg
		s.mu.Unlock()
		outcome(metrics.OutcomeFailed)
		return Result{Err: err, Message: msg}, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	s.setData(snap, true, msg)
	outcome(metrics.OutcomeFallback)
	return Result{
		Tenders:    snap.Tenders,
		CapturedAt: snap.CapturedAt,
		FromCache:  true,
		Stale:      snap.Age(s.now()) > s.staleAfter,
		Err:        err,
		Message:    msg,
	}, nil
}

// lastGood returns the dataset in memory, or else the stored snapshot of any age.
func (s *Service) lastGood(ctx context.Context) (repository.Snapshot, bool) {
	s.mu.RLock()
	if s.hasData {
		snap := repository.Snapshot{Tenders: s.tenders, CapturedAt: s.capturedAt}
		s.mu.RUnlock()
		return snap, true
	}
	s.mu.RUnlock()

	snap, err := s.store.Read(ctx)
	if err != nil {
		return repository.Snapshot{}, false
	}
	return snap, true
}

// scheduleRetry queues one delayed forced load after a rate limit the fetcher
// did not retry itself. A retry that is itself rate limited schedules nothing
// further.
func (s *Service) scheduleRetry(ctx context.Context, err error, reason queue.Reason) {
	if reason == queue.ReasonRetry {
		s.logger.Warn(ctx, "scheduled retry was rate limited again, giving up")
		return
	}
	var fe *procurement.FetchError
	if !errors.As(err, &fe) {
		return
	}
	if fe.Retried {
		s.logger.Warn(ctx, "rate limited after the fetcher's own retry, giving up")
		return
	}

	s.mu.Lock()
	if !s.started || s.retryPending {
		s.mu.Unlock()
		return
	}
	s.retryPending = true
	q := s.queue
	s.mu.Unlock()

	if !q.Enqueue(context.WithoutCancel(ctx), queue.NewJob(queue.ReasonRetry, true, fe.RetryAfter)) {
		s.mu.Lock()
		s.retryPending = false
		s.mu.Unlock()
		s.logger.Info(ctx, "retry not scheduled, refresh already pending")
		return
	}
	metrics.RecordScheduledRetry()
	s.logger.Info(ctx, "retry scheduled", logger.Duration("after", fe.RetryAfter))
}

func (s *Service) setData(snap repository.Snapshot, fromCache bool, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasData = true
	s.tenders = snap.Tenders
	s.capturedAt = snap.CapturedAt
	s.fromCache = fromCache
	s.lastErr = lastErr
}

func errorKind(err error) string {
	var fe *procurement.FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "unknown"
}
