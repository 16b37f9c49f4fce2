// Package service provides the tender pipeline service behind the HTTP API
// and the CLI: cache-first loading, fetch with fallback, the current filter,
// and the background refresh worker.
package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/tenderwatch/internal/adapters/mq/queue"
	"github.com/okian/tenderwatch/internal/adapters/mq/worker"
	"github.com/okian/tenderwatch/internal/adapters/procurement"
	"github.com/okian/tenderwatch/internal/adapters/repository"
	"github.com/okian/tenderwatch/internal/domain/classify"
	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/internal/domain/view"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultCacheTTL        = time.Hour
	defaultStaleAfter      = 24 * time.Hour
	defaultWorkerCount     = 1
	defaultShutdownTimeout = 10 * time.Second
	defaultLoadTimeout     = 5 * time.Minute
)

// Fetcher retrieves raw releases from the procurement API.
type Fetcher interface {
	FetchAll(ctx context.Context) (procurement.Result, error)
}

// Service owns the current dataset, the current filter and refresh scheduling.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	fetcher    Fetcher
	classifier *classify.Classifier
	views      *view.Model
	group      singleflight.Group

	// Background refresh
	queue        queue.Queue
	pool         *worker.Pool
	workerCount  int
	pollInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup

	// Configuration
	cacheTTL    time.Duration
	staleAfter  time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	// State
	started      bool
	hasData      bool
	tenders      []model.Tender
	capturedAt   time.Time
	fromCache    bool
	lastErr      string
	filter       view.Filter
	retryPending bool
	runs         int64
	fetches      int64

	// Logging
	logger   logger.Logger
	ring     *logger.Ring
	ringSize int
	sink     logger.Sink
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifier sets the keyword classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithViewModel sets the view model used for filtering and presentation.
func WithViewModel(m *view.Model) Option {
	return func(s *Service) {
		if m != nil {
			s.views = m
		}
	}
}

// WithCacheTTL sets the age below which the cached snapshot is used without fetching.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.cacheTTL = d
		}
	}
}

// WithStaleAfter sets the age above which the snapshot is flagged stale.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.staleAfter = d
		}
	}
}

// WithLoadTimeout bounds a single pipeline run.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// WithPollInterval enables background loads every d once started.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueue replaces the refresh queue.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDebugRing keeps the last size log entries for DebugEntries.
func WithDebugRing(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.ringSize = size
		}
	}
}

// WithSink tees every service log record into sink.
func WithSink(sink logger.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// New constructs a Service over a store and a fetcher.
func New(store repository.Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:       store,
		fetcher:     fetcher,
		classifier:  classify.New(),
		views:       view.New(),
		workerCount: defaultWorkerCount,
		cacheTTL:    defaultCacheTTL,
		staleAfter:  defaultStaleAfter,
		loadTimeout: defaultLoadTimeout,
		now:         time.Now,
		filter:      view.DefaultFilter(),
		logger:      logger.Discard(),
		sink:        logger.Nop{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.ringSize > 0 {
		s.ring = logger.NewRing(s.ringSize)
		s.sink = s.ring
	}
	if _, nop := s.sink.(logger.Nop); !nop {
		s.logger = logger.WithSink(s.logger, s.sink)
	}
	if s.queue == nil {
		s.queue = queue.NewInMemoryQueue()
	}
	return s
}

// Start launches the refresh worker, queues an initial load and, when a poll
// interval is set, a ticker that queues background loads.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting tender service...")

	if s.queue.IsClosed() {
		s.queue = queue.NewInMemoryQueue()
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.HandlerFunc(s.HandleRefresh),
		worker.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	if s.pollInterval > 0 {
		s.wg.Add(1)
		go s.poll(ctx, s.stopCh)
	}

	s.queue.Enqueue(ctx, queue.NewJob(queue.ReasonStartup, false, 0))

	s.started = true
	s.logger.Info(ctx, "tender service started",
		logger.Int("workers", s.workerCount),
		logger.Duration("poll_interval", s.pollInterval),
		logger.Duration("cache_ttl", s.cacheTTL),
	)
	return nil
}

func (s *Service) poll(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if !s.queue.Enqueue(ctx, queue.NewJob(queue.ReasonPoll, false, 0)) {
				s.logger.Debug(ctx, "poll skipped, refresh already pending")
			}
		}
	}
}

// Stop shuts down the worker and the poll ticker. The store is left open.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool := s.pool
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping tender service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown incomplete", logger.Error(err))
	}
	s.wg.Wait()

	s.mu.Lock()
	s.retryPending = false
	s.mu.Unlock()
	metrics.UpdateQueueSize(0)
	s.logger.Info(ctx, "tender service stopped")
}

// DebugEntries returns the buffered log entries, oldest first. It is empty
// unless the service was built WithDebugRing.
func (s *Service) DebugEntries() []logger.Entry {
	if s.ring == nil {
		return []logger.Entry{}
	}
	return s.ring.Entries()
}

// Views exposes the view model.
func (s *Service) Views() *view.Model {
	return s.views
}
