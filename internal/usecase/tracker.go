package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/vadimbarashkov/linkpulse/internal/entity"
	"golang.org/x/sync/semaphore"
)

const (
	defaultTrackerWorkers       = 4
	defaultTrackerQueueSize     = 1024
	defaultClassifyConcurrency  = 16
	defaultTrackerClassifyLimit = 5 * time.Second
)

type profileApplier interface {
	ApplyProfile(ctx context.Context, v entity.Visit, p entity.VisitorProfile) (bool, error)
}

// TrackerConfig configures a VisitTracker. Zero values select defaults.
type TrackerConfig struct {
	Workers             int
	QueueSize           int
	ClassifyConcurrency int
	ClassifyTimeout     time.Duration
}

func (c *TrackerConfig) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = defaultTrackerWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultTrackerQueueSize
	}
	if c.ClassifyConcurrency <= 0 {
		c.ClassifyConcurrency = defaultClassifyConcurrency
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = defaultTrackerClassifyLimit
	}
}

// pendingVisit is a visit whose profile is still being classified. The profile
// channel receives exactly one value.
type pendingVisit struct {
	visit   entity.Visit
	profile chan entity.VisitorProfile
}

// VisitTracker records visits in the background. Visits are routed in arrival order
// to one of a fixed set of shards by alias and classified concurrently. Each shard
// applies its visits one at a time in the order they were tracked, so every alias is
// updated by a single goroutine and a slow lookup never reorders visits.
type VisitTracker struct {
	cfg        TrackerConfig
	classifier visitClassifier
	applier    profileApplier
	logger     *slog.Logger
	sem        *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	queue  chan entity.Visit
	shards []chan pendingVisit
}

func NewVisitTracker(cfg TrackerConfig, classifier visitClassifier, applier profileApplier, logger *slog.Logger) *VisitTracker {
	cfg.setDefaults()

	shards := make([]chan pendingVisit, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan pendingVisit, cfg.QueueSize/cfg.Workers+1)
	}

	return &VisitTracker{
		cfg:        cfg,
		classifier: classifier,
		applier:    applier,
		logger:     logger,
		sem:        semaphore.NewWeighted(int64(cfg.ClassifyConcurrency)),
		queue:      make(chan entity.Visit, cfg.QueueSize),
		shards:     shards,
	}
}

// Track enqueues v without blocking. It returns false when the visit was dropped
// because the queue is full or the tracker is stopped.
func (t *VisitTracker) Track(v entity.Visit) bool {
	const op = "usecase.VisitTracker.Track"

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("tracker stopped, visit dropped",
			slog.String("op", op),
			slog.String("alias", v.Alias),
		)
		return false
	}

	select {
	case t.queue <- v:
		return true
	default:
		t.logger.Warn("tracker queue full, visit dropped",
			slog.String("op", op),
			slog.String("alias", v.Alias),
		)
		return false
	}
}

// Run processes visits until ctx is done. It then stops accepting visits, drains the
// queued ones and returns. Run must be called once.
func (t *VisitTracker) Run(ctx context.Context) error {
	workCtx := context.WithoutCancel(ctx)

	var workers sync.WaitGroup
	for _, shard := range t.shards {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for pv := range shard {
				t.apply(workCtx, pv.visit, <-pv.profile)
			}
		}()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			t.close()
		case <-stop:
		}
	}()

	for v := range t.queue {
		if err := t.sem.Acquire(workCtx, 1); err != nil {
			continue
		}

		pv := pendingVisit{visit: v, profile: make(chan entity.VisitorProfile, 1)}
		t.shardFor(v.Alias) <- pv

		go func() {
			defer t.sem.Release(1)
			pv.profile <- t.classify(workCtx, v)
		}()
	}

	for _, shard := range t.shards {
		close(shard)
	}
	workers.Wait()

	return nil
}

func (t *VisitTracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.queue)
	}
}

func (t *VisitTracker) classify(ctx context.Context, v entity.Visit) entity.VisitorProfile {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ClassifyTimeout)
	defer cancel()

	return t.classifier.Classify(ctx, v.Alias, v.Meta)
}

func (t *VisitTracker) shardFor(alias string) chan pendingVisit {
	h := fnv.New32a()
	_, _ = h.Write([]byte(alias))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

func (t *VisitTracker) apply(ctx context.Context, v entity.Visit, p entity.VisitorProfile) {
	const op = "usecase.VisitTracker.apply"

	applied, err := t.applier.ApplyProfile(ctx, v, p)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrMaxRetriesExceeded) {
			level = slog.LevelWarn
		}

		t.logger.Log(ctx, level, "visit dropped",
			slog.String("op", op),
			slog.String("alias", v.Alias),
			slog.Any("err", err),
		)
		return
	}

	if !applied {
		t.logger.Debug("visit for unknown alias ignored",
			slog.String("op", op),
			slog.String("alias", v.Alias),
		)
		return
	}

	t.logger.Info("visit recorded",
		slog.String("op", op),
		slog.String("alias", v.Alias),
		slog.String("browser", string(p.Browser)),
		slog.String("device", string(p.Device)),
		slog.String("os", p.OS),
		slog.String("country", p.Country),
	)
}
