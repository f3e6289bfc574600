package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/globaltime"
	"horse.fit/portalerts/internal/lease"
	"horse.fit/portalerts/internal/logging"
)

const releaseTimeout = 5 * time.Second

// Store is the storage the pipeline needs.
type Store interface {
	PostLookup
	PostStore
	SubscriberStore
	ListDueEntities(ctx context.Context, limit int) ([]db.Entity, error)
	StampEntityChecked(ctx context.Context, entityID int64, checkedAt time.Time) error
}

type Options struct {
	BatchSize          int
	Workers            int
	FetchTimeout       time.Duration
	SendTimeout        time.Duration
	SendRatePerSec     float64
	EarlyStopThreshold int
	MaxCandidates      int
	MaxPostsPerQuery   int
	MinPostLength      int
	LeaseTTL           time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:          5,
		Workers:            3,
		FetchTimeout:       20 * time.Second,
		SendTimeout:        10 * time.Second,
		SendRatePerSec:     25,
		EarlyStopThreshold: 5,
		MaxCandidates:      20,
		MaxPostsPerQuery:   10,
		MinPostLength:      20,
		LeaseTTL:           5 * time.Minute,
	}
}

type Dependencies struct {
	Store      Store
	Fetcher    Fetcher
	Classifier Classifier
	// Sender may be nil, in which case posts are stored but nobody is notified.
	Sender Sender
	// Leaser may be nil, in which case entities are processed without a lease.
	Leaser lease.Leaser
	Links  LinkBuilder
}

// Service runs one pipeline invocation per Run call.
type Service struct {
	store      Store
	leaser     lease.Leaser
	collector  *Collector
	scorer     *Scorer
	writer     *Writer
	dispatcher *Dispatcher
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(deps Dependencies, opts Options, logger zerolog.Logger) *Service {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = defaults.MaxCandidates
	}
	if opts.MaxPostsPerQuery <= 0 {
		opts.MaxPostsPerQuery = defaults.MaxPostsPerQuery
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaults.LeaseTTL
	}

	s := &Service{
		store:  deps.Store,
		leaser: deps.Leaser,
		opts:   opts,
		logger: logger,
		now:    globaltime.UTC,
	}
	s.collector = NewCollector(deps.Fetcher, CollectorOptions{
		Timeout:   opts.FetchTimeout,
		EarlyStop: opts.EarlyStopThreshold,
		Extract: ExtractOptions{
			MinLength: opts.MinPostLength,
			MaxPosts:  opts.MaxPostsPerQuery,
		},
	})
	s.scorer = NewScorer(deps.Classifier)
	s.writer = NewWriter(deps.Store, deps.Links, s.currentTime)
	s.dispatcher = NewDispatcher(deps.Store, deps.Sender, DispatcherOptions{
		SendTimeout: opts.SendTimeout,
		RatePerSec:  opts.SendRatePerSec,
	}, s.currentTime)
	return s
}

func (s *Service) currentTime() time.Time {
	return s.now()
}

// Run processes the least recently checked active entities with bounded
// parallelism. Entity failures are counted and a failed entity selection is
// flagged on the summary; neither is returned as an error.
func (s *Service) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary
	if s == nil || s.store == nil {
		return summary, fmt.Errorf("monitor service is not initialized")
	}

	started := time.Now()
	rows, err := s.store.ListDueEntities(ctx, s.opts.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("select due entities failed")
		summary.SelectionFailed = true
		return summary, nil
	}
	if len(rows) == 0 {
		s.logger.Info().Msg("no active entities to monitor")
		return summary, nil
	}

	outcomes := make([]entityOutcome, len(rows))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, row := range rows {
		entity := EntityFromRow(row)
		g.Go(func() error {
			outcomes[i] = s.runEntity(ctx, entity)
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		summary.add(outcome)
	}

	s.logger.Info().
		Int("entities_processed", summary.EntitiesProcessed).
		Int("entities_failed", summary.EntitiesFailed).
		Int("entities_skipped", summary.EntitiesSkipped).
		Int("posts_found", summary.PostsFound).
		Int("posts_stored", summary.PostsStored).
		Int("notifications_sent", summary.NotificationsSent).
		Dur("elapsed", time.Since(started)).
		Msg("monitor run complete")
	return summary, nil
}

// runEntity never panics. last_checked is stamped whenever the lease was held,
// including after a failure.
func (s *Service) runEntity(ctx context.Context, entity Entity) (out entityOutcome) {
	logger := logging.ForEntity(s.logger, entity.ID, entity.Name)

	if s.leaser != nil {
		held, ok, err := s.leaser.Acquire(ctx, entity.ID, s.opts.LeaseTTL)
		if err != nil {
			logger.Error().Err(err).Msg("acquire entity lease failed")
			out.failed = true
			return out
		}
		if !ok {
			logger.Info().Msg("entity is being processed elsewhere, skipping")
			out.skipped = true
			return out
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := held.Release(releaseCtx); err != nil {
				logger.Warn().Err(err).Msg("release entity lease failed")
			}
		}()
	}

	defer func() {
		stampCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.store.StampEntityChecked(stampCtx, entity.ID, s.now()); err != nil {
			logger.Error().Err(err).Msg("stamp last_checked failed")
			out.failed = true
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("entity pipeline panicked")
			out.failed = true
		}
	}()

	if err := s.process(ctx, logger, entity, &out); err != nil {
		logger.Error().Err(err).Msg("entity pipeline failed")
		out.failed = true
	}
	return out
}

func (s *Service) process(ctx context.Context, logger zerolog.Logger, entity Entity, out *entityOutcome) error {
	queries := PlanQueries(entity)
	candidates := s.collector.FetchCandidates(ctx, logger, queries)
	out.postsFound = len(candidates)

	fresh, err := Deduplicate(ctx, s.store, entity.ID, candidates, s.opts.MaxCandidates)
	if err != nil {
		return err
	}

	scored := s.scorer.Score(ctx, logger, entity, fresh)
	stored := s.writer.Persist(ctx, logger, entity, scored)
	out.postsStored = len(stored)

	for _, post := range stored {
		sent, err := s.dispatcher.Dispatch(ctx, logger, entity, post)
		if err != nil {
			logger.Error().Err(err).Int64("post_id", post.ID).Msg("notify subscribers failed")
		}
		out.notificationsSent += sent
	}

	logger.Info().
		Int("queries", len(queries)).
		Int("candidates", len(candidates)).
		Int("fresh", len(fresh)).
		Int("stored", len(stored)).
		Int("notified", out.notificationsSent).
		Msg("entity processed")
	return nil
}
