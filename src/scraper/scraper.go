package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mxshs/oddscrawler/src/core"
	"mxshs/oddscrawler/src/domain"
	"mxshs/oddscrawler/src/metrics"
	"mxshs/oddscrawler/src/storage"

	"go.uber.org/zap"
)

// Params describe one polling run.
type Params struct {
	URL string
	// Duration bounds the run. Zero polls exactly once.
	Duration time.Duration
	Interval time.Duration
	// PageLoadTimeout bounds the initial navigation, WaitTimeout every poll.
	PageLoadTimeout time.Duration
	WaitTimeout     time.Duration
}

func (p Params) Validate() error {
	switch {
	case p.URL == "":
		return fmt.Errorf("%w: empty url", domain.ErrInvalidConfig)
	case p.Duration < 0:
		return fmt.Errorf("%w: negative duration %s", domain.ErrInvalidConfig, p.Duration)
	case p.Duration > 0 && p.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive when polling for %s", domain.ErrInvalidConfig, p.Duration)
	case p.PageLoadTimeout < 0 || p.WaitTimeout < 0:
		return fmt.Errorf("%w: negative timeout", domain.ErrInvalidConfig)
	}
	return nil
}

// MaxAttempts is the upper bound on polls for p.
func (p Params) MaxAttempts() int {
	if p.Duration == 0 {
		return 1
	}
	return int(p.Duration/p.Interval) + 1
}

// Scraper polls a single page and hands every extracted record to storage.
type Scraper struct {
	options

	browser core.Browser
	parser  core.OddsParser
	storage storage.Storage
}

func New(browser core.Browser, parser core.OddsParser, st storage.Storage, opts ...Option) *Scraper {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	return &Scraper{
		options: options,
		browser: browser,
		parser:  parser,
		storage: st,
	}
}

// Run polls until p.Duration elapses or ctx is cancelled and always returns
// a summary. Storage is closed on every path. The only fatal errors are
// invalid params and setup failures, which wrap domain.ErrSetup.
func (s *Scraper) Run(ctx context.Context, p Params) (*Summary, error) {
	summary := &Summary{Source: s.parser.Name()}

	if err := p.Validate(); err != nil {
		return summary, err
	}

	start := s.clock.Now()
	logger := s.logger.With(zap.String("source", s.parser.Name()), zap.String("url", p.URL))

	err := s.setup(ctx, p)
	summary.SessionID = s.storage.SessionID()
	summary.StoragePath = s.storage.Path()

	switch {
	case err != nil && ctx.Err() != nil:
		logger.Info("interrupted during setup", zap.Error(err))
		summary.Interrupted = true
		err = nil
	case err != nil:
		logger.Error("setup failed", zap.Error(err))
		s.metrics.ObserveSetupFailure(s.parser.Name())
	default:
		logger.Info("polling started",
			zap.String("session_id", summary.SessionID),
			zap.Duration("duration", p.Duration),
			zap.Duration("interval", p.Interval),
			zap.Int("max_attempts", p.MaxAttempts()),
		)
		s.loop(ctx, p, start, summary, logger)
	}

	if cerr := s.storage.Close(); cerr != nil {
		logger.Error("close storage", zap.Error(cerr))
		err = errors.Join(err, cerr)
	}

	summary.Elapsed = s.clock.Now().Sub(start)
	logger.Info("polling finished", zap.Object("summary", summary))

	return summary, err
}

func (s *Scraper) setup(ctx context.Context, p Params) error {
	if err := s.storage.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: initialize storage: %w", domain.ErrSetup, err)
	}

	octx, cancel := withTimeout(ctx, p.PageLoadTimeout)
	defer cancel()

	return core.Open(octx, s.browser, s.parser, p.URL)
}

func (s *Scraper) loop(ctx context.Context, p Params, start time.Time, summary *Summary, logger *zap.Logger) {
	for {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Info("interrupted", zap.Int("attempts", summary.Attempts))
			return
		}

		s.poll(ctx, p, summary, logger)

		if p.Duration == 0 || s.clock.Now().Sub(start)+p.Interval > p.Duration {
			return
		}

		select {
		case <-ctx.Done():
		case <-s.clock.After(p.Interval):
		}
	}
}

// poll runs one extraction. An extraction in flight is not cut short by
// cancellation, only by p.WaitTimeout.
func (s *Scraper) poll(ctx context.Context, p Params, summary *Summary, logger *zap.Logger) {
	summary.Attempts++
	begin := s.clock.Now()
	logger = logger.With(zap.Int("attempt", summary.Attempts))

	pctx, cancel := withTimeout(context.WithoutCancel(ctx), p.WaitTimeout)
	rec, err := core.Extract(pctx, s.browser, s.parser, p.URL)
	cancel()
	if err != nil {
		summary.Failed++
		s.metrics.ObservePoll(s.parser.Name(), metrics.ResultExtractionFailure, s.clock.Now().Sub(begin), begin)
		logger.Warn("extraction failed", zap.Error(err))
		return
	}

	// the store gets a fresh budget, extraction may have used all of its own
	sctx, cancel := withTimeout(context.WithoutCancel(ctx), p.WaitTimeout)
	defer cancel()

	if err := s.storage.Store(sctx, *rec); err != nil {
		summary.StorageFailures++
		s.metrics.ObservePoll(s.parser.Name(), metrics.ResultStorageFailure, s.clock.Now().Sub(begin), begin)
		logger.Error("store failed", zap.String("match_id", rec.MatchID), zap.Error(err))
		return
	}

	summary.Successful++
	s.metrics.ObservePoll(s.parser.Name(), metrics.ResultSuccess, s.clock.Now().Sub(begin), begin)
	logger.Info("stored odds",
		zap.String("match", rec.HomeTeam+" - "+rec.AwayTeam),
		zap.Time("timestamp", rec.Timestamp),
		zap.Duration("took", s.clock.Now().Sub(begin)),
	)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
