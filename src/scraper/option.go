package scraper

import (
	"time"

	"mxshs/oddscrawler/src/metrics"

	"go.uber.org/zap"
)

// Clock is the time source of the polling loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   Clock
}

var defaultOptions = options{
	logger: zap.NewNop(),
	clock:  realClock{},
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *options) {
		opts.metrics = m
	}
}

func WithClock(c Clock) Option {
	return func(opts *options) {
		opts.clock = c
	}
}
