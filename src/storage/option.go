package storage

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger    *zap.Logger
	label     string
	sessionID string
	now       func() time.Time

	// csv
	outputDir string
	prefix    string

	// postgres, mysql
	dsn string
	db  *sql.DB

	// redis
	redisAddr     string
	redisPassword string
	redisDB       int
	redisTTL      time.Duration
}

var defaultOptions = options{
	logger:    zap.NewNop(),
	label:     "session",
	now:       time.Now,
	outputDir: ".",
	prefix:    "odds",
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithLabel sets the label session ids are derived from, usually the source.
func WithLabel(label string) Option {
	return func(opts *options) {
		opts.label = label
	}
}

// WithSessionID fixes the session id instead of deriving one on Initialize.
func WithSessionID(id string) Option {
	return func(opts *options) {
		opts.sessionID = id
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.now = now
	}
}

func WithOutputDir(dir string) Option {
	return func(opts *options) {
		opts.outputDir = dir
	}
}

func WithPrefix(prefix string) Option {
	return func(opts *options) {
		opts.prefix = prefix
	}
}

func WithDSN(dsn string) Option {
	return func(opts *options) {
		opts.dsn = dsn
	}
}

// WithDB hands an already opened pool to the SQL sinks. The sink closes it.
func WithDB(db *sql.DB) Option {
	return func(opts *options) {
		opts.db = db
	}
}

func WithRedis(addr, password string, db int) Option {
	return func(opts *options) {
		opts.redisAddr = addr
		opts.redisPassword = password
		opts.redisDB = db
	}
}

// WithTTL expires the redis keys of a session; zero keeps them.
func WithTTL(ttl time.Duration) Option {
	return func(opts *options) {
		opts.redisTTL = ttl
	}
}
