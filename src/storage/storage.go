package storage

import (
	"context"
	"fmt"
	"strings"

	"mxshs/oddscrawler/src/domain"
)

const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
)

// Storage persists odds records of one session.
//
// Initialize must be called once before Store; calling it again is a no-op.
// Every Store is independent: a failed call never loses what earlier calls
// wrote. Close releases resources and may be called on any exit path.
type Storage interface {
	Initialize(ctx context.Context) error
	Store(ctx context.Context, records ...domain.OddsRecord) error
	Close() error
	// SessionID is empty until Initialize assigned one.
	SessionID() string
	// Path identifies the storage target: a file, a table or a key.
	Path() string
}

// Backends lists the names accepted by New.
func Backends() []string {
	return []string{BackendCSV, BackendPostgres, BackendMySQL, BackendRedis}
}

// NormalizeBackend folds a configured backend name onto the names of
// Backends. An empty name selects CSV.
func NormalizeBackend(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BackendCSV
	}
	return name
}

// New builds the sink registered under backend. Nothing is opened until
// Initialize.
func New(backend string, opts ...Option) (Storage, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	switch NormalizeBackend(backend) {
	case BackendCSV:
		return NewCSVStorage(options), nil
	case BackendPostgres:
		return NewSQLStorage(postgres, options), nil
	case BackendMySQL:
		return NewSQLStorage(mysql, options), nil
	case BackendRedis:
		return NewRedisStorage(options), nil
	}

	return nil, fmt.Errorf("%w: unknown storage backend %q (available: %v)",
		domain.ErrInvalidConfig, backend, Backends())
}

// StoreRow stores a flattened record as produced by OddsRecord.Fields.
// The mapping goes through the same validation as scraped records.
func StoreRow(ctx context.Context, s Storage, fields map[string]string) error {
	rec, err := domain.RecordFromFields(fields)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	return s.Store(ctx, *rec)
}

// session is the lifecycle shared by every sink.
type session struct {
	id          string
	initialized bool
	closed      bool
}

// assign picks the session id once; a failed Initialize keeps it for the retry.
func (s *session) assign(o options) {
	if s.id != "" {
		return
	}

	s.id = o.sessionID
	if s.id == "" {
		s.id = domain.SessionID(o.label, o.now())
	}
}

func (s *session) SessionID() string {
	return s.id
}

func (s *session) ready() error {
	if !s.initialized || s.closed {
		return domain.ErrNotInitialized
	}
	return nil
}

// prepare stamps the session id on every record and validates it.
func (s *session) prepare(rec domain.OddsRecord) (domain.OddsRecord, error) {
	rec.SessionID = s.id
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return rec, nil
}
