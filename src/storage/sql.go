package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mxshs/oddscrawler/src/domain"

	_ "github.com/go-sql-driver/mysql"
	pq "github.com/lib/pq"
	"go.uber.org/zap"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	driver string
	schema []string
	// insertObservation returns the id of the inserted observation.
	insertObservation func(ctx context.Context, tx *sql.Tx, rec domain.OddsRecord) (int64, error)
	insertMarket      string
	// outcomes encodes the outcome -> odds pairs of one market.
	outcomes func(market domain.Market, odds map[string]float64) (interface{}, error)
}

var postgres = dialect{
	driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS odds_observations (
			observation_id BIGSERIAL PRIMARY KEY,
			session_id     TEXT NOT NULL,
			observed_at    TIMESTAMPTZ NOT NULL,
			source         TEXT NOT NULL,
			match_id       TEXT NOT NULL,
			source_url     TEXT NOT NULL,
			home_team      TEXT NOT NULL,
			away_team      TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS market_odds (
			observation_id BIGINT NOT NULL REFERENCES odds_observations (observation_id),
			market         TEXT NOT NULL,
			outcomes       TEXT[][] NOT NULL
		);`,
	},
	insertObservation: func(ctx context.Context, tx *sql.Tx, rec domain.OddsRecord) (int64, error) {
		var id int64

		err := tx.QueryRowContext(ctx,
			`INSERT INTO odds_observations
			(session_id, observed_at, source, match_id, source_url, home_team, away_team)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING observation_id;`,
			observationArgs(rec)...,
		).Scan(&id)

		return id, err
	},
	insertMarket: `INSERT INTO market_odds (observation_id, market, outcomes) VALUES ($1, $2, $3);`,
	outcomes: func(market domain.Market, odds map[string]float64) (interface{}, error) {
		arr := [][]string{}
		for _, o := range market.All() {
			v, ok := odds[o]
			if !ok {
				continue
			}
			arr = append(arr, []string{o, domain.FormatOdds(v)})
		}
		return pq.Array(arr), nil
	},
}

var mysql = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS odds_observations (
			observation_id BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT,
			session_id     VARCHAR(128) NOT NULL,
			observed_at    DATETIME(3) NOT NULL,
			source         VARCHAR(64) NOT NULL,
			match_id       VARCHAR(255) NOT NULL,
			source_url     TEXT NOT NULL,
			home_team      VARCHAR(255) NOT NULL,
			away_team      VARCHAR(255) NOT NULL
		) DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS market_odds (
			observation_id BIGINT NOT NULL,
			market         VARCHAR(32) NOT NULL,
			outcomes       JSON NOT NULL
		) DEFAULT CHARSET=utf8mb4;`,
	},
	insertObservation: func(ctx context.Context, tx *sql.Tx, rec domain.OddsRecord) (int64, error) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO odds_observations
			(session_id, observed_at, source, match_id, source_url, home_team, away_team)
			VALUES (?, ?, ?, ?, ?, ?, ?);`,
			observationArgs(rec)...,
		)
		if err != nil {
			return 0, err
		}

		return res.LastInsertId()
	},
	insertMarket: `INSERT INTO market_odds (observation_id, market, outcomes) VALUES (?, ?, ?);`,
	outcomes: func(market domain.Market, odds map[string]float64) (interface{}, error) {
		data, err := json.Marshal(odds)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	},
}

func observationArgs(rec domain.OddsRecord) []interface{} {
	return []interface{}{
		rec.SessionID,
		rec.Timestamp.UTC(),
		rec.Source,
		rec.MatchID,
		rec.SourceURL,
		rec.HomeTeam,
		rec.AwayTeam,
	}
}

// SQLStorage writes each record as one observation row plus one row per
// market, inside its own transaction.
type SQLStorage struct {
	session
	options

	dialect dialect
	db      *sql.DB
}

func NewSQLStorage(d dialect, o options) *SQLStorage {
	return &SQLStorage{dialect: d, options: o}
}

func (s *SQLStorage) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	s.assign(s.options)

	if s.db == nil {
		db, err := s.openDB()
		if err != nil {
			return err
		}
		s.db = db
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping %s: %w", domain.ErrStorage, s.dialect.driver, err)
	}

	for _, stmt := range s.dialect.schema {
		s.logger.Debug("create table", zap.String("sql", stmt))

		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create schema: %w", domain.ErrStorage, err)
		}
	}

	s.initialized = true

	s.logger.Info("sql storage initialized",
		zap.String("driver", s.dialect.driver),
		zap.String("session_id", s.id),
	)

	return nil
}

func (s *SQLStorage) openDB() (*sql.DB, error) {
	if s.options.db != nil {
		return s.options.db, nil
	}
	if s.dsn == "" {
		return nil, fmt.Errorf("%w: %s storage needs a DSN", domain.ErrInvalidConfig, s.dialect.driver)
	}

	db, err := sql.Open(s.dialect.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrStorage, s.dialect.driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	return db, nil
}

// Store commits every record separately so one failure does not roll back
// the others.
func (s *SQLStorage) Store(ctx context.Context, records ...domain.OddsRecord) error {
	if err := s.ready(); err != nil {
		return err
	}

	var errs []error
	for _, rec := range records {
		rec, err := s.prepare(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.insert(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%w: insert %s: %w", domain.ErrStorage, rec.MatchID, err))
		}
	}

	return errors.Join(errs...)
}

func (s *SQLStorage) insert(ctx context.Context, rec domain.OddsRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	id, err := s.dialect.insertObservation(ctx, tx, rec)
	if err != nil {
		return errors.Join(err, tx.Rollback())
	}

	for _, m := range domain.Schema {
		outcomes, err := s.dialect.outcomes(m, rec.Markets[m.Name])
		if err != nil {
			return errors.Join(err, tx.Rollback())
		}

		if _, err := tx.ExecContext(ctx, s.dialect.insertMarket, id, m.Name, outcomes); err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("stored record",
		zap.Int64("observation_id", id),
		zap.String("match_id", rec.MatchID),
	)

	return nil
}

func (s *SQLStorage) Close() error {
	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrStorage, s.dialect.driver, err)
	}

	return nil
}

// Path names the observations table of the session.
func (s *SQLStorage) Path() string {
	return s.dialect.driver + ":odds_observations?session_id=" + s.id
}
