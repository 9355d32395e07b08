package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mxshs/oddscrawler/src/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQL(t *testing.T, backend string) (Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s, err := New(backend, WithDB(db), WithSessionID("sess"))
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS odds_observations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS market_odds").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Initialize(context.Background()))

	return s, mock
}

func expectMarkets(mock sqlmock.Sqlmock, id int64) {
	for _, m := range domain.Schema {
		mock.ExpectExec("INSERT INTO market_odds").
			WithArgs(id, m.Name, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
}

func TestSQLStorage_Postgres(t *testing.T) {
	s, mock := newMockSQL(t, BackendPostgres)
	rec := newRecord(t, fixedNow, 2.10)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO odds_observations").
		WithArgs("sess", fixedNow, "sisal", "sligo-rovers-waterford-fc", rec.SourceURL, "Sligo Rovers", "Waterford FC").
		WillReturnRows(sqlmock.NewRows([]string{"observation_id"}).AddRow(7))
	expectMarkets(mock, 7)
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, s.Store(context.Background(), rec))
	require.NoError(t, s.Close())
	assert.Equal(t, "postgres:odds_observations?session_id=sess", s.Path())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// containsAll matches a driver value whose text holds every part.
type containsAll []string

func (c containsAll) Match(v driver.Value) bool {
	text := fmt.Sprint(v)
	for _, part := range c {
		if !strings.Contains(text, part) {
			return false
		}
	}
	return true
}

func TestSQLStorage_PostgresOptionalOutcomes(t *testing.T) {
	s, mock := newMockSQL(t, BackendPostgres)
	rec := newRecord(t, fixedNow, 2.10)
	rec.Markets[domain.MarketOverUnder]["over_1_5"] = 1.30

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO odds_observations").
		WillReturnRows(sqlmock.NewRows([]string{"observation_id"}).AddRow(4))
	for _, m := range domain.Schema {
		arg := sqlmock.Argument(sqlmock.AnyArg())
		if m.Name == domain.MarketOverUnder {
			arg = containsAll{`"over_2_5","1.95"`, `"under_2_5","1.80"`, `"over_1_5","1.30"`}
		}
		mock.ExpectExec("INSERT INTO market_odds").
			WithArgs(int64(4), m.Name, arg).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.Store(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_MySQL(t *testing.T) {
	s, mock := newMockSQL(t, BackendMySQL)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO odds_observations").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO market_odds").
		WithArgs(int64(3), domain.Market1X2, `{"away":3.6,"draw":3.25,"home":2.1}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, m := range domain.Schema[1:] {
		mock.ExpectExec("INSERT INTO market_odds").
			WithArgs(int64(3), m.Name, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.Store(context.Background(), newRecord(t, fixedNow, 2.10)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_FailedRecordRollsBackAlone(t *testing.T) {
	s, mock := newMockSQL(t, BackendPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO odds_observations").
		WillReturnRows(sqlmock.NewRows([]string{"observation_id"}).AddRow(1))
	expectMarkets(mock, 1)
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO odds_observations").
		WillReturnRows(sqlmock.NewRows([]string{"observation_id"}).AddRow(2))
	mock.ExpectExec("INSERT INTO market_odds").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Store(context.Background(), newRecord(t, fixedNow, 2.10), newRecord(t, fixedNow, 2.20))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_SchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s, err := New(BackendMySQL, WithDB(db))
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS odds_observations").WillReturnError(errors.New("access denied"))

	err = s.Initialize(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, s.Store(context.Background(), newRecord(t, fixedNow, 2.10)), domain.ErrNotInitialized)
}
