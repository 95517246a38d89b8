package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfoundry/apply-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "https://jobs.example.com/postings/123", "SUCCESS",
			pgxmock.AnyArg(), "", int64(42000), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := archivedRun("run-1", "https://jobs.example.com/postings/123")
	err := s.SaveRun(context.Background(), run)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, status, result, error, duration_ms, created_at, finished_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	resultJSON := `{"status":"success","url":"https://jobs.example.com/postings/123"}`
	mock.ExpectQuery(`SELECT id, url, status, result, error, duration_ms, created_at, finished_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "status", "result", "error", "duration_ms", "created_at", "finished_at"}).
			AddRow("run-1", "https://jobs.example.com/postings/123", "SUCCESS", resultJSON, "", int64(42000), now.Add(-time.Minute), now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskSuccess, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, model.ResultSuccess, run.Result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM runs WHERE 1=1 AND status = \$1 ORDER BY finished_at DESC LIMIT \$2`).
		WithArgs("FAILURE", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "status", "result", "error", "duration_ms", "created_at", "finished_at"}).
			AddRow("run-fail", "https://jobs.example.com/b", "FAILURE", nil, "extraction failed", int64(1000), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.TaskFailure})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-fail", runs[0].ID)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM runs GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("SUCCESS", 3).
			AddRow("FAILURE", 1))

	counts, err := s.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.TaskSuccess])
	assert.Equal(t, 1, counts[model.TaskFailure])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeOlderThan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM runs WHERE finished_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := s.PurgeOlderThan(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
