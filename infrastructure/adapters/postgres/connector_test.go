package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/cache"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/resilience"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

func newTestConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Connector{
		db:      sqlx.NewDb(db, "postgres"),
		limiter: rate.NewLimiter(rate.Limit(1000), 1000),
		breaker: resilience.New(resilience.DefaultConfig()),
		retry:   resilience.RetryConfig{MaxAttempts: 1},
		columns: cache.NewColumnCache(time.Minute),
	}, mock
}

func TestExecute_RunsStatement(t *testing.T) {
	conn, mock := newTestConnector(t)
	mock.ExpectExec("CREATE TABLE foo").WillReturnResult(sqlmock.NewResult(0, 0))

	err := conn.Execute(context.Background(), "CREATE TABLE foo (id int)")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchColumns_ParsesAndCaches(t *testing.T) {
	conn, mock := newTestConnector(t)
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
		AddRow("id", "integer", false).
		AddRow("email", "text", true)
	mock.ExpectQuery("information_schema.columns").WillReturnRows(rows)

	cols, err := conn.FetchColumns(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.False(t, cols[0].IsNullable)
	assert.True(t, cols[1].IsNullable)

	// Second call must hit the cache, not issue another query.
	cached, err := conn.FetchColumns(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, cols, cached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryScalar_ReturnsCount(t *testing.T) {
	conn, mock := newTestConnector(t)
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := conn.QueryScalar(context.Background(), `SELECT count(*) FROM "users"`)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestMaterialize_ViewUsesCreateOrReplaceView(t *testing.T) {
	conn, mock := newTestConnector(t)
	mock.ExpectExec("CREATE OR REPLACE VIEW").WillReturnResult(sqlmock.NewResult(0, 0))

	kind, err := conn.Materialize(context.Background(), "v_users", "SELECT 1", ports.KindView)
	require.NoError(t, err)
	assert.Equal(t, ports.KindView, kind)
}

func TestEngineName(t *testing.T) {
	conn, _ := newTestConnector(t)
	assert.Equal(t, "postgres", conn.EngineName())
	assert.False(t, conn.SupportsPlanGovernance())
}
