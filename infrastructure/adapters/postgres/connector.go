// Package postgres implements the Connector port (C3) against a real
// PostgreSQL instance via database/sql and lib/pq. It never installs
// plan-level governance (SupportsPlanGovernance reports false); callers
// must run governed SQL through the string rewriter (C4) first.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/cache"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/resilience"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// Connector implements ports.Connector against Postgres.
type Connector struct {
	db      *sqlx.DB
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	columns *cache.ColumnCache
}

// Config bounds query concurrency and fault tolerance around the
// underlying connection pool.
type Config struct {
	DSN              string
	MaxQueriesPerSec float64
	MaxOpenConns     int
	CircuitBreaker   resilience.Config
	ColumnsCacheTTL  time.Duration
}

// DefaultConfig matches typical single-run connector load.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:              dsn,
		MaxQueriesPerSec: 50,
		MaxOpenConns:     10,
		CircuitBreaker:   resilience.DefaultConfig(),
		ColumnsCacheTTL:  5 * time.Minute,
	}
}

// Open establishes a connection pool and verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Connector, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, verrors.Database("postgres DSN is required", nil)
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, verrors.Database("failed to open postgres connection", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, verrors.Database("failed to ping postgres", err)
	}

	limit := cfg.MaxQueriesPerSec
	if limit <= 0 {
		limit = 50
	}
	ttl := cfg.ColumnsCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Connector{
		db:      db,
		limiter: rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		breaker: resilience.New(cfg.CircuitBreaker),
		retry:   resilience.DefaultRetryConfig(),
		columns: cache.NewColumnCache(ttl),
	}, nil
}

// Close releases the underlying connection pool.
func (c *Connector) Close() error { return c.db.Close() }

// run wraps fn with rate limiting, the circuit breaker, and exponential
// backoff retry — the same layered resilience pattern the teacher applies
// to its HTTP-bound service calls, here protecting connector calls
// against the analytic engine.
func (c *Connector) run(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return verrors.Database("rate limiter wait failed", err)
	}
	err := resilience.Retry(ctx, c.retry, func() error {
		return c.breaker.Execute(ctx, fn)
	})
	if resilience.IsCircuitOpen(err) {
		return verrors.Database("warehouse connection circuit breaker is open; retry later", err)
	}
	return err
}

func (c *Connector) Execute(ctx context.Context, query string) error {
	return c.run(ctx, func() error {
		_, err := c.db.ExecContext(ctx, query)
		if err != nil {
			return verrors.Database("execute failed", err)
		}
		return nil
	})
}

func (c *Connector) FetchColumns(ctx context.Context, table string) ([]ports.ColumnSchema, error) {
	if cols, ok := c.columns.Get(table); ok {
		return cols, nil
	}

	var cols []ports.ColumnSchema
	err := c.run(ctx, func() error {
		rows, err := c.db.QueryContext(ctx, `
			SELECT column_name, data_type, is_nullable = 'YES'
			FROM information_schema.columns
			WHERE table_name = $1
			ORDER BY ordinal_position
		`, table)
		if err != nil {
			return verrors.Database("fetch_columns failed", err)
		}
		defer rows.Close()

		cols = nil
		for rows.Next() {
			var col ports.ColumnSchema
			if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable); err != nil {
				return verrors.Database("fetch_columns scan failed", err)
			}
			cols = append(cols, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	c.columns.Set(table, cols)
	return cols, nil
}

func (c *Connector) FetchSample(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	var out []map[string]any
	err := c.run(ctx, func() error {
		sampled := fmt.Sprintf("SELECT * FROM (%s) AS verity_sample LIMIT %d", query, limit)
		rows, err := c.db.QueryxContext(ctx, sampled)
		if err != nil {
			return verrors.Database("fetch_sample failed", err)
		}
		defer rows.Close()

		out = nil
		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return verrors.Database("fetch_sample scan failed", err)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

func (c *Connector) RegisterSource(ctx context.Context, name, absolutePath string) error {
	return c.run(ctx, func() error {
		_, err := c.db.ExecContext(ctx, fmt.Sprintf(
			`CREATE FOREIGN TABLE IF NOT EXISTS %s () SERVER verity_files OPTIONS (filename %s)`,
			name, pqQuoteLiteral(absolutePath),
		))
		if err != nil {
			return verrors.Database("register_source failed", err)
		}
		return nil
	})
}

func (c *Connector) Materialize(ctx context.Context, name, query string, kind ports.MaterializationKind) (ports.MaterializationKind, error) {
	relation := "TABLE"
	if kind == ports.KindView {
		relation = "VIEW"
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE %s %s AS %s", relation, name, query)

	err := c.run(ctx, func() error {
		_, err := c.db.ExecContext(ctx, stmt)
		if err != nil {
			return verrors.Database("materialize failed", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return kind, nil
}

func (c *Connector) QueryScalar(ctx context.Context, query string) (uint64, error) {
	var n int64
	err := c.run(ctx, func() error {
		row := c.db.QueryRowContext(ctx, query)
		if err := row.Scan(&n); err != nil {
			if err == sql.ErrNoRows {
				n = 0
				return nil
			}
			return verrors.Database("query_scalar failed", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return uint64(n), nil
}

func (c *Connector) FetchColumnAverages(ctx context.Context, table string, cols []string) (map[string]float64, error) {
	if len(cols) == 0 {
		return map[string]float64{}, nil
	}
	selects := make([]string, 0, len(cols))
	for _, col := range cols {
		selects = append(selects, fmt.Sprintf("AVG(%s) AS %s", col, col))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), table)

	out := make(map[string]float64, len(cols))
	err := c.run(ctx, func() error {
		row := c.db.QueryRowContext(ctx, query)
		dest := make([]any, len(cols))
		ptrs := make([]*float64, len(cols))
		for i := range ptrs {
			ptrs[i] = new(float64)
			dest[i] = ptrs[i]
		}
		if err := row.Scan(dest...); err != nil {
			return verrors.Database("fetch_column_averages failed", err)
		}
		for i, col := range cols {
			out[col] = *ptrs[i]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SupportsPlanGovernance reports false: Postgres queries run through the
// string rewriter (C4), never a plan-governance hook.
func (c *Connector) SupportsPlanGovernance() bool { return false }

// RegisterGovernance is a no-op for this engine, per the Connector
// contract's stated default.
func (c *Connector) RegisterGovernance(policies manifest.GovernancePolicySet) error { return nil }

func (c *Connector) EngineName() string { return "postgres" }

// pqQuoteLiteral escapes a string for embedding as a single-quoted SQL
// literal, doubling embedded quotes.
func pqQuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
