package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/errors"
)

// Postgres executes statements over a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	dialect Dialect
	timeout time.Duration
}

// OpenPostgres connects to cfg.URL and pings the server.
func OpenPostgres(ctx context.Context, cfg config.WarehouseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 4
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: poolConfig.ConnConfig.Host, Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &errors.ErrDatabaseOpen{Path: poolConfig.ConnConfig.Host, Err: err}
	}

	return &Postgres{
		pool:    pool,
		dialect: PostgresDialect(cfg.Schema),
		timeout: cfg.Timeout,
	}, nil
}

// Exec runs query and collects every returned row with rows.Values.
func (p *Postgres) Exec(ctx context.Context, query string, params ...any) (*Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rows, err := p.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "exec", Err: err}
	}
	defer rows.Close()

	result := &Result{}
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "read row", Err: err}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "exec", Err: err}
	}
	return result, nil
}

func (p *Postgres) Dialect() Dialect { return p.dialect }

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
