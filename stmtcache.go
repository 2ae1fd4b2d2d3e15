package pgsource

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgconn/stmtcache"
	"github.com/jackc/pgx/v4"

	"pgsource/internal/cfg"
)

type describeFunc func(ctx context.Context, sql string) (*pgconn.StatementDescription, error)

// limitedCache is a prepared statement cache that refuses to hold statements
// whose SQL is longer than sqlLimit. Those are described as the unnamed
// statement on every use, the same as when no cache is configured.
type limitedCache struct {
	stmtcache.Cache
	sqlLimit int
	describe describeFunc
}

func (c *limitedCache) Get(ctx context.Context, sql string) (*pgconn.StatementDescription, error) {
	if c.sqlLimit > 0 && len(sql) > c.sqlLimit {
		return c.describe(ctx, sql)
	}
	return c.Cache.Get(ctx, sql)
}

// buildStatementCache returns the per-connection cache constructor for psc, or
// nil when statement caching is disabled.
func buildStatementCache(psc cfg.StatementCacheConfig) pgx.BuildStatementCacheFunc {
	if !psc.Enabled {
		return nil
	}
	return func(conn *pgconn.PgConn) stmtcache.Cache {
		return &limitedCache{
			Cache:    stmtcache.New(conn, stmtcache.ModePrepare, psc.Size),
			sqlLimit: psc.SQLLimit,
			describe: func(ctx context.Context, sql string) (*pgconn.StatementDescription, error) {
				return conn.Prepare(ctx, "", sql, nil)
			},
		}
	}
}
