/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"context"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Conn is a leased connection. It must not be used after Release.
type Conn struct {
	conn        *pgxpool.Conn
	releaseOnce sync.Once
}

// Release returns the connection to the pool, which decides whether it is
// reused or discarded. Only the first call has an effect.
func (c *Conn) Release() {
	c.releaseOnce.Do(c.conn.Release)
}

// Conn returns the underlying connection.
func (c *Conn) Conn() *pgx.Conn {
	return c.conn.Conn()
}

// Exec runs sql on the leased connection and returns its command tag.
func (c *Conn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

// Query runs sql on the leased connection. The rows must be closed before
// the connection is released.
func (c *Conn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

// QueryRow runs sql and returns at most one row. Errors are deferred to Scan.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction on the leased connection.
func (c *Conn) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.conn.Begin(ctx)
}
