/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const appNamePrefix = "pgsource-"

// generatePoolName names a pool that was not given one, so its sessions can
// still be told apart in pg_stat_activity.
func generatePoolName() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return appNamePrefix + id.String()[:8], nil
}

func searchPathStatement(schema string) string {
	return "set search_path to " + pq.QuoteIdentifier(schema)
}

// afterConnect prepares every new physical connection before the pool hands it
// out for the first time.
func (s *Source) afterConnect(ctx context.Context, conn *pgx.Conn) error {
	if s.config.Schema != "" {
		if _, err := conn.Exec(ctx, searchPathStatement(s.config.Schema)); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
	}
	s.log.Debug("connection established",
		zap.Uint32("pid", conn.PgConn().PID()),
		zap.String("pool", s.name),
	)
	return nil
}
