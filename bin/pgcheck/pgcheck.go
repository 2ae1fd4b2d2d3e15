/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/georgysavva/scany/pgxscan"
	"go.uber.org/zap"

	"pgsource"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	query := flag.String("query", "select 1 as n", "query to run")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	code := run(ctx, logger, *configPath, *query)
	cancel()
	_ = logger.Sync()
	os.Exit(code)
}

// run checks the pool and returns the process exit code. The process-wide
// Source is shut down before it returns.
func run(ctx context.Context, logger *zap.Logger, configPath, query string) int {
	sugar := logger.Sugar()

	config, err := pgsource.LoadConfig(configPath)
	if err != nil {
		sugar.Errorw("Failed to load config", "error", err)
		return 1
	}

	defer pgsource.Shutdown()
	if err := pgsource.Init(ctx, config, pgsource.WithLogger(logger)); err != nil {
		sugar.Errorw("Failed to initialize pool", "error", err)
		return 1
	}

	conn, err := pgsource.GetConnection(ctx)
	if err != nil {
		sugar.Errorw("Failed to acquire connection", "error", err, "retryable", pgsource.SafeToRetry(err))
		return 1
	}

	var rows []map[string]interface{}
	err = pgxscan.Select(ctx, conn, &rows, query)
	conn.Release()
	if err != nil {
		sugar.Errorw("Query failed", "query", query, "error", err)
		return 1
	}

	for _, row := range rows {
		sugar.Infow("Row", "values", row)
	}

	pool, err := pgsource.GetSource()
	if err != nil {
		sugar.Errorw("Failed to get pool", "error", err)
		return 1
	}
	st := pool.Stat()
	sugar.Infow("Pool stats",
		"total", st.TotalConns(),
		"idle", st.IdleConns(),
		"acquire_count", st.AcquireCount(),
		"acquire_duration", st.AcquireDuration(),
	)
	return 0
}
