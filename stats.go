/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// statsReporter periodically logs pool statistics.
type statsReporter struct {
	ticker *time.Ticker
	fields func() []zap.Field
	log    *zap.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

func startStatsReporter(interval time.Duration, fields func() []zap.Field, log *zap.Logger) *statsReporter {
	r := &statsReporter{
		ticker: time.NewTicker(interval),
		fields: fields,
		log:    log,
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *statsReporter) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.log.Info("pool stats", r.fields()...)
		case <-r.done:
			return
		}
	}
}

func (r *statsReporter) stop() {
	r.ticker.Stop()
	close(r.done)
	r.wg.Wait()
}

func statFields(st *pgxpool.Stat) []zap.Field {
	return []zap.Field{
		zap.Int32("total", st.TotalConns()),
		zap.Int32("acquired", st.AcquiredConns()),
		zap.Int32("idle", st.IdleConns()),
		zap.Int32("constructing", st.ConstructingConns()),
		zap.Int32("max", st.MaxConns()),
		zap.Int64("acquire_count", st.AcquireCount()),
		zap.Duration("acquire_duration", st.AcquireDuration()),
		zap.Int64("empty_acquire_count", st.EmptyAcquireCount()),
		zap.Int64("canceled_acquire_count", st.CanceledAcquireCount()),
	}
}
