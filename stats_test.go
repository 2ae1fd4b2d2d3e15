package pgsource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pgsource/internal/cfg"
)

func TestStatsReporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := startStatsReporter(5*time.Millisecond, func() []zap.Field {
		return []zap.Field{zap.Int32("total", 3)}
	}, zap.New(core))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("pool stats").Len() >= 2
	}, time.Second, 5*time.Millisecond)

	r.stop()
	n := logs.FilterMessage("pool stats").Len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, logs.FilterMessage("pool stats").Len())

	entry := logs.FilterMessage("pool stats").All()[0]
	assert.Equal(t, int32(3), entry.ContextMap()["total"])
}

func TestNew_StatsInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := lazyConfig()
	c.StatsInterval = cfg.Duration(5 * time.Millisecond)
	s := newLazySource(t, c, WithLogger(zap.New(core)))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("pool stats").Len() >= 1
	}, time.Second, 5*time.Millisecond)

	s.Close()
	fields := logs.FilterMessage("pool stats").All()[0].ContextMap()
	assert.Equal(t, c.MaxConns, fields["max"])
}
