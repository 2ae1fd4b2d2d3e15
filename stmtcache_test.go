package pgsource

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgsource/internal/cfg"
)

// fakeCache records statements the way the LRU would.
type fakeCache struct {
	stmts map[string]*pgconn.StatementDescription
}

func newFakeCache() *fakeCache {
	return &fakeCache{stmts: make(map[string]*pgconn.StatementDescription)}
}

func (c *fakeCache) Get(_ context.Context, sql string) (*pgconn.StatementDescription, error) {
	if sd, ok := c.stmts[sql]; ok {
		return sd, nil
	}
	sd := &pgconn.StatementDescription{Name: "cached", SQL: sql}
	c.stmts[sql] = sd
	return sd, nil
}

func (c *fakeCache) Clear(context.Context) error {
	c.stmts = make(map[string]*pgconn.StatementDescription)
	return nil
}

func (c *fakeCache) StatementErrored(sql string, _ error) { delete(c.stmts, sql) }
func (c *fakeCache) Len() int                             { return len(c.stmts) }
func (c *fakeCache) Cap() int                             { return 250 }
func (c *fakeCache) Mode() int                            { return 0 }

func TestLimitedCache(t *testing.T) {
	inner := newFakeCache()
	var described []string
	c := &limitedCache{
		Cache:    inner,
		sqlLimit: 32,
		describe: func(_ context.Context, sql string) (*pgconn.StatementDescription, error) {
			described = append(described, sql)
			return &pgconn.StatementDescription{SQL: sql}, nil
		},
	}
	ctx := context.Background()

	short := "select 1"
	sd, err := c.Get(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, "cached", sd.Name)
	assert.Equal(t, 1, c.Len())

	long := "select 1 -- " + strings.Repeat("x", 32)
	sd, err = c.Get(ctx, long)
	require.NoError(t, err)
	assert.Empty(t, sd.Name)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{long}, described)

	atLimit := strings.Repeat("y", 32)
	_, err = c.Get(ctx, atLimit)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestLimitedCache_NoLimit(t *testing.T) {
	c := &limitedCache{
		Cache: newFakeCache(),
		describe: func(context.Context, string) (*pgconn.StatementDescription, error) {
			t.Fatal("describe must not be used without a limit")
			return nil, nil
		},
	}

	_, err := c.Get(context.Background(), strings.Repeat("z", 1<<16))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestBuildStatementCache(t *testing.T) {
	assert.Nil(t, buildStatementCache(cfg.StatementCacheConfig{Enabled: false, Size: 250}))
	assert.NotNil(t, buildStatementCache(cfg.StatementCacheConfig{Enabled: true, Size: 250, SQLLimit: 2048}))
}
