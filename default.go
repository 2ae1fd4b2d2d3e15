/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4/pgxpool"
)

// The process-wide Source. Code that can take a *Source as a dependency
// should; these functions exist for code that cannot.
var (
	defaultOnce   sync.Once
	defaultSource *Source
	defaultErr    error
)

func initDefault(ctx context.Context, load func() (*Config, error), opts []Option) {
	defaultOnce.Do(func() {
		config, err := load()
		if err != nil {
			defaultErr = err
			return
		}
		defaultSource, defaultErr = New(ctx, config, opts...)
	})
}

// Init constructs the process-wide Source from config. Only the first call,
// among any number of concurrent ones, constructs anything; every call returns
// the outcome of that first one.
func Init(ctx context.Context, config *Config, opts ...Option) error {
	initDefault(ctx, func() (*Config, error) { return config, nil }, opts)
	return defaultErr
}

func defaultSourceOrInit(ctx context.Context) (*Source, error) {
	initDefault(ctx, func() (*Config, error) { return LoadConfig("") }, nil)
	return defaultSource, defaultErr
}

// GetConnection leases a connection from the process-wide Source. If Init has
// not been called the Source is initialized from the environment first. When
// initialization failed, its error is returned on every call.
func GetConnection(ctx context.Context) (*Conn, error) {
	s, err := defaultSourceOrInit(ctx)
	if err != nil {
		return nil, err
	}
	return s.Conn(ctx)
}

// GetSource returns the pool behind the process-wide Source, initializing it
// from the environment when needed. After Shutdown it returns ErrPoolClosed.
func GetSource() (*pgxpool.Pool, error) {
	s, err := defaultSourceOrInit(context.Background())
	if err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrPoolClosed
	}
	return s.Pool(), nil
}

// Shutdown closes the process-wide Source. Afterwards GetConnection returns
// ErrPoolClosed, including when Init was never called.
func Shutdown() {
	defaultOnce.Do(func() {
		defaultErr = ErrPoolClosed
	})
	if defaultSource != nil {
		defaultSource.Close()
	}
}
