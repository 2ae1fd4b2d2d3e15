/*
 * Copyright (c) 2021-2022 UNNG Lab.
 */

package pgsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/puddle"

	"pgsource/internal/cfg"
)

// ConfigurationError reports malformed or missing connection parameters.
type ConfigurationError = cfg.ConfigError

// ErrPoolClosed is returned when a connection is requested after the pool has
// been shut down. It is a programming error and must not be retried.
var ErrPoolClosed = errors.New("pgsource: pool is closed")

// AcquisitionError reports a failure to lease a connection: the wait timed
// out, was canceled, or a new connection could not be established. Callers may
// retry.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("pgsource: acquire connection: timeout: %s", e.Err.Error())
	}
	return fmt.Sprintf("pgsource: acquire connection: %s", e.Err.Error())
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the acquisition gave up waiting, as opposed to
// failing to connect.
func (e *AcquisitionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) ||
		errors.Is(e.Err, context.Canceled) ||
		pgconn.Timeout(e.Err)
}

// SafeToRetry is true unless the underlying error says otherwise; nothing has
// been sent on behalf of the caller when an acquisition fails.
func (e *AcquisitionError) SafeToRetry() bool {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		// Rejected by the server (bad password, unknown database, ...).
		return false
	}
	return true
}

func wrapAcquireError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, puddle.ErrClosedPool) {
		return ErrPoolClosed
	}
	return &AcquisitionError{Err: err}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cErr *ConfigurationError
	return errors.As(err, &cErr)
}

// SafeToRetry checks if err is guaranteed to have occurred before anything
// was sent to the server.
func SafeToRetry(err error) bool {
	if e, ok := err.(interface{ SafeToRetry() bool }); ok {
		return e.SafeToRetry()
	}
	return pgconn.SafeToRetry(err)
}
