// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 1
	defaultBackoff = 250 * time.Millisecond
)

// Resilient wraps a Client with a per-attempt timeout and a bounded
// retry with backoff. It never retries when the caller's own context is
// done, and a cancellation during the backoff wait is honored too.
type Resilient struct {
	inner   Client
	timeout time.Duration
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

var _ Client = (*Resilient)(nil)

// WithResilience wraps inner. Non-positive timeout or retries fall back
// to the defaults (10s, one retry); attempts are spaced by a fixed
// 250ms backoff.
func WithResilience(inner Client, timeout time.Duration, retries int, logger *slog.Logger) *Resilient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if retries < 0 {
		retries = defaultRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{inner: inner, timeout: timeout, retries: retries, backoff: defaultBackoff, logger: logger}
}

func (r *Resilient) Dimensions() int { return r.inner.Dimensions() }

// Embed implements the Client interface.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		vec, err := r.inner.Embed(attemptCtx, text)
		cancel()
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < r.retries {
			r.logger.Warn("embedding attempt failed, retrying", "attempt", attempt+1, "error", err)
			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}
