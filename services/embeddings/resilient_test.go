// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flaky fails a fixed number of calls before succeeding.
type flaky struct {
	failures int
	calls    int
	vec      []float32
}

func (f *flaky) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, ErrUnavailable
	}
	return f.vec, nil
}

func (f *flaky) Dimensions() int { return len(f.vec) }

func TestResilient_RetriesOnceThenSucceeds(t *testing.T) {
	inner := &flaky{failures: 1, vec: []float32{0.1, 0.2}}
	c := WithResilience(inner, time.Second, 1, nil)
	c.backoff = time.Millisecond

	vec, err := c.Embed(context.Background(), "sustainable properties")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, 2, inner.calls)
}

func TestResilient_ExhaustedRetriesReturnLastError(t *testing.T) {
	inner := &flaky{failures: 10, vec: []float32{0.1}}
	c := WithResilience(inner, time.Second, 1, nil)
	c.backoff = time.Millisecond

	_, err := c.Embed(context.Background(), "anything")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestResilient_WaitsBeforeRetrying(t *testing.T) {
	inner := &flaky{failures: 1, vec: []float32{0.1}}
	c := WithResilience(inner, time.Second, 1, nil)
	c.backoff = 60 * time.Millisecond

	start := time.Now()
	_, err := c.Embed(context.Background(), "anything")

	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond,
		"second attempt must not fire before the backoff elapses")
}

func TestResilient_CancelDuringBackoffStopsRetrying(t *testing.T) {
	inner := &flaky{failures: 10, vec: []float32{0.1}}
	c := WithResilience(inner, time.Second, 3, nil)
	c.backoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Embed(ctx, "anything")

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, inner.calls)
	assert.Less(t, time.Since(start), 10*time.Second, "cancellation must cut the backoff wait short")
}

func TestResilient_CanceledCallerContextStopsRetrying(t *testing.T) {
	inner := &flaky{failures: 10, vec: []float32{0.1}}
	c := WithResilience(inner, time.Second, 5, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Embed(ctx, "anything")

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, inner.calls)
}
