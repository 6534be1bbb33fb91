// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package timeseries

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var mortgage = Metric{
	Name:     "30-Year Mortgage Rate",
	Category: "Interest Rate",
	Scope:    "National",
	Units:    "Percent",
}

func collect(t *testing.T, s *Store, metric string, from, to time.Time) []MetricValue {
	t.Helper()
	var out []MetricValue
	for v, err := range s.Range(context.Background(), metric, from, to) {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestAppend_OutOfOrderInsertYieldsChronologicalChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Seeded in the order 2024-01, 2024-03, 2024-02: the last append must
	// splice into the interior, not land at the tail.
	_, err := s.Append(ctx, mortgage, day(2024, 1, 1), 6.62)
	require.NoError(t, err)
	_, err = s.Append(ctx, mortgage, day(2024, 3, 1), 6.94)
	require.NoError(t, err)
	res, err := s.Append(ctx, mortgage, day(2024, 2, 1), 6.78)
	require.NoError(t, err)
	assert.Equal(t, PositionInterior, res.Position)
	assert.Greater(t, res.ScanSteps, 0)

	got := collect(t, s, mortgage.Name, day(2024, 1, 1), day(2024, 12, 31))
	require.Len(t, got, 3)
	assert.Equal(t, day(2024, 1, 1), got[0].Date)
	assert.Equal(t, day(2024, 2, 1), got[1].Date)
	assert.Equal(t, day(2024, 3, 1), got[2].Date)

	earliest, err := s.Earliest(ctx, mortgage.Name)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), earliest.Date)

	latest, err := s.Latest(ctx, mortgage.Name)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 1), latest.Date)
}

func TestAppend_TailFastPathNeverScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 48; i++ {
		res, err := s.Append(ctx, mortgage, day(2020, 1, 1).AddDate(0, i, 0), 5.0+float64(i)/100)
		require.NoError(t, err)
		assert.Zero(t, res.ScanSteps, "tail append %d walked the chain", i)
		if i == 0 {
			assert.Equal(t, PositionFirst, res.Position)
		} else {
			assert.Equal(t, PositionTail, res.Position)
		}
	}
}

func TestAppend_InteriorEquivalentToTailAppends(t *testing.T) {
	ctx := context.Background()
	dates := []time.Time{
		day(2023, 1, 1), day(2023, 2, 1), day(2023, 3, 1),
		day(2023, 4, 1), day(2023, 5, 1),
	}

	ordered := newTestStore(t)
	for i, d := range dates {
		_, err := ordered.Append(ctx, mortgage, d, float64(i))
		require.NoError(t, err)
	}

	shuffled := newTestStore(t)
	for _, i := range []int{4, 0, 2, 3, 1} {
		_, err := shuffled.Append(ctx, mortgage, dates[i], float64(i))
		require.NoError(t, err)
	}

	a := collect(t, ordered, mortgage.Name, dates[0], dates[len(dates)-1])
	b := collect(t, shuffled, mortgage.Name, dates[0], dates[len(dates)-1])
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Date, b[i].Date)
		assert.Equal(t, a[i].Value, b[i].Value)
	}
}

func TestAppend_DuplicateDateRejectedAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, mortgage, day(2024, 1, 1), 6.62)
	require.NoError(t, err)
	_, err = s.Append(ctx, mortgage, day(2024, 2, 1), 6.78)
	require.NoError(t, err)
	_, err = s.Append(ctx, mortgage, day(2024, 3, 1), 6.94)
	require.NoError(t, err)

	for _, d := range []time.Time{day(2024, 1, 1), day(2024, 2, 1), day(2024, 3, 1)} {
		_, err := s.Append(ctx, mortgage, d, 9.99)
		assert.ErrorIs(t, err, ErrDuplicateDate)
	}

	// The rejected appends must leave no trace.
	rep, err := s.IntegrityCheck(ctx, mortgage.Name)
	require.NoError(t, err)
	assert.True(t, rep.Intact, "problems: %v", rep.Problems)
	assert.Equal(t, 3, rep.Nodes)

	latest, err := s.Latest(ctx, mortgage.Name)
	require.NoError(t, err)
	assert.Equal(t, 6.94, latest.Value)
}

func TestIntegrity_HoldsAfterEveryAppendOfShuffledHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(7))
	dates := make([]time.Time, 60)
	for i := range dates {
		dates[i] = day(2019, 1, 1).AddDate(0, i, 0)
	}
	rng.Shuffle(len(dates), func(i, j int) { dates[i], dates[j] = dates[j], dates[i] })

	var minDate, maxDate time.Time
	for i, d := range dates {
		_, err := s.Append(ctx, mortgage, d, rng.Float64()*10)
		require.NoError(t, err)

		if minDate.IsZero() || d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}

		rep, err := s.IntegrityCheck(ctx, mortgage.Name)
		require.NoError(t, err)
		require.True(t, rep.Intact, "append %d broke the chain: %v", i, rep.Problems)
		require.Equal(t, i+1, rep.Nodes)

		earliest, err := s.Earliest(ctx, mortgage.Name)
		require.NoError(t, err)
		require.Equal(t, minDate, earliest.Date)
		latest, err := s.Latest(ctx, mortgage.Name)
		require.NoError(t, err)
		require.Equal(t, maxDate, latest.Date)
	}
}

func TestRange_SubrangeAndRestart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := s.Append(ctx, mortgage, day(2024, time.Month(i+1), 1), float64(i))
		require.NoError(t, err)
	}

	seq := s.Range(ctx, mortgage.Name, day(2024, 3, 1), day(2024, 6, 1))

	first := 0
	for v, err := range seq {
		require.NoError(t, err)
		require.False(t, v.Date.Before(day(2024, 3, 1)))
		require.False(t, v.Date.After(day(2024, 6, 1)))
		first++
	}
	assert.Equal(t, 4, first)

	// Re-invoking the same sequence re-scans from HEAD.
	second := 0
	for _, err := range seq {
		require.NoError(t, err)
		second++
	}
	assert.Equal(t, first, second)
}

func TestRange_UnknownMetricYieldsNothing(t *testing.T) {
	s := newTestStore(t)
	got := collect(t, s, "No Such Metric", day(2000, 1, 1), day(2030, 1, 1))
	assert.Empty(t, got)
}

func TestLatestEarliest_UnknownMetricIsAbsentNotError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latest, err := s.Latest(ctx, "No Such Metric")
	require.NoError(t, err)
	assert.Nil(t, latest)

	earliest, err := s.Earliest(ctx, "No Such Metric")
	require.NoError(t, err)
	assert.Nil(t, earliest)
}

func TestAppend_DistinctChainsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	metrics := []Metric{
		{Name: "Federal Funds Rate", Category: "Interest Rate", Scope: "National", Units: "Percent"},
		{Name: "California Unemployment Rate", Category: "Labor", Scope: "California", Units: "Percent"},
		{Name: "Texas Unemployment Rate", Category: "Labor", Scope: "Texas", Units: "Percent"},
		{Name: "Housing Starts", Category: "Housing", Scope: "National", Units: "Thousands"},
	}

	var wg sync.WaitGroup
	for _, m := range metrics {
		wg.Add(1)
		go func(m Metric) {
			defer wg.Done()
			for i := 0; i < 24; i++ {
				_, err := s.Append(ctx, m, day(2022, 1, 1).AddDate(0, i, 0), float64(i))
				assert.NoError(t, err)
			}
		}(m)
	}
	wg.Wait()

	names, err := s.Metrics(ctx)
	require.NoError(t, err)
	assert.Len(t, names, len(metrics))
	for _, m := range metrics {
		rep, err := s.IntegrityCheck(ctx, m.Name)
		require.NoError(t, err)
		assert.True(t, rep.Intact)
		assert.Equal(t, 24, rep.Nodes)
	}
}

func TestDescribe_ReturnsMetricAttributes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, mortgage, day(2024, 1, 1), 6.62)
	require.NoError(t, err)

	m, n, err := s.Describe(ctx, mortgage.Name)
	require.NoError(t, err)
	assert.Equal(t, mortgage, m)
	assert.Equal(t, 1, n)

	_, _, err = s.Describe(ctx, "No Such Metric")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
