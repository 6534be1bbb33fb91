// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(name, state, buildingType string, vec []float32) Document {
	return Document{
		Name: name, State: state, City: "Somewhere", Region: "West",
		BuildingType: buildingType, Platform: "Real Estate", Vector: vec,
	}
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(
		doc("Close Match", "California", "Residential", []float32{1, 0, 0}),
		doc("Orthogonal", "California", "Residential", []float32{0, 1, 0}),
		doc("Opposite", "California", "Residential", []float32{-1, 0, 0}),
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, Filter{}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, "Close Match", hits[0].Name)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "Opposite", hits[2].Name)
	assert.InDelta(t, -1.0, hits[2].Score, 1e-9)
}

func TestSearch_FilterAppliesBeforeTruncation(t *testing.T) {
	idx := NewMemoryIndex()

	// Ten Texas documents that are all nearly identical to the query, and
	// one California document that is a much worse match. Filtering after
	// a top-3 truncation would never see the California asset.
	for i := 0; i < 10; i++ {
		idx.Add(doc("Texas Tower", "Texas", "Commercial", []float32{1, 0.001 * float32(i), 0}))
	}
	idx.Add(doc("Distant Californian", "California", "Commercial", []float32{0.2, 1, 0}))

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, Filter{State: "California"}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "Distant Californian", hits[0].Name)
}

func TestSearch_ConjunctiveFilter(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(
		doc("A", "Texas", "Commercial", []float32{1, 0}),
		doc("B", "Texas", "Residential", []float32{1, 0}),
		doc("C", "California", "Commercial", []float32{1, 0}),
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, Filter{
		State: "Texas", BuildingType: "Commercial",
	}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].Name)
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	idx := NewMemoryIndex()
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		idx.Add(doc(name, "Texas", "Commercial", []float32{1, 0}))
	}

	hits, err := idx.Search(context.Background(), []float32{1, 0}, Filter{}, 2)
	require.NoError(t, err)

	assert.Len(t, hits, 2)
}

func TestSearch_EmptyIndexYieldsEmptyResult(t *testing.T) {
	idx := NewMemoryIndex()

	hits, err := idx.Search(context.Background(), []float32{1, 0}, Filter{}, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_MismatchedDimensionsAreSkipped(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(
		doc("Right Width", "Texas", "Commercial", []float32{1, 0, 0}),
		doc("Wrong Width", "Texas", "Commercial", []float32{1, 0}),
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, Filter{}, 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "Right Width", hits[0].Name)
}

func TestAdd_SkipsDocumentsWithoutVectors(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add(doc("No Vector", "Texas", "Commercial", nil))

	assert.Equal(t, 0, idx.Len())
}

func TestBuildWhere_OperandStructure(t *testing.T) {
	assert.Nil(t, buildWhere(Filter{}))
	assert.NotNil(t, buildWhere(Filter{State: "Texas"}))
	assert.NotNil(t, buildWhere(Filter{State: "Texas", BuildingType: "Commercial"}))
}
