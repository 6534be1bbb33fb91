// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine index. It serves deployments that
// run without a vector database and the test suite.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

var _ Searcher = (*MemoryIndex)(nil)

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add indexes documents. Documents without a vector are skipped.
func (m *MemoryIndex) Add(docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if len(d.Vector) == 0 {
			continue
		}
		m.docs = append(m.docs, d)
	}
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (f Filter) matches(d Document) bool {
	if f.State != "" && d.State != f.State {
		return false
	}
	if f.City != "" && d.City != f.City {
		return false
	}
	if f.Region != "" && d.Region != f.Region {
		return false
	}
	if f.BuildingType != "" && d.BuildingType != f.BuildingType {
		return false
	}
	return true
}

// Search implements the Searcher interface. The filter runs over the
// whole index before ranking, so the limit only ever trims matching
// documents. An empty index yields an empty result, not an error.
func (m *MemoryIndex) Search(ctx context.Context, vec []float32, filter Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, d := range m.docs {
		if !filter.matches(d) {
			continue
		}
		score, ok := cosine(vec, d.Vector)
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Name: d.Name, City: d.City, State: d.State,
			BuildingType: d.BuildingType, Platform: d.Platform,
			Description: d.Description, Score: score,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Name < hits[j].Name
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosine returns the similarity of two vectors, or false when the
// lengths differ or either vector has zero magnitude.
func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
