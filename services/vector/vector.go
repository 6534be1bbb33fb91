// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vector ranks assets by embedding similarity.
//
// Structured filters are applied to the candidate set BEFORE the result
// list is truncated to the requested limit. Filtering after truncation
// would silently drop matching assets whenever the top-k happened to be
// dominated by out-of-filter neighbors, so both implementations in this
// package push the filter into the candidate selection itself.
package vector

import (
	"context"
	"errors"
)

// ErrIndexUnavailable means the vector backend cannot serve searches.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Filter narrows a similarity search to assets matching every set field.
// Empty fields are ignored.
type Filter struct {
	State        string
	City         string
	Region       string
	BuildingType string
}

// IsZero reports whether no field is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Document is one indexed asset with its embedding vector.
type Document struct {
	Name         string
	City         string
	State        string
	Region       string
	BuildingType string
	Platform     string
	Description  string
	Vector       []float32
}

// Hit is one ranked search result. Score is cosine similarity in [-1, 1];
// higher is more similar.
type Hit struct {
	Name         string  `json:"name"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	BuildingType string  `json:"building_type"`
	Platform     string  `json:"platform"`
	Description  string  `json:"description"`
	Score        float64 `json:"score"`
}

// Searcher finds the assets most similar to a query vector, restricted
// to the filter.
type Searcher interface {
	Search(ctx context.Context, vec []float32, filter Filter, limit int) ([]Hit, error)
}
