// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graphstore executes rendered query descriptors against the
// asset knowledge graph.
//
// The engine never builds queries ad hoc; it renders a named template
// and hands the descriptor to a Store. That keeps execution swappable:
// the in-memory store in this package serves the full catalog, and a
// remote graph database can implement the same interface later without
// touching the engine.
package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atlasre/assetgraph/services/engine/template"
)

var (
	// ErrStoreUnavailable means the store has no data to serve yet, for
	// example before a seed load completed. Handlers map it to 503.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrUnsupportedQuery means the descriptor names a template this
	// store does not implement.
	ErrUnsupportedQuery = errors.New("unsupported query descriptor")
)

// Asset is one holding in the portfolio.
type Asset struct {
	Name           string  `json:"name" validate:"required"`
	City           string  `json:"city" validate:"required"`
	State          string  `json:"state" validate:"required"`
	Region         string  `json:"region" validate:"required"`
	BuildingType   string  `json:"building_type" validate:"required"`
	Platform       string  `json:"platform" validate:"required"`
	InvestmentType string  `json:"investment_type" validate:"required"`
	Description    string  `json:"description"`
	Latitude       float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

var assetValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateAsset checks a seed record before it enters the snapshot.
func ValidateAsset(a Asset) error {
	return assetValidator.Struct(a)
}

// Grouping is one row of a portfolio distribution.
type Grouping struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// AssetRow is one row of an asset listing. DistanceKM is set only for
// radius queries.
type AssetRow struct {
	Name         string   `json:"name"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	BuildingType string   `json:"building_type"`
	Platform     string   `json:"platform"`
	DistanceKM   *float64 `json:"distance_km,omitempty"`
}

// MetricPoint is a single metric observation.
type MetricPoint struct {
	Metric string    `json:"metric"`
	Value  float64   `json:"value"`
	Date   time.Time `json:"date"`
}

// MetricTrend spans the first and last observation of a metric.
type MetricTrend struct {
	Metric     string    `json:"metric"`
	StartValue float64   `json:"start_value"`
	StartDate  time.Time `json:"start_date"`
	EndValue   float64   `json:"end_value"`
	EndDate    time.Time `json:"end_date"`
	Change     float64   `json:"change"`
}

// Result carries the rows of an executed descriptor. Exactly the fields
// implied by Shape are populated; the rest stay zero.
type Result struct {
	Shape     template.Shape `json:"shape"`
	Total     *int           `json:"total,omitempty"`
	Groupings []Grouping     `json:"groupings,omitempty"`
	Assets    []AssetRow     `json:"assets,omitempty"`
	Metric    *MetricPoint   `json:"metric,omitempty"`
	Trend     *MetricTrend   `json:"trend,omitempty"`
}

// Empty reports whether the result carries no rows at all.
func (r Result) Empty() bool {
	return r.Total == nil && len(r.Groupings) == 0 && len(r.Assets) == 0 && r.Metric == nil && r.Trend == nil
}

// Store executes rendered descriptors.
type Store interface {
	Execute(ctx context.Context, qd template.QueryDescriptor) (Result, error)
}
