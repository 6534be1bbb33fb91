// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/atlasre/assetgraph/services/engine/template"
	"github.com/atlasre/assetgraph/services/timeseries"
)

var memoryTracer = otel.Tracer("assetgraph.services.graphstore.memory")

// Memory serves asset queries from an in-process snapshot and delegates
// economic descriptors to the chain store. The snapshot is replaced
// atomically by LoadAssets; reads take the read lock only.
type Memory struct {
	mu      sync.RWMutex
	assets  []Asset
	metrics *timeseries.Store
	logger  *slog.Logger
}

var _ Store = (*Memory)(nil)

// NewMemory builds an empty store. Asset queries fail with
// ErrStoreUnavailable until LoadAssets runs; economic queries fail the
// same way when metrics is nil.
func NewMemory(metrics *timeseries.Store, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{metrics: metrics, logger: logger}
}

// LoadAssets validates and installs a new snapshot, replacing any
// previous one. The whole batch is rejected on the first invalid record.
func (m *Memory) LoadAssets(assets []Asset) error {
	for i, a := range assets {
		if err := ValidateAsset(a); err != nil {
			return fmt.Errorf("asset %d (%s): %w", i, a.Name, err)
		}
	}
	snapshot := make([]Asset, len(assets))
	copy(snapshot, assets)

	m.mu.Lock()
	m.assets = snapshot
	m.mu.Unlock()

	m.logger.Info("asset snapshot installed", "assets", len(snapshot))
	return nil
}

// AssetCount returns the size of the current snapshot.
func (m *Memory) AssetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// Execute dispatches on the descriptor name. Results are sorted the way
// the template bodies declare, so output is deterministic for a given
// snapshot.
func (m *Memory) Execute(ctx context.Context, qd template.QueryDescriptor) (Result, error) {
	ctx, span := memoryTracer.Start(ctx, "graphstore.Execute")
	defer span.End()

	switch qd.Name {
	case "count_all_assets":
		return m.total()
	case "portfolio_by_platform":
		return m.grouping(func(a Asset) string { return a.Platform })
	case "portfolio_by_region":
		return m.grouping(func(a Asset) string { return a.Region })
	case "portfolio_by_investment_type":
		return m.grouping(func(a Asset) string { return a.InvestmentType })
	case "portfolio_by_building_type":
		return m.grouping(func(a Asset) string { return a.BuildingType })
	case "portfolio_by_state":
		return m.grouping(func(a Asset) string { return a.State })

	case "assets_by_state":
		return m.listing(func(a Asset) bool { return a.State == qd.Params["state_name"] })
	case "assets_by_state_and_type":
		return m.listing(func(a Asset) bool {
			return a.State == qd.Params["state_name"] && a.BuildingType == qd.Params["building_type"]
		})
	case "assets_by_city":
		return m.listing(func(a Asset) bool { return a.City == qd.Params["city_name"] })
	case "assets_by_city_and_type":
		return m.listing(func(a Asset) bool {
			return a.City == qd.Params["city_name"] && a.BuildingType == qd.Params["building_type"]
		})
	case "assets_by_region":
		return m.listing(func(a Asset) bool { return a.Region == qd.Params["region_name"] })
	case "assets_by_region_and_type":
		return m.listing(func(a Asset) bool {
			return a.Region == qd.Params["region_name"] && a.BuildingType == qd.Params["building_type"]
		})
	case "all_assets":
		return m.listing(func(Asset) bool { return true })

	case "assets_within_radius":
		reference, _ := qd.Params["reference"].(string)
		radius, _ := qd.Params["radius_km"].(float64)
		return m.radius(reference, radius)

	case "latest_metric":
		name, _ := qd.Params["metric_name"].(string)
		return m.latestMetric(ctx, name)
	case "metric_trend":
		name, _ := qd.Params["metric_name"].(string)
		return m.metricTrend(ctx, name)

	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedQuery, qd.Name)
	}
}

func (m *Memory) snapshot() ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.assets == nil {
		return nil, ErrStoreUnavailable
	}
	return m.assets, nil
}

func (m *Memory) total() (Result, error) {
	assets, err := m.snapshot()
	if err != nil {
		return Result{}, err
	}
	n := len(assets)
	return Result{Shape: template.ShapeAssetCount, Total: &n}, nil
}

func (m *Memory) grouping(key func(Asset) string) (Result, error) {
	assets, err := m.snapshot()
	if err != nil {
		return Result{}, err
	}
	counts := make(map[string]int)
	for _, a := range assets {
		counts[key(a)]++
	}
	rows := make([]Grouping, 0, len(counts))
	for category, count := range counts {
		rows = append(rows, Grouping{Category: category, Count: count})
	}
	// Count descending, category ascending for ties.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Category < rows[j].Category
	})
	return Result{Shape: template.ShapeGrouping, Groupings: rows}, nil
}

func (m *Memory) listing(keep func(Asset) bool) (Result, error) {
	assets, err := m.snapshot()
	if err != nil {
		return Result{}, err
	}
	var rows []AssetRow
	for _, a := range assets {
		if keep(a) {
			rows = append(rows, AssetRow{
				Name: a.Name, City: a.City, State: a.State,
				BuildingType: a.BuildingType, Platform: a.Platform,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].State != rows[j].State {
			return rows[i].State < rows[j].State
		}
		if rows[i].City != rows[j].City {
			return rows[i].City < rows[j].City
		}
		return rows[i].Name < rows[j].Name
	})
	return Result{Shape: template.ShapeAssetList, Assets: rows}, nil
}

// radius resolves the reference against asset names first, then city
// names, then measures great-circle distance to every located asset.
func (m *Memory) radius(reference string, radiusKM float64) (Result, error) {
	assets, err := m.snapshot()
	if err != nil {
		return Result{}, err
	}
	ref := strings.ToLower(reference)

	var lat, lon float64
	found := false
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), ref) {
			lat, lon, found = a.Latitude, a.Longitude, true
			break
		}
	}
	if !found {
		// Average the coordinates of assets in the matching city.
		var n int
		for _, a := range assets {
			if strings.Contains(strings.ToLower(a.City), ref) {
				lat += a.Latitude
				lon += a.Longitude
				n++
			}
		}
		if n > 0 {
			lat, lon, found = lat/float64(n), lon/float64(n), true
		}
	}
	if !found {
		return Result{Shape: template.ShapeAssetDistance}, nil
	}

	var rows []AssetRow
	for _, a := range assets {
		if a.Latitude == 0 && a.Longitude == 0 {
			continue
		}
		d := haversineKM(lat, lon, a.Latitude, a.Longitude)
		if d > radiusKM {
			continue
		}
		d = math.Round(d*10) / 10
		dist := d
		rows = append(rows, AssetRow{
			Name: a.Name, City: a.City, State: a.State,
			BuildingType: a.BuildingType, Platform: a.Platform,
			DistanceKM: &dist,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if *rows[i].DistanceKM != *rows[j].DistanceKM {
			return *rows[i].DistanceKM < *rows[j].DistanceKM
		}
		return rows[i].Name < rows[j].Name
	})
	return Result{Shape: template.ShapeAssetDistance, Assets: rows}, nil
}

func (m *Memory) latestMetric(ctx context.Context, name string) (Result, error) {
	if m.metrics == nil {
		return Result{}, ErrStoreUnavailable
	}
	mv, err := m.metrics.Latest(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if mv == nil {
		return Result{Shape: template.ShapeLatestMetric}, nil
	}
	return Result{
		Shape:  template.ShapeLatestMetric,
		Metric: &MetricPoint{Metric: name, Value: mv.Value, Date: mv.Date},
	}, nil
}

func (m *Memory) metricTrend(ctx context.Context, name string) (Result, error) {
	if m.metrics == nil {
		return Result{}, ErrStoreUnavailable
	}
	first, err := m.metrics.Earliest(ctx, name)
	if err != nil {
		return Result{}, err
	}
	last, err := m.metrics.Latest(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if first == nil || last == nil {
		return Result{Shape: template.ShapeMetricTrend}, nil
	}
	return Result{
		Shape: template.ShapeMetricTrend,
		Trend: &MetricTrend{
			Metric:     name,
			StartValue: first.Value,
			StartDate:  first.Date,
			EndValue:   last.Value,
			EndDate:    last.Date,
			Change:     last.Value - first.Value,
		},
	}, nil
}

// haversineKM is the great-circle distance between two coordinates.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
