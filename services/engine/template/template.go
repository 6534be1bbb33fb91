// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package template holds the fixed registry of graph query templates.
//
// Every query the engine can run is a named template with a constant
// body and a declared parameter list. User text never reaches the query
// body: extracted values travel only through the Params map, so a
// malicious question cannot change the query structure. Render fails
// with a typed error when a declared parameter is absent or invalid.
package template

import (
	"fmt"
	"strings"

	"github.com/atlasre/assetgraph/services/engine/extract"
)

// Shape tells the formatter what row layout a template yields.
type Shape string

const (
	// ShapeGrouping rows carry a category name and a count.
	ShapeGrouping Shape = "grouping"
	// ShapeAssetCount is a single portfolio-wide total.
	ShapeAssetCount Shape = "asset_count"
	// ShapeAssetList rows carry asset name, city, state, building type, platform.
	ShapeAssetList Shape = "asset_list"
	// ShapeAssetDistance rows are asset list rows plus a distance in km.
	ShapeAssetDistance Shape = "asset_distance"
	// ShapeLatestMetric is a single metric observation.
	ShapeLatestMetric Shape = "latest_metric"
	// ShapeMetricTrend is first and last observation of a metric plus delta.
	ShapeMetricTrend Shape = "metric_trend"
)

// QueryDescriptor is a rendered, executable query. Text is the constant
// template body; all user-derived values live in Params.
type QueryDescriptor struct {
	Name   string
	Text   string
	Shape  Shape
	Params map[string]any
}

// Error reports a template that could not be rendered.
type Error struct {
	Template string
	Field    string
	Reason   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("template %s: parameter %q %s", e.Template, e.Field, e.Reason)
	}
	return fmt.Sprintf("template %s: %s", e.Template, e.Reason)
}

// paramSpec declares one template parameter. Check is optional; it sees
// the supplied value after the presence check passed.
type paramSpec struct {
	Name  string
	Check func(v any) string // returns a reason, or "" when valid
}

type entry struct {
	Text   string
	Shape  Shape
	Params []paramSpec
}

// Registry maps template names to their fixed definitions.
type Registry struct {
	entries map[string]entry
}

func nonEmptyString(v any) string {
	s, ok := v.(string)
	if !ok {
		return "must be a string"
	}
	if s == "" {
		return "must not be empty"
	}
	return ""
}

func positiveNumber(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "must be a number"
	}
	if f <= 0 {
		return "must be greater than zero"
	}
	return ""
}

// New returns the registry with every template the engine knows.
func New() *Registry {
	str := func(name string) paramSpec { return paramSpec{Name: name, Check: nonEmptyString} }
	return &Registry{entries: map[string]entry{
		"portfolio_by_platform": {
			Shape: ShapeGrouping,
			Text: `MATCH (a:Asset)
RETURN a.platform AS category, COUNT(a) AS count
ORDER BY count DESC`,
		},
		"portfolio_by_region": {
			Shape: ShapeGrouping,
			Text: `MATCH (a:Asset)-[:LOCATED_IN]->(:City)-[:PART_OF]->(:State)-[:PART_OF]->(r:Region)
RETURN r.name AS category, COUNT(a) AS count
ORDER BY count DESC`,
		},
		"portfolio_by_investment_type": {
			Shape: ShapeGrouping,
			Text: `MATCH (a:Asset)
RETURN a.investment_type AS category, COUNT(a) AS count
ORDER BY count DESC`,
		},
		"portfolio_by_building_type": {
			Shape: ShapeGrouping,
			Text: `MATCH (a:Asset)
RETURN a.building_type AS category, COUNT(a) AS count
ORDER BY count DESC`,
		},
		"count_all_assets": {
			Shape: ShapeAssetCount,
			Text: `MATCH (a:Asset)
RETURN COUNT(a) AS total`,
		},
		"portfolio_by_state": {
			Shape: ShapeGrouping,
			Text: `MATCH (a:Asset)-[:LOCATED_IN]->(:City)-[:PART_OF]->(s:State)
RETURN s.name AS category, COUNT(a) AS count
ORDER BY count DESC`,
		},

		"assets_by_state": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("state_name")},
			Text: `MATCH (a:Asset)
WHERE a.state = $state_name
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_by_state_and_type": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("state_name"), str("building_type")},
			Text: `MATCH (a:Asset)
WHERE a.state = $state_name AND a.building_type = $building_type
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_by_city": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("city_name")},
			Text: `MATCH (a:Asset)
WHERE a.city = $city_name
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_by_city_and_type": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("city_name"), str("building_type")},
			Text: `MATCH (a:Asset)
WHERE a.city = $city_name AND a.building_type = $building_type
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_by_region": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("region_name")},
			Text: `MATCH (a:Asset)-[:LOCATED_IN]->(:City)-[:PART_OF]->(:State)-[:PART_OF]->(r:Region {name: $region_name})
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_by_region_and_type": {
			Shape:  ShapeAssetList,
			Params: []paramSpec{str("region_name"), str("building_type")},
			Text: `MATCH (a:Asset)-[:LOCATED_IN]->(:City)-[:PART_OF]->(:State)-[:PART_OF]->(r:Region {name: $region_name})
WHERE a.building_type = $building_type
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.name`,
		},
		"assets_within_radius": {
			Shape: ShapeAssetDistance,
			Params: []paramSpec{
				str("reference"),
				{Name: "radius_km", Check: positiveNumber},
			},
			Text: `MATCH (a:Asset)
WHERE a.location IS NOT NULL
WITH a, point.distance(a.location, $reference) AS distance_meters
WHERE distance_meters <= $radius_km * 1000
RETURN a.name, a.city, a.state, a.building_type, a.platform,
       round(distance_meters/1000, 1) AS distance_km
ORDER BY distance_meters`,
		},
		"all_assets": {
			Shape: ShapeAssetList,
			Text: `MATCH (a:Asset)
RETURN a.name, a.city, a.state, a.building_type, a.platform
ORDER BY a.state, a.city, a.name`,
		},

		"latest_metric": {
			Shape:  ShapeLatestMetric,
			Params: []paramSpec{str("metric_name")},
			Text: `MATCH (mt:MetricType {name: $metric_name})-[:TAIL]->(mv:MetricValue)
RETURN mt.name AS metric, mv.value AS current_value, mv.date AS current_date`,
		},
		"metric_trend": {
			Shape:  ShapeMetricTrend,
			Params: []paramSpec{str("metric_name")},
			Text: `MATCH (mt:MetricType {name: $metric_name})-[:HEAD]->(first:MetricValue)
MATCH (mt)-[:TAIL]->(last:MetricValue)
RETURN mt.name AS metric,
       first.value AS start_value, first.date AS start_date,
       last.value AS end_value, last.date AS end_date,
       last.value - first.value AS change`,
		},
	}}
}

// Names returns every registered template name, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	return names
}

// Render produces an executable descriptor for the named template. The
// supplied params are validated against the template's declared list and
// copied, so callers cannot mutate a rendered descriptor afterwards.
// Parameters not declared by the template are rejected: a template only
// ever sees the values it asked for.
func (r *Registry) Render(name string, params map[string]any) (QueryDescriptor, error) {
	e, ok := r.entries[name]
	if !ok {
		return QueryDescriptor{}, &Error{Template: name, Reason: "unknown template"}
	}
	declared := make(map[string]bool, len(e.Params))
	for _, p := range e.Params {
		declared[p.Name] = true
		v, present := params[p.Name]
		if !present {
			return QueryDescriptor{}, &Error{Template: name, Field: p.Name, Reason: "is required"}
		}
		if p.Check != nil {
			if reason := p.Check(v); reason != "" {
				return QueryDescriptor{}, &Error{Template: name, Field: p.Name, Reason: reason}
			}
		}
	}
	for k := range params {
		if !declared[k] {
			return QueryDescriptor{}, &Error{Template: name, Field: k, Reason: "is not declared by this template"}
		}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return QueryDescriptor{Name: name, Text: e.Text, Shape: e.Shape, Params: out}, nil
}

// ForPortfolio picks the portfolio grouping template from the question
// wording. Platform is the default grouping when nothing else matches.
func (r *Registry) ForPortfolio(question string) (QueryDescriptor, error) {
	text := strings.ToLower(question)
	switch {
	case strings.Contains(text, "platform"):
		return r.Render("portfolio_by_platform", nil)
	case strings.Contains(text, "region"):
		return r.Render("portfolio_by_region", nil)
	case strings.Contains(text, "investment") && strings.Contains(text, "type"):
		return r.Render("portfolio_by_investment_type", nil)
	case strings.Contains(text, "building") && strings.Contains(text, "type"):
		return r.Render("portfolio_by_building_type", nil)
	case strings.Contains(text, "state"):
		return r.Render("portfolio_by_state", nil)
	default:
		return r.Render("portfolio_by_platform", nil)
	}
}

// ForGeographic picks the geographic template for an extraction record.
// Radius queries win over plain location filters; a record with no
// location at all falls back to the full asset list. A radius with no
// reference point is an error rather than a silent fallthrough: the
// question asked for proximity and a plain location filter would
// discard the distance constraint without telling the caller.
func (r *Registry) ForGeographic(rec extract.Record) (QueryDescriptor, error) {
	if rec.RadiusKM != nil {
		if rec.Reference == "" {
			return QueryDescriptor{}, &Error{
				Template: "assets_within_radius",
				Field:    "reference",
				Reason:   "is required: a radius query needs a reference point, e.g. \"within 25 km of Austin\"",
			}
		}
		return r.Render("assets_within_radius", map[string]any{
			"reference": rec.Reference,
			"radius_km": *rec.RadiusKM,
		})
	}
	switch {
	case rec.State != "" && rec.BuildingType != "":
		return r.Render("assets_by_state_and_type", map[string]any{
			"state_name": rec.State, "building_type": rec.BuildingType,
		})
	case rec.State != "":
		return r.Render("assets_by_state", map[string]any{"state_name": rec.State})
	case rec.City != "" && rec.BuildingType != "":
		return r.Render("assets_by_city_and_type", map[string]any{
			"city_name": rec.City, "building_type": rec.BuildingType,
		})
	case rec.City != "":
		return r.Render("assets_by_city", map[string]any{"city_name": rec.City})
	case rec.Region != "" && rec.BuildingType != "":
		return r.Render("assets_by_region_and_type", map[string]any{
			"region_name": rec.Region, "building_type": rec.BuildingType,
		})
	case rec.Region != "":
		return r.Render("assets_by_region", map[string]any{"region_name": rec.Region})
	default:
		return r.Render("all_assets", nil)
	}
}

// defaultMetric is used when an economic question names no known metric.
const defaultMetric = "California Unemployment Rate"

// ForEconomic picks latest-value or trend for the extracted metric.
func (r *Registry) ForEconomic(question string, rec extract.Record) (QueryDescriptor, error) {
	metric := rec.MetricName
	if metric == "" {
		metric = defaultMetric
	}
	params := map[string]any{"metric_name": metric}
	text := strings.ToLower(question)
	if strings.Contains(text, "trend") || strings.Contains(text, "change") || strings.Contains(text, "over time") {
		return r.Render("metric_trend", params)
	}
	return r.Render("latest_metric", params)
}
