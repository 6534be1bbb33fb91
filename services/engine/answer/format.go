// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package answer

import (
	"fmt"
	"strings"

	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/vector"
)

// Formatting is deterministic: the same result always renders the same
// text, with no model in the loop.

const dateLayout = "2006-01-02"

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func location(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	case state != "":
		return state
	default:
		return "Unknown"
	}
}

func formatAssetCount(total *int) string {
	if total == nil {
		return "No asset data found."
	}
	noun := "assets"
	if *total == 1 {
		noun = "asset"
	}
	return fmt.Sprintf("The portfolio holds %d %s.", *total, noun)
}

func formatGroupings(rows []graphstore.Grouping) string {
	if len(rows) == 0 {
		return "No portfolio data found."
	}
	var b strings.Builder
	b.WriteString("Portfolio Distribution:\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString(fmt.Sprintf("%-20s %-10s\n", "Category", "Count"))
	b.WriteString(strings.Repeat("-", 40))
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("\n%-20s %-10d", truncate(r.Category, 20), r.Count))
	}
	return b.String()
}

func formatAssetTable(rows []graphstore.AssetRow) string {
	if len(rows) == 0 {
		return "No assets found."
	}
	hasDistance := false
	for _, r := range rows {
		if r.DistanceKM != nil {
			hasDistance = true
			break
		}
	}

	var b strings.Builder
	b.WriteString("Asset Details:\n")
	b.WriteString(strings.Repeat("=", 120) + "\n")
	if hasDistance {
		b.WriteString(fmt.Sprintf("%-30s %-25s %-20s %-15s %-10s\n", "Asset Name", "Location", "Type", "Platform", "Distance"))
	} else {
		b.WriteString(fmt.Sprintf("%-30s %-25s %-20s %-15s\n", "Asset Name", "Location", "Type", "Platform"))
	}
	b.WriteString(strings.Repeat("-", 120))
	for _, r := range rows {
		name := truncate(r.Name, 30)
		loc := truncate(location(r.City, r.State), 25)
		btype := truncate(r.BuildingType, 20)
		platform := truncate(r.Platform, 15)
		if hasDistance {
			distance := "N/A"
			if r.DistanceKM != nil {
				distance = fmt.Sprintf("%.1f km", *r.DistanceKM)
			}
			b.WriteString(fmt.Sprintf("\n%-30s %-25s %-20s %-15s %-10s", name, loc, btype, platform, distance))
		} else {
			b.WriteString(fmt.Sprintf("\n%-30s %-25s %-20s %-15s", name, loc, btype, platform))
		}
	}
	return b.String()
}

// formatGeographicSummary is the one-line count answer for location
// queries. The location label comes from the extraction, never from
// re-parsing the question.
func formatGeographicSummary(rows []graphstore.AssetRow, place string, radiusKM *float64, reference string) string {
	if len(rows) == 0 {
		return "No matching assets found for this geographic query."
	}
	noun := "assets"
	if len(rows) == 1 {
		noun = "asset"
	}
	if radiusKM != nil && reference != "" {
		return fmt.Sprintf("Found %d %s within %.0f km of %s.", len(rows), noun, *radiusKM, reference)
	}
	if place == "" {
		place = "the specified location"
	}
	return fmt.Sprintf("Found %d %s in %s.", len(rows), noun, place)
}

func formatEconomic(res graphstore.Result) string {
	var metric, value, date string
	switch {
	case res.Metric != nil:
		metric = res.Metric.Metric
		value = fmt.Sprintf("%g", res.Metric.Value)
		date = res.Metric.Date.Format(dateLayout)
	case res.Trend != nil:
		metric = res.Trend.Metric
		value = fmt.Sprintf("%g -> %g (delta %g)", res.Trend.StartValue, res.Trend.EndValue, res.Trend.Change)
		date = res.Trend.StartDate.Format(dateLayout) + " to " + res.Trend.EndDate.Format(dateLayout)
	default:
		return "No economic data found."
	}

	var b strings.Builder
	b.WriteString("Economic Data:\n")
	b.WriteString(strings.Repeat("=", 80) + "\n")
	b.WriteString(fmt.Sprintf("%-25s %-30s %-25s\n", "Metric", "Value", "Date"))
	b.WriteString(strings.Repeat("-", 80) + "\n")
	b.WriteString(fmt.Sprintf("%-25s %-30s %-25s", truncate(metric, 25), truncate(value, 30), truncate(date, 25)))
	return b.String()
}

func formatHits(hits []vector.Hit, header string) string {
	if len(hits) == 0 {
		return "No semantically similar assets found."
	}
	lines := make([]string, 0, len(hits)+1)
	lines = append(lines, header)
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("- %s (%s) - %s (similarity: %.3f)",
			h.Name, location(h.City, h.State), h.BuildingType, h.Score))
	}
	return strings.Join(lines, "\n")
}
