// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_CityImpliesStateAndRegion(t *testing.T) {
	e := New(nil)

	rec := e.Extract("What do we own near Los Angeles?")

	assert.Equal(t, "Los Angeles", rec.City)
	assert.Equal(t, "California", rec.State)
	assert.Equal(t, "West", rec.Region)
	assert.True(t, rec.HasGeography())
}

func TestExtract_StateImpliesRegion(t *testing.T) {
	e := New(nil)

	rec := e.Extract("Show me all assets in Texas")

	assert.Empty(t, rec.City)
	assert.Equal(t, "Texas", rec.State)
	assert.Equal(t, "Southwest", rec.Region)
}

func TestExtract_RegionAloneDoesNotInventAState(t *testing.T) {
	e := New(nil)

	rec := e.Extract("How is the Midwest portfolio doing?")

	assert.Equal(t, "Midwest", rec.Region)
	assert.Empty(t, rec.State)
	assert.Empty(t, rec.City)
}

func TestExtract_RadiusInKilometers(t *testing.T) {
	e := New(nil)

	rec := e.Extract("Which properties are within 50 km of Chicago?")

	require.NotNil(t, rec.RadiusKM)
	assert.InDelta(t, 50.0, *rec.RadiusKM, 1e-9)
	assert.Equal(t, "chicago", rec.Reference)
	assert.Equal(t, "Chicago", rec.City)
}

func TestExtract_RadiusInMilesConvertsToKM(t *testing.T) {
	e := New(nil)

	rec := e.Extract("anything within 10 miles of Houston?")

	require.NotNil(t, rec.RadiusKM)
	assert.InDelta(t, 16.0934, *rec.RadiusKM, 1e-4)
	assert.Equal(t, "houston", rec.Reference)
}

func TestExtract_BareRadiusWithoutReference(t *testing.T) {
	e := New(nil)

	rec := e.Extract("list residential assets in a 25 km radius")

	require.NotNil(t, rec.RadiusKM)
	assert.InDelta(t, 25.0, *rec.RadiusKM, 1e-9)
	assert.Empty(t, rec.Reference)
	assert.Equal(t, "Residential", rec.BuildingType)
}

func TestExtract_NoRadiusLeavesPointerNil(t *testing.T) {
	e := New(nil)

	rec := e.Extract("Show me all assets in Texas")

	assert.Nil(t, rec.RadiusKM)
}

func TestExtract_InfrastructureIsBuildingTypeUnlessPlatform(t *testing.T) {
	e := New(nil)

	rec := e.Extract("How many infrastructure assets do we hold?")
	assert.Equal(t, "Infrastructure", rec.BuildingType)
	assert.Empty(t, rec.Platform)

	rec = e.Extract("Break the portfolio down by the infrastructure platform")
	assert.Equal(t, "Infrastructure", rec.Platform)
}

func TestExtract_MetricAliasesResolveInOrder(t *testing.T) {
	e := New(nil)

	rec := e.Extract("What is the current 30 year mortgage rate?")
	assert.Equal(t, "30-Year Mortgage Rate", rec.MetricName)
	assert.Equal(t, "Interest Rate", rec.MetricCategory)

	rec = e.Extract("Where are fed funds right now?")
	assert.Equal(t, "Federal Funds Rate", rec.MetricName)
}

func TestExtract_StateScopedMetricPrefixesState(t *testing.T) {
	e := New(nil)

	rec := e.Extract("What is unemployment doing in California?")
	assert.Equal(t, "California Unemployment Rate", rec.MetricName)
	assert.Equal(t, "Labor", rec.MetricCategory)

	rec = e.Extract("What is the national unemployment rate?")
	assert.Equal(t, "Unemployment Rate", rec.MetricName)
}

func TestExtract_SemanticTermsCollected(t *testing.T) {
	e := New(nil)

	rec := e.Extract("Properties in Texas that are ESG friendly")

	assert.Equal(t, "Texas", rec.State)
	require.True(t, rec.HasSemantic())
	assert.Contains(t, rec.SemanticTerms, "esg")
}

func TestExtract_WordBoundariesAvoidSubstringHits(t *testing.T) {
	e := New(nil)

	// "likely" must not trip a semantic keyword, and "texas" embedded in
	// another word must not read as a state.
	rec := e.Extract("which holdings are likely to appreciate in texastown")

	assert.False(t, rec.HasSemantic())
	assert.Empty(t, rec.State)
}

func TestExtract_IsDeterministic(t *testing.T) {
	e := New(nil)
	q := "sustainable commercial assets within 30 km of Milwaukee"

	first := e.Extract(q)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.Extract(q))
	}
	assert.Equal(t, "Milwaukee", first.City)
	assert.Equal(t, "Wisconsin", first.State)
	assert.Equal(t, "Commercial", first.BuildingType)
	assert.Contains(t, first.SemanticTerms, "sustainable")
}
