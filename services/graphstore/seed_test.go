// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// Tests for the asset seed loader

package graphstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSeed = `[
  {
    "name": "Sunset Commons",
    "city": "Los Angeles",
    "state": "California",
    "region": "West Coast",
    "building_type": "Mixed Use",
    "platform": "Real Estate",
    "investment_type": "Equity",
    "description": "Transit-oriented mixed use complex",
    "latitude": 34.0522,
    "longitude": -118.2437
  }
]`

func TestParseSeed_ValidRecord(t *testing.T) {
	assets, err := ParseSeed(strings.NewReader(validSeed))
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Sunset Commons", assets[0].Name)
	assert.Equal(t, "California", assets[0].State)
}

func TestParseSeed_RejectsMissingRequiredField(t *testing.T) {
	seed := strings.Replace(validSeed, `"state": "California",`, `"state": "",`, 1)
	_, err := ParseSeed(strings.NewReader(seed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sunset Commons")
}

func TestParseSeed_RejectsUnknownField(t *testing.T) {
	seed := strings.Replace(validSeed, `"city"`, `"town"`, 1)
	_, err := ParseSeed(strings.NewReader(seed))
	require.Error(t, err)
}

func TestParseSeed_RejectsOutOfRangeCoordinates(t *testing.T) {
	seed := strings.Replace(validSeed, "34.0522", "134.0522", 1)
	_, err := ParseSeed(strings.NewReader(seed))
	require.Error(t, err)
}

func TestLoadSeedFile_MissingFile(t *testing.T) {
	_, err := LoadSeedFile("testdata/does-not-exist.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open asset seed")
}
