// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ParseSeed decodes a JSON array of assets and validates every record.
// A single invalid record rejects the whole batch so a partially broken
// seed file never produces a partially loaded snapshot.
func ParseSeed(r io.Reader) ([]Asset, error) {
	var assets []Asset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&assets); err != nil {
		return nil, fmt.Errorf("failed to decode asset seed: %w", err)
	}
	for i, a := range assets {
		if err := ValidateAsset(a); err != nil {
			return nil, fmt.Errorf("invalid asset at index %d (%q): %w", i, a.Name, err)
		}
	}
	return assets, nil
}

// LoadSeedFile reads and validates an asset seed from disk.
func LoadSeedFile(path string) ([]Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}
