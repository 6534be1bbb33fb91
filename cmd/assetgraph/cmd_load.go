// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	neturl "net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/atlasre/assetgraph/pkg/validation"
	"github.com/atlasre/assetgraph/services/embeddings"
	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/timeseries"
	"github.com/atlasre/assetgraph/services/vector"
)

// metricSeed is one metric with its observations, as stored in a seed
// file. Dates use YYYY-MM-DD and are interpreted as UTC days.
type metricSeed struct {
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Scope    string      `json:"scope"`
	Units    string      `json:"units"`
	Points   []seedPoint `json:"points"`
}

type seedPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func parseMetricSeed(r io.Reader) ([]metricSeed, error) {
	var seeds []metricSeed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seeds); err != nil {
		return nil, fmt.Errorf("failed to decode metric seed: %w", err)
	}
	for i := range seeds {
		name, err := validation.SanitizeMetricName(seeds[i].Name)
		if err != nil {
			return nil, fmt.Errorf("metric seed: %w", err)
		}
		seeds[i].Name = name
		s := seeds[i]
		for _, p := range s.Points {
			if _, err := time.Parse("2006-01-02", p.Date); err != nil {
				return nil, fmt.Errorf("metric %q: bad date %q: %w", s.Name, p.Date, err)
			}
		}
	}
	return seeds, nil
}

// loadMetricSeed appends every point to the chain store. Points whose
// date is already on the chain are skipped and logged rather than
// failing the load, so re-running a seed file is safe.
func loadMetricSeed(ctx context.Context, store *timeseries.Store, seeds []metricSeed) (appended, skipped int, err error) {
	for _, s := range seeds {
		metric := timeseries.Metric{Name: s.Name, Category: s.Category, Scope: s.Scope, Units: s.Units}
		for _, p := range s.Points {
			date, _ := time.Parse("2006-01-02", p.Date)
			_, err := store.Append(ctx, metric, date, p.Value)
			if errors.Is(err, timeseries.ErrDuplicateDate) {
				slog.Warn("skipping duplicate date", "metric", s.Name, "date", p.Date)
				skipped++
				continue
			}
			if err != nil {
				return appended, skipped, fmt.Errorf("metric %q date %s: %w", s.Name, p.Date, err)
			}
			appended++
		}
	}
	return appended, skipped, nil
}

func runLoadMetrics(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open metric seed: %w", err)
	}
	defer f.Close()

	seeds, err := parseMetricSeed(f)
	if err != nil {
		return err
	}

	store, err := timeseries.Open(timeseries.DefaultConfig(resolveChainPath()))
	if err != nil {
		return fmt.Errorf("failed to open chain store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	appended, skipped, err := loadMetricSeed(ctx, store, seeds)
	if err != nil {
		return err
	}

	for _, s := range seeds {
		report, err := store.IntegrityCheck(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("integrity check for %q: %w", s.Name, err)
		}
		if !report.Intact {
			return fmt.Errorf("chain %q failed integrity check after load: %v", s.Name, report.Problems)
		}
	}

	fmt.Printf("Loaded %d metric(s): %d point(s) appended, %d duplicate(s) skipped.\n",
		len(seeds), appended, skipped)
	return nil
}

func runLoadAssets(cmd *cobra.Command, args []string) error {
	assets, err := graphstore.LoadSeedFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Validated %d asset(s).\n", len(assets))

	url := resolveWeaviateURL()
	if url == "" {
		fmt.Println("No Weaviate URL configured; skipping vector indexing.")
		fmt.Println("Pass --asset-seed to `assetgraph serve` to load the snapshot at startup.")
		return nil
	}

	parsed, err := neturl.Parse(url)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", url)
	}
	client, err := weaviate.NewClient(weaviate.Config{Scheme: parsed.Scheme, Host: parsed.Host})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	ctx := context.Background()
	if err := vector.EnsureAssetSchema(ctx, client); err != nil {
		return fmt.Errorf("failed to ensure Asset schema: %w", err)
	}

	embedClient, err := embeddings.NewOpenAIClient()
	if err != nil {
		return fmt.Errorf("embeddings client required for indexing: %w", err)
	}
	embedder := embeddings.WithResilience(embedClient, 0, 1, slog.Default())

	docs := make([]vector.Document, 0, len(assets))
	for _, a := range assets {
		if a.Description == "" {
			slog.Warn("asset has no description, skipping vector", "asset", a.Name)
			continue
		}
		vec, err := embedder.Embed(ctx, a.Description)
		if err != nil {
			return fmt.Errorf("embedding asset %q: %w", a.Name, err)
		}
		docs = append(docs, vector.Document{
			Name: a.Name, City: a.City, State: a.State, Region: a.Region,
			BuildingType: a.BuildingType, Platform: a.Platform,
			Description: a.Description, Vector: vec,
		})
	}

	searcher := vector.NewWeaviateSearcher(client, slog.Default())
	if err := searcher.IndexAssets(ctx, docs); err != nil {
		return err
	}
	fmt.Printf("Indexed %d asset vector(s) into Weaviate.\n", len(docs))
	return nil
}
