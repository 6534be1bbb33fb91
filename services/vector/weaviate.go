// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// AssetClassName is the Weaviate class holding asset descriptions.
const AssetClassName = "Asset"

// GetAssetSchema returns the class definition for asset description
// vectors. Vectors are supplied externally, so the vectorizer is "none".
func GetAssetSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       AssetClassName,
		Description: "A portfolio asset with its description embedding.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "name",
				DataType:        []string{"text"},
				Description:     "Asset name.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "city",
				DataType:        []string{"text"},
				Description:     "City the asset is located in.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "state",
				DataType:        []string{"text"},
				Description:     "State the asset is located in.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "region",
				DataType:        []string{"text"},
				Description:     "Region the asset is located in.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "building_type",
				DataType:        []string{"text"},
				Description:     "Building type classification.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "platform",
				DataType:        []string{"text"},
				Description:     "Investment platform the asset belongs to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "description",
				DataType:     []string{"text"},
				Description:  "Free-text property description.",
				Tokenization: "word",
			},
		},
	}
}

// EnsureAssetSchema creates the Asset class if it does not exist yet.
func EnsureAssetSchema(ctx context.Context, client *weaviate.Client) error {
	exists, err := client.Schema().ClassExistenceChecker().WithClassName(AssetClassName).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking %s class: %w", AssetClassName, err)
	}
	if exists {
		return nil
	}
	if err := client.Schema().ClassCreator().WithClass(GetAssetSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating %s class: %w", AssetClassName, err)
	}
	slog.Info("Created Weaviate class", "class", AssetClassName)
	return nil
}

// parseGraphQLResponse converts Weaviate's dynamic response into a typed
// struct via the marshal/unmarshal round trip.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}
	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

// assetQueryResponse mirrors the Get.Asset response shape.
type assetQueryResponse struct {
	Get struct {
		Asset []assetResult `json:"Asset"`
	} `json:"Get"`
}

type assetResult struct {
	Name         string `json:"name"`
	City         string `json:"city"`
	State        string `json:"state"`
	BuildingType string `json:"building_type"`
	Platform     string `json:"platform"`
	Description  string `json:"description"`
	Additional   struct {
		Certainty *float32 `json:"certainty"`
		Distance  *float32 `json:"distance"`
	} `json:"_additional"`
}

// WeaviateSearcher serves similarity search from a Weaviate instance.
// The where filter is part of the GraphQL query itself, so Weaviate
// restricts the candidate set before applying the limit.
type WeaviateSearcher struct {
	client *weaviate.Client
	logger *slog.Logger
}

var _ Searcher = (*WeaviateSearcher)(nil)

// NewWeaviateSearcher wraps an existing client.
func NewWeaviateSearcher(client *weaviate.Client, logger *slog.Logger) *WeaviateSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateSearcher{client: client, logger: logger}
}

func buildWhere(f Filter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	add := func(path, value string) {
		if value == "" {
			return
		}
		operands = append(operands, filters.Where().
			WithPath([]string{path}).
			WithOperator(filters.Equal).
			WithValueString(value))
	}
	add("state", f.State)
	add("city", f.City)
	add("region", f.Region)
	add("building_type", f.BuildingType)

	if len(operands) == 0 {
		return nil
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

// Search implements the Searcher interface.
func (s *WeaviateSearcher) Search(ctx context.Context, vec []float32, filter Filter, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "name"},
		{Name: "city"},
		{Name: "state"},
		{Name: "building_type"},
		{Name: "platform"},
		{Name: "description"},
		{Name: "_additional { certainty distance }"},
	}

	query := s.client.GraphQL().Get().
		WithClassName(AssetClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit)
	if where := buildWhere(filter); where != nil {
		query = query.WithWhere(where)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, resp.Errors[0].Message)
	}

	parsed, err := parseGraphQLResponse[assetQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(parsed.Get.Asset))
	for _, a := range parsed.Get.Asset {
		h := Hit{
			Name: a.Name, City: a.City, State: a.State,
			BuildingType: a.BuildingType, Platform: a.Platform,
			Description: a.Description,
		}
		if a.Additional.Certainty != nil {
			// Certainty is (1 + cosine) / 2; map it back to cosine.
			h.Score = float64(*a.Additional.Certainty)*2 - 1
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// IndexAssets writes documents into the Asset class with their vectors.
func (s *WeaviateSearcher) IndexAssets(ctx context.Context, docs []Document) error {
	batcher := s.client.Batch().ObjectsBatcher()
	for _, d := range docs {
		if len(d.Vector) == 0 {
			continue
		}
		batcher = batcher.WithObjects(&models.Object{
			Class: AssetClassName,
			Properties: map[string]interface{}{
				"name":          d.Name,
				"city":          d.City,
				"state":         d.State,
				"region":        d.Region,
				"building_type": d.BuildingType,
				"platform":      d.Platform,
				"description":   d.Description,
			},
			Vector: d.Vector,
		})
	}
	resp, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch indexing assets: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch indexing assets: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	s.logger.Info("indexed asset vectors", "count", len(docs))
	return nil
}
