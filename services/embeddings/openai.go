// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
)

// OpenAIClient embeds text through the OpenAI embeddings API or any
// OpenAI-compatible endpoint (set EMBEDDINGS_BASE_URL for a local one).
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient reads its configuration from the environment. The API
// key comes from OPENAI_API_KEY or the Podman secret file; the model
// from EMBEDDINGS_MODEL.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	model := os.Getenv("EMBEDDINGS_MODEL")
	if model == "" {
		model = defaultModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("EMBEDDINGS_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
		slog.Info("Using OpenAI-compatible embeddings endpoint", "base_url", baseURL)
	}

	slog.Info("Initializing embeddings client", "model", model, "dimensions", defaultDimensions)
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      openai.EmbeddingModel(model),
		dimensions: defaultDimensions,
	}, nil
}

func (c *OpenAIClient) Dimensions() int { return c.dimensions }

// Embed implements the Client interface.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: []string{text},
	})
	if err != nil {
		slog.Error("Embedding API call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrUnavailable)
	}
	vec := resp.Data[0].Embedding
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrUnavailable, c.dimensions, len(vec))
	}
	return vec, nil
}
