// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package embeddings turns text into dense vectors for similarity search.
package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable means the embedding backend could not be reached or
// returned an unusable response. Callers fall back to structured-only
// answering when they see it.
var ErrUnavailable = errors.New("embedding service unavailable")

// Client produces embedding vectors.
type Client interface {
	// Embed returns the vector for one text. The slice length always
	// equals Dimensions.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed vector width this client produces.
	Dimensions() int
}
