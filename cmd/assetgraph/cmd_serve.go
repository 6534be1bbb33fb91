// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlasre/assetgraph/services/qa"
)

func runServe(cmd *cobra.Command, args []string) error {
	port := servePort
	if port == 0 {
		port = getEnvInt("QA_PORT", 12300)
	}

	cfg := qa.Config{
		Port:             port,
		ChainPath:        resolveChainPath(),
		WeaviateURL:      resolveWeaviateURL(),
		EnableEmbeddings: enableEmbeddings || os.Getenv("OPENAI_API_KEY") != "",
		AssetSeedPath:    assetSeedPath,
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	slog.Info("Starting QA service",
		"port", cfg.Port,
		"chain_path", cfg.ChainPath,
		"weaviate_url", cfg.WeaviateURL,
		"embeddings", cfg.EnableEmbeddings,
	)

	svc, err := qa.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create QA service: %w", err)
	}
	return svc.Run()
}
