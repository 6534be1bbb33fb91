// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command assetgraph manages the AssetGraph QA stack.
//
// Subcommands:
//
//	serve          Start the QA HTTP server
//	load metrics   Load a metric seed file into the chain store
//	load assets    Validate an asset seed and index it into Weaviate
//	verify chains  Run integrity checks over every metric chain
//
// # Environment Variables
//
//   - QA_PORT: HTTP server port (default: 12300)
//   - CHAIN_PATH: chain store directory (default: ./data/chains)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OPENAI_API_KEY: embeddings API key (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: assetgraph-otel-collector:4317)
//   - ASSETGRAPH_LOG_DIR: write JSON logs to this directory as well as stderr
//
// # Usage
//
//	go build -o assetgraph ./cmd/assetgraph
//	./assetgraph load metrics seeds/metrics.json
//	./assetgraph serve --asset-seed seeds/assets.json
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/atlasre/assetgraph/pkg/logging"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("ASSETGRAPH_LOG_DIR"),
		Service: "assetgraph",
	})
	defer logger.Close()
	logger.SetAsDefault()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
