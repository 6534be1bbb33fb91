// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	chainPath        string
	assetSeedPath    string
	weaviateURL      string
	enableEmbeddings bool
	servePort        int

	rootCmd = &cobra.Command{
		Use:   "assetgraph",
		Short: "A cli to manage the AssetGraph portfolio QA stack",
		Long: `AssetGraph answers natural-language questions about a real
estate portfolio from a knowledge graph, a chain-structured metric
store, and a vector index.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the QA HTTP server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Data / Load ---
	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Load seed data into the QA backends.",
	}
	loadMetricsCmd = &cobra.Command{
		Use:   "metrics [seed file]",
		Short: "Append a metric seed file to the chain store, skipping duplicate dates",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoadMetrics, // Defined in cmd_load.go
	}
	loadAssetsCmd = &cobra.Command{
		Use:   "assets [seed file]",
		Short: "Validate an asset seed file and index it into Weaviate",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoadAssets, // Defined in cmd_load.go
	}

	// --- Verification ---
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the QA backends.",
	}
	verifyChainsCmd = &cobra.Command{
		Use:   "chains",
		Short: "Walk every metric chain and report broken links or ordering violations",
		RunE:  runVerifyChains, // Defined in cmd_verify.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&chainPath, "chain-path", "",
		"Chain store directory (default $CHAIN_PATH or ./data/chains)")

	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port (default $QA_PORT or 12300)")
	serveCmd.Flags().StringVar(&assetSeedPath, "asset-seed", "",
		"Asset seed JSON to load at startup")
	serveCmd.Flags().StringVar(&weaviateURL, "weaviate-url", "",
		"Weaviate URL (default $WEAVIATE_SERVICE_URL; empty runs an in-process index)")
	serveCmd.Flags().BoolVar(&enableEmbeddings, "embeddings", false,
		"Enable the OpenAI-compatible embeddings client")

	loadAssetsCmd.Flags().StringVar(&weaviateURL, "weaviate-url", "",
		"Weaviate URL (default $WEAVIATE_SERVICE_URL)")

	loadCmd.AddCommand(loadMetricsCmd)
	loadCmd.AddCommand(loadAssetsCmd)
	verifyCmd.AddCommand(verifyChainsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(verifyCmd)
}

func resolveChainPath() string {
	if chainPath != "" {
		return chainPath
	}
	return getEnvString("CHAIN_PATH", "./data/chains")
}

func resolveWeaviateURL() string {
	if weaviateURL != "" {
		return weaviateURL
	}
	return getEnvString("WEAVIATE_SERVICE_URL", "")
}
