// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlasre/assetgraph/services/timeseries"
)

func runVerifyChains(cmd *cobra.Command, args []string) error {
	store, err := timeseries.Open(timeseries.DefaultConfig(resolveChainPath()))
	if err != nil {
		return fmt.Errorf("failed to open chain store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	metrics, err := store.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list metrics: %w", err)
	}
	if len(metrics) == 0 {
		fmt.Println("Chain store is empty.")
		return nil
	}

	broken := 0
	for _, name := range metrics {
		report, err := store.IntegrityCheck(ctx, name)
		if err != nil {
			return fmt.Errorf("integrity check for %q: %w", name, err)
		}
		status := "OK"
		if !report.Intact {
			status = "BROKEN"
			broken++
		}
		fmt.Printf("%-40s %-8s %d node(s), %s to %s\n",
			report.Metric, status, report.Nodes,
			report.HeadDate.Format("2006-01-02"), report.TailDate.Format("2006-01-02"))
		for _, p := range report.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}

	if broken > 0 {
		return fmt.Errorf("%d of %d chain(s) failed verification", broken, len(metrics))
	}
	fmt.Printf("All %d chain(s) verified.\n", len(metrics))
	return nil
}
