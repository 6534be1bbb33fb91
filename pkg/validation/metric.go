// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for values that end up
// in storage keys or queries. Metric names are embedded in chain store
// keys, so they must stay printable and bounded.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxMetricNameLength bounds metric names so chain store keys stay
// within Badger's comfortable key size.
const MaxMetricNameLength = 128

// ValidateMetricName checks a metric name before it is used in a chain
// store key.
//
// Valid names:
//   - 1 to 128 characters
//   - printable characters only (no control characters)
//   - no leading or trailing whitespace
//
// Example:
//
//	if err := validation.ValidateMetricName(name); err != nil {
//	    return fmt.Errorf("invalid metric: %w", err)
//	}
func ValidateMetricName(name string) error {
	if name == "" {
		return fmt.Errorf("metric name cannot be empty")
	}
	if len(name) > MaxMetricNameLength {
		return fmt.Errorf("metric name exceeds %d characters", MaxMetricNameLength)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("metric name %q has leading or trailing whitespace", name)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("metric name %q contains a non-printable character", name)
		}
	}
	return nil
}

// SanitizeMetricName normalizes and validates a metric name. Returns
// the trimmed name if valid, or an error if invalid.
func SanitizeMetricName(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if err := ValidateMetricName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
