// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// Tests for metric name validation

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMetricName_Valid(t *testing.T) {
	for _, name := range []string{
		"California Unemployment Rate",
		"30-Year Mortgage Rate",
		"Federal Funds Rate",
		"x",
	} {
		assert.NoError(t, ValidateMetricName(name), name)
	}
}

func TestValidateMetricName_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":               "",
		"leading whitespace":  " rate",
		"trailing whitespace": "rate ",
		"control character":   "rate\x00",
		"newline":             "rate\nrate",
		"too long":            strings.Repeat("a", MaxMetricNameLength+1),
	}
	for label, name := range cases {
		assert.Error(t, ValidateMetricName(name), label)
	}
}

func TestSanitizeMetricName_TrimsWhitespace(t *testing.T) {
	got, err := SanitizeMetricName("  Federal Funds Rate  ")
	require.NoError(t, err)
	assert.Equal(t, "Federal Funds Rate", got)
}

func TestSanitizeMetricName_RejectsEmptyAfterTrim(t *testing.T) {
	_, err := SanitizeMetricName("   ")
	require.Error(t, err)
}
