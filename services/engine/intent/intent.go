// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intent classifies questions into query categories.
//
// Classification is an ordered rule table: rules are evaluated top to
// bottom and the first match wins, so precedence lives in the table
// order rather than in nested conditionals. The combined
// geographic+semantic rule sits above both of its parts, which is what
// makes "sustainable assets in Texas" route to the combined path instead
// of plain semantic search.
package intent

import (
	"regexp"
	"strings"

	"github.com/atlasre/assetgraph/services/engine/extract"
)

// Category is the query family a question belongs to.
type Category string

const (
	CategoryEconomic   Category = "economic_data"
	CategoryGeo        Category = "geographic_assets"
	CategoryCombined   Category = "geographic_semantic_combined"
	CategoryAssetCount Category = "asset_count"
	CategoryPortfolio  Category = "portfolio_analysis"
	CategorySemantic   Category = "semantic_search"
	CategoryTrend      Category = "trend_analysis"
	CategoryUnknown    Category = "unknown"
)

// Classification is the outcome of running the rule table.
type Classification struct {
	Category   Category
	Confidence float64
	Reasoning  string
}

// rule is one row of the table. Match sees the lowered question text and
// the extraction record so rules can key off either.
type rule struct {
	Category   Category
	Confidence float64
	Reasoning  string
	Match      func(text string, rec extract.Record) bool
}

// Classifier runs the ordered rule table over a question.
type Classifier struct {
	rules []rule
	words map[string]*regexp.Regexp
}

// Phrases that mark a question as geographic even when no known location
// token appears in it.
var geographicPhrases = []string{"properties in", "assets in", "located in", "near"}

var economicKeywords = []string{"unemployment", "interest rate", "mortgage", "federal funds", "economic", "rate"}

var portfolioKeywords = []string{"portfolio", "distribution", "how many", "count", "platform", "breakdown"}

// Phrases that ask for a portfolio-wide total. They route to asset_count
// only when no grouping noun appears; "how many assets per platform" is
// still a portfolio distribution question.
var assetCountPhrases = []string{"how many assets", "total assets", "number of assets", "asset count"}

var groupingNouns = []string{"platform", "region", "state", "type", "breakdown", "distribution", "each", "per"}

var trendKeywords = []string{"trend", "change", "over time", "historical", "compare"}

// New builds the classifier with its fixed rule table.
func New() *Classifier {
	c := &Classifier{words: make(map[string]*regexp.Regexp)}
	for _, group := range [][]string{geographicPhrases, economicKeywords, portfolioKeywords, assetCountPhrases, groupingNouns, trendKeywords} {
		for _, term := range group {
			if _, ok := c.words[term]; !ok {
				c.words[term] = regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
			}
		}
	}

	hasGeo := func(text string, rec extract.Record) bool {
		if rec.HasGeography() {
			return true
		}
		return c.anyWord(text, geographicPhrases)
	}
	hasSemantic := func(_ string, rec extract.Record) bool {
		return rec.HasSemantic()
	}

	c.rules = []rule{
		{
			Category:   CategoryCombined,
			Confidence: 0.98,
			Reasoning:  "question combines geographic filtering with semantic search criteria",
			Match: func(text string, rec extract.Record) bool {
				return hasSemantic(text, rec) && hasGeo(text, rec)
			},
		},
		{
			Category:   CategorySemantic,
			Confidence: 0.95,
			Reasoning:  "contains semantic keywords requiring vector search",
			Match:      hasSemantic,
		},
		{
			Category:   CategoryEconomic,
			Confidence: 0.90,
			Reasoning:  "question asks about economic indicators",
			Match: func(text string, rec extract.Record) bool {
				return rec.MetricName != "" || c.anyWord(text, economicKeywords)
			},
		},
		{
			Category:   CategoryAssetCount,
			Confidence: 0.95,
			Reasoning:  "question asks for the total asset count without a grouping",
			Match: func(text string, _ extract.Record) bool {
				return c.anyWord(text, assetCountPhrases) && !c.anyWord(text, groupingNouns)
			},
		},
		{
			Category:   CategoryPortfolio,
			Confidence: 0.95,
			Reasoning:  "question asks about portfolio composition or asset counts",
			Match: func(text string, _ extract.Record) bool {
				return c.anyWord(text, portfolioKeywords)
			},
		},
		{
			Category:   CategoryGeo,
			Confidence: 0.90,
			Reasoning:  "question refers to specific geographic locations",
			Match:      hasGeo,
		},
		{
			Category:   CategoryTrend,
			Confidence: 0.85,
			Reasoning:  "question asks about trends or changes over time",
			Match: func(text string, _ extract.Record) bool {
				return c.anyWord(text, trendKeywords)
			},
		},
	}
	return c
}

func (c *Classifier) anyWord(text string, terms []string) bool {
	for _, term := range terms {
		if re, ok := c.words[term]; ok && re.MatchString(text) {
			return true
		}
	}
	return false
}

// Classify runs the table over the question and its extraction record.
// When no rule matches it returns CategoryUnknown with confidence 0 so
// callers can still fall back to vector search rather than erroring.
func (c *Classifier) Classify(question string, rec extract.Record) Classification {
	text := strings.ToLower(question)
	for _, r := range c.rules {
		if r.Match(text, rec) {
			return Classification{Category: r.Category, Confidence: r.Confidence, Reasoning: r.Reasoning}
		}
	}
	return Classification{
		Category:   CategoryUnknown,
		Confidence: 0,
		Reasoning:  "could not classify query into known categories",
	}
}
