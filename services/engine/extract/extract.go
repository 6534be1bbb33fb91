// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extract pulls structured tokens out of free-text questions.
//
// Extraction is best-effort string matching against immutable vocabulary
// snapshots (states, cities, regions, platforms, building types, metric
// aliases) plus a numeric radius pattern. It is a pure function: the same
// question always yields the same record, and nothing is mutated.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Record is the structured extraction result. Every field is optional;
// a zero value means the token was not recognized in the question, which
// is distinct from a recognized-but-empty value.
type Record struct {
	Region         string
	State          string
	City           string
	RadiusKM       *float64
	Reference      string // target of a "within N km of <reference>" phrase
	Platform       string
	BuildingType   string
	MetricName     string
	MetricCategory string
	SemanticTerms  []string
}

// HasGeography reports whether any geographic token was recognized.
func (r Record) HasGeography() bool {
	return r.Region != "" || r.State != "" || r.City != ""
}

// HasSemantic reports whether any qualitative/semantic term was recognized.
func (r Record) HasSemantic() bool {
	return len(r.SemanticTerms) > 0
}

// metricAlias maps a question phrase to a canonical metric. StateScoped
// aliases resolve to "<State> <Metric>" when a state token is also present.
type metricAlias struct {
	Phrase      string
	Metric      string
	Category    string
	StateScoped bool
}

// Vocabulary is the immutable token snapshot the extractor matches against.
// Load it once at startup; concurrent extraction needs no locking.
type Vocabulary struct {
	// StateRegions maps a state name to its region.
	StateRegions map[string]string

	// CityStates maps a city name to its state.
	CityStates map[string]string

	Regions       []string
	Platforms     []string
	BuildingTypes []string

	// MetricAliases is evaluated in order; the first phrase found wins,
	// so more specific phrases must precede their prefixes.
	MetricAliases []metricAlias

	SemanticKeywords []string
}

// DefaultVocabulary returns the snapshot covering the currently ingested
// portfolio and metric catalog.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		StateRegions: map[string]string{
			"California": "West",
			"Texas":      "Southwest",
			"New York":   "Northeast",
			"Illinois":   "Midwest",
			"Missouri":   "Midwest",
			"Wisconsin":  "Midwest",
			"Georgia":    "Southeast",
		},
		CityStates: map[string]string{
			"Los Angeles":    "California",
			"West Hollywood": "California",
			"Houston":        "Texas",
			"Austin":         "Texas",
			"Chicago":        "Illinois",
			"Milwaukee":      "Wisconsin",
			"Appleton":       "Wisconsin",
			"Atlanta":        "Georgia",
		},
		Regions:       []string{"West", "Southwest", "Midwest", "Northeast", "Southeast"},
		Platforms:     []string{"Real Estate", "Infrastructure", "Credit"},
		BuildingTypes: []string{"Mixed Use", "Commercial", "Residential", "Infrastructure"},
		MetricAliases: []metricAlias{
			{Phrase: "30 year mortgage", Metric: "30-Year Mortgage Rate", Category: "Interest Rate"},
			{Phrase: "30-year", Metric: "30-Year Mortgage Rate", Category: "Interest Rate"},
			{Phrase: "mortgage", Metric: "30-Year Mortgage Rate", Category: "Interest Rate"},
			{Phrase: "federal funds", Metric: "Federal Funds Rate", Category: "Interest Rate"},
			{Phrase: "fed funds", Metric: "Federal Funds Rate", Category: "Interest Rate"},
			{Phrase: "10 year treasury", Metric: "10-Year Treasury Rate", Category: "Interest Rate"},
			{Phrase: "treasury", Metric: "10-Year Treasury Rate", Category: "Interest Rate"},
			{Phrase: "corporate bond", Metric: "Aaa Corporate Bond Rate", Category: "Interest Rate"},
			{Phrase: "unemployment", Metric: "Unemployment Rate", Category: "Labor", StateScoped: true},
			{Phrase: "housing starts", Metric: "Housing Starts", Category: "Housing"},
			{Phrase: "building permits", Metric: "Building Permits", Category: "Housing"},
			{Phrase: "house price", Metric: "All-Transactions House Price Index", Category: "Housing", StateScoped: true},
			{Phrase: "home price", Metric: "All-Transactions House Price Index", Category: "Housing", StateScoped: true},
			{Phrase: "population", Metric: "Total Population", Category: "Demographics", StateScoped: true},
			{Phrase: "consumer price", Metric: "Consumer Price Index", Category: "Economic"},
			{Phrase: "cpi", Metric: "Consumer Price Index", Category: "Economic"},
			{Phrase: "inflation", Metric: "Consumer Price Index", Category: "Economic"},
			{Phrase: "gdp", Metric: "GDP", Category: "Economic"},
		},
		SemanticKeywords: []string{
			"sustainable", "esg", "renewable", "green", "environmental",
			"carbon", "solar", "energy", "eco-friendly",
			"luxury", "premium", "high-end", "upscale", "exclusive",
			"similar to", "comparable",
		},
	}
}

// distancePattern captures "within <n> km|miles of <reference>".
var distancePattern = regexp.MustCompile(`within\s+(\d+(?:\.\d+)?)\s*(km|kilometers?|miles?)\s+of\s+([^.?!,]+)`)

// radiusPattern captures a bare "<n> km" radius with no reference clause.
var radiusPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*km\b`)

const milesToKM = 1.60934

// Extractor matches questions against a vocabulary snapshot.
type Extractor struct {
	vocab *Vocabulary
	words map[string]*regexp.Regexp
}

// New builds an extractor over the given vocabulary. A nil vocabulary uses
// DefaultVocabulary. The word patterns are precompiled so Extract allocates
// little and stays deterministic.
func New(vocab *Vocabulary) *Extractor {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	e := &Extractor{vocab: vocab, words: make(map[string]*regexp.Regexp)}
	add := func(term string) {
		key := strings.ToLower(term)
		if _, ok := e.words[key]; ok {
			return
		}
		e.words[key] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
	}
	for s := range vocab.StateRegions {
		add(s)
	}
	for c := range vocab.CityStates {
		add(c)
	}
	for _, r := range vocab.Regions {
		add(r)
	}
	for _, p := range vocab.Platforms {
		add(p)
	}
	for _, b := range vocab.BuildingTypes {
		add(b)
	}
	for _, a := range vocab.MetricAliases {
		add(a.Phrase)
	}
	for _, k := range vocab.SemanticKeywords {
		add(k)
	}
	return e
}

func (e *Extractor) contains(text, term string) bool {
	re, ok := e.words[strings.ToLower(term)]
	if !ok {
		return false
	}
	return re.MatchString(text)
}

// Extract returns the structured record for a question. Pure: no side
// effects, same input always yields the same record.
func (e *Extractor) Extract(question string) Record {
	text := strings.ToLower(question)
	var rec Record

	// Geography. City implies its state; state implies its region. Explicit
	// region mentions win only when no state resolved one already.
	for _, city := range sortedKeys(e.vocab.CityStates) {
		if e.contains(text, city) {
			rec.City = city
			rec.State = e.vocab.CityStates[city]
			break
		}
	}
	if rec.State == "" {
		for _, state := range sortedKeys(e.vocab.StateRegions) {
			if e.contains(text, state) {
				rec.State = state
				break
			}
		}
	}
	if rec.State != "" {
		rec.Region = e.vocab.StateRegions[rec.State]
	} else {
		for _, region := range e.vocab.Regions {
			if e.contains(text, region) {
				rec.Region = region
				break
			}
		}
	}

	// Radius. The "within N km of X" form also captures the reference hint.
	if m := distancePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if strings.HasPrefix(m[2], "mile") {
				v *= milesToKM
			}
			rec.RadiusKM = &v
			rec.Reference = strings.TrimSpace(m[3])
		}
	} else if m := radiusPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.RadiusKM = &v
		}
	}

	// Classification tokens.
	for _, bt := range e.vocab.BuildingTypes {
		if e.contains(text, bt) {
			rec.BuildingType = bt
			break
		}
	}
	// Platform mentions are only meaningful next to the word "platform";
	// "infrastructure" alone is a building type.
	if strings.Contains(text, "platform") {
		for _, p := range e.vocab.Platforms {
			if e.contains(text, p) {
				rec.Platform = p
				break
			}
		}
	}

	// Metric aliases, first match wins.
	for _, a := range e.vocab.MetricAliases {
		if !e.contains(text, a.Phrase) {
			continue
		}
		rec.MetricName = a.Metric
		rec.MetricCategory = a.Category
		if a.StateScoped && rec.State != "" {
			rec.MetricName = rec.State + " " + a.Metric
		}
		break
	}

	for _, k := range e.vocab.SemanticKeywords {
		if e.contains(text, k) {
			rec.SemanticTerms = append(rec.SemanticTerms, k)
		}
	}

	return rec
}

// sortedKeys returns map keys in a stable order so extraction never depends
// on map iteration order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
