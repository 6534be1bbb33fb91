// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package answer runs the full question pipeline: extract, classify,
// render a template or run a vector search, execute, format.
package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/atlasre/assetgraph/services/embeddings"
	"github.com/atlasre/assetgraph/services/engine/extract"
	"github.com/atlasre/assetgraph/services/engine/intent"
	"github.com/atlasre/assetgraph/services/engine/template"
	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/vector"
)

var engineTracer = otel.Tracer("assetgraph.services.engine.answer")

var (
	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgraph",
		Subsystem: "engine",
		Name:      "questions_total",
		Help:      "Questions answered, labeled by query type.",
	}, []string{"query_type"})
	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgraph",
		Subsystem: "engine",
		Name:      "fallbacks_total",
		Help:      "Degraded answers, labeled by fallback reason.",
	}, []string{"reason"})
)

// IntentInfo surfaces the classification alongside the answer.
type IntentInfo struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Response is the engine's answer to one question.
type Response struct {
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	QueryType      string         `json:"query_type"`
	Query          string         `json:"query,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Data           any            `json:"data"`
	PatternMatched bool           `json:"pattern_matched"`
	WorkflowSteps  []string       `json:"workflow_steps"`
	Intent         IntentInfo     `json:"intent_classification"`
}

// Deps wires the engine. Embedder and Searcher may both be nil; the
// engine then answers structured questions only and degrades semantic
// ones.
type Deps struct {
	Extractor  *extract.Extractor
	Classifier *intent.Classifier
	Registry   *template.Registry
	Store      graphstore.Store
	Embedder   embeddings.Client
	Searcher   vector.Searcher
	Logger     *slog.Logger
}

// Engine answers questions.
type Engine struct {
	extractor  *extract.Extractor
	classifier *intent.Classifier
	registry   *template.Registry
	store      graphstore.Store
	embedder   embeddings.Client
	searcher   vector.Searcher
	logger     *slog.Logger
}

// New builds an engine. Nil Extractor, Classifier, or Registry get the
// package defaults; Store is required.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("answer engine requires a graph store")
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(nil)
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.New()
	}
	if deps.Registry == nil {
		deps.Registry = template.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		registry:   deps.Registry,
		store:      deps.Store,
		embedder:   deps.Embedder,
		searcher:   deps.Searcher,
		logger:     deps.Logger,
	}, nil
}

// semanticSearchLimit matches the candidate count used for pure
// semantic questions; combined questions fetch more because the
// location filter narrows the set.
const (
	semanticSearchLimit = 5
	combinedSearchLimit = 10
)

// Answer runs the pipeline for one question. Errors are returned only
// for infrastructure failures the caller must surface (store
// unavailable, template rendering); degraded-but-answerable situations
// produce a Response with an explanatory answer instead.
func (e *Engine) Answer(ctx context.Context, question string) (Response, error) {
	ctx, span := engineTracer.Start(ctx, "engine.Answer")
	defer span.End()

	rec := e.extractor.Extract(question)
	cls := e.classifier.Classify(question, rec)
	steps := []string{"classify_intent"}

	resp := Response{
		Question: question,
		Intent: IntentInfo{
			Category:   string(cls.Category),
			Confidence: cls.Confidence,
			Reasoning:  cls.Reasoning,
		},
	}

	e.logger.Info("question classified",
		"category", cls.Category,
		"confidence", cls.Confidence)

	var err error
	switch cls.Category {
	case intent.CategoryAssetCount:
		resp, err = e.assetCount(ctx, resp, append(steps, "asset_count"))
	case intent.CategoryPortfolio:
		resp, err = e.portfolio(ctx, question, resp, append(steps, "portfolio_analysis"))
	case intent.CategoryCombined:
		resp, err = e.combined(ctx, question, rec, resp, append(steps, "geographic_search"))
	case intent.CategoryGeo:
		resp, err = e.geographic(ctx, rec, resp, append(steps, "geographic_search"))
	case intent.CategorySemantic:
		resp, err = e.semantic(ctx, question, resp, append(steps, "semantic_search"))
	case intent.CategoryEconomic, intent.CategoryTrend:
		resp, err = e.economic(ctx, question, rec, resp, append(steps, "economic_data"))
	default:
		resp = e.unclassified(ctx, question, resp, append(steps, "handle_error"))
	}
	if err != nil {
		return Response{}, err
	}
	resp.WorkflowSteps = append(resp.WorkflowSteps, "format_response")
	questionsTotal.WithLabelValues(resp.QueryType).Inc()
	return resp, nil
}

func (e *Engine) assetCount(ctx context.Context, resp Response, steps []string) (Response, error) {
	qd, err := e.registry.Render("count_all_assets", nil)
	if err != nil {
		return Response{}, err
	}
	res, err := e.store.Execute(ctx, qd)
	if err != nil {
		return Response{}, err
	}
	resp.QueryType = "asset_count_template_generated"
	resp.Query = qd.Name
	resp.Parameters = qd.Params
	resp.Data = res.Total
	resp.PatternMatched = true
	resp.Answer = formatAssetCount(res.Total)
	resp.WorkflowSteps = steps
	return resp, nil
}

func (e *Engine) portfolio(ctx context.Context, question string, resp Response, steps []string) (Response, error) {
	qd, err := e.registry.ForPortfolio(question)
	if err != nil {
		return Response{}, err
	}
	res, err := e.store.Execute(ctx, qd)
	if err != nil {
		return Response{}, err
	}
	resp.QueryType = "portfolio_template_generated"
	resp.Query = qd.Name
	resp.Parameters = qd.Params
	resp.Data = res.Groupings
	resp.PatternMatched = true
	resp.Answer = formatGroupings(res.Groupings)
	resp.WorkflowSteps = steps
	return resp, nil
}

func (e *Engine) geographic(ctx context.Context, rec extract.Record, resp Response, steps []string) (Response, error) {
	qd, err := e.registry.ForGeographic(rec)
	if err != nil {
		return Response{}, err
	}
	res, err := e.store.Execute(ctx, qd)
	if err != nil {
		return Response{}, err
	}
	place := rec.City
	if place == "" {
		place = rec.State
	}
	if place == "" {
		place = rec.Region
	}
	resp.QueryType = "geographic_template_generated"
	resp.Query = qd.Name
	resp.Parameters = qd.Params
	resp.Data = res.Assets
	resp.PatternMatched = true
	resp.Answer = formatGeographicSummary(res.Assets, place, rec.RadiusKM, rec.Reference) +
		"\n\n" + formatAssetTable(res.Assets)
	resp.WorkflowSteps = steps
	return resp, nil
}

// combined answers geography + semantics with a filtered vector search.
// When embeddings or the index are unavailable it degrades to the plain
// geographic template instead of failing the request.
func (e *Engine) combined(ctx context.Context, question string, rec extract.Record, resp Response, steps []string) (Response, error) {
	hits, searchErr := e.filteredSearch(ctx, question, rec)
	if searchErr != nil {
		e.logger.Warn("combined search degraded to geographic template", "error", searchErr)
		fallbacksTotal.WithLabelValues("combined_to_geographic").Inc()
		return e.geographic(ctx, rec, resp, append(steps, "geographic_fallback"))
	}

	resp.QueryType = "geographic_semantic_combined_vector"
	resp.Query = "vector similarity search with geographic filtering"
	resp.Data = hits
	resp.PatternMatched = len(hits) > 0
	resp.WorkflowSteps = steps
	if len(hits) == 0 {
		place := rec.State
		if place == "" {
			place = rec.City
		}
		if place == "" {
			resp.Answer = "No assets found matching the combined geographic and semantic criteria."
		} else {
			resp.Answer = fmt.Sprintf("No assets in %s match the semantic criteria %q", place, question)
		}
		return resp, nil
	}
	resp.Answer = formatHits(hits, fmt.Sprintf("Found %d assets matching your criteria:", len(hits)))
	return resp, nil
}

func (e *Engine) semantic(ctx context.Context, question string, resp Response, steps []string) (Response, error) {
	hits, searchErr := e.search(ctx, question, vector.Filter{}, semanticSearchLimit)
	if searchErr != nil {
		e.logger.Warn("semantic search unavailable", "error", searchErr)
		fallbacksTotal.WithLabelValues("semantic_unavailable").Inc()
		resp.QueryType = "semantic_search_error"
		resp.Answer = "Semantic search is temporarily unavailable. Please try again shortly."
		resp.Data = []vector.Hit{}
		resp.WorkflowSteps = steps
		return resp, nil
	}
	resp.QueryType = "semantic_vector_search"
	resp.Query = "vector similarity search"
	resp.Data = hits
	resp.PatternMatched = len(hits) > 0
	resp.Answer = formatHits(hits, fmt.Sprintf("Found %d semantically similar assets:", len(hits)))
	resp.WorkflowSteps = steps
	return resp, nil
}

func (e *Engine) economic(ctx context.Context, question string, rec extract.Record, resp Response, steps []string) (Response, error) {
	qd, err := e.registry.ForEconomic(question, rec)
	if err != nil {
		return Response{}, err
	}
	res, err := e.store.Execute(ctx, qd)
	if err != nil {
		return Response{}, err
	}
	resp.QueryType = "economic_template_generated"
	resp.Query = qd.Name
	resp.Parameters = qd.Params
	if res.Metric != nil {
		resp.Data = []graphstore.MetricPoint{*res.Metric}
	} else if res.Trend != nil {
		resp.Data = []graphstore.MetricTrend{*res.Trend}
	} else {
		resp.Data = []graphstore.MetricPoint{}
	}
	resp.PatternMatched = !res.Empty()
	resp.Answer = formatEconomic(res)
	resp.WorkflowSteps = steps
	return resp, nil
}

// unclassified tries a pure vector search before giving up; many
// unclassifiable questions are still good similarity queries.
func (e *Engine) unclassified(ctx context.Context, question string, resp Response, steps []string) Response {
	if hits, err := e.search(ctx, question, vector.Filter{}, semanticSearchLimit); err == nil && len(hits) > 0 {
		fallbacksTotal.WithLabelValues("unknown_to_vector").Inc()
		resp.QueryType = "semantic_vector_search"
		resp.Query = "vector similarity search"
		resp.Data = hits
		resp.PatternMatched = true
		resp.Answer = formatHits(hits, fmt.Sprintf("Found %d semantically similar assets:", len(hits)))
		resp.WorkflowSteps = steps
		return resp
	}
	fallbacksTotal.WithLabelValues("unknown_unanswered").Inc()
	resp.QueryType = "error_fallback"
	resp.Data = []vector.Hit{}
	resp.Answer = "I couldn't process that question. Try asking about portfolio distribution, assets in specific locations, or economic indicators."
	resp.WorkflowSteps = steps
	return resp
}

// filteredSearch narrows by the most specific location extracted.
func (e *Engine) filteredSearch(ctx context.Context, question string, rec extract.Record) ([]vector.Hit, error) {
	var filter vector.Filter
	switch {
	case rec.City != "":
		filter.City = rec.City
		filter.State = rec.State
	case rec.State != "":
		filter.State = rec.State
	case rec.Region != "":
		filter.Region = rec.Region
	}
	return e.search(ctx, question, filter, combinedSearchLimit)
}

func (e *Engine) search(ctx context.Context, question string, filter vector.Filter, limit int) ([]vector.Hit, error) {
	if e.embedder == nil || e.searcher == nil {
		return nil, embeddings.ErrUnavailable
	}
	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return e.searcher.Search(ctx, vec, filter, limit)
}
