// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the request and response contracts for the QA
// HTTP API.
package datatypes

import "github.com/atlasre/assetgraph/services/engine/answer"

// QARequest is the body of POST /qa.
type QARequest struct {
	// Question is the natural-language question to answer.
	Question string `json:"question" binding:"required"`
}

// QAResponse is the body returned by POST /qa.
//
// # Fields
//
//   - Answer: Deterministically formatted answer text.
//   - QueryType: Which pipeline produced the answer (template name family
//     or vector search), useful for debugging and dashboards.
//   - Data: The raw rows behind the answer.
//   - Intent: The classification that routed the question.
type QAResponse struct {
	RequestID      string            `json:"request_id"`
	Question       string            `json:"question"`
	Answer         string            `json:"answer"`
	QueryType      string            `json:"query_type"`
	Query          string            `json:"query,omitempty"`
	Parameters     map[string]any    `json:"parameters,omitempty"`
	Data           any               `json:"data"`
	PatternMatched bool              `json:"pattern_matched"`
	WorkflowSteps  []string          `json:"workflow_steps"`
	Intent         answer.IntentInfo `json:"intent_classification"`
}

// FromEngine converts an engine response into the API shape.
func FromEngine(r answer.Response) QAResponse {
	return QAResponse{
		Question:       r.Question,
		Answer:         r.Answer,
		QueryType:      r.QueryType,
		Query:          r.Query,
		Parameters:     r.Parameters,
		Data:           r.Data,
		PatternMatched: r.PatternMatched,
		WorkflowSteps:  r.WorkflowSteps,
		Intent:         r.Intent,
	}
}
