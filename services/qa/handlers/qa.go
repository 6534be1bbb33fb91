// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the QA API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/atlasre/assetgraph/services/engine/answer"
	"github.com/atlasre/assetgraph/services/engine/template"
	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/qa/datatypes"
	"github.com/atlasre/assetgraph/services/qa/observability"
	"github.com/atlasre/assetgraph/services/vector"
)

var qaTracer = otel.Tracer("assetgraph.services.qa.handlers")

// HandleQA answers a natural-language question about the portfolio.
//
// Status mapping:
//   - 400: malformed body or missing question
//   - 422: a template could not be rendered from the question
//   - 503: the graph store or vector index is unavailable
//   - 500: anything else
func HandleQA(eng *answer.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		requestID := uuid.NewString()
		ctx, span := qaTracer.Start(c.Request.Context(), "handlers.HandleQA")
		defer span.End()

		var req datatypes.QARequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observability.ObserveRequest("400", "", started)
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			observability.ObserveRequest("400", "", started)
			c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be blank"})
			return
		}

		resp, err := eng.Answer(ctx, req.Question)
		if err != nil {
			status := statusFor(err)
			slog.Error("QA request failed",
				"request_id", requestID,
				"status", status,
				"error", err)
			observability.ObserveRequest(strconv.Itoa(status), "", started)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		observability.ObserveRequest("200", resp.QueryType, started)
		out := datatypes.FromEngine(resp)
		out.RequestID = requestID
		c.JSON(http.StatusOK, out)
	}
}

func statusFor(err error) int {
	var terr *template.Error
	switch {
	case errors.As(err, &terr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, graphstore.ErrStoreUnavailable),
		errors.Is(err, vector.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck reports liveness and, when a ping is supplied, chain
// store reachability. An unreachable store degrades the payload but
// still returns 200 so orchestrators keep the process alive.
func HealthCheck(ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{"status": "ok"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				payload["chain_store"] = "unreachable"
				payload["status"] = "degraded"
			} else {
				payload["chain_store"] = "ok"
			}
		}
		c.JSON(http.StatusOK, payload)
	}
}
