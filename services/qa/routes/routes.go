// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlasre/assetgraph/services/engine/answer"
	"github.com/atlasre/assetgraph/services/qa/handlers"
)

// SetupRoutes registers the QA API on the router. ping reports chain
// store reachability for the health endpoint; nil means not configured.
func SetupRoutes(router *gin.Engine, eng *answer.Engine, ping func(context.Context) error) {
	router.GET("/health", handlers.HealthCheck(ping))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/qa", handlers.HandleQA(eng))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/qa", handlers.HandleQA(eng))
	}
}
