// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package qa provides the question-answering service for AssetGraph.
//
// The service wires the answer engine to its backends (chain store,
// asset snapshot, optional Weaviate vector index and embeddings client)
// and exposes it over HTTP via Gin.
//
// # Usage
//
//	cfg := qa.Config{Port: 12300}
//	svc, err := qa.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/atlasre/assetgraph/services/embeddings"
	"github.com/atlasre/assetgraph/services/engine/answer"
	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/qa/observability"
	"github.com/atlasre/assetgraph/services/qa/routes"
	"github.com/atlasre/assetgraph/services/timeseries"
	"github.com/atlasre/assetgraph/services/vector"
)

// Service is the QA service lifecycle.
//
// Implementations must be safe for concurrent use. Run blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify routes after construction.
	Router() *gin.Engine
}

// Config holds QA service configuration. All fields have defaults
// applied by New.
type Config struct {
	// Port is the HTTP server port. Default: 12300
	Port int

	// ChainPath is the on-disk location of the metric chain store.
	// Default: "./data/chains"
	ChainPath string

	// ChainInMemory keeps the chain store in memory (tests, demos).
	ChainInMemory bool

	// WeaviateURL is the Weaviate vector database URL. If empty, vector
	// search runs against an in-process index (or is disabled when no
	// embeddings backend is configured either).
	// Example: "http://localhost:8080"
	WeaviateURL string

	// EnableEmbeddings turns on the OpenAI-compatible embeddings client.
	// Requires OPENAI_API_KEY (or the Podman secret) at startup.
	EnableEmbeddings bool

	// AssetSeedPath is a JSON file of assets to load at startup. If
	// empty, the asset snapshot must be installed by a loader.
	AssetSeedPath string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "assetgraph-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

type service struct {
	config         Config
	router         *gin.Engine
	chains         *timeseries.Store
	store          *graphstore.Memory
	memoryIndex    *vector.MemoryIndex
	weaviateClient *weaviate.Client
	embedder       embeddings.Client
	engine         *answer.Engine
	tracerCleanup  func(context.Context)
}

var _ Service = (*service)(nil)

// New initializes the QA service: tracing, metrics, the chain store,
// the asset store, the optional vector backends, and the HTTP router.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for QA")
	}

	if err := s.initStores(); err != nil {
		s.cleanup()
		return nil, err
	}

	// Weaviate is optional; without it similarity search falls back to
	// the in-process index.
	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running in lightweight mode",
			"error", err)
	}

	if err := s.initEngine(); err != nil {
		s.cleanup()
		return nil, err
	}

	if s.config.AssetSeedPath != "" {
		if err := s.loadSeed(context.Background()); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to load asset seed: %w", err)
		}
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting QA server", "port", s.config.Port)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// Chains exposes the metric chain store to loaders sharing the process.
func (s *service) Chains() *timeseries.Store {
	return s.chains
}

// AssetStore exposes the asset snapshot store to loaders sharing the
// process.
func (s *service) AssetStore() *graphstore.Memory {
	return s.store
}

// MemoryIndex exposes the in-process vector index, nil when Weaviate is
// serving search instead.
func (s *service) MemoryIndex() *vector.MemoryIndex {
	return s.memoryIndex
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12300
	}
	if cfg.ChainPath == "" {
		cfg.ChainPath = "./data/chains"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "assetgraph-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	return cfg
}

// initTracer sets up the OTLP trace exporter. Uses an insecure gRPC
// connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("assetgraph-qa")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func (s *service) initStores() error {
	chainCfg := timeseries.DefaultConfig(s.config.ChainPath)
	if s.config.ChainInMemory {
		chainCfg = timeseries.InMemoryConfig()
	}
	chains, err := timeseries.Open(chainCfg)
	if err != nil {
		return fmt.Errorf("failed to open chain store: %w", err)
	}
	s.chains = chains
	s.store = graphstore.NewMemory(chains, slog.Default())
	return nil
}

func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, using in-process vector index")
		s.memoryIndex = vector.NewMemoryIndex()
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		s.memoryIndex = vector.NewMemoryIndex()
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		s.memoryIndex = vector.NewMemoryIndex()
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	if err := vector.EnsureAssetSchema(context.Background(), s.weaviateClient); err != nil {
		slog.Warn("Weaviate schema check failed", "error", err)
	}
	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

func (s *service) initEngine() error {
	if s.config.EnableEmbeddings {
		client, err := embeddings.NewOpenAIClient()
		if err != nil {
			slog.Warn("Embeddings client unavailable, semantic search will degrade", "error", err)
		} else {
			s.embedder = embeddings.WithResilience(client, 0, 1, slog.Default())
		}
	}

	var searcher vector.Searcher
	if s.weaviateClient != nil {
		searcher = vector.NewWeaviateSearcher(s.weaviateClient, slog.Default())
	} else if s.memoryIndex != nil {
		searcher = s.memoryIndex
	}

	eng, err := answer.New(answer.Deps{
		Store:    s.store,
		Embedder: s.embedder,
		Searcher: searcher,
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize answer engine: %w", err)
	}
	s.engine = eng
	return nil
}

// loadSeed installs the asset snapshot and, when an in-process index
// and an embeddings client are both available, embeds each description
// so semantic search works without Weaviate.
func (s *service) loadSeed(ctx context.Context) error {
	assets, err := graphstore.LoadSeedFile(s.config.AssetSeedPath)
	if err != nil {
		return err
	}
	if err := s.store.LoadAssets(assets); err != nil {
		return err
	}
	if s.memoryIndex == nil || s.embedder == nil {
		return nil
	}
	for _, a := range assets {
		if a.Description == "" {
			continue
		}
		vec, err := s.embedder.Embed(ctx, a.Description)
		if err != nil {
			slog.Warn("skipping vector for asset", "asset", a.Name, "error", err)
			continue
		}
		s.memoryIndex.Add(vector.Document{
			Name: a.Name, City: a.City, State: a.State, Region: a.Region,
			BuildingType: a.BuildingType, Platform: a.Platform,
			Description: a.Description, Vector: vec,
		})
	}
	slog.Info("asset seed loaded", "assets", len(assets), "vectors", s.memoryIndex.Len())
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("assetgraph-qa"))

	ping := func(ctx context.Context) error {
		_, err := s.chains.Metrics(ctx)
		return err
	}
	routes.SetupRoutes(s.router, s.engine, ping)
}

func (s *service) cleanup() {
	if s.chains != nil {
		if err := s.chains.Close(); err != nil {
			slog.Warn("chain store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
