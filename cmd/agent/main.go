// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// The respond agent consumes incident events from NATS, analyzes them with
// retrieved runbook knowledge and live cluster diagnostics, and publishes a
// remediation decision per event.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/jinterlante1206/AleutianRespond/pkg/logging"
	agentsvc "github.com/jinterlante1206/AleutianRespond/services/agent"
	"github.com/jinterlante1206/AleutianRespond/services/agent/broker"
	"github.com/jinterlante1206/AleutianRespond/services/agent/config"
	"github.com/jinterlante1206/AleutianRespond/services/agent/diagnostics"
	"github.com/jinterlante1206/AleutianRespond/services/agent/kube"
	"github.com/jinterlante1206/AleutianRespond/services/agent/llm"
	"github.com/jinterlante1206/AleutianRespond/services/agent/observability"
	"github.com/jinterlante1206/AleutianRespond/services/agent/rag"
	"github.com/jinterlante1206/AleutianRespond/services/agent/ratelimit"
)

const serviceName = "respond-agent"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: serviceName,
	})
	defer logger.Close()
	logger.InstallDefault()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// LLM provider behind the shared rate limiter and retry driver.
	provider, err := llm.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.EmbedderModel)
	if err != nil {
		log.Fatalf("FATAL: could not initialize the LLM provider: %v", err)
	}
	limiter := ratelimit.NewLimiter(cfg.RequestsPerMinute, cfg.RateLimitEnabled)
	client := llm.NewClient(provider, limiter, llm.ClientConfig{MaxRetries: cfg.MaxRetries})

	// Knowledge retrieval: vector search over runbooks plus blob bodies.
	weaviateClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		log.Fatalf("FATAL: could not create the Weaviate client: %v", err)
	}
	searcher, err := rag.NewWeaviateSearcher(weaviateClient, cfg.RunbookBucket)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	fetcher, err := rag.NewGCSFetcher(ctx, cfg.GCSKeyPath)
	if err != nil {
		log.Fatalf("FATAL: could not create the GCS client: %v", err)
	}
	defer fetcher.Close()

	agent := agentsvc.NewAgent(
		agentsvc.NewDedupCache(cfg.DedupTTL),
		rag.NewBuilder(client, searcher, fetcher),
		kube.NewDiscovery(),
		diagnostics.NewPlanner(client),
		diagnostics.NewExecutor(),
		agentsvc.NewSynthesizer(client),
	)

	natsConn, err := nats.Connect(cfg.NATSURL,
		nats.Name(serviceName),
		nats.MaxReconnects(-1))
	if err != nil {
		log.Fatalf("FATAL: could not connect to NATS at %s: %v", cfg.NATSURL, err)
	}
	defer natsConn.Close()
	slog.Info("Connected to NATS", "url", cfg.NATSURL)

	// Ops surface: health and metrics.
	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "nats_connected": natsConn.IsConnected()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	opsServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		slog.Info("Starting ops server", "port", cfg.HTTPPort)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Ops server failed", "error", err)
		}
	}()

	slog.Info("Starting event consumer", "subjects", broker.EventSubjects, "queue", broker.QueueGroup)
	if err := broker.New(natsConn, agent).Run(ctx); err != nil {
		slog.Error("Broker stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Ops server shutdown failed", "error", err)
	}
	slog.Info("Agent stopped")
}
