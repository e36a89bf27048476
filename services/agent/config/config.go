// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the agent's configuration from the
// environment, once, at startup. Every recognized option and its default
// lives here; nothing else in the agent reads environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config is the complete agent configuration.
type Config struct {
	// LLM provider.
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	EmbedderModel string
	MaxRetries    int

	// Rate limiting.
	RequestsPerMinute float64
	RateLimitEnabled  bool

	// Broker.
	NATSURL string

	// Knowledge retrieval.
	WeaviateHost   string
	WeaviateScheme string
	RunbookBucket  string
	GCSKeyPath     string

	// Pipeline.
	DedupTTL time.Duration

	// Ops server.
	HTTPPort string
}

// Load reads the configuration from the environment, applying defaults for
// everything optional and warning about each fallback.
func Load() *Config {
	return &Config{
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMBaseURL:        os.Getenv("LLM_BASE_URL"),
		LLMModel:          os.Getenv("LLM_MODEL"),
		EmbedderModel:     os.Getenv("EMBEDDING_MODEL"),
		MaxRetries:        intEnv("LLM_MAX_RETRIES", 3),
		RequestsPerMinute: floatEnv("LLM_REQUESTS_PER_MINUTE", 10),
		RateLimitEnabled:  os.Getenv("LLM_RATE_LIMIT_DISABLED") != "true",
		NATSURL:           stringEnv("NATS_URL", "nats://localhost:4222"),
		WeaviateHost:      stringEnv("WEAVIATE_HOST", "localhost:8080"),
		WeaviateScheme:    stringEnv("WEAVIATE_SCHEME", "http"),
		RunbookBucket:     stringEnv("RUNBOOK_BUCKET", "runbooks"),
		GCSKeyPath:        os.Getenv("GCS_SA_KEY_PATH"),
		DedupTTL:          durationEnv("DEDUP_TTL", 5*time.Minute),
		HTTPPort:          stringEnv("HTTP_PORT", "8090"),
	}
}

// Validate rejects configurations the agent cannot start with. Called once
// from main.
func (c *Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY must be set")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("LLM_MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_MINUTE must be positive, got %v", c.RequestsPerMinute)
	}
	if c.DedupTTL <= 0 {
		return fmt.Errorf("DEDUP_TTL must be positive, got %v", c.DedupTTL)
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	slog.Warn("Environment variable not set, using default", "key", key, "default", fallback)
	return fallback
}

func intEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Environment variable is not an integer, using default",
			"key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}

func floatEnv(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("Environment variable is not a number, using default",
			"key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Environment variable is not a duration, using default",
			"key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}
