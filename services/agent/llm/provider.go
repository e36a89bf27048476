// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// CompletionRequest carries one generation call across the provider boundary.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// CompletionResult is the provider's answer plus any rate-limit metadata the
// transport exposed, for opportunistic limiter feedback.
type CompletionResult struct {
	Text    string
	Headers map[string]string
}

// Provider is the raw LLM backend boundary. Implementations perform exactly
// one call per invocation; retries and rate limiting live in Client.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat/embeddings endpoint.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	embedModel string
}

// NewOpenAIProvider creates a provider for the given model identifiers.
// baseURL may be empty for the hosted API or point at a compatible gateway.
func NewOpenAIProvider(apiKey, baseURL, model, embedModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
		slog.Warn("LLM model not set, using default", "model", model)
	}
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
		slog.Warn("Embedding model not set, using default", "model", embedModel)
	}
	slog.Info("Initializing LLM provider", "model", model, "embed_model", embedModel)
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
	}, nil
}

// Complete performs one chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	return &CompletionResult{
		Text:    resp.Choices[0].Message.Content,
		Headers: rateLimitHeaders(resp.Header()),
	}, nil
}

// Embed computes an embedding vector for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("provider returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// rateLimitHeaders copies the throttle-relevant response headers into the
// plain map the rate limiter consumes.
func rateLimitHeaders(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	out := map[string]string{}
	for _, key := range []string{"Retry-After", "X-Retry-After", "X-RateLimit-Reset"} {
		if value := h.Get(key); value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
