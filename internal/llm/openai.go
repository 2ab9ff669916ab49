package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
// Ollama exposes one at /v1, so the same adapter serves local and hosted
// models.
type OpenAIClient struct {
	api    *openai.Client
	logger *zap.Logger
}

// NewOpenAIClient creates a client for the given endpoint. An empty baseURL
// keeps the SDK default (api.openai.com).
func NewOpenAIClient(baseURL, apiKey string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:    openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// Complete issues a blocking chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(messages, params))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// StreamComplete issues a streaming chat completion request and forwards
// deltas on the returned stream.
func (c *OpenAIClient) StreamComplete(ctx context.Context, messages []Message, params Params) (Stream, error) {
	req := c.buildRequest(messages, params)
	req.Stream = true

	sdkStream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}

	cs := &chatStream{tokens: make(chan string)}

	go func() {
		defer close(cs.tokens)
		defer func() { _ = sdkStream.Close() }()

		for {
			resp, err := sdkStream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					cs.setErr(ctx.Err())
				} else {
					cs.setErr(fmt.Errorf("stream receive failed: %w", err))
				}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case cs.tokens <- delta:
			case <-ctx.Done():
				cs.setErr(ctx.Err())
				return
			}
		}
	}()

	return cs, nil
}

func (c *OpenAIClient) buildRequest(messages []Message, params Params) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	if params.JSONOnly {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return req
}

// chatStream adapts the SDK stream to the Stream interface.
type chatStream struct {
	tokens chan string
	mu     sync.Mutex
	err    error
}

func (s *chatStream) Tokens() <-chan string {
	return s.tokens
}

func (s *chatStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chatStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
