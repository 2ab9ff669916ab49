package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mjallday/switchboard/internal/classify"
	"github.com/mjallday/switchboard/internal/eval/template"
	"github.com/mjallday/switchboard/internal/llm"
	"github.com/mjallday/switchboard/internal/memory"
	"github.com/mjallday/switchboard/internal/registry"
	"go.uber.org/zap"
)

// State names the stages a turn moves through.
type State string

const (
	StateReceived    State = "RECEIVED"
	StateClassifying State = "CLASSIFYING"
	StateDispatching State = "DISPATCHING"
	StateStreaming   State = "STREAMING"
	StateCompleted   State = "COMPLETED"
	StateErrored     State = "ERRORED"
)

// ErrorKind classifies a turn failure.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindDispatchFailure     ErrorKind = "handler_dispatch_failure"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindCanceled            ErrorKind = "canceled"
)

// ErrInvalidInput rejects empty or whitespace-only query text before
// classification.
var ErrInvalidInput = errors.New("invalid input: query text is empty")

// DegradationNotice is appended to a partial response when the handler
// stream fails mid-flight. Failures must be visible to the user, never
// silently masked.
const DegradationNotice = "[notice: the response was interrupted and may be incomplete]"

// DefaultConfidenceThreshold is the confidence below which a classification
// is logged as low-confidence. Confidence is informational only: the
// returned category is routed regardless. Raise the threshold in Config to
// get louder diagnostics; it never gates routing.
const DefaultConfidenceThreshold = 0.0

// Query is one immutable incoming request.
type Query struct {
	Text       string
	SessionID  string
	ReceivedAt time.Time
}

// ErrorInfo describes a degraded or failed turn.
type ErrorInfo struct {
	Kind    ErrorKind
	Message string
}

// Result is the terminal value of one routed turn.
type Result struct {
	Query           Query
	Classification  classify.Classification
	HandlerCategory registry.Category
	Response        string
	Partial         bool
	State           State
	Err             *ErrorInfo
}

// Sink receives response tokens as they arrive. A nil sink buffers the
// response without intermediate delivery.
type Sink func(token string)

// Config holds router tuning.
type Config struct {
	// HandlerTimeout bounds the handler completion call. Independent of the
	// classifier's timeout.
	HandlerTimeout time.Duration

	// ConfidenceThreshold marks classifications below it as low-confidence
	// in logs. Informational only; never gates routing.
	ConfidenceThreshold float64

	// PreservePartials appends partially streamed turns to memory after a
	// mid-stream failure or caller cancellation.
	PreservePartials bool

	// MaxHistoryTurns caps how many memory turns seed the handler context.
	// Zero means no cap.
	MaxHistoryTurns int
}

// Router is the orchestration core: it classifies a query, resolves the
// handler descriptor, seeds context from conversational memory, streams the
// handler's output, and records the completed turn.
type Router struct {
	reg        *registry.Registry
	classifier *classify.Classifier
	client     llm.Client
	store      memory.Store
	templates  *template.Engine
	logger     *zap.Logger
	cfg        Config
}

// New creates a router and validates every handler's system prompt
// template. A template that does not parse is a configuration error and
// must abort startup, not surface per request.
func New(
	reg *registry.Registry,
	classifier *classify.Classifier,
	client llm.Client,
	store memory.Store,
	templates *template.Engine,
	logger *zap.Logger,
	cfg Config,
) (*Router, error) {
	for _, cat := range reg.Categories() {
		desc := reg.Resolve(cat)
		if err := templates.ValidateTemplate(desc.SystemPrompt); err != nil {
			return nil, fmt.Errorf("handler %q: invalid system prompt template: %w", cat, err)
		}
	}

	return &Router{
		reg:        reg,
		classifier: classifier,
		client:     client,
		store:      store,
		templates:  templates,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// Route processes one turn. Tokens are forwarded to sink as they arrive
// when sink is non-nil. The returned Result is always usable for
// presentation; the error return is reserved for invalid input.
func (r *Router) Route(ctx context.Context, q Query, sink Sink) (*Result, error) {
	if q.ReceivedAt.IsZero() {
		q.ReceivedAt = time.Now().UTC()
	}

	result := &Result{Query: q, State: StateReceived}

	if strings.TrimSpace(q.Text) == "" {
		result.State = StateErrored
		result.Err = &ErrorInfo{Kind: KindInvalidInput, Message: ErrInvalidInput.Error()}
		return result, ErrInvalidInput
	}

	// RECEIVED -> CLASSIFYING. Classification never hard-fails the turn;
	// the classifier resolves its own failures to the default category.
	result.State = StateClassifying
	cls, err := r.classifier.Classify(ctx, q.Text)
	if err != nil {
		result.State = StateErrored
		result.Err = &ErrorInfo{Kind: KindInvalidInput, Message: err.Error()}
		return result, ErrInvalidInput
	}
	result.Classification = cls

	if cls.Confidence < r.cfg.ConfidenceThreshold {
		r.logger.Warn("low-confidence classification, routing anyway",
			zap.String("session_id", q.SessionID),
			zap.String("category", string(cls.Category)),
			zap.Float64("confidence", cls.Confidence),
			zap.Float64("threshold", r.cfg.ConfidenceThreshold),
		)
	}

	// CLASSIFYING -> DISPATCHING. Resolve never fails; unknown categories
	// collapse to the default descriptor.
	result.State = StateDispatching
	desc := r.reg.Resolve(cls.Category)
	result.HandlerCategory = desc.Category

	r.logger.Info("dispatching query",
		zap.String("session_id", q.SessionID),
		zap.String("category", string(desc.Category)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("reasoning", cls.Reasoning),
	)

	key, remember := memory.KeyFor(desc.MemoryPolicy, q.SessionID, desc.Category)
	history := r.loadHistory(ctx, key, remember, q.SessionID)

	messages, err := r.buildMessages(desc, history, q)
	if err != nil {
		// System prompt templates are parse-validated in New, so a render
		// failure here is a registry inconsistency, not upstream trouble.
		result.State = StateErrored
		result.Err = &ErrorInfo{Kind: KindDispatchFailure, Message: err.Error()}
		result.Response = DegradationNotice
		result.Partial = true
		r.logger.Error("failed to build handler context", zap.Error(err))
		return result, nil
	}

	// DISPATCHING -> STREAMING.
	result.State = StateStreaming

	handlerCtx := ctx
	if r.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(ctx, r.cfg.HandlerTimeout)
		defer cancel()
	}

	params := llm.Params{
		Model:       desc.Model,
		Temperature: desc.Temperature,
		MaxTokens:   desc.MaxTokens,
	}

	stream, err := r.client.StreamComplete(handlerCtx, messages, params)
	if err != nil {
		result.State = StateErrored
		result.Err = r.errorInfo(handlerCtx, err)
		result.Response = DegradationNotice
		result.Partial = true
		r.logger.Error("handler dispatch failed",
			zap.String("category", string(desc.Category)),
			zap.Error(err),
		)
		return result, nil
	}

	var buf strings.Builder
	for token := range stream.Tokens() {
		buf.WriteString(token)
		if sink != nil {
			sink(token)
		}
	}

	if streamErr := stream.Err(); streamErr != nil {
		// Flush what was produced before the failure, plus an explicit
		// notice. Partial output already delivered is never discarded.
		result.State = StateErrored
		result.Err = r.errorInfo(handlerCtx, streamErr)

		notice := DegradationNotice
		if buf.Len() > 0 {
			notice = "\n\n" + DegradationNotice
		}
		buf.WriteString(notice)
		if sink != nil {
			sink(notice)
		}
		result.Response = buf.String()
		result.Partial = true

		r.logger.Error("handler stream interrupted",
			zap.String("category", string(desc.Category)),
			zap.String("kind", string(result.Err.Kind)),
			zap.Error(streamErr),
		)

		if remember && r.cfg.PreservePartials {
			r.appendTurn(ctx, key, q.Text, result.Response)
		}
		return result, nil
	}

	// STREAMING -> COMPLETED.
	result.State = StateCompleted
	result.Response = buf.String()

	if remember {
		r.appendTurn(ctx, key, q.Text, result.Response)
	}

	return result, nil
}

// loadHistory fetches memory turns for the key. Store failures are logged
// and the turn proceeds without context: availability over durability.
func (r *Router) loadHistory(ctx context.Context, key memory.Key, remember bool, sessionID string) []memory.Turn {
	if !remember {
		return nil
	}

	history, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("memory load failed, proceeding without history",
			zap.String("session_id", sessionID),
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return nil
	}

	if r.cfg.MaxHistoryTurns > 0 && len(history) > r.cfg.MaxHistoryTurns {
		history = history[len(history)-r.cfg.MaxHistoryTurns:]
	}
	return history
}

func (r *Router) buildMessages(desc registry.Descriptor, history []memory.Turn, q Query) ([]llm.Message, error) {
	systemPrompt, err := r.templates.Render(desc.SystemPrompt, map[string]interface{}{
		"query":    q.Text,
		"session":  q.SessionID,
		"category": string(desc.Category),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: q.Text})

	return messages, nil
}

// appendTurn records the completed exchange. A store failure is logged and
// otherwise ignored; the response has already been delivered.
func (r *Router) appendTurn(ctx context.Context, key memory.Key, userText, assistantText string) {
	err := r.store.Append(ctx, key,
		memory.Turn{Role: llm.RoleUser, Content: userText},
		memory.Turn{Role: llm.RoleAssistant, Content: assistantText},
	)
	if err != nil {
		r.logger.Warn("memory append failed, turn not persisted",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}

func (r *Router) errorInfo(ctx context.Context, err error) *ErrorInfo {
	switch {
	case errors.Is(err, context.Canceled):
		return &ErrorInfo{Kind: KindCanceled, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ErrorInfo{Kind: KindUpstreamTimeout, Message: err.Error()}
	default:
		return &ErrorInfo{Kind: KindUpstreamUnavailable, Message: err.Error()}
	}
}
