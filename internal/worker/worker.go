package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mjallday/switchboard/internal/config"
	"github.com/mjallday/switchboard/internal/format"
	"github.com/mjallday/switchboard/internal/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Worker consumes transcribed utterances from a Redis stream, routes each
// through the router core, and publishes the formatted result to the
// response stream for downstream consumers (text-to-speech, clients).
type Worker struct {
	id               string
	config           *config.Config
	redisClient      *redis.Client
	router           *router.Router
	logger           *zap.Logger
	ctx              context.Context
	cancel           context.CancelFunc
	done             chan struct{}
	started          bool
	transcriptStream string
	consumerGroup    string
	responseStream   string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	routerInstance *router.Router,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:               cfg.WorkerID,
		config:           cfg,
		redisClient:      redisClient,
		router:           routerInstance,
		logger:           logger,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
		transcriptStream: cfg.TranscriptStream,
		consumerGroup:    cfg.ConsumerGroup,
		responseStream:   cfg.ResponseStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting switchboard worker",
		zap.String("worker_id", w.id),
		zap.String("transcript_stream", w.transcriptStream),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.started = true
	go w.processTranscripts()

	w.logger.Info("switchboard worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker gracefully, waiting for the processing loop to
// finish its in-flight turn.
func (w *Worker) Stop() error {
	w.logger.Info("stopping switchboard worker", zap.String("worker_id", w.id))

	w.cancel()
	if w.started {
		<-w.done
	}

	w.logger.Info("switchboard worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.transcriptStream, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP error means the group already exists, which is fine
		if strings.Contains(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.transcriptStream),
	)
	return nil
}

// processTranscripts processes utterances from the Redis stream
func (w *Worker) processTranscripts() {
	defer close(w.done)

	w.logger.Info("starting transcript processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("transcript processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.transcriptStream, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from transcript stream",
					zap.Error(err),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// Utterance is one transcribed request read from the transcript stream.
type Utterance struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// handleMessage routes a single utterance message
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing utterance",
		zap.String("message_id", messageID),
	)

	utterance, err := w.parseUtterance(message.Values)
	if err != nil {
		w.logger.Error("failed to parse utterance",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.acknowledgeMessage(messageID)
		return
	}

	if err := w.routeUtterance(utterance); err != nil {
		w.logger.Error("failed to route utterance",
			zap.String("message_id", messageID),
			zap.String("session_id", utterance.SessionID),
			zap.Error(err),
		)
		w.publishError(utterance, err)
	}

	w.acknowledgeMessage(messageID)
}

// parseUtterance parses an utterance from a Redis message
func (w *Worker) parseUtterance(values map[string]interface{}) (*Utterance, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var u Utterance
	if err := json.Unmarshal([]byte(dataStr), &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal utterance: %w", err)
	}

	if u.SessionID == "" {
		u.SessionID = uuid.NewString()
	}

	return &u, nil
}

// routeUtterance routes one utterance and publishes the result
func (w *Worker) routeUtterance(u *Utterance) error {
	result, err := w.router.Route(w.ctx, router.Query{
		Text:      u.Query,
		SessionID: u.SessionID,
	}, nil)
	if err != nil {
		return fmt.Errorf("routing failed: %w", err)
	}

	if err := w.publishResult(result); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	return nil
}

// publishResult publishes the routed turn to the response stream
func (w *Worker) publishResult(result *router.Result) error {
	data, err := json.Marshal(format.NewPayload(result))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = w.redisClient.XAdd(w.ctx, &redis.XAddArgs{
		Stream: w.responseStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	w.logger.Info("published routed response",
		zap.String("session_id", result.Query.SessionID),
		zap.String("category", string(result.HandlerCategory)),
		zap.Bool("partial", result.Partial),
	)

	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(u *Utterance, err error) {
	errorEvent := map[string]interface{}{
		"session_id": u.SessionID,
		"query":      u.Query,
		"error":      err.Error(),
		"timestamp":  time.Now().UTC(),
	}

	data, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.logger.Error("failed to marshal error event", zap.Error(marshalErr))
		return
	}

	_, publishErr := w.redisClient.XAdd(w.ctx, &redis.XAddArgs{
		Stream: w.responseStream + ".errors",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(w.ctx, w.transcriptStream, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
