package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mjallday/switchboard/internal/classify"
	"github.com/mjallday/switchboard/internal/config"
	"github.com/mjallday/switchboard/internal/eval/template"
	"github.com/mjallday/switchboard/internal/format"
	"github.com/mjallday/switchboard/internal/llm"
	"github.com/mjallday/switchboard/internal/memory"
	"github.com/mjallday/switchboard/internal/registry"
	"github.com/mjallday/switchboard/internal/router"
	"github.com/mjallday/switchboard/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	serve := flag.Bool("serve", false, "run as a stream worker service")
	interactive := flag.Bool("interactive", false, "interactive stdin loop")
	streamOut := flag.Bool("stream", false, "stream tokens to stdout as they arrive")
	session := flag.String("session", "", "session id (generated when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting switchboard",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Fatal("failed to load handler registry", zap.Error(err))
	}
	logger.Info("handler registry loaded",
		zap.Int("handlers", len(reg.Categories())),
		zap.String("default", string(reg.Default())),
	)

	client := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, logger)
	templates := template.NewEngine()

	classifier, err := classify.New(reg, client, templates, logger, classify.Config{
		Model:       cfg.ClassifierModel,
		Temperature: cfg.ClassifierTemperature,
		MaxRetries:  cfg.ClassifierMaxRetries,
		Timeout:     cfg.ClassifierTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialize classifier", zap.Error(err))
	}

	var redisClient *redis.Client
	needRedis := *serve || cfg.MemoryBackend == "redis"
	if needRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	var store memory.Store
	if cfg.MemoryBackend == "redis" {
		store = memory.NewRedisStore(redisClient, cfg.MemoryTTL, logger)
	} else {
		store = memory.NewInMemoryStore()
	}

	rt, err := router.New(reg, classifier, client, store, templates, logger, router.Config{
		HandlerTimeout:      cfg.HandlerTimeout,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		PreservePartials:    cfg.PreservePartials,
		MaxHistoryTurns:     cfg.MaxHistoryTurns,
	})
	if err != nil {
		logger.Fatal("failed to initialize router", zap.Error(err))
	}

	switch {
	case *serve:
		runService(cfg, redisClient, rt, logger)
	case *interactive:
		runInteractive(rt, *session, *streamOut)
	default:
		query := strings.TrimSpace(strings.Join(flag.Args(), " "))
		if query == "" {
			fmt.Fprintln(os.Stderr, "usage: switchboard [-stream] [-session id] \"query text\"")
			os.Exit(2)
		}
		if code := routeOnce(rt, query, *session, *streamOut); code != 0 {
			os.Exit(code)
		}
	}
}

// routeOnce routes a single query and prints the result.
func routeOnce(rt *router.Router, query, session string, streamOut bool) int {
	if session == "" {
		session = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink router.Sink
	if streamOut {
		sink = func(token string) { fmt.Print(token) }
	}

	result, err := rt.Route(ctx, router.Query{Text: query, SessionID: session}, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if streamOut {
		// Tokens already printed; close the line and report the decision.
		fmt.Printf("\n\n[%s, confidence %.2f]\n", result.HandlerCategory, result.Classification.Confidence)
	} else {
		fmt.Println(format.Text(result))
	}
	return 0
}

// runInteractive reads queries from stdin, sharing one session so
// per-session memory carries across turns.
func runInteractive(rt *router.Router, session string, streamOut bool) {
	if session == "" {
		session = uuid.NewString()
	}

	fmt.Printf("session %s — type 'quit' to exit\n", session)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			return
		}

		routeOnce(rt, query, session, streamOut)
	}
}

// runService runs the Redis Streams worker with graceful shutdown.
func runService(cfg *config.Config, redisClient *redis.Client, rt *router.Router, logger *zap.Logger) {
	w := worker.NewWorker(cfg, redisClient, rt, logger)
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	healthServer := worker.NewHealthServer(cfg.HealthPort, cfg.WorkerID, redisClient, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("switchboard worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	if err := w.Stop(); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	select {
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	default:
		logger.Info("worker stopped gracefully")
	}
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
