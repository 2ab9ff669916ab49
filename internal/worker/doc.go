// Package worker implements service mode: the Redis Streams lifecycle that
// feeds the router core from an upstream transcription pipeline.
//
// The worker joins a consumer group on the transcript stream, routes each
// utterance ({"query": ..., "session_id": ...} JSON in a "data" field), and
// publishes the formatted payload to the response stream where downstream
// consumers (text-to-speech, clients) pick it up. Routing failures go to
// "<response stream>.errors".
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//
//	w := worker.NewWorker(cfg, redisClient, routerInstance, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, cfg.WorkerID, redisClient, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
