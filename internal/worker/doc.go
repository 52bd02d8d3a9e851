// Package worker implements the render worker lifecycle and Redis Streams integration.
//
// The worker reads render jobs from a Redis stream, picks an engine adapter
// through the dispatcher, renders the job's template and publishes the output
// back to a result stream.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	reg, _ := registry.New(registry.Options{TemplateFS: os.DirFS(cfg.TemplateDir)})
//	dispatcher, _ := dispatch.NewDispatcher(reg, dispatch.Config{Fallback: cfg.DefaultEngine}, logger)
//
//	w := worker.NewWorker(cfg, redisClient, worker.NewProcessor(dispatcher, logger), logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(ctx)
//
// The worker handles:
//   - Redis Streams subscription and consumer group management
//   - Job parsing and engine selection
//   - Output publishing, with failures sent to "<result stream>.errors"
//   - Graceful shutdown
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, redisClient, reg.Names, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
