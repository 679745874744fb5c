// Command service wires every transport and domain package into the
// running render pipeline: the asynq worker server processing batch
// and merge tasks, the reaper sweep ticker, and the readiness probe.
// Env config loads via godotenv, shutdown is signal-driven with a
// bounded grace period for in-flight work to finish.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gosom/vectorprint/internal/blobstore"
	"github.com/gosom/vectorprint/internal/config"
	"github.com/gosom/vectorprint/internal/health"
	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/layout"
	"github.com/gosom/vectorprint/internal/logging"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/queue/tasks"
	"github.com/gosom/vectorprint/internal/reaper"
	"github.com/gosom/vectorprint/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("received signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("service exited with error: %v", err)
	}
}

func run(ctx context.Context) error {
	logCfg := logging.NewConfigFromEnv()
	zlog, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer zlog.Sync() //nolint:errcheck

	vectorCfg, err := config.NewVectorConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.NewRedisConfig()
	if err != nil {
		return err
	}
	pgCfg, err := config.NewPostgresConfig()
	if err != nil {
		return err
	}
	s3Cfg, err := config.NewS3Config()
	if err != nil {
		return err
	}

	db, err := metadatastore.Open(pgCfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := metadatastore.EnsureSchema(db); err != nil {
		return err
	}

	cache := kvcache.New(redisCfg)
	defer cache.Close()

	blobs, err := blobstore.New(ctx, s3Cfg)
	if err != nil {
		return err
	}

	queueClient, err := queue.NewClient(redisCfg)
	if err != nil {
		return err
	}
	defer queueClient.Close()

	queueServer, err := queue.NewServer(redisCfg)
	if err != nil {
		return err
	}

	jobs := metadatastore.NewPrintJobRepository(db)
	docs := metadatastore.NewDocumentRepository(db)

	converter := layout.NewExecConverter(os.Getenv("VECTOR_SVG_CONVERTER_PATH"))
	engine := layout.NewEngine(converter, os.TempDir())

	handler := scheduler.NewHandler(jobs, docs, cache, blobs, queueClient, engine, vectorCfg, zlog)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRenderBatch, handler)
	mux.Handle(tasks.TypeRenderMerge, handler)
	mux.HandleFunc(tasks.TypeHealthCheck, func(ctx context.Context, t *asynq.Task) error { return nil })

	if err := queueServer.Start(ctx, mux); err != nil {
		return err
	}

	r := reaper.New(jobs, blobs, vectorCfg.ReaperStaleAfter, vectorCfg.ReaperFailedAfter, zlog)
	go r.Run(ctx, vectorCfg.ReaperInterval)

	checker := health.New(cache, blobs, db)
	go checker.Run(ctx, 30*time.Second)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queueServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("queue server shutdown error", zap.Error(err))
	}
	return nil
}
