// Command admission is a thin dev/ops CLI for manually admitting a
// render job or consuming a print from the command line, bypassing
// whatever HTTP surface a real caller would normally go through.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gosom/vectorprint/internal/config"
	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/logging"
	"github.com/gosom/vectorprint/internal/metadatastore"
	"github.com/gosom/vectorprint/internal/models"
	"github.com/gosom/vectorprint/internal/quota"
	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	var (
		command    = flag.String("cmd", "admit", "admit | consume | audit")
		metaPath   = flag.String("metadata", "", "path to a VectorMetadata JSON file (admit)")
		owner      = flag.String("owner", "", "owning user id (admit)")
		documentID = flag.String("document", "", "document id (consume)")
		userID     = flag.String("user", "", "user id (consume)")
		requestID  = flag.String("request", "", "idempotency request id (consume)")
		jobID      = flag.String("job", "", "print job id (audit)")
	)
	flag.Parse()

	if err := run(context.Background(), *command, *metaPath, *owner, *documentID, *userID, *requestID, *jobID); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, command, metaPath, owner, documentID, userID, requestID, jobID string) error {
	zlog, err := logging.New(logging.NewConfigFromEnv())
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

	db, err := metadatastore.Open(pgCfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	cache := kvcache.New(redisCfg)
	defer cache.Close()

	jobs := metadatastore.NewPrintJobRepository(db)

	switch command {
	case "admit":
		if metaPath == "" || owner == "" {
			return fmt.Errorf("admit requires -metadata and -owner")
		}
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			return fmt.Errorf("read metadata file: %w", err)
		}
		var metadata models.VectorMetadata
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return fmt.Errorf("parse metadata: %w", err)
		}

		queueClient, err := queue.NewClient(redisCfg)
		if err != nil {
			return err
		}
		defer queueClient.Close()

		admission := scheduler.NewAdmission(jobs, cache, queueClient, vectorCfg, zlog)
		job, err := admission.AdmitOrJoin(ctx, owner, metadata)
		if err != nil {
			return err
		}
		return printJSON(job)

	case "consume":
		if documentID == "" || userID == "" || requestID == "" {
			return fmt.Errorf("consume requires -document, -user, and -request")
		}
		access := metadatastore.NewDocumentAccessRepository(db)
		engine := quota.New(cache, access, zlog)
		if err := engine.Consume(ctx, documentID, userID, requestID); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "audit":
		if jobID == "" {
			return fmt.Errorf("audit requires -job")
		}
		trail := scheduler.NewAuditTrail(jobs)
		events, err := trail.Events(ctx, jobID)
		if err != nil {
			return err
		}
		return printJSON(events)

	default:
		return fmt.Errorf("unknown -cmd %q", command)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
