// The importer ingests a single access-log file into the configured
// store and exits: logvault-importer <logfile>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/logvault/logvault/internal/config"
	"github.com/logvault/logvault/internal/pkg/logger"
	"github.com/logvault/logvault/internal/repository"
	"github.com/logvault/logvault/internal/service"
)

func main() {
	resume := flag.Bool("resume", true, "resume from the stored watermark instead of re-reading from the start")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: logvault-importer [-resume=false] <logfile>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	var store service.Store
	var positionRepo service.PositionRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to db: %v", err)
		}
		store, err = repository.NewPostgresLogStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize log store: %v", err)
		}
		gdb, err := repository.NewGormDB(db)
		if err != nil {
			log.Fatalf("Failed to open gorm: %v", err)
		}
		positionRepo, err = repository.NewGormPositionRepo(gdb)
		if err != nil {
			log.Fatalf("Failed to initialize position repo: %v", err)
		}
	} else {
		log.Fatal("A database DSN is required: an in-memory import would be discarded on exit")
	}

	tracker := service.NewPositionTracker(store, positionRepo, cfg.Ingest.StartLine)
	svc := service.NewIngestService(store, tracker, service.ParsePolicy(cfg.Ingest.ParsePolicy), nil)

	fmt.Fprintf(os.Stderr, "Importing from file %s.\n", path)

	stats, err := svc.IngestPath(context.Background(), path, *resume)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Success. %d/%d rows inserted (%d duplicates, %d parse errors), watermark %d.\n",
		stats.RowsInserted, stats.LinesProcessed, stats.Duplicates, stats.ParseErrors, stats.Watermark)
}
