package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gutensearch/gutensearch/internal/builder"
	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/internal/stopword"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index rebuild", "workers", cfg.Indexer.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	corpusStore := corpus.NewStore(db)
	indexStore := index.NewStore(db)
	if err := corpusStore.EnsureSchema(ctx); err != nil {
		slog.Error("corpus schema setup failed", "error", err)
		os.Exit(1)
	}
	if err := indexStore.EnsureSchema(ctx); err != nil {
		slog.Error("index schema setup failed", "error", err)
		os.Exit(1)
	}

	stopwords := stopword.NewProvider(cfg.Indexer.StopwordDir)

	b := builder.New(corpusStore, indexStore, index.NewMemory(), stopwords, cfg.Indexer, nil)
	if err := b.Rebuild(ctx); err != nil {
		slog.Error("index rebuild failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index rebuild finished")
}
