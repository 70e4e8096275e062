package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	maxBooks := flag.Int("max-books", 0, "maximum number of books to import (0 = configured default)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting corpus import",
		"catalog", cfg.Gutendex.BaseURL,
		"word_window", fmt.Sprintf("[%d, %d]", cfg.Gutendex.MinWords, cfg.Gutendex.MaxWords),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := corpus.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("corpus schema setup failed", "error", err)
		os.Exit(1)
	}

	importer := corpus.NewImporter(store, cfg.Gutendex)
	imported, err := importer.Run(ctx, *maxBooks)
	if err != nil {
		slog.Error("corpus import failed", "imported", imported, "error", err)
		os.Exit(1)
	}
	slog.Info("corpus import finished", "imported", imported)
}
