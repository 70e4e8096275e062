package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.MaxBooks != 50 {
		t.Errorf("search.maxBooks = %d, want 50", cfg.Search.MaxBooks)
	}
	if cfg.Search.SimilarityFloor != 0.87 {
		t.Errorf("search.similarityFloor = %f, want 0.87", cfg.Search.SimilarityFloor)
	}
	if cfg.Search.HighlightPage != 1000 {
		t.Errorf("search.highlightPage = %d, want 1000", cfg.Search.HighlightPage)
	}
	if cfg.Indexer.Workers != 8 {
		t.Errorf("indexer.workers = %d, want 8", cfg.Indexer.Workers)
	}
	if cfg.Redis.CacheTTL != 60*time.Second {
		t.Errorf("redis.cacheTTL = %v, want 60s", cfg.Redis.CacheTTL)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
search:
  maxBooks: 7
postgres:
  host: db.internal
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999 from file", cfg.Server.Port)
	}
	if cfg.Search.MaxBooks != 7 {
		t.Errorf("search.maxBooks = %d, want 7 from file", cfg.Search.MaxBooks)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %q, want db.internal", cfg.Postgres.Host)
	}
	// Untouched sections keep their defaults.
	if cfg.Search.SimilarityFloor != 0.87 {
		t.Errorf("search.similarityFloor = %f, want default 0.87", cfg.Search.SimilarityFloor)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GS_SERVER_PORT", "7070")
	t.Setenv("GS_POSTGRES_HOST", "pg.example")
	t.Setenv("GS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GS_INDEXER_WORKERS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server port = %d, want 7070 from env", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "pg.example" {
		t.Errorf("postgres host = %q, want pg.example", cfg.Postgres.Host)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("kafka brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}
	if cfg.Indexer.Workers != 3 {
		t.Errorf("indexer workers = %d, want 3 from env", cfg.Indexer.Workers)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("GS_SERVER_PORT", "not-a-number")
	t.Setenv("GS_INDEXER_WORKERS", "-2")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want default 8080 for unparseable env", cfg.Server.Port)
	}
	if cfg.Indexer.Workers != 8 {
		t.Errorf("indexer workers = %d, want default 8 for non-positive env", cfg.Indexer.Workers)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "h", Port: 5433, User: "u", Password: "pw",
		Database: "d", SSLMode: "require",
	}
	want := "host=h port=5433 user=u password=pw dbname=d sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
