package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gutensearch/gutensearch/pkg/postgres"
)

// SchemaVersion identifies the postings JSON shape written by this code.
// Version 1 is the field-scoped map; the flat position-list variant from
// earlier iterations of the schema is rejected on load.
const SchemaVersion = 1

// Store persists word entries in the inverted_index table. Postings are a
// JSONB array of field-scoped postings per word.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store backed by the given postgres client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "index-store"),
	}
}

// EnsureSchema creates the inverted_index table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS inverted_index (
			word        TEXT PRIMARY KEY,
			postings    JSONB NOT NULL,
			occurrences INT NOT NULL,
			schema_ver  INT NOT NULL DEFAULT 1
		)`)
	if err != nil {
		return fmt.Errorf("creating inverted_index table: %w", err)
	}
	return nil
}

// Replace atomically substitutes the entire index content with the given
// entries: a TRUNCATE followed by batched multi-row inserts, all inside one
// transaction. On error nothing is committed and the previous index remains
// authoritative.
func (s *Store) Replace(ctx context.Context, entries []WordEntry, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 5000
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE inverted_index`); err != nil {
			return fmt.Errorf("truncating inverted_index: %w", err)
		}
		for start := 0; start < len(entries); start += batchSize {
			end := min(start+batchSize, len(entries))
			if err := insertBatch(ctx, tx, entries[start:end]); err != nil {
				return fmt.Errorf("inserting batch at offset %d: %w", start, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("index replaced", "words", len(entries), "batch_size", batchSize)
	return nil
}

// insertBatch writes one chunk of entries with a single multi-row INSERT.
func insertBatch(ctx context.Context, tx *sql.Tx, entries []WordEntry) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO inverted_index (word, postings, occurrences, schema_ver) VALUES `)
	args := make([]any, 0, len(entries)*3)
	for i, entry := range entries {
		postings, err := json.Marshal(entry.Postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for word %q: %w", entry.Word, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d, %d)", base+1, base+2, base+3, SchemaVersion)
		args = append(args, entry.Word, postings, entry.Occurrences)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return err
	}
	return nil
}

// LoadAll streams every word entry back from postgres, validating the schema
// version. Used to populate the serving snapshot at startup and after builds
// running in another process.
func (s *Store) LoadAll(ctx context.Context) (map[string]*WordEntry, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT word, postings, occurrences, schema_ver FROM inverted_index`)
	if err != nil {
		return nil, fmt.Errorf("querying inverted_index: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]*WordEntry)
	for rows.Next() {
		var (
			word        string
			postingsRaw []byte
			occurrences int
			schemaVer   int
		)
		if err := rows.Scan(&word, &postingsRaw, &occurrences, &schemaVer); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		if schemaVer != SchemaVersion {
			return nil, fmt.Errorf("word %q has postings schema v%d, want v%d: rebuild the index", word, schemaVer, SchemaVersion)
		}
		entry := &WordEntry{Word: word, Occurrences: occurrences}
		if err := json.Unmarshal(postingsRaw, &entry.Postings); err != nil {
			return nil, fmt.Errorf("parsing postings for word %q: %w", word, err)
		}
		entries[word] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index rows: %w", err)
	}
	s.logger.Info("index loaded", "words", len(entries))
	return entries, nil
}
