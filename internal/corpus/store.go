package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/postgres"
)

// Store provides read access to books and authors, plus the bulk-insert path
// used by the importer.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store backed by the given postgres client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "corpus-store"),
	}
}

// EnsureSchema creates the authors and books tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			birth_year INT,
			death_year INT
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id             BIGSERIAL PRIMARY KEY,
			gutenberg_id   BIGINT NOT NULL UNIQUE,
			title          TEXT NOT NULL,
			author_id      BIGINT REFERENCES authors(id),
			languages      TEXT NOT NULL DEFAULT '',
			summary        TEXT NOT NULL DEFAULT '',
			text           TEXT,
			download_count INT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating corpus schema: %w", err)
		}
	}
	return nil
}

const bookColumns = `b.id, b.gutenberg_id, b.title, b.languages, b.summary, b.download_count,
	COALESCE(a.id, 0), COALESCE(a.name, 'Unknown'), a.birth_year, a.death_year`

// GetBook returns one book without its text.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	row := s.db.DB.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b LEFT JOIN authors a ON a.id = b.author_id
		WHERE b.id = $1`, id)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrBookMissing
	}
	if err != nil {
		return nil, fmt.Errorf("querying book %d: %w", id, err)
	}
	return book, nil
}

// GetBookText returns the raw text of one book. ErrTextMissing is returned
// when the book exists but carries no text.
func (s *Store) GetBookText(ctx context.Context, id int64) (string, error) {
	var text sql.NullString
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT text FROM books WHERE id = $1`, id).Scan(&text)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrBookMissing
	}
	if err != nil {
		return "", fmt.Errorf("querying text for book %d: %w", id, err)
	}
	if !text.Valid || strings.TrimSpace(text.String) == "" {
		return "", apperrors.ErrTextMissing
	}
	return text.String, nil
}

// ListBooks returns a page of books without text, ordered by id.
func (s *Store) ListBooks(ctx context.Context, limit, offset int) ([]Book, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b LEFT JOIN authors a ON a.id = b.author_id
		ORDER BY b.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListByLanguage returns all books whose language tags contain the given tag.
func (s *Store) ListByLanguage(ctx context.Context, language string) ([]Book, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b LEFT JOIN authors a ON a.id = b.author_id
		WHERE b.languages ILIKE '%' || $1 || '%'
		ORDER BY b.id`, language)
	if err != nil {
		return nil, fmt.Errorf("listing books by language %q: %w", language, err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// Languages returns the distinct lowercase language tags across the corpus.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT languages FROM books`)
	if err != nil {
		return nil, fmt.Errorf("querying languages: %w", err)
	}
	defer rows.Close()

	unique := make(map[string]struct{})
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, fmt.Errorf("scanning languages: %w", err)
		}
		for _, tag := range strings.Split(joined, ",") {
			if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
				unique[tag] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating languages: %w", err)
	}
	langs := make([]string, 0, len(unique))
	for tag := range unique {
		langs = append(langs, tag)
	}
	sort.Strings(langs)
	return langs, nil
}

// ForEachBook streams every book that has text and language tags, including
// the text, to fn. Used by the index builder; fn errors abort the iteration.
func (s *Store) ForEachBook(ctx context.Context, fn func(Book) error) error {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT `+bookColumns+`, b.text
		FROM books b LEFT JOIN authors a ON a.id = b.author_id
		WHERE b.text IS NOT NULL AND b.text <> '' AND b.languages <> ''
		ORDER BY b.id`)
	if err != nil {
		return fmt.Errorf("querying corpus for indexing: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			book      Book
			birthYear sql.NullInt64
			deathYear sql.NullInt64
			text      sql.NullString
		)
		if err := rows.Scan(
			&book.ID, &book.GutenbergID, &book.Title, &book.Languages,
			&book.Summary, &book.DownloadCount,
			&book.Author.ID, &book.Author.Name, &birthYear, &deathYear,
			&text,
		); err != nil {
			return fmt.Errorf("scanning book row: %w", err)
		}
		assignYears(&book.Author, birthYear, deathYear)
		book.Text = text.String
		if err := fn(book); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountBooks returns the number of books in the corpus.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return n, nil
}

// UpsertAuthor inserts or updates an author by name and returns its id.
func (s *Store) UpsertAuthor(ctx context.Context, tx *sql.Tx, a Author) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO authors (name, birth_year, death_year)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET birth_year = EXCLUDED.birth_year, death_year = EXCLUDED.death_year
		RETURNING id`, a.Name, a.BirthYear, a.DeathYear).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting author %q: %w", a.Name, err)
	}
	return id, nil
}

// InsertBook inserts one imported book; duplicates by gutenberg id are
// ignored. Returns true when a row was written.
func (s *Store) InsertBook(ctx context.Context, tx *sql.Tx, book Book, authorID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO books (gutenberg_id, title, author_id, languages, summary, text, download_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (gutenberg_id) DO NOTHING`,
		book.GutenbergID, book.Title, authorID, book.Languages,
		book.Summary, book.Text, book.DownloadCount)
	if err != nil {
		return false, fmt.Errorf("inserting book %d: %w", book.GutenbergID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InTx exposes the underlying transaction helper to the importer.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.db.InTx(ctx, fn)
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	var books []Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book row: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var (
		book      Book
		birthYear sql.NullInt64
		deathYear sql.NullInt64
	)
	err := row.Scan(
		&book.ID, &book.GutenbergID, &book.Title, &book.Languages,
		&book.Summary, &book.DownloadCount,
		&book.Author.ID, &book.Author.Name, &birthYear, &deathYear,
	)
	if err != nil {
		return nil, err
	}
	assignYears(&book.Author, birthYear, deathYear)
	return &book, nil
}

func assignYears(a *Author, birth, death sql.NullInt64) {
	if birth.Valid {
		year := int(birth.Int64)
		a.BirthYear = &year
	}
	if death.Valid {
		year := int(death.Int64)
		a.DeathYear = &year
	}
}
