package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gutensearch/gutensearch/pkg/config"
	"github.com/gutensearch/gutensearch/pkg/resilience"
)

// gutenberg header/footer markers stripped from downloaded texts.
var (
	startMarker = regexp.MustCompile(`(?s)\*\*\* START OF (THE|THIS) PROJECT GUTENBERG.*?\*\*\*`)
	endMarker   = regexp.MustCompile(`(?s)\*\*\* END OF (THE|THIS) PROJECT GUTENBERG.*?\*\*\*`)
)

// Importer pages through the Gutendex catalog, downloads plain-text bodies,
// and bulk-inserts books whose word count falls inside the configured window.
type Importer struct {
	store  *Store
	cfg    config.GutendexConfig
	client *http.Client
	logger *slog.Logger
}

// NewImporter creates an Importer over the given store.
func NewImporter(store *Store, cfg config.GutendexConfig) *Importer {
	return &Importer{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "importer"),
	}
}

// catalogPage mirrors one page of the Gutendex /books listing.
type catalogPage struct {
	Next    string         `json:"next"`
	Results []catalogEntry `json:"results"`
}

type catalogEntry struct {
	ID      int64 `json:"id"`
	Title   string
	Authors []struct {
		Name      string `json:"name"`
		BirthYear *int   `json:"birth_year"`
		DeathYear *int   `json:"death_year"`
	} `json:"authors"`
	Summaries     []string          `json:"summaries"`
	Languages     []string          `json:"languages"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
}

// Run imports up to maxBooks books (0 means the configured maximum). Each
// catalog page is fetched sequentially; text downloads within a page run
// concurrently. Books outside the word-count window or without a plain-text
// format are skipped.
func (imp *Importer) Run(ctx context.Context, maxBooks int) (int, error) {
	if maxBooks <= 0 {
		maxBooks = imp.cfg.MaxBooks
	}
	imported := 0
	page := 1
	for imported < maxBooks {
		entries, hasNext, err := imp.fetchCatalogPage(ctx, page)
		if err != nil {
			return imported, fmt.Errorf("fetching catalog page %d: %w", page, err)
		}
		if len(entries) == 0 {
			break
		}

		texts := imp.downloadTexts(ctx, entries)
		n, err := imp.storePage(ctx, entries, texts, maxBooks-imported)
		if err != nil {
			return imported, err
		}
		imported += n
		imp.logger.Info("catalog page imported", "page", page, "accepted", n, "total", imported)

		if !hasNext {
			break
		}
		page++
	}
	return imported, nil
}

// fetchCatalogPage retrieves one English-language catalog page.
func (imp *Importer) fetchCatalogPage(ctx context.Context, page int) ([]catalogEntry, bool, error) {
	u, err := url.Parse(imp.cfg.BaseURL)
	if err != nil {
		return nil, false, fmt.Errorf("parsing base url: %w", err)
	}
	q := u.Query()
	q.Set("languages", "en")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	var result catalogPage
	err = resilience.Retry(ctx, "gutendex-catalog", resilience.RetryConfig{}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := imp.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, false, err
	}
	return result.Results, result.Next != "", nil
}

// downloadTexts fetches the plain-text body for each entry concurrently,
// returning a slice parallel to entries ("" when unavailable).
func (imp *Importer) downloadTexts(ctx context.Context, entries []catalogEntry) []string {
	texts := make([]string, len(entries))
	sem := make(chan struct{}, max(imp.cfg.Workers, 1))
	var wg sync.WaitGroup
	for i, entry := range entries {
		textURL := entry.Formats["text/plain; charset=us-ascii"]
		if textURL == "" {
			textURL = entry.Formats["text/plain"]
		}
		if textURL == "" {
			continue
		}
		wg.Add(1)
		go func(i int, textURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			text, err := imp.fetchText(ctx, textURL)
			if err != nil {
				imp.logger.Warn("text download failed, skipping book",
					"url", textURL,
					"error", err,
				)
				return
			}
			texts[i] = text
		}(i, textURL)
	}
	wg.Wait()
	return texts
}

func (imp *Importer) fetchText(ctx context.Context, textURL string) (string, error) {
	var body []byte
	err := resilience.Retry(ctx, "gutendex-text", resilience.RetryConfig{MaxAttempts: 2}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
		if err != nil {
			return err
		}
		resp, err := imp.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("text download returned status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return "", err
	}
	return CleanText(string(body)), nil
}

// CleanText strips the BOM and the Project Gutenberg header/footer blocks.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\ufeff", "")
	text = startMarker.ReplaceAllString(text, "")
	text = endMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// storePage inserts the page's acceptable books and their authors in one
// transaction, bounded by a write deadline, and returns how many were
// written.
func (imp *Importer) storePage(ctx context.Context, entries []catalogEntry, texts []string, budget int) (int, error) {
	inserted := 0
	err := resilience.WithTimeout(ctx, 2*time.Minute, "store-catalog-page", func(ctx context.Context) error {
		return imp.store.InTx(ctx, func(tx *sql.Tx) error {
			for i, entry := range entries {
				if inserted >= budget {
					break
				}
				text := texts[i]
				if text == "" {
					continue
				}
				words := len(strings.Fields(text))
				if words < imp.cfg.MinWords || words > imp.cfg.MaxWords {
					continue
				}

				author := Author{Name: "Unknown"}
				if len(entry.Authors) > 0 {
					author = Author{
						Name:      entry.Authors[0].Name,
						BirthYear: entry.Authors[0].BirthYear,
						DeathYear: entry.Authors[0].DeathYear,
					}
				}
				authorID, err := imp.store.UpsertAuthor(ctx, tx, author)
				if err != nil {
					return err
				}

				summary := ""
				if len(entry.Summaries) > 0 {
					summary = entry.Summaries[0]
				}
				book := Book{
					GutenbergID:   entry.ID,
					Title:         entry.Title,
					Languages:     strings.Join(entry.Languages, ","),
					Summary:       summary,
					Text:          text,
					DownloadCount: entry.DownloadCount,
				}
				ok, err := imp.store.InsertBook(ctx, tx, book, authorID)
				if err != nil {
					return err
				}
				if ok {
					inserted++
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("storing catalog page: %w", err)
	}
	return inserted, nil
}
