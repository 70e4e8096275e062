// Package corpus owns the book collection: the Book/Author model, the
// postgres-backed store the search engine reads from, and the Gutendex
// importer that populates it. The index never mutates books.
package corpus

import "strings"

// Author is a book author.
type Author struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}

// Book is one corpus document. Text may be empty for books whose plain-text
// download was unavailable; such books are skipped at index time.
type Book struct {
	ID            int64  `json:"id"`
	GutenbergID   int64  `json:"gutenberg_id"`
	Title         string `json:"title"`
	Author        Author `json:"author"`
	Languages     string `json:"languages"`
	Summary       string `json:"summary"`
	Text          string `json:"text,omitempty"`
	DownloadCount int    `json:"download_count"`
}

// LanguageTags splits the comma-joined Languages value into trimmed,
// lowercased tags.
func (b *Book) LanguageTags() []string {
	if b.Languages == "" {
		return nil
	}
	parts := strings.Split(b.Languages, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.ToLower(strings.TrimSpace(part)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Field returns a book field's rendered value by index field name.
func (b *Book) Field(name string) string {
	switch name {
	case "title":
		return b.Title
	case "author":
		return b.Author.Name
	case "summary":
		return b.Summary
	case "text":
		return b.Text
	}
	return ""
}
