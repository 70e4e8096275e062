// Package stopword provides per-language stopword sets for the index build
// pipeline. Default sets for the supported languages are embedded in the
// binary; an optional directory of <lang>.txt files overrides them. A
// Provider is built once, before a build run, and is immutable afterwards, so
// it can be shared across build workers without locking.
package stopword

import (
	"bufio"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

//go:embed data/*.txt
var defaults embed.FS

// Supported lists the language tags with embedded stopword sets.
var Supported = []string{"en", "fr", "es", "de", "it", "pt", "nl"}

// Provider maps language tags to immutable stopword sets.
type Provider struct {
	sets map[string]map[string]struct{}
}

// NewProvider loads the embedded stopword sets, then applies overrides from
// dir (one <lang>.txt file per language, one word per line) when dir is
// non-empty. A language whose set cannot be loaded degrades to the empty set
// and is logged; loading never fails the caller.
func NewProvider(dir string) *Provider {
	logger := slog.Default().With("component", "stopwords")
	sets := make(map[string]map[string]struct{}, len(Supported))
	for _, lang := range Supported {
		set, err := loadEmbedded(lang)
		if err != nil {
			logger.Warn("embedded stopword set unavailable, using empty set",
				"language", lang,
				"error", err,
			)
			set = map[string]struct{}{}
		}
		sets[lang] = set
	}
	if dir != "" {
		for _, lang := range Supported {
			path := filepath.Join(dir, lang+".txt")
			set, err := loadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					logger.Warn("stopword override unreadable, keeping embedded set",
						"language", lang,
						"path", path,
						"error", err,
					)
				}
				continue
			}
			sets[lang] = set
			logger.Info("stopword override loaded", "language", lang, "words", len(set))
		}
	}
	return &Provider{sets: sets}
}

// For returns the union of the stopword sets for the given language tags.
// Unknown tags contribute nothing. The returned set is owned by the caller.
func (p *Provider) For(languageTags []string) map[string]struct{} {
	union := make(map[string]struct{})
	for _, tag := range languageTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		for word := range p.sets[tag] {
			union[word] = struct{}{}
		}
	}
	return union
}

// Languages returns the tags with a non-empty set, for diagnostics.
func (p *Provider) Languages() []string {
	langs := make([]string, 0, len(p.sets))
	for lang, set := range p.sets {
		if len(set) > 0 {
			langs = append(langs, lang)
		}
	}
	return langs
}

func loadEmbedded(lang string) (map[string]struct{}, error) {
	f, err := defaults.Open("data/" + lang + ".txt")
	if err != nil {
		return nil, fmt.Errorf("opening embedded set %s: %w", lang, err)
	}
	defer f.Close()
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			set[strings.ToLower(word)] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading embedded set %s: %w", lang, err)
	}
	return set, nil
}

func loadFile(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		word := strings.TrimSpace(line)
		if word != "" {
			set[strings.ToLower(word)] = struct{}{}
		}
	}
	return set, nil
}
