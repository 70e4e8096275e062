package stopword

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedSets(t *testing.T) {
	p := NewProvider("")
	for _, lang := range Supported {
		set := p.For([]string{lang})
		if len(set) == 0 {
			t.Errorf("embedded set for %q is empty", lang)
		}
	}
	if _, ok := p.For([]string{"en"})["the"]; !ok {
		t.Error(`english set should contain "the"`)
	}
	if _, ok := p.For([]string{"fr"})["les"]; !ok {
		t.Error(`french set should contain "les"`)
	}
}

func TestForUnionsLanguages(t *testing.T) {
	p := NewProvider("")
	en := len(p.For([]string{"en"}))
	both := p.For([]string{"en", "fr"})
	if len(both) <= en {
		t.Errorf("union of en+fr (%d words) should exceed en alone (%d words)", len(both), en)
	}
}

func TestForUnknownTag(t *testing.T) {
	p := NewProvider("")
	if set := p.For([]string{"xx"}); len(set) != 0 {
		t.Errorf("unknown tag contributed %d words, want 0", len(set))
	}
	if set := p.For(nil); len(set) != 0 {
		t.Errorf("no tags contributed %d words, want 0", len(set))
	}
}

func TestForNormalizesTags(t *testing.T) {
	p := NewProvider("")
	if len(p.For([]string{" EN "})) == 0 {
		t.Error("tags should be trimmed and lowercased before lookup")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	content := "foo\nBar\n\n  baz  \n"
	if err := os.WriteFile(filepath.Join(dir, "en.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider(dir)
	en := p.For([]string{"en"})
	if len(en) != 3 {
		t.Fatalf("override set has %d words, want 3", len(en))
	}
	for _, word := range []string{"foo", "bar", "baz"} {
		if _, ok := en[word]; !ok {
			t.Errorf("override set missing %q", word)
		}
	}
	// Languages without an override file keep their embedded set.
	if len(p.For([]string{"fr"})) == 0 {
		t.Error("french embedded set should survive a partial override dir")
	}
}

func TestForReturnsOwnedSet(t *testing.T) {
	p := NewProvider("")
	set := p.For([]string{"en"})
	delete(set, "the")
	if _, ok := p.For([]string{"en"})["the"]; !ok {
		t.Error("mutating a returned set must not affect the provider")
	}
}
