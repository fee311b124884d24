package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleBook = `The Title

*** START OF THE PROJECT GUTENBERG EBOOK THE TITLE ***

CHAPTER I. An Opening

It is a truth universally
acknowledged, that a single man
must be in want of a wife.

"My dear," said his lady to him one day,
"have you heard?"

[Illustration]

CHAPTER II.

Mr. Bennet was among the earliest
of those who waited.

*** END OF THE PROJECT GUTENBERG EBOOK THE TITLE ***

License text here.
`

func TestStripBoilerplate(t *testing.T) {
	stripped := StripBoilerplate(sampleBook)
	if strings.Contains(stripped, "PROJECT GUTENBERG") {
		t.Error("boilerplate markers survived")
	}
	if strings.Contains(stripped, "License text") {
		t.Error("footer text survived")
	}
	if !strings.Contains(stripped, "CHAPTER I.") {
		t.Error("body text lost")
	}

	plain := "Just a paragraph.\n\nAnother one."
	if StripBoilerplate(plain) != plain {
		t.Error("unmarked text should pass through untouched")
	}
}

func TestSplitChapters(t *testing.T) {
	chapters := SplitChapters(StripBoilerplate(sampleBook), nil)
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(chapters))
	}

	first := chapters[0]
	if first.Chapter != 1 || first.Title != "CHAPTER I. An Opening" {
		t.Errorf("first chapter header mismatch: %d %q", first.Chapter, first.Title)
	}
	if len(first.Paragraphs) != 3 {
		t.Fatalf("chapter 1 has %d paragraphs, want 3", len(first.Paragraphs))
	}
	if strings.Contains(first.Paragraphs[0], "\n") {
		t.Error("hard line wrapping not collapsed")
	}
	if !strings.HasPrefix(first.Paragraphs[0], "It is a truth universally acknowledged") {
		t.Errorf("paragraph text mangled: %q", first.Paragraphs[0])
	}
	if first.Paragraphs[2] != "[Illustration]" {
		t.Errorf("illustration marker mangled: %q", first.Paragraphs[2])
	}

	second := chapters[1]
	if second.Chapter != 2 || len(second.Paragraphs) != 1 {
		t.Errorf("second chapter mismatch: %+v", second)
	}
}

func TestSplitChaptersNoHeadings(t *testing.T) {
	chapters := SplitChapters("One paragraph.\n\nTwo paragraph.", nil)
	if len(chapters) != 1 || chapters[0].Chapter != 1 {
		t.Fatalf("expected a single fallback chapter: %+v", chapters)
	}
	if len(chapters[0].Paragraphs) != 2 {
		t.Errorf("got %d paragraphs, want 2", len(chapters[0].Paragraphs))
	}
}

func TestSplitChaptersEmptyInput(t *testing.T) {
	if got := SplitChapters("   \n\n  ", nil); got != nil {
		t.Errorf("blank input should yield no chapters: %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := LoadFile(path)
	if err != nil || text != "hello" {
		t.Errorf("LoadFile() = %q, %v", text, err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("missing file should error")
	}

	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, nil, 0o644)
	if _, err := LoadFile(empty); err == nil {
		t.Error("empty file should error")
	}
}
