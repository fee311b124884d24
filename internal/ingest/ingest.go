// Package ingest loads public-domain book text and splits it into
// chapters and paragraphs. Plain-text sources in Project Gutenberg
// layout are the target: optional license boilerplate, CHAPTER headings,
// blank-line paragraph breaks.
package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/lilybooks/lily/internal/book"
)

var (
	gutenbergStart = regexp.MustCompile(`(?m)^\*\*\* ?START OF (THE|THIS) PROJECT GUTENBERG EBOOK.*\*\*\*\s*$`)
	gutenbergEnd   = regexp.MustCompile(`(?m)^\*\*\* ?END OF (THE|THIS) PROJECT GUTENBERG EBOOK.*\*\*\*\s*$`)

	chapterHeading = regexp.MustCompile(`(?m)^\s*(?:CHAPTER|Chapter)\s+([IVXLCDM]+|\d+)\.?[^\n]*$`)
)

// LoadFile reads a source text file. The file must be UTF-8 plain text.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("source file %s is empty", path)
	}
	return string(data), nil
}

// StripBoilerplate removes the Project Gutenberg header and footer when
// both markers are present; otherwise the text passes through untouched.
func StripBoilerplate(text string) string {
	start := gutenbergStart.FindStringIndex(text)
	end := gutenbergEnd.FindStringIndex(text)
	if start == nil || end == nil || end[0] <= start[1] {
		return text
	}
	return strings.TrimSpace(text[start[1]:end[0]])
}

// SplitChapters cuts the text into chapters at CHAPTER headings and each
// chapter into paragraphs at blank lines. Text with no headings becomes
// a single chapter 1.
func SplitChapters(text string, logger *slog.Logger) []book.ChapterSplit {
	if logger == nil {
		logger = slog.Default()
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	headings := chapterHeading.FindAllStringIndex(text, -1)
	if len(headings) == 0 {
		paragraphs := splitParagraphs(text)
		if len(paragraphs) == 0 {
			return nil
		}
		logger.Info("no chapter headings found, treating source as one chapter",
			"paragraphs", len(paragraphs))
		return []book.ChapterSplit{{Chapter: 1, Paragraphs: paragraphs}}
	}

	var chapters []book.ChapterSplit
	for i, loc := range headings {
		bodyStart := loc[1]
		bodyEnd := len(text)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1][0]
		}

		title := strings.TrimSpace(text[loc[0]:loc[1]])
		paragraphs := splitParagraphs(text[bodyStart:bodyEnd])
		if len(paragraphs) == 0 {
			logger.Warn("skipping empty chapter", "title", title)
			continue
		}
		chapters = append(chapters, book.ChapterSplit{
			Chapter:    len(chapters) + 1,
			Title:      title,
			Paragraphs: paragraphs,
		})
	}

	logger.Info("source split", "chapters", len(chapters))
	return chapters
}

// splitParagraphs breaks a chapter body at blank lines and collapses the
// hard line wrapping inside each paragraph to single spaces.
func splitParagraphs(body string) []string {
	var paragraphs []string
	for _, block := range strings.Split(body, "\n\n") {
		lines := strings.Fields(strings.TrimSpace(block))
		if len(lines) == 0 {
			continue
		}
		paragraphs = append(paragraphs, strings.Join(lines, " "))
	}
	return paragraphs
}
