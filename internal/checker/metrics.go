// Package checker scores modernized paragraphs against their originals.
// Structural signals (quote parity, emphasis parity, archaic leftovers)
// are computed locally; fidelity and tone come from a QA model behind
// its own LLMClient, so the checker can run on a different vendor than
// the writer.
package checker

import (
	"regexp"
	"strings"
)

// archaicPatterns matches second-person archaic forms and common period
// vocabulary that should not survive modernization. Word-boundary
// anchored so "there" or "other" never match.
var archaicPatterns = regexp.MustCompile(`(?i)\b(thee|thou|thy|thine|hath|doth|dost|art|whence|thither|hither|whilst|ere|forsooth|prithee|'tis|'twas)\b`)

var emphasisSpan = regexp.MustCompile(`_[^_]+_`)

// structural holds the locally computed comparison signals.
type structural struct {
	quoteCountMatch   bool
	emphasisPreserved bool
	charRatio         float64
	archaicLeftovers  []string
}

// compareStructure computes structural parity between an original
// paragraph and its modernized rewrite.
func compareStructure(orig, modern string) structural {
	s := structural{
		quoteCountMatch:   countQuotes(orig) == countQuotes(modern),
		emphasisPreserved: len(emphasisSpan.FindAllString(orig, -1)) == len(emphasisSpan.FindAllString(modern, -1)),
	}
	if len(orig) > 0 {
		s.charRatio = float64(len(modern)) / float64(len(orig))
	}

	seen := make(map[string]struct{})
	for _, m := range archaicPatterns.FindAllString(modern, -1) {
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		s.archaicLeftovers = append(s.archaicLeftovers, key)
	}
	return s
}

// countQuotes counts double-quote characters, straight and curly.
func countQuotes(text string) int {
	return strings.Count(text, `"`) + strings.Count(text, "“") + strings.Count(text, "”")
}
