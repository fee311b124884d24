// Package book provides shared domain types used across multiple packages.
// This package has no dependencies on other lily packages to avoid import cycles.
package book

import "fmt"

// ParagraphType classifies a source paragraph for specialized prompt handling.
type ParagraphType string

const (
	// TypeNarrative is ordinary prose, the default classification.
	TypeNarrative ParagraphType = "narrative"
	// TypeDialogue is a paragraph dominated by quoted speech.
	TypeDialogue ParagraphType = "dialogue"
	// TypeLetter is correspondence embedded in the text.
	TypeLetter ParagraphType = "letter"
	// TypeIllustration is an illustration placeholder that must pass through unchanged.
	TypeIllustration ParagraphType = "illustration"
)

// Severity indicates how serious a quality issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to a Severity.
// Returns SeverityMedium if the string is not recognized.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ChapterSplit is a raw chapter produced at split time: a title plus the
// ordered original paragraphs. Immutable once written to the work dir.
type ChapterSplit struct {
	Chapter    int      `json:"chapter"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// ParaPair holds an original paragraph and its modernized counterpart.
// Index mirrors the paragraph's position within its chapter.
type ParaPair struct {
	Index  int       `json:"i"`
	ParaID string    `json:"para_id"`
	Orig   string    `json:"orig"`
	Modern string    `json:"modern"`
	QA     *QAReport `json:"qa,omitempty"`
	Notes  string    `json:"notes,omitempty"`
}

// ChapterDoc is a complete chapter with modernized paragraph pairs.
// It is the unit of persistence and skip-checking. Pairs are sorted by
// Index with no gaps relative to the chapter's source paragraphs.
type ChapterDoc struct {
	Chapter int        `json:"chapter"`
	Title   string     `json:"title"`
	Pairs   []ParaPair `json:"pairs"`
}

// Complete reports whether the document covers every source paragraph,
// i.e. pairs 0..n-1 with no gaps.
func (d *ChapterDoc) Complete(paragraphCount int) bool {
	if len(d.Pairs) != paragraphCount {
		return false
	}
	for i, p := range d.Pairs {
		if p.Index != i {
			return false
		}
	}
	return true
}

// Validated reports whether every pair carries a QA report.
func (d *ChapterDoc) Validated() bool {
	if len(d.Pairs) == 0 {
		return false
	}
	for _, p := range d.Pairs {
		if p.QA == nil {
			return false
		}
	}
	return true
}

// QAIssue is a single validation issue found during quality assessment.
type QAIssue struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity,omitempty"`
}

// QAReport is the quality assessment for one paragraph pair.
// FidelityScore is in [0,100] when present; nil means the checker could
// not produce a score (degraded assessment).
type QAReport struct {
	FidelityScore       *int      `json:"fidelity_score,omitempty"`
	ReadabilityGrade    *float64  `json:"readability_grade,omitempty"`
	QuoteCountMatch     bool      `json:"quote_count_match"`
	EmphasisPreserved   bool      `json:"emphasis_preserved"`
	ToneConsistent      bool      `json:"tone_consistent"`
	CharacterCountRatio float64   `json:"character_count_ratio,omitempty"`
	Issues              []QAIssue `json:"issues,omitempty"`
	RetryCount          int       `json:"retry_count,omitempty"`
}

// HasCritical reports whether any issue is critical severity.
func (r *QAReport) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ParaID builds the stable paragraph identifier used in persisted documents.
func ParaID(chapter, index int) string {
	return fmt.Sprintf("ch%02d_para%03d", chapter, index)
}

// FailureRecord is an append-only record of a per-chapter, per-stage failure.
type FailureRecord struct {
	Chapter int    `json:"chapter"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// Metadata is the book-level metadata written at deliver time.
type Metadata struct {
	Title              string `yaml:"title" json:"title"`
	Author             string `yaml:"author" json:"author"`
	PublicDomainSource string `yaml:"public_domain_source" json:"public_domain_source"`
	Language           string `yaml:"language" json:"language"`
}
