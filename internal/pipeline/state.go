// Package pipeline orchestrates the modernization stages over one
// project: ingest, split, transform, validate, remediate, deliver.
// Stages share a single mutable State record whose fields only ever
// accumulate; chapter-scoped failures are recorded and routed around
// instead of aborting the run.
package pipeline

import (
	"sort"
	"time"

	"github.com/lilybooks/lily/internal/book"
)

// State is the pipeline's working record. The exported fields are
// checkpointed to meta/state.json after every stage; runtime-only fields
// are rebuilt from the store on resume.
type State struct {
	Slug       string    `json:"slug"`
	BookID     string    `json:"book_id"`
	SourcePath string    `json:"source_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	ChapterCount int `json:"chapter_count"`

	// Stage flags. A soft stage that finishes with chapter failures sets
	// its flag false but the run still proceeds.
	IngestOK    bool `json:"ingest_ok"`
	SplitOK     bool `json:"split_ok"`
	TransformOK bool `json:"transform_ok"`
	ValidateOK  bool `json:"validate_ok"`
	DeliverOK   bool `json:"deliver_ok"`

	FailedChapters []int `json:"failed_chapters,omitempty"`

	// Runtime-only.
	Chapters []book.ChapterSplit      `json:"-"`
	Docs     map[int]*book.ChapterDoc `json:"-"`
	Filter   []int                    `json:"-"` // chapter numbers; empty means all
	Meta     *book.Metadata           `json:"-"`
}

// NewState creates a fresh state for one run.
func NewState(slug, bookID, sourcePath string) *State {
	now := time.Now().UTC()
	return &State{
		Slug:       slug,
		BookID:     bookID,
		SourcePath: sourcePath,
		CreatedAt:  now,
		UpdatedAt:  now,
		Docs:       make(map[int]*book.ChapterDoc),
	}
}

// InScope reports whether a chapter number passes the run's filter.
func (s *State) InScope(chapter int) bool {
	if len(s.Filter) == 0 {
		return true
	}
	for _, c := range s.Filter {
		if c == chapter {
			return true
		}
	}
	return false
}

// ScopedChapters returns the chapter splits selected by the filter.
func (s *State) ScopedChapters() []book.ChapterSplit {
	if len(s.Filter) == 0 {
		return s.Chapters
	}
	var out []book.ChapterSplit
	for _, ch := range s.Chapters {
		if s.InScope(ch.Chapter) {
			out = append(out, ch)
		}
	}
	return out
}

// MarkFailed records a failing chapter number, once.
func (s *State) MarkFailed(chapter int) {
	for _, c := range s.FailedChapters {
		if c == chapter {
			return
		}
	}
	s.FailedChapters = append(s.FailedChapters, chapter)
	sort.Ints(s.FailedChapters)
}

// ClearFailed removes a chapter from the failed list after successful
// remediation. The durable failure log keeps its own history.
func (s *State) ClearFailed(chapter int) {
	out := s.FailedChapters[:0]
	for _, c := range s.FailedChapters {
		if c != chapter {
			out = append(out, c)
		}
	}
	s.FailedChapters = out
}
