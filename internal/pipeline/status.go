package pipeline

import (
	"errors"
	"fmt"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/store"
)

// StatusReport summarizes a project's progress for the operator.
type StatusReport struct {
	State             *State
	Failures          []book.FailureRecord
	ChaptersRewritten int
	ChaptersValidated int
	Recommendation    string
}

// Status inspects a project's persisted artifacts without touching any
// backend.
func Status(s *store.Store) (*StatusReport, error) {
	var st State
	if err := s.LoadState(&st); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("project %s has no recorded runs", s.Project().Slug())
		}
		return nil, err
	}

	failures, err := s.LoadFailures()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{State: &st, Failures: failures}

	if chapters, err := s.LoadChapterSplits(); err == nil {
		for _, split := range chapters {
			doc, err := s.LoadChapterDoc(split.Chapter)
			if err != nil {
				continue
			}
			if doc.Complete(len(split.Paragraphs)) {
				report.ChaptersRewritten++
			}
			if doc.Validated() {
				report.ChaptersValidated++
			}
		}
	}

	switch {
	case st.DeliverOK && st.ValidateOK:
		report.Recommendation = "run complete, deliverables are ready"
	case st.DeliverOK && !st.ValidateOK:
		report.Recommendation = fmt.Sprintf("delivered with failing chapters %v; run `lily remediate %s`", st.FailedChapters, st.Slug)
	case len(st.FailedChapters) > 0:
		report.Recommendation = fmt.Sprintf("chapters %v failed; run `lily remediate %s`", st.FailedChapters, st.Slug)
	default:
		report.Recommendation = fmt.Sprintf("run `lily run %s` to continue", st.Slug)
	}
	return report, nil
}
