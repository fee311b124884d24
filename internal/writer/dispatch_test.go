package writer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/providers"
	"github.com/lilybooks/lily/internal/tokens"
)

// echoResponses answers any rewrite request with the right number of
// entries by counting the PARA markers in the prompt.
func echoResponses(n int, req *providers.ChatRequest) (string, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	count := strings.Count(prompt, "\nPARA ")
	modern := make([]string, count)
	for i := range modern {
		modern[i] = "rewritten"
	}
	return batchJSON(modern...), nil
}

func newTestDispatcher(t *testing.T, mock *providers.MockClient, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	est := tokens.NewEstimator(nil)
	est.RegisterModel(cfg.Model, 100000)
	exec := NewExecutor(mock, ExecutorConfig{Model: cfg.Model, MaxAttempts: 1}, nil)
	return NewDispatcher(exec, est, cfg, nil)
}

func TestDispatcherRewritesWholeChapter(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = echoResponses

	d := newTestDispatcher(t, mock, DispatcherConfig{
		Model:        "test/unit",
		MinBatchSize: 1,
		MaxBatchSize: 3,
	})

	split := book.ChapterSplit{
		Chapter: 1,
		Title:   "Chapter I",
		Paragraphs: []string{
			"Paragraph the first.", "Paragraph the second.", "Paragraph the third.",
			"Paragraph the fourth.", "Paragraph the fifth.", "Paragraph the sixth.",
			"Paragraph the seventh.",
		},
	}

	doc, err := d.RewriteChapter(context.Background(), split)
	if err != nil {
		t.Fatalf("RewriteChapter() error = %v", err)
	}
	if !doc.Complete(len(split.Paragraphs)) {
		t.Fatalf("chapter not complete: %d pairs", len(doc.Pairs))
	}
	for i, p := range doc.Pairs {
		if p.Index != i {
			t.Errorf("pair %d has index %d", i, p.Index)
		}
		if p.Orig != split.Paragraphs[i] {
			t.Errorf("pair %d original mismatch", i)
		}
		if p.Modern != "rewritten" {
			t.Errorf("pair %d not rewritten: %q", i, p.Modern)
		}
	}
}

func TestDispatcherFailedBatchDoesNotStopSiblings(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = func(n int, req *providers.ChatRequest) (string, error) {
		if strings.Contains(req.Messages[len(req.Messages)-1].Content, "poison") {
			return "", errors.New("backend rejected request")
		}
		return echoResponses(n, req)
	}

	d := newTestDispatcher(t, mock, DispatcherConfig{
		Model:        "test/unit",
		MinBatchSize: 1,
		MaxBatchSize: 1, // one paragraph per call so only one batch fails
	})

	split := book.ChapterSplit{
		Chapter:    2,
		Paragraphs: []string{"fine one", "poison pill", "fine two"},
	}

	doc, err := d.RewriteChapter(context.Background(), split)
	if err != nil {
		t.Fatalf("RewriteChapter() error = %v", err)
	}
	if !doc.Complete(3) {
		t.Fatalf("chapter incomplete after partial failure: %d pairs", len(doc.Pairs))
	}
	if doc.Pairs[0].Modern != "rewritten" || doc.Pairs[2].Modern != "rewritten" {
		t.Error("healthy batches should still be rewritten")
	}
	bad := doc.Pairs[1]
	if bad.Modern != bad.Orig || bad.Notes == "" {
		t.Errorf("failed batch should degrade to annotated pass-through: %+v", bad)
	}
}

func TestDispatcherOversizedBatchFallsBackToSingles(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = echoResponses

	est := tokens.NewEstimator(nil)
	// Window small enough that no two-paragraph prompt can ever fit.
	est.RegisterModel("test/tiny", 100)
	exec := NewExecutor(mock, ExecutorConfig{Model: "test/tiny", MaxAttempts: 1}, nil)
	d := NewDispatcher(exec, est, DispatcherConfig{
		Model:        "test/tiny",
		MinBatchSize: 2,
		MaxBatchSize: 3,
	}, nil)

	long := strings.Repeat("verily the carriage rattled onward through the fog ", 8)
	split := book.ChapterSplit{
		Chapter:    3,
		Paragraphs: []string{long, long},
	}

	doc, err := d.RewriteChapter(context.Background(), split)
	if err != nil {
		t.Fatalf("RewriteChapter() error = %v", err)
	}
	if !doc.Complete(2) {
		t.Fatalf("chapter incomplete: %d pairs", len(doc.Pairs))
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 single-paragraph calls, got %d", len(reqs))
	}
	for i, req := range reqs {
		prompt := req.Messages[len(req.Messages)-1].Content
		if got := strings.Count(prompt, "\nPARA "); got != 1 {
			t.Errorf("call %d carries %d paragraphs, want 1", i, got)
		}
	}
}

func TestDispatcherEmptyChapter(t *testing.T) {
	mock := providers.NewMockClient()
	d := newTestDispatcher(t, mock, DispatcherConfig{Model: "test/unit"})

	doc, err := d.RewriteChapter(context.Background(), book.ChapterSplit{Chapter: 4})
	if err != nil {
		t.Fatalf("RewriteChapter() error = %v", err)
	}
	if len(doc.Pairs) != 0 || doc.Chapter != 4 {
		t.Errorf("empty chapter mishandled: %+v", doc)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("empty chapter should make no backend calls, made %d", mock.RequestCount())
	}
}

func TestDispatcherCancelledContext(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Responses = echoResponses
	d := newTestDispatcher(t, mock, DispatcherConfig{Model: "test/unit"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.RewriteChapter(ctx, book.ChapterSplit{Chapter: 5, Paragraphs: []string{"a"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAssembleDetectsGaps(t *testing.T) {
	doc := &book.ChapterDoc{Chapter: 1}
	pairs := []book.ParaPair{
		{Index: 0, Orig: "a", Modern: "a"},
		{Index: 2, Orig: "c", Modern: "c"},
	}
	if _, err := assemble(doc, pairs, 3); err == nil {
		t.Error("assemble should reject gapped coverage")
	}

	full := []book.ParaPair{
		{Index: 1, Orig: "b", Modern: "b"},
		{Index: 0, Orig: "a", Modern: "a"},
		{Index: 2, Orig: "c", Modern: "c"},
	}
	got, err := assemble(&book.ChapterDoc{Chapter: 1}, full, 3)
	if err != nil {
		t.Fatalf("assemble() error = %v", err)
	}
	if got.Pairs[0].Index != 0 || got.Pairs[2].Index != 2 {
		t.Errorf("pairs not sorted by index: %+v", got.Pairs)
	}
}
