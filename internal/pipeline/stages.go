package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/ingest"
	"github.com/lilybooks/lily/internal/store"
)

// Ingest loads the source text into the project. With no source path it
// requires previously ingested text, so persisted projects resume
// without the original file on disk.
func (p *Pipeline) Ingest(ctx context.Context, st *State) error {
	if st.SourcePath == "" {
		if _, err := p.store.LoadRawText(); err != nil {
			return errors.New("no source file given and no ingested text found")
		}
		p.logger.Info("reusing ingested source text")
		st.IngestOK = true
		return nil
	}

	text, err := ingest.LoadFile(st.SourcePath)
	if err != nil {
		return err
	}
	text = ingest.StripBoilerplate(text)
	if err := p.store.SaveRawText(text); err != nil {
		return fmt.Errorf("failed to persist source text: %w", err)
	}

	p.logger.Info("source ingested", "path", st.SourcePath, "bytes", len(text))
	st.IngestOK = true
	return nil
}

// Split cuts the source into chapters and paragraphs, reusing a
// persisted split when one exists so chapter numbering stays stable
// across runs.
func (p *Pipeline) Split(ctx context.Context, st *State) error {
	if chapters, err := p.store.LoadChapterSplits(); err == nil && len(chapters) > 0 {
		p.logger.Info("reusing persisted chapter split", "chapters", len(chapters))
		st.Chapters = chapters
		st.ChapterCount = len(chapters)
		st.SplitOK = true
		return nil
	}

	text, err := p.store.LoadRawText()
	if err != nil {
		return fmt.Errorf("failed to load source text: %w", err)
	}

	chapters := ingest.SplitChapters(text, p.logger)
	if len(chapters) == 0 {
		return errors.New("source text yields no chapters")
	}
	if err := p.store.SaveChapterSplits(chapters); err != nil {
		return fmt.Errorf("failed to persist chapter split: %w", err)
	}

	st.Chapters = chapters
	st.ChapterCount = len(chapters)
	st.SplitOK = true
	return nil
}

// Transform rewrites every in-scope chapter concurrently. A chapter with
// a complete persisted document is reused without any backend calls. A
// chapter that cannot be rewritten is recorded as failed; its siblings
// keep going.
func (p *Pipeline) Transform(ctx context.Context, st *State) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures int
	)

	for _, split := range st.ScopedChapters() {
		wg.Add(1)
		go func(split book.ChapterSplit) {
			defer wg.Done()

			if cached, err := p.store.LoadChapterDoc(split.Chapter); err == nil && cached.Complete(len(split.Paragraphs)) {
				p.logger.Info("transform skipped, complete chapter already persisted", "chapter", split.Chapter)
				p.store.AppendEvent(store.Event{Stage: "transform", Status: "skipped", Chapter: split.Chapter})
				mu.Lock()
				st.Docs[split.Chapter] = cached
				mu.Unlock()
				return
			}

			doc, err := p.dispatcher.RewriteChapter(ctx, split)
			if err == nil {
				if saveErr := p.store.SaveChapterDoc(doc); saveErr != nil {
					err = fmt.Errorf("failed to persist chapter: %w", saveErr)
				}
			}
			if err != nil {
				p.store.AppendFailure(book.FailureRecord{Chapter: split.Chapter, Stage: "transform", Reason: err.Error()})
				p.store.AppendEvent(store.Event{Stage: "transform", Status: "error", Chapter: split.Chapter, Error: err.Error()})
				mu.Lock()
				failures++
				st.MarkFailed(split.Chapter)
				mu.Unlock()
				return
			}

			p.store.AppendEvent(store.Event{Stage: "transform", Status: "completed", Chapter: split.Chapter,
				Fields: map[string]any{"paragraphs": len(doc.Pairs)}})
			mu.Lock()
			st.Docs[split.Chapter] = doc
			mu.Unlock()
		}(split)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	st.TransformOK = failures == 0
	return nil
}

// Validate assesses every pair of every in-scope chapter. Chapters whose
// pairs all carry reports already are skipped without backend calls. A
// chapter fails validation on any critical issue or a fidelity score
// under the configured floor; failing chapters are recorded and the
// stage still completes.
func (p *Pipeline) Validate(ctx context.Context, st *State) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)

	for _, split := range st.ScopedChapters() {
		mu.Lock()
		doc := st.Docs[split.Chapter]
		mu.Unlock()
		if doc == nil {
			// Transform already recorded this chapter's failure.
			continue
		}

		wg.Add(1)
		go func(chapter int, doc *book.ChapterDoc) {
			defer wg.Done()

			failed, reason, assessed, err := p.assessDoc(ctx, doc)
			if err != nil {
				mu.Lock()
				fatalErr = err
				mu.Unlock()
				return
			}
			if assessed == 0 {
				// Every pair already carried a report; the chapter was
				// re-judged from the persisted reports without any
				// backend calls.
				p.logger.Info("validate skipped, all pairs already assessed", "chapter", chapter)
				p.store.AppendEvent(store.Event{Stage: "validate", Status: "skipped", Chapter: chapter})
			} else if saveErr := p.store.SaveChapterDoc(doc); saveErr != nil {
				failed, reason = true, fmt.Sprintf("failed to persist reports: %v", saveErr)
			}

			if failed {
				p.store.AppendFailure(book.FailureRecord{Chapter: chapter, Stage: "validate", Reason: reason})
				p.store.AppendEvent(store.Event{Stage: "validate", Status: "error", Chapter: chapter, Error: reason})
				mu.Lock()
				st.MarkFailed(chapter)
				mu.Unlock()
				return
			}
			p.store.AppendEvent(store.Event{Stage: "validate", Status: "completed", Chapter: chapter})
		}(split.Chapter, doc)
	}
	wg.Wait()

	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	st.ValidateOK = len(st.FailedChapters) == 0
	return nil
}

// assessDoc runs the checker over every unassessed pair, then judges the
// whole chapter from the reports, persisted or fresh. The returned error
// is reserved for cancellation.
func (p *Pipeline) assessDoc(ctx context.Context, doc *book.ChapterDoc) (failed bool, reason string, assessed int, err error) {
	var reasons []string
	for i := range doc.Pairs {
		pair := &doc.Pairs[i]
		if pair.QA == nil {
			report, err := p.checker.Assess(ctx, pair.Orig, pair.Modern)
			if err != nil {
				return false, "", assessed, err
			}
			pair.QA = report
			assessed++
		}

		if pair.QA.HasCritical() {
			reasons = append(reasons, fmt.Sprintf("%s: critical issue", pair.ParaID))
		} else if pair.QA.FidelityScore != nil && *pair.QA.FidelityScore < p.cfg.MinFidelity {
			reasons = append(reasons, fmt.Sprintf("%s: fidelity %d below %d", pair.ParaID, *pair.QA.FidelityScore, p.cfg.MinFidelity))
		}
	}
	if len(reasons) == 0 {
		return false, "", assessed, nil
	}
	return true, strings.Join(reasons, "; "), assessed, nil
}

// Remediate re-runs exactly the failing chapters: a fresh rewrite, a
// fresh assessment, and a cleared failure record when the chapter comes
// back clean. Chapters that stay bad keep the run's stage_ok false.
func (p *Pipeline) Remediate(ctx context.Context, st *State) error {
	failing := append([]int(nil), st.FailedChapters...)
	p.logger.Info("remediating failed chapters", "chapters", failing)

	splits := make(map[int]book.ChapterSplit, len(st.Chapters))
	for _, split := range st.Chapters {
		splits[split.Chapter] = split
	}

	for _, chapter := range failing {
		split, ok := splits[chapter]
		if !ok {
			continue
		}

		doc, err := p.dispatcher.RewriteChapter(ctx, split)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.store.AppendFailure(book.FailureRecord{Chapter: chapter, Stage: "remediate", Reason: err.Error()})
			continue
		}

		failed, reason, _, err := p.assessDoc(ctx, doc)
		if err != nil {
			return err
		}
		if saveErr := p.store.SaveChapterDoc(doc); saveErr != nil {
			failed, reason = true, fmt.Sprintf("failed to persist chapter: %v", saveErr)
		}

		if failed {
			p.store.AppendFailure(book.FailureRecord{Chapter: chapter, Stage: "remediate", Reason: reason})
			p.store.AppendEvent(store.Event{Stage: "remediate", Status: "error", Chapter: chapter, Error: reason})
			continue
		}

		p.store.ClearFailures(chapter)
		st.ClearFailed(chapter)
		st.Docs[chapter] = doc
		p.store.AppendEvent(store.Event{Stage: "remediate", Status: "completed", Chapter: chapter})
	}

	st.ValidateOK = len(st.FailedChapters) == 0
	return nil
}

// Manifest is the deliverables index handed to downstream renderers.
type Manifest struct {
	Slug           string            `json:"slug"`
	BookID         string            `json:"book_id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	StageOK        bool              `json:"stage_ok"`
	FailedChapters []int             `json:"failed_chapters,omitempty"`
	Chapters       []ManifestChapter `json:"chapters"`
}

// ManifestChapter describes one delivered chapter document.
type ManifestChapter struct {
	Chapter    int    `json:"chapter"`
	Title      string `json:"title,omitempty"`
	Paragraphs int    `json:"paragraphs"`
	Path       string `json:"path"`
}

// Deliver writes the book metadata and the manifest of completed
// chapters. It fails hard when nothing at all was produced.
func (p *Pipeline) Deliver(ctx context.Context, st *State) error {
	if st.Meta != nil {
		if err := p.store.SaveMetadata(st.Meta); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	manifest := Manifest{
		Slug:           st.Slug,
		BookID:         st.BookID,
		GeneratedAt:    time.Now().UTC(),
		StageOK:        st.ValidateOK,
		FailedChapters: st.FailedChapters,
	}

	root := p.store.Project().Root()
	for _, split := range st.ScopedChapters() {
		doc := st.Docs[split.Chapter]
		if doc == nil {
			continue
		}
		path, err := filepath.Rel(root, p.store.Project().ChapterDocPath(split.Chapter))
		if err != nil {
			path = p.store.Project().ChapterDocPath(split.Chapter)
		}
		manifest.Chapters = append(manifest.Chapters, ManifestChapter{
			Chapter:    split.Chapter,
			Title:      doc.Title,
			Paragraphs: len(doc.Pairs),
			Path:       path,
		})
	}

	if len(manifest.Chapters) == 0 {
		return errors.New("no chapters were produced")
	}
	if err := p.store.SaveManifest(manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	st.DeliverOK = true
	p.logger.Info("deliverables written",
		"chapters", len(manifest.Chapters),
		"stage_ok", manifest.StageOK)
	return nil
}
