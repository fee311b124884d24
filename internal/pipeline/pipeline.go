package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lilybooks/lily/internal/checker"
	"github.com/lilybooks/lily/internal/store"
	"github.com/lilybooks/lily/internal/writer"
)

// Config holds the pipeline-level tunables.
type Config struct {
	// MinFidelity is the score below which a validated pair counts as a
	// quality failure for its chapter.
	MinFidelity int
}

// FatalStageError aborts a run. Only hard stages (ingest, split,
// deliver) produce it; transform and validate degrade per chapter.
type FatalStageError struct {
	Slug     string
	Stage    string
	Chapters int
	Failed   int
	Err      error
}

func (e *FatalStageError) Error() string {
	return fmt.Sprintf("project %s: stage %s failed (chapters=%d failed=%d): %v",
		e.Slug, e.Stage, e.Chapters, e.Failed, e.Err)
}

func (e *FatalStageError) Unwrap() error { return e.Err }

// Stage is one pipeline step over the shared state record.
type Stage func(ctx context.Context, st *State) error

// Pipeline wires the stages over one project store.
type Pipeline struct {
	store      *store.Store
	dispatcher *writer.Dispatcher
	checker    *checker.Checker
	logger     *slog.Logger
	cfg        Config
}

// New creates a pipeline.
func New(st *store.Store, dispatcher *writer.Dispatcher, chk *checker.Checker, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinFidelity <= 0 {
		cfg.MinFidelity = 60
	}
	return &Pipeline{
		store:      st,
		dispatcher: dispatcher,
		checker:    chk,
		logger:     logger.With("component", "pipeline", "project", st.Project().Slug()),
		cfg:        cfg,
	}
}

// Run executes the full stage sequence. Hard stage errors abort with a
// FatalStageError; chapter-scoped trouble in transform or validate is
// recorded and the run continues. When validation leaves failing
// chapters, remediation re-runs exactly those chapters before delivery.
func (p *Pipeline) Run(ctx context.Context, st *State) error {
	type step struct {
		name string
		fn   Stage
		hard bool
	}
	steps := []step{
		{"ingest", p.Ingest, true},
		{"split", p.Split, true},
		{"transform", p.Transform, false},
		{"validate", p.Validate, false},
	}

	for _, s := range steps {
		if err := p.runStage(ctx, st, s.name, s.fn); err != nil {
			if s.hard {
				return p.fatal(st, s.name, err)
			}
			return err // soft stages only error on cancellation
		}
	}

	if !st.ValidateOK {
		if err := p.runStage(ctx, st, "remediate", p.Remediate); err != nil {
			return err
		}
	}

	if err := p.runStage(ctx, st, "deliver", p.Deliver); err != nil {
		return p.fatal(st, "deliver", err)
	}

	p.logger.Info("run complete",
		"chapters", st.ChapterCount,
		"stage_ok", st.ValidateOK,
		"failed_chapters", st.FailedChapters)
	return nil
}

func (p *Pipeline) fatal(st *State, stage string, err error) *FatalStageError {
	return &FatalStageError{
		Slug:     st.Slug,
		Stage:    stage,
		Chapters: st.ChapterCount,
		Failed:   len(st.FailedChapters),
		Err:      err,
	}
}

// runStage wraps one stage with event logging and a state checkpoint.
func (p *Pipeline) runStage(ctx context.Context, st *State, name string, fn Stage) error {
	p.store.AppendEvent(store.Event{Stage: name, Status: "started"})
	start := time.Now()

	if err := fn(ctx, st); err != nil {
		p.store.AppendEvent(store.Event{Stage: name, Status: "error", Error: err.Error()})
		p.logger.Error("stage failed", "stage", name, "error", err)
		return err
	}

	st.UpdatedAt = time.Now().UTC()
	if err := p.store.SaveState(st); err != nil {
		p.logger.Warn("failed to checkpoint state", "stage", name, "error", err)
	}

	p.store.AppendEvent(store.Event{Stage: name, Status: "completed", Fields: map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	}})
	p.logger.Info("stage complete", "stage", name, "duration", time.Since(start))
	return nil
}
