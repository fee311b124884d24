package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/tokens"
)

// DispatcherConfig holds the batching and concurrency tunables.
type DispatcherConfig struct {
	Model              string
	TargetUtilization  float64
	MinBatchSize       int
	MaxBatchSize       int
	SafetyMargin       float64
	MaxConcurrentCalls int64
}

// Dispatcher partitions a chapter into fixed-size contiguous batches and
// runs them concurrently through the executor. The semaphore is shared
// across every chapter the dispatcher touches, so total in-flight backend
// calls stay bounded no matter how many chapters run at once.
type Dispatcher struct {
	executor  *Executor
	estimator *tokens.Estimator
	sem       *semaphore.Weighted
	logger    *slog.Logger
	cfg       DispatcherConfig
}

// NewDispatcher creates a dispatcher over the given executor and estimator.
func NewDispatcher(executor *Executor, estimator *tokens.Estimator, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 8
	}
	if cfg.MinBatchSize <= 0 {
		cfg.MinBatchSize = 1
	}
	if cfg.MaxBatchSize < cfg.MinBatchSize {
		cfg.MaxBatchSize = cfg.MinBatchSize
	}
	if cfg.TargetUtilization <= 0 {
		cfg.TargetUtilization = 0.2
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 0.2
	}
	return &Dispatcher{
		executor:  executor,
		estimator: estimator,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		logger:    logger.With("component", "dispatcher"),
		cfg:       cfg,
	}
}

// RewriteChapter modernizes one chapter. Every input paragraph appears in
// the result exactly once at its original index; batches that fail end up
// as degraded pass-through pairs, never as holes.
func (d *Dispatcher) RewriteChapter(ctx context.Context, split book.ChapterSplit) (*book.ChapterDoc, error) {
	tagged := make([]TaggedParagraph, len(split.Paragraphs))
	for i, text := range split.Paragraphs {
		tagged[i] = TaggedParagraph{Index: i, Type: book.DetectType(text), Text: text}
	}

	doc := &book.ChapterDoc{Chapter: split.Chapter, Title: split.Title}
	if len(tagged) == 0 {
		return doc, nil
	}

	size := d.estimator.CalculateBatchSize(split.Paragraphs, tokens.BatchParams{
		Model:             d.cfg.Model,
		TargetUtilization: d.cfg.TargetUtilization,
		MinBatchSize:      d.cfg.MinBatchSize,
		MaxBatchSize:      d.cfg.MaxBatchSize,
	})

	tasks := d.partition(split.Chapter, tagged, size)

	d.logger.Info("dispatching chapter",
		"chapter", split.Chapter,
		"paragraphs", len(tagged),
		"batch_size", size,
		"tasks", len(tasks))

	results := make(chan []book.ParaPair, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task []TaggedParagraph) {
			defer wg.Done()
			if err := d.sem.Acquire(ctx, 1); err != nil {
				results <- d.executor.degrade(split.Chapter, task, 0, fmt.Errorf("dispatch cancelled: %w", err))
				return
			}
			defer d.sem.Release(1)
			results <- d.executor.Rewrite(ctx, split.Chapter, task)
		}(task)
	}
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pairs []book.ParaPair
	for batch := range results {
		pairs = append(pairs, batch...)
	}
	return assemble(doc, pairs, len(tagged))
}

// partition cuts the chapter into contiguous groups of size, then checks
// each group against the context window. A group that would not fit is
// decomposed into single-paragraph tasks.
func (d *Dispatcher) partition(chapter int, tagged []TaggedParagraph, size int) [][]TaggedParagraph {
	var tasks [][]TaggedParagraph
	for start := 0; start < len(tagged); start += size {
		end := start + size
		if end > len(tagged) {
			end = len(tagged)
		}
		group := tagged[start:end]

		fits, tokenCount, maxAllowed := d.estimator.ValidateWindow(batchUserPrompt(group), d.cfg.Model, d.cfg.SafetyMargin)
		if fits || len(group) == 1 {
			if !fits {
				// Single paragraph exceeding the window still gets one
				// attempt; the backend error degrades it to pass-through.
				d.logger.Warn("single paragraph exceeds context window",
					"chapter", chapter,
					"paragraph", group[0].Index,
					"tokens", tokenCount,
					"max_allowed", maxAllowed)
			}
			tasks = append(tasks, group)
			continue
		}

		d.logger.Warn("batch exceeds context window, falling back to single-paragraph calls",
			"chapter", chapter,
			"batch_start", start,
			"batch_size", len(group),
			"tokens", tokenCount,
			"max_allowed", maxAllowed)
		for i := range group {
			tasks = append(tasks, group[i:i+1])
		}
	}
	return tasks
}

// assemble orders gathered pairs by original index and verifies gap-free
// coverage before sealing the chapter document.
func assemble(doc *book.ChapterDoc, pairs []book.ParaPair, total int) (*book.ChapterDoc, error) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Index < pairs[j].Index })
	doc.Pairs = pairs
	if !doc.Complete(total) {
		return nil, fmt.Errorf("chapter %d assembly incomplete: %d pairs for %d paragraphs",
			doc.Chapter, len(pairs), total)
	}
	return doc, nil
}
