package writer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/providers"
)

// ExecutorConfig holds the per-call tunables for the rewrite executor.
type ExecutorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxAttempts int
	CallTimeout time.Duration
}

// Executor runs one rewrite call per batch with a bounded self-healing
// retry loop. Rewrite never fails a batch: when retries are exhausted the
// batch degrades to pass-through pairs so the chapter always stays whole.
type Executor struct {
	client providers.LLMClient
	logger *slog.Logger
	cfg    ExecutorConfig
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client providers.LLMClient, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Executor{
		client: client,
		logger: logger.With("component", "writer"),
		cfg:    cfg,
	}
}

// Rewrite modernizes one batch of paragraphs. The result always has
// exactly len(batch) pairs in input order.
func (e *Executor) Rewrite(ctx context.Context, chapter int, batch []TaggedParagraph) []book.ParaPair {
	if len(batch) == 0 {
		return nil
	}

	requestID := uuid.New().String()
	userPrompt := batchUserPrompt(batch)
	schema := batchResponseSchema(len(batch))

	var (
		result   *parsedBatch
		lastFail *parseFailure
		attempts int
	)

	err := retry.Do(
		func() error {
			attempts++
			req := &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: userPrompt},
				},
				Model:       e.cfg.Model,
				Temperature: e.cfg.Temperature,
				MaxTokens:   e.cfg.MaxTokens,
				Timeout:     e.cfg.CallTimeout,
				ResponseFormat: &providers.ResponseFormat{
					Type:       "json_schema",
					Name:       "modernized_batch",
					JSONSchema: schema,
				},
				RequestID: requestID,
			}
			if lastFail != nil {
				req.Repair = lastFail.repairHint(attempts)
			}

			res, err := e.client.Chat(ctx, req)
			if err != nil {
				lastFail = &parseFailure{failureType: "http_error", reason: err.Error()}
				return err
			}

			parsed, fail := normalizeResponse(res, len(batch))
			if fail != nil {
				lastFail = fail
				return fmt.Errorf("%s: %s", fail.failureType, fail.reason)
			}

			result = parsed
			e.logger.Debug("batch rewritten",
				"chapter", chapter,
				"request_id", requestID,
				"paragraphs", len(batch),
				"attempts", attempts,
				"prompt_tokens", res.PromptTokens,
				"completion_tokens", res.CompletionTokens)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.MaxAttempts)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("rewrite attempt failed, retrying",
				"chapter", chapter,
				"request_id", requestID,
				"attempt", n+1,
				"error", err)
		}),
	)

	if err != nil {
		e.logger.Error("batch rewrite exhausted retries, degrading to original text",
			"chapter", chapter,
			"request_id", requestID,
			"paragraphs", len(batch),
			"attempts", attempts,
			"error", err)
		return e.degrade(chapter, batch, attempts, err)
	}

	pairs := make([]book.ParaPair, len(batch))
	for i, p := range batch {
		modern := result.modern[i]
		if modern == "" {
			// Sanity check only; an empty rewrite is suspicious but not
			// worth discarding the whole batch over.
			e.logger.Warn("empty modernized paragraph",
				"chapter", chapter, "paragraph", p.Index, "request_id", requestID)
		}
		pairs[i] = book.ParaPair{
			Index:  p.Index,
			ParaID: book.ParaID(chapter, p.Index),
			Orig:   p.Text,
			Modern: modern,
		}
	}
	return pairs
}

// degrade produces pass-through pairs for a batch whose rewrite could
// not be completed. The note records the attempt count and final error
// so the failure survives in the chapter document.
func (e *Executor) degrade(chapter int, batch []TaggedParagraph, attempts int, err error) []book.ParaPair {
	note := fmt.Sprintf("modernization degraded after %d attempt(s): %v", attempts, err)
	pairs := make([]book.ParaPair, len(batch))
	for i, p := range batch {
		pairs[i] = book.ParaPair{
			Index:  p.Index,
			ParaID: book.ParaID(chapter, p.Index),
			Orig:   p.Text,
			Modern: p.Text,
			Notes:  note,
		}
	}
	return pairs
}
