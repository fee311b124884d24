package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/providers"
)

const qaSystemPrompt = `You are a literary QA reviewer. You compare an original public-domain paragraph with its modernized rewrite and score how faithfully the rewrite preserves meaning, events, and tone.

Score fidelity from 0 to 100, where 100 means every fact, event, and nuance survives. Estimate the rewrite's US reading grade level. Flag issues with a type, a short description, and a severity of low, medium, high, or critical.

Respond with JSON only.`

var qaResponseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"fidelity_score": {"type": "integer", "minimum": 0, "maximum": 100},
		"readability_grade": {"type": "number"},
		"tone_consistent": {"type": "boolean"},
		"issues": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"type": {"type": "string"},
					"description": {"type": "string"},
					"severity": {"type": "string"}
				},
				"required": ["type", "description", "severity"],
				"additionalProperties": false
			}
		}
	},
	"required": ["fidelity_score", "readability_grade", "tone_consistent", "issues"],
	"additionalProperties": false
}`)

type qaResponse struct {
	FidelityScore    int     `json:"fidelity_score"`
	ReadabilityGrade float64 `json:"readability_grade"`
	ToneConsistent   bool    `json:"tone_consistent"`
	Issues           []struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
	} `json:"issues"`
}

// Config holds the checker call tunables.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxAttempts int
	CallTimeout time.Duration
}

// Checker assesses modernized paragraphs.
type Checker struct {
	client providers.LLMClient
	logger *slog.Logger
	cfg    Config
}

// New creates a checker over the given client.
func New(client providers.LLMClient, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Checker{
		client: client,
		logger: logger.With("component", "checker"),
		cfg:    cfg,
	}
}

// Assess scores one original/modern pair. It never fails the pair on
// backend trouble: when retries are exhausted it returns a report that
// carries the structural signals plus a critical checker_error issue.
// The returned error is non-nil only for context cancellation.
func (c *Checker) Assess(ctx context.Context, orig, modern string) (*book.QAReport, error) {
	s := compareStructure(orig, modern)
	report := &book.QAReport{
		QuoteCountMatch:     s.quoteCountMatch,
		EmphasisPreserved:   s.emphasisPreserved,
		CharacterCountRatio: s.charRatio,
	}
	for _, word := range s.archaicLeftovers {
		report.Issues = append(report.Issues, book.QAIssue{
			Type:        "archaic_language",
			Description: fmt.Sprintf("archaic form %q survives in the rewrite", word),
			Severity:    book.SeverityMedium,
		})
	}

	requestID := uuid.New().String()
	userPrompt := fmt.Sprintf("ORIGINAL:\n%s\n\nMODERNIZED:\n%s", orig, modern)

	var (
		parsed   *qaResponse
		lastHint *providers.RepairHint
		attempts int
	)

	err := retry.Do(
		func() error {
			attempts++
			req := &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: qaSystemPrompt},
					{Role: "user", Content: userPrompt},
				},
				Model:       c.cfg.Model,
				Temperature: c.cfg.Temperature,
				MaxTokens:   c.cfg.MaxTokens,
				Timeout:     c.cfg.CallTimeout,
				ResponseFormat: &providers.ResponseFormat{
					Type:       "json_schema",
					Name:       "qa_report",
					JSONSchema: qaResponseSchema,
				},
				Repair:    lastHint,
				RequestID: requestID,
			}

			res, err := c.client.Chat(ctx, req)
			if err != nil {
				lastHint = &providers.RepairHint{
					Attempt:     attempts,
					FailureType: "http_error",
					FailureMsg:  err.Error(),
				}
				return err
			}

			p, failType, failMsg := parseQAResponse(res)
			if p == nil {
				lastHint = &providers.RepairHint{
					Attempt:      attempts,
					FailureType:  failType,
					FailureMsg:   failMsg,
					Instructions: "Respond with ONLY the JSON object matching the requested schema.",
				}
				return fmt.Errorf("%s: %s", failType, failMsg)
			}
			parsed = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxAttempts)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(250*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("qa attempt failed, retrying",
				"request_id", requestID, "attempt", n+1, "error", err)
		}),
	)

	report.RetryCount = attempts - 1

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("qa assessment exhausted retries",
			"request_id", requestID, "attempts", attempts, "error", err)
		report.Issues = append(report.Issues, book.QAIssue{
			Type:        "checker_error",
			Description: fmt.Sprintf("assessment unavailable after %d attempt(s): %v", attempts, err),
			Severity:    book.SeverityCritical,
		})
		return report, nil
	}

	score := parsed.FidelityScore
	grade := parsed.ReadabilityGrade
	report.FidelityScore = &score
	report.ReadabilityGrade = &grade
	report.ToneConsistent = parsed.ToneConsistent
	for _, issue := range parsed.Issues {
		report.Issues = append(report.Issues, book.QAIssue{
			Type:        issue.Type,
			Description: issue.Description,
			Severity:    book.ParseSeverity(issue.Severity),
		})
	}

	c.logger.Debug("pair assessed",
		"request_id", requestID,
		"fidelity", score,
		"issues", len(report.Issues),
		"attempts", attempts)
	return report, nil
}

// parseQAResponse normalizes a chat result into a qaResponse, or
// returns the failure class and message.
func parseQAResponse(res *providers.ChatResult) (*qaResponse, string, string) {
	content := strings.TrimSpace(res.Content)
	if content == "" && len(res.ParsedJSON) == 0 {
		return nil, "empty_response", "backend returned no content"
	}

	raw := res.ParsedJSON
	if len(raw) == 0 {
		extracted, err := providers.ParseStructuredJSON(content)
		if err != nil {
			return nil, "json_parse", err.Error()
		}
		raw = extracted
	}

	if err := providers.ValidateJSON(qaResponseSchema, raw); err != nil {
		return nil, "schema_mismatch", err.Error()
	}
	var parsed qaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "json_parse", err.Error()
	}
	return &parsed, "", ""
}
