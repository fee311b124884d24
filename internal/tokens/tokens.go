// Package tokens provides token counting and context-window budgeting for
// LLM requests, plus the batch-size calculation used to group paragraphs
// into single calls.
package tokens

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Known context windows by model. Unknown models get a conservative default.
var contextWindows = map[string]int{
	"openai/gpt-5-mini":           128000,
	"openai/gpt-4o-mini":          128000,
	"gpt-4":                       128000,
	"gpt-4-turbo":                 128000,
	"anthropic/claude-sonnet-4.5": 1000000,
	"anthropic/claude-haiku-4.5":  200000,
}

// DefaultContextWindow is used for models not in the table.
const DefaultContextWindow = 128000

// Every supported model currently shares the cl100k_base encoding.
const defaultEncoding = "cl100k_base"

var modelEncodings = map[string]string{
	"openai/gpt-5-mini":           "cl100k_base",
	"openai/gpt-4o-mini":          "cl100k_base",
	"gpt-4":                       "cl100k_base",
	"gpt-4-turbo":                 "cl100k_base",
	"anthropic/claude-sonnet-4.5": "cl100k_base",
	"anthropic/claude-haiku-4.5":  "cl100k_base",
}

// Estimator counts tokens under a model profile and answers window-fit
// questions. Methods have no side effects beyond logging; the encoder
// cache makes repeated counts cheap.
type Estimator struct {
	logger *slog.Logger

	mu        sync.Mutex
	encoders  map[string]*tiktoken.Tiktoken
	overrides map[string]int
}

// NewEstimator creates an Estimator. A nil logger falls back to slog.Default.
func NewEstimator(logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		logger:    logger.With("component", "tokens"),
		encoders:  make(map[string]*tiktoken.Tiktoken),
		overrides: make(map[string]int),
	}
}

// RegisterModel registers or overrides the context window for a model,
// e.g. for self-hosted deployments with non-standard limits.
func (e *Estimator) RegisterModel(model string, contextWindow int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[model] = contextWindow
}

// CountTokens counts tokens in text for the given model. On encoding
// failure it falls back to a rough len/4 estimate and logs the degradation.
func (e *Estimator) CountTokens(text, model string) int {
	enc, err := e.encoder(model)
	if err != nil {
		e.logger.Warn("token counting degraded to len/4 estimate",
			"model", model, "error", err)
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// ContextWindow returns the context window size for a model.
func (e *Estimator) ContextWindow(model string) int {
	e.mu.Lock()
	w, ok := e.overrides[model]
	e.mu.Unlock()
	if ok {
		return w
	}
	if w, ok := contextWindows[model]; ok {
		return w
	}
	return DefaultContextWindow
}

// ValidateWindow checks that text fits within the model's context window
// after reserving safetyMargin as headroom. maxAllowed is
// floor(window * (1 - margin)); fits is tokens <= maxAllowed.
func (e *Estimator) ValidateWindow(text, model string, safetyMargin float64) (fits bool, tokenCount, maxAllowed int) {
	tokenCount = e.CountTokens(text, model)
	window := e.ContextWindow(model)
	maxAllowed = int(float64(window) * (1 - safetyMargin))

	fits = tokenCount <= maxAllowed
	if !fits {
		e.logger.Warn("text exceeds context window",
			"model", model,
			"tokens", tokenCount,
			"max_allowed", maxAllowed,
			"window", window,
			"safety_margin", safetyMargin)
	}
	return fits, tokenCount, maxAllowed
}

func (e *Estimator) encoder(model string) (*tiktoken.Tiktoken, error) {
	name, ok := modelEncodings[model]
	if !ok {
		name = defaultEncoding
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encoders[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	e.encoders[name] = enc
	return enc, nil
}
