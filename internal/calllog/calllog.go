// Package calllog records every LLM API call to an append-only JSONL
// file for traceability: which model saw which request, what came back,
// token usage and outcome. The recorder wraps any LLMClient, so the
// writer and checker are traced without knowing about it.
package calllog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lilybooks/lily/internal/providers"
)

// maxRecordedResponse bounds the stored response body; full chapter
// payloads live in the chapter documents already.
const maxRecordedResponse = 2000

// Call is one recorded LLM API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	RequestID string `json:"request_id,omitempty"`

	Provider    string `json:"provider"`
	Model       string `json:"model"`
	RepairRetry bool   `json:"repair_retry,omitempty"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	Response string `json:"response,omitempty"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Recorder appends calls to a JSONL file. Safe for concurrent use.
type Recorder struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewRecorder creates a recorder writing to path.
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{path: path, logger: logger.With("component", "calllog")}
}

// Record appends one call. Recording is advisory: failures are logged,
// never propagated into the calling request path.
func (r *Recorder) Record(c Call) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	if len(c.Response) > maxRecordedResponse {
		c.Response = c.Response[:maxRecordedResponse] + "...[truncated]"
	}

	line, err := json.Marshal(c)
	if err != nil {
		r.logger.Warn("failed to serialize call record", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.logger.Warn("failed to open call log", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		r.logger.Warn("failed to append call record", "error", err)
	}
}

// Load returns all recorded calls.
func (r *Recorder) Load() ([]Call, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var calls []Call
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("failed to parse call record: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, scanner.Err()
}

// Wrap returns an LLMClient that records every Chat through the recorder.
func Wrap(client providers.LLMClient, rec *Recorder) providers.LLMClient {
	return &recordingClient{inner: client, rec: rec}
}

type recordingClient struct {
	inner providers.LLMClient
	rec   *Recorder
}

func (c *recordingClient) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	start := time.Now()
	res, err := c.inner.Chat(ctx, req)

	call := Call{
		Timestamp:   start.UTC(),
		LatencyMs:   int(time.Since(start).Milliseconds()),
		RequestID:   req.RequestID,
		Provider:    c.inner.Name(),
		Model:       req.Model,
		RepairRetry: req.Repair != nil,
	}
	if res != nil {
		call.InputTokens = res.PromptTokens
		call.OutputTokens = res.CompletionTokens
		call.Response = res.Content
		call.Success = res.Success
		call.ErrorType = res.ErrorType
		call.Error = res.ErrorMessage
	}
	if err != nil {
		call.Success = false
		call.Error = err.Error()
	}
	c.rec.Record(call)

	return res, err
}

func (c *recordingClient) Name() string { return c.inner.Name() }

func (c *recordingClient) RequestsPerSecond() float64 { return c.inner.RequestsPerSecond() }

var _ providers.LLMClient = (*recordingClient)(nil)
