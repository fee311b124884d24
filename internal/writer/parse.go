package writer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lilybooks/lily/internal/providers"
)

// A backend response is normalized into exactly one of these two shapes
// before any executor logic runs, so retry decisions never poke at raw
// strings.

// parsedBatch is a response that passed parsing, schema validation and
// the count check.
type parsedBatch struct {
	modern []string
}

// parseFailure is everything else: what came back, which class of
// failure it was, and why.
type parseFailure struct {
	raw         string
	failureType string // "empty_response", "json_parse", "schema_mismatch", "count_mismatch"
	reason      string
}

type batchResponse struct {
	Paragraphs []struct {
		Modern string `json:"modern"`
	} `json:"paragraphs"`
}

// normalizeResponse turns a raw chat result into a parsedBatch or a
// parseFailure. want is the expected paragraph count.
func normalizeResponse(res *providers.ChatResult, want int) (*parsedBatch, *parseFailure) {
	content := strings.TrimSpace(res.Content)
	if content == "" && len(res.ParsedJSON) == 0 {
		return nil, &parseFailure{failureType: "empty_response", reason: "backend returned no content"}
	}

	raw := res.ParsedJSON
	if len(raw) == 0 {
		extracted, err := providers.ParseStructuredJSON(content)
		if err != nil {
			return nil, &parseFailure{raw: content, failureType: "json_parse", reason: err.Error()}
		}
		raw = extracted
	}

	var parsed batchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &parseFailure{raw: string(raw), failureType: "json_parse", reason: err.Error()}
	}
	if len(parsed.Paragraphs) != want {
		return nil, &parseFailure{
			raw:         string(raw),
			failureType: "count_mismatch",
			reason:      fmt.Sprintf("got %d paragraphs, want %d", len(parsed.Paragraphs), want),
		}
	}
	if err := providers.ValidateJSON(batchResponseSchema(want), raw); err != nil {
		return nil, &parseFailure{raw: string(raw), failureType: "schema_mismatch", reason: err.Error()}
	}

	modern := make([]string, len(parsed.Paragraphs))
	for i, p := range parsed.Paragraphs {
		modern[i] = p.Modern
	}
	return &parsedBatch{modern: modern}, nil
}

// repairHint maps a parse failure to the typed corrective hint attached
// to the next attempt.
func (f *parseFailure) repairHint(attempt int) *providers.RepairHint {
	var instructions string
	switch f.failureType {
	case "empty_response":
		instructions = "You must return non-empty output. Respond with the JSON object and nothing else."
	case "json_parse":
		instructions = "Respond with ONLY a valid JSON object, no markdown fences and no commentary."
	case "schema_mismatch":
		instructions = "The JSON must be {\"paragraphs\": [{\"modern\": \"...\"}]} with no extra fields."
	case "count_mismatch":
		instructions = "Return exactly one entry per input paragraph, in input order. Never merge or split paragraphs."
	default:
		instructions = "Preserve the paragraph count and return only the JSON object."
	}
	return &providers.RepairHint{
		Attempt:      attempt,
		FailureType:  f.failureType,
		FailureMsg:   f.reason,
		Instructions: instructions,
	}
}
