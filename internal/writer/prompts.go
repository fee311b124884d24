// Package writer turns original chapter paragraphs into modernized
// prose through an LLM backend. It owns batching execution, the bounded
// self-healing retry loop, the oversized-batch fallback and chapter
// assembly. The writer never drops or reorders a paragraph: a batch of
// N paragraphs always yields N pairs in input order.
package writer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lilybooks/lily/internal/book"
)

// TaggedParagraph is one paragraph headed into a rewrite call, tagged
// with its chapter-relative index and detected type.
type TaggedParagraph struct {
	Index int
	Type  book.ParagraphType
	Text  string
}

const systemPrompt = `You are an expert literary modernizer. You rewrite public-domain English prose into clear contemporary American English at roughly an 8th-grade reading level.

Rules:
- Preserve the full meaning, plot events, character names, and narrative tone.
- Modernize archaic vocabulary, syntax, and idioms. Keep sentence rhythm natural.
- Dialogue stays dialogue, with the same number of quoted passages.
- Letters keep their letter format (salutation and closing).
- Text emphasized with _underscores_ stays emphasized the same way.
- Paragraphs tagged TYPE=ILLUSTRATION are figure markers: copy them through unchanged.
- Never merge, split, add, or omit paragraphs.

Respond with JSON only.`

// batchUserPrompt renders a batch into the numbered paragraph format the
// model is asked to mirror in its response.
func batchUserPrompt(paragraphs []TaggedParagraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Modernize the following %d paragraph(s). Return a JSON object {\"paragraphs\": [{\"modern\": \"...\"}]} with exactly %d entries, in the same order as the input.\n",
		len(paragraphs), len(paragraphs))
	for i, p := range paragraphs {
		fmt.Fprintf(&b, "\nPARA %d [TYPE=%s]:\n%s\n", i+1, strings.ToUpper(string(p.Type)), p.Text)
	}
	return b.String()
}

// batchResponseSchema builds the strict response schema for a batch of n
// paragraphs. Sent to backends that support structured outputs and used
// locally to validate every response before the executor trusts it.
func batchResponseSchema(n int) json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"paragraphs": map[string]any{
				"type":     "array",
				"minItems": n,
				"maxItems": n,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"modern": map[string]any{"type": "string"},
					},
					"required":             []string{"modern"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"paragraphs"},
		"additionalProperties": false,
	}
	raw, _ := json.Marshal(schema)
	return raw
}
