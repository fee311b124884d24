package tokens

// Estimated separator cost between paragraphs joined into one request.
const separatorTokens = 2

// BatchParams bounds the batch-size calculation.
type BatchParams struct {
	Model             string
	TargetUtilization float64
	MinBatchSize      int
	MaxBatchSize      int
}

// CalculateBatchSize computes one fixed batch size for a chapter's
// paragraph list. It greedily accumulates paragraphs (plus separator cost)
// from the start of the list until the next paragraph would exceed the
// target token budget or MaxBatchSize is reached. The result is applied
// uniformly across the whole chapter so downstream indexing stays
// predictable.
//
// An empty list returns MinBatchSize. A first paragraph that alone exceeds
// the budget also returns MinBatchSize; genuinely oversized requests are
// caught later by ValidateWindow.
func (e *Estimator) CalculateBatchSize(paragraphs []string, p BatchParams) int {
	if len(paragraphs) == 0 {
		return p.MinBatchSize
	}

	window := e.ContextWindow(p.Model)
	targetTokens := int(float64(window) * p.TargetUtilization)

	cumulative := 0
	size := 0
	for i, para := range paragraphs {
		cost := e.CountTokens(para, p.Model)
		if i > 0 {
			cost += separatorTokens
		}
		if cumulative+cost > targetTokens {
			break
		}
		cumulative += cost
		size = i + 1
	}

	if size < p.MinBatchSize {
		size = p.MinBatchSize
	}
	if size > p.MaxBatchSize {
		size = p.MaxBatchSize
	}

	e.logger.Info("calculated batch size",
		"batch_size", size,
		"paragraphs", len(paragraphs),
		"target_tokens", targetTokens,
		"model", p.Model)

	return size
}
