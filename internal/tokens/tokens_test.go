package tokens

import (
	"strings"
	"testing"
)

func TestContextWindow(t *testing.T) {
	e := NewEstimator(nil)

	if got := e.ContextWindow("gpt-4"); got != 128000 {
		t.Errorf("ContextWindow(gpt-4) = %d, want 128000", got)
	}
	if got := e.ContextWindow("anthropic/claude-haiku-4.5"); got != 200000 {
		t.Errorf("ContextWindow(claude-haiku) = %d, want 200000", got)
	}
	if got := e.ContextWindow("some/unknown-model"); got != DefaultContextWindow {
		t.Errorf("ContextWindow(unknown) = %d, want default %d", got, DefaultContextWindow)
	}

	e.RegisterModel("local/llama", 8192)
	if got := e.ContextWindow("local/llama"); got != 8192 {
		t.Errorf("ContextWindow(registered) = %d, want 8192", got)
	}
}

func TestCountTokens(t *testing.T) {
	e := NewEstimator(nil)

	if got := e.CountTokens("", "gpt-4"); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}

	n := e.CountTokens("It is a truth universally acknowledged.", "gpt-4")
	if n <= 0 {
		t.Fatalf("CountTokens returned %d, want > 0", n)
	}

	// Counting must be deterministic.
	if again := e.CountTokens("It is a truth universally acknowledged.", "gpt-4"); again != n {
		t.Errorf("CountTokens not deterministic: %d then %d", n, again)
	}
}

func TestValidateWindow(t *testing.T) {
	e := NewEstimator(nil)
	e.RegisterModel("test/small", 1000)

	t.Run("oversized text fails with exact bounds", func(t *testing.T) {
		// Well over 800 tokens against a 1000-token window with 20% margin.
		text := strings.Repeat("paragraph after paragraph of narrative text ", 200)
		fits, count, maxAllowed := e.ValidateWindow(text, "test/small", 0.2)

		if maxAllowed != 800 {
			t.Errorf("maxAllowed = %d, want 800", maxAllowed)
		}
		if count != e.CountTokens(text, "test/small") {
			t.Errorf("token count mismatch: %d", count)
		}
		if count <= maxAllowed {
			t.Fatalf("test text too short: %d tokens <= %d", count, maxAllowed)
		}
		if fits {
			t.Error("expected fits=false for oversized text")
		}
	})

	t.Run("small text fits", func(t *testing.T) {
		fits, count, maxAllowed := e.ValidateWindow("A short paragraph.", "test/small", 0.2)
		if !fits {
			t.Errorf("expected fits=true, got false (count=%d, max=%d)", count, maxAllowed)
		}
	})

	t.Run("fits iff count at most max allowed", func(t *testing.T) {
		for _, margin := range []float64{0.0, 0.2, 0.5} {
			text := strings.Repeat("word ", 600)
			fits, count, maxAllowed := e.ValidateWindow(text, "test/small", margin)
			if fits != (count <= maxAllowed) {
				t.Errorf("margin %v: fits=%v but count=%d max=%d", margin, fits, count, maxAllowed)
			}
		}
	})
}

func TestCalculateBatchSize(t *testing.T) {
	e := NewEstimator(nil)
	e.RegisterModel("test/small", 1000)

	params := func(util float64, min, max int) BatchParams {
		return BatchParams{
			Model:             "test/small",
			TargetUtilization: util,
			MinBatchSize:      min,
			MaxBatchSize:      max,
		}
	}

	t.Run("empty input returns min", func(t *testing.T) {
		if got := e.CalculateBatchSize(nil, params(0.5, 2, 8)); got != 2 {
			t.Errorf("batch size = %d, want min 2", got)
		}
	})

	t.Run("capped by max not budget", func(t *testing.T) {
		// Five short paragraphs all fit well under the budget; the cap wins.
		paras := []string{
			"A short line.", "Another short line.", "A third.",
			"A fourth.", "A fifth.",
		}
		if got := e.CalculateBatchSize(paras, params(0.5, 1, 3)); got != 3 {
			t.Errorf("batch size = %d, want 3 (max cap)", got)
		}
	})

	t.Run("budget limits before max", func(t *testing.T) {
		// Each paragraph is roughly 200 tokens; a 0.5 utilization of a
		// 1000-token window fits only the first two.
		big := strings.Repeat("token heavy paragraph text ", 40)
		paras := []string{big, big, big, big, big}
		got := e.CalculateBatchSize(paras, params(0.5, 1, 10))
		if got >= 5 || got < 1 {
			t.Errorf("batch size = %d, want budget-limited value in [1,5)", got)
		}
	})

	t.Run("oversized first paragraph yields min", func(t *testing.T) {
		huge := strings.Repeat("far too many tokens for one batch ", 200)
		if got := e.CalculateBatchSize([]string{huge, "small"}, params(0.5, 1, 10)); got != 1 {
			t.Errorf("batch size = %d, want min 1", got)
		}
	})

	t.Run("bounds always hold", func(t *testing.T) {
		paras := []string{"a", "b", "c", "d", "e", "f"}
		got := e.CalculateBatchSize(paras, params(0.9, 2, 4))
		if got < 2 || got > 4 {
			t.Errorf("batch size %d outside [2,4]", got)
		}
	})
}
