package book

import "testing"

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		para string
		want ParagraphType
	}{
		{"narrative", "It is a truth universally acknowledged.", TypeNarrative},
		{"dialogue", `"My dear Mr. Bennet," said his lady to him one day, "have you heard?"`, TypeDialogue},
		{"single quote is narrative", `"Unterminated speech`, TypeNarrative},
		{"illustration marker", "[Illustration]", TypeIllustration},
		{"illustration with whitespace", "  [Illustration]  ", TypeIllustration},
		{"letter salutation", "Dear Sir, I write to inform you of the entail.", TypeLetter},
		{"letter closing", "With gratitude, I remain, your obedient servant.", TypeLetter},
		{"empty", "", TypeNarrative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectType(tt.para); got != tt.want {
				t.Errorf("DetectType(%q) = %q, want %q", tt.para, got, tt.want)
			}
		})
	}
}

func TestChapterDocComplete(t *testing.T) {
	doc := &ChapterDoc{
		Chapter: 1,
		Title:   "Chapter I",
		Pairs: []ParaPair{
			{Index: 0, Orig: "a", Modern: "a"},
			{Index: 1, Orig: "b", Modern: "b"},
		},
	}

	if !doc.Complete(2) {
		t.Error("expected doc to be complete for 2 paragraphs")
	}
	if doc.Complete(3) {
		t.Error("expected doc to be incomplete for 3 paragraphs")
	}

	doc.Pairs[1].Index = 2 // gap
	if doc.Complete(2) {
		t.Error("expected doc with index gap to be incomplete")
	}
}

func TestChapterDocValidated(t *testing.T) {
	doc := &ChapterDoc{
		Chapter: 1,
		Pairs: []ParaPair{
			{Index: 0, QA: &QAReport{}},
			{Index: 1},
		},
	}
	if doc.Validated() {
		t.Error("expected doc with missing QA report to not be validated")
	}

	doc.Pairs[1].QA = &QAReport{}
	if !doc.Validated() {
		t.Error("expected doc with all QA reports to be validated")
	}

	empty := &ChapterDoc{Chapter: 2}
	if empty.Validated() {
		t.Error("expected empty doc to not be validated")
	}
}

func TestParaID(t *testing.T) {
	if got := ParaID(3, 14); got != "ch03_para014" {
		t.Errorf("ParaID(3, 14) = %q, want %q", got, "ch03_para014")
	}
}

func TestParseSeverity(t *testing.T) {
	if got := ParseSeverity("critical"); got != SeverityCritical {
		t.Errorf("ParseSeverity(critical) = %q", got)
	}
	if got := ParseSeverity("bogus"); got != SeverityMedium {
		t.Errorf("ParseSeverity(bogus) = %q, want medium", got)
	}
}
