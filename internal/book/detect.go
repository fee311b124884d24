package book

import "strings"

// DetectType classifies a paragraph for specialized prompt handling.
// The heuristics are deliberately cheap: quoted speech dominates dialogue,
// an exact "[Illustration]" marker passes through untouched, and salutation
// phrases mark embedded correspondence. Everything else is narrative.
func DetectType(para string) ParagraphType {
	para = strings.TrimSpace(para)

	if para == "[Illustration]" {
		return TypeIllustration
	}
	if strings.HasPrefix(para, `"`) && strings.Count(para, `"`) >= 2 {
		return TypeDialogue
	}
	if strings.Contains(para, "Dear ") || strings.Contains(para, "I remain, ") {
		return TypeLetter
	}
	return TypeNarrative
}
