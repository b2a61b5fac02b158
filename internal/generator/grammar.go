package generator

import (
	"fmt"
	"time"

	"github.com/worksheetlab/server/internal/domain"
)

// Grammar worksheets: one guided section (at least 6 multiple choice plus
// one open-ended), then two independent sections of at least 6 multiple
// choice each, every item with 4 choices.
func grammarSpec() subjectSpec {
	return subjectSpec{
		subject:        domain.SubjectGrammar,
		timestampedKey: false,
		maxAttempts:    3,
		attemptTimeout: 45 * time.Second,
		maxTokens:      3500,
		buildPrompt:    buildGrammarPrompt,
		validate:       validateGrammar,
	}
}

func buildGrammarPrompt(p Params) (string, string) {
	system := "You are an experienced elementary school teacher writing grammar practice worksheets. " +
		"Respond with a single JSON object and nothing else. No prose, no markdown fences."

	prompt := fmt.Sprintf(`Create a grammar worksheet for grade %s on the concept "%s".

Match the tone and difficulty of this example material:
---
%s
---

Return JSON with this exact structure:
{
  "title": string,
  "sections": [
    {"kind": "guided", "title": string, "questions": [...]},
    {"kind": "independent", "title": string, "questions": [...]},
    {"kind": "independent", "title": string, "questions": [...]}
  ]
}

Requirements:
- The guided section has at least 6 "multiple_choice" questions and exactly 1 "open_ended" question.
- Each independent section has at least 6 "multiple_choice" questions.
- Every multiple_choice question has exactly 4 choices with ids "a","b","c","d" and an "answer" field naming the correct id.
- Question objects: {"type": "multiple_choice", "prompt": string, "choices": [{"id": string, "text": string}], "answer": string} or {"type": "open_ended", "prompt": string}.`,
		p.GradeLevel, conceptOrTopic(p), p.StyleReference)

	return system, prompt
}

func validateGrammar(content *domain.WorksheetContent, _ Params) error {
	guided := sectionsByKind(content, domain.SectionGuided)
	if len(guided) != 1 {
		return fmt.Errorf("want 1 guided section, got %d", len(guided))
	}
	counts := guided[0].Count()
	if counts.MultipleChoice < 6 {
		return fmt.Errorf("guided section has %d multiple choice questions, want at least 6", counts.MultipleChoice)
	}
	if counts.OpenEnded != 1 {
		return fmt.Errorf("guided section has %d open-ended questions, want exactly 1", counts.OpenEnded)
	}
	if err := validateSectionQuestions(guided[0]); err != nil {
		return fmt.Errorf("guided section: %w", err)
	}

	independent := sectionsByKind(content, domain.SectionIndependent)
	if len(independent) != 2 {
		return fmt.Errorf("want 2 independent sections, got %d", len(independent))
	}
	for i, sec := range independent {
		counts := sec.Count()
		if counts.MultipleChoice < 6 {
			return fmt.Errorf("independent section %d has %d multiple choice questions, want at least 6", i+1, counts.MultipleChoice)
		}
		if err := validateSectionQuestions(sec); err != nil {
			return fmt.Errorf("independent section %d: %w", i+1, err)
		}
	}
	return nil
}

func conceptOrTopic(p Params) string {
	if p.Concept != "" {
		return p.Concept
	}
	return p.Topic
}
