package generator

import (
	"fmt"
	"time"

	"github.com/worksheetlab/server/internal/domain"
)

// Reading comprehension worksheets: a passage, a guided section of
// exactly 5 multiple choice plus 1 open-ended, and an independent section
// of exactly 11 multiple choice plus 1 open-ended. Choice cardinality is
// enforced explicitly on every item.
//
// The longer timeout and smaller retry budget reflect the much larger
// expected output compared to grammar.
func readingSpec() subjectSpec {
	return subjectSpec{
		subject:        domain.SubjectReading,
		timestampedKey: true,
		maxAttempts:    2,
		attemptTimeout: 120 * time.Second,
		maxTokens:      7000,
		buildPrompt:    buildReadingPrompt,
		validate:       validateReading,
	}
}

func buildReadingPrompt(p Params) (string, string) {
	system := "You are an experienced reading teacher writing comprehension worksheets. " +
		"Respond with a single JSON object and nothing else. No prose, no markdown fences."

	prompt := fmt.Sprintf(`Create a reading comprehension worksheet for grade %s about "%s".

Match the tone and difficulty of this example material:
---
%s
---

Return JSON with this exact structure:
{
  "title": string,
  "passage": string,
  "sections": [
    {"kind": "guided", "title": string, "questions": [...]},
    {"kind": "independent", "title": string, "questions": [...]}
  ]
}

Requirements:
- Write an original passage of 300-500 words appropriate for grade %s.
- The guided section has exactly 5 "multiple_choice" questions and exactly 1 "open_ended" question, in that order.
- The independent section has exactly 11 "multiple_choice" questions and exactly 1 "open_ended" question, in that order.
- Every multiple_choice question has exactly 4 choices with ids "a","b","c","d" and an "answer" field naming the correct id.
- Question objects: {"type": "multiple_choice", "prompt": string, "choices": [{"id": string, "text": string}], "answer": string} or {"type": "open_ended", "prompt": string}.`,
		p.GradeLevel, conceptOrTopic(p), p.StyleReference, p.GradeLevel)

	return system, prompt
}

func validateReading(content *domain.WorksheetContent, _ Params) error {
	if content.Passage == "" {
		return fmt.Errorf("missing passage")
	}

	guided := sectionsByKind(content, domain.SectionGuided)
	if len(guided) != 1 {
		return fmt.Errorf("want 1 guided section, got %d", len(guided))
	}
	counts := guided[0].Count()
	if counts.MultipleChoice != 5 {
		return fmt.Errorf("guided section has %d multiple choice questions, want exactly 5", counts.MultipleChoice)
	}
	if counts.OpenEnded != 1 {
		return fmt.Errorf("guided section has %d open-ended questions, want exactly 1", counts.OpenEnded)
	}
	if err := validateSectionQuestions(guided[0]); err != nil {
		return fmt.Errorf("guided section: %w", err)
	}

	independent := sectionsByKind(content, domain.SectionIndependent)
	if len(independent) != 1 {
		return fmt.Errorf("want 1 independent section, got %d", len(independent))
	}
	counts = independent[0].Count()
	if counts.MultipleChoice != 11 {
		return fmt.Errorf("independent section has %d multiple choice questions, want exactly 11", counts.MultipleChoice)
	}
	if counts.OpenEnded != 1 {
		return fmt.Errorf("independent section has %d open-ended questions, want exactly 1", counts.OpenEnded)
	}
	if err := validateSectionQuestions(independent[0]); err != nil {
		return fmt.Errorf("independent section: %w", err)
	}
	return nil
}
