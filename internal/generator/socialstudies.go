package generator

import (
	"fmt"
	"time"

	"github.com/worksheetlab/server/internal/domain"
)

// Social studies worksheets: a guided section of exactly 8 multiple
// choice, at least one open-ended question, and exactly one timeline
// item, followed by an independent section of at least 6 multiple choice.
func socialStudiesSpec() subjectSpec {
	return subjectSpec{
		subject:        domain.SubjectSocialStudies,
		timestampedKey: false,
		maxAttempts:    3,
		attemptTimeout: 60 * time.Second,
		maxTokens:      4000,
		buildPrompt:    buildSocialStudiesPrompt,
		validate:       validateSocialStudies,
	}
}

func buildSocialStudiesPrompt(p Params) (string, string) {
	system := "You are an experienced social studies teacher writing practice worksheets. " +
		"Respond with a single JSON object and nothing else. No prose, no markdown fences."

	prompt := fmt.Sprintf(`Create a social studies worksheet for grade %s on the topic "%s".

Match the tone and difficulty of this example material:
---
%s
---

Return JSON with this exact structure:
{
  "title": string,
  "sections": [
    {"kind": "guided", "title": string, "questions": [...], "timeline": {"instructions": string, "entries": [{"date": string, "event": string}]}},
    {"kind": "independent", "title": string, "questions": [...]}
  ]
}

Requirements:
- The guided section has exactly 8 "multiple_choice" questions, at least 1 "open_ended" question, and one "timeline" exercise with 4-6 dated entries for students to put in order.
- The independent section has at least 6 "multiple_choice" questions.
- Every multiple_choice question has exactly 4 choices with ids "a","b","c","d" and an "answer" field naming the correct id.
- Question objects: {"type": "multiple_choice", "prompt": string, "choices": [{"id": string, "text": string}], "answer": string} or {"type": "open_ended", "prompt": string}.`,
		p.GradeLevel, conceptOrTopic(p), p.StyleReference)

	return system, prompt
}

func validateSocialStudies(content *domain.WorksheetContent, _ Params) error {
	guided := sectionsByKind(content, domain.SectionGuided)
	if len(guided) != 1 {
		return fmt.Errorf("want 1 guided section, got %d", len(guided))
	}
	counts := guided[0].Count()
	if counts.MultipleChoice != 8 {
		return fmt.Errorf("guided section has %d multiple choice questions, want exactly 8", counts.MultipleChoice)
	}
	if counts.OpenEnded < 1 {
		return fmt.Errorf("guided section has no open-ended question, want at least 1")
	}
	if guided[0].Timeline == nil || len(guided[0].Timeline.Entries) < 2 {
		return fmt.Errorf("guided section needs one timeline exercise with at least 2 entries")
	}
	if err := validateSectionQuestions(guided[0]); err != nil {
		return fmt.Errorf("guided section: %w", err)
	}

	independent := sectionsByKind(content, domain.SectionIndependent)
	if len(independent) != 1 {
		return fmt.Errorf("want 1 independent section, got %d", len(independent))
	}
	if counts := independent[0].Count(); counts.MultipleChoice < 6 {
		return fmt.Errorf("independent section has %d multiple choice questions, want at least 6", counts.MultipleChoice)
	}
	if err := validateSectionQuestions(independent[0]); err != nil {
		return fmt.Errorf("independent section: %w", err)
	}
	return nil
}
