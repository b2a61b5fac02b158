package generator

import (
	"fmt"

	"github.com/worksheetlab/server/internal/domain"
)

// choiceCardinality is the required number of options on every
// choice-bearing question, across all subjects.
const choiceCardinality = 4

// multiSelectAnswers is the required number of correct IDs on a
// multi-select question.
const multiSelectAnswers = 2

// sectionsByKind splits content sections preserving order.
func sectionsByKind(content *domain.WorksheetContent, kind domain.SectionKind) []*domain.Section {
	var out []*domain.Section
	for i := range content.Sections {
		if content.Sections[i].Kind == kind {
			out = append(out, &content.Sections[i])
		}
	}
	return out
}

// validateQuestionShape checks the per-variant invariants of a single
// question: choice cardinality, answer shape, and prompt presence.
func validateQuestionShape(q *domain.Question) error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if q.Prompt == "" {
		return fmt.Errorf("%s question has empty prompt", q.Type)
	}

	switch q.Type {
	case domain.QuestionMultipleChoice:
		if len(q.Choices) != choiceCardinality {
			return fmt.Errorf("multiple choice question has %d choices, want %d", len(q.Choices), choiceCardinality)
		}
		if !choiceExists(q.Choices, q.Answer) {
			return fmt.Errorf("multiple choice answer %q does not match any choice", q.Answer)
		}
	case domain.QuestionMultiSelect:
		if len(q.Choices) != choiceCardinality {
			return fmt.Errorf("multi-select question has %d choices, want %d", len(q.Choices), choiceCardinality)
		}
		if len(q.AnswerIDs) != multiSelectAnswers {
			return fmt.Errorf("multi-select question has %d correct ids, want exactly %d", len(q.AnswerIDs), multiSelectAnswers)
		}
		for _, id := range q.AnswerIDs {
			if !choiceExists(q.Choices, id) {
				return fmt.Errorf("multi-select answer %q does not match any choice", id)
			}
		}
	case domain.QuestionChooseLine:
		if q.Line == nil {
			return fmt.Errorf("choose-a-line question has no line answer")
		}
		if q.Line.LineIndex == nil && q.Line.LineText == "" {
			return fmt.Errorf("choose-a-line answer sets neither line index nor line text")
		}
	case domain.QuestionShortResponse:
		if q.Rubric == nil {
			return fmt.Errorf("short response question has no rubric")
		}
		if q.Rubric.MaxPoints <= 0 {
			return fmt.Errorf("rubric max points must be positive, got %d", q.Rubric.MaxPoints)
		}
		if len(q.Rubric.PointAnchors) == 0 {
			return fmt.Errorf("rubric has no point anchors")
		}
	}
	return nil
}

// validateSectionQuestions runs per-question shape checks over a section.
func validateSectionQuestions(sec *domain.Section) error {
	for i := range sec.Questions {
		if err := validateQuestionShape(&sec.Questions[i]); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func choiceExists(choices []domain.Choice, id string) bool {
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
