package generator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/worksheetlab/server/internal/domain"
)

// STAAR reading practice: one passage of 200-350 words and a fixed
// 9-item set of 8 objective questions (a mix of multiple choice,
// multi-select, and choose-a-line) plus 1 short constructed response
// with a rubric. Every question carries at least one taxonomy tag from
// the grade/genre allowed set.
//
// STAAR output goes through a tolerant repair pass before strict
// validation: the generation backend is inconsistent about the
// choose-a-line answer shape, and repair normalizes it rather than
// burning a retry.
func staarSpec() subjectSpec {
	return subjectSpec{
		subject:        domain.SubjectSTAARReading,
		keyPrefix:      "staar",
		timestampedKey: true,
		maxAttempts:    2,
		attemptTimeout: 150 * time.Second,
		maxTokens:      8000,
		buildPrompt:    buildSTAARPrompt,
		parse:          parseSTAARContent,
		validate:       validateSTAAR,
	}
}

const (
	staarPassageMinWords = 200
	staarPassageMaxWords = 350
	staarItemCount       = 9
	staarObjectiveItems  = 8
)

func buildSTAARPrompt(p Params) (string, string) {
	system := "You are a Texas reading teacher writing STAAR-style practice assessments. " +
		"Respond with a single JSON object and nothing else. No prose, no markdown fences."

	genre := p.Genre
	if genre == "" {
		genre = "fiction"
	}
	tags := allowedSkillTags(p.GradeLevel, genre)

	prompt := fmt.Sprintf(`Create a STAAR-style reading practice set for grade %s: a %s passage about "%s".

Match the tone and difficulty of this example material:
---
%s
---

Return JSON with this exact structure:
{
  "title": string,
  "passage": string,
  "sections": [{"kind": "independent", "questions": [...]}]
}

Requirements:
- The passage is an original %s text of 200-350 words, written with numbered lines in mind (each sentence on its own line).
- Exactly 9 questions: 8 objective questions mixing "multiple_choice", "multi_select" (exactly 2 correct ids), and "choose_line" types, then 1 "short_response" question.
- Every multiple_choice and multi_select question has exactly 4 choices with ids "a","b","c","d".
- choose_line answers are a single object: {"line_index": number} or {"line_text": string}. Never an array.
- The short_response question carries a rubric: {"max_points": number, "point_anchors": [string, ...]} where anchor i describes what earns i points.
- Every question has a "tags" array with at least one of: %s.`,
		p.GradeLevel, genre, conceptOrTopic(p), p.StyleReference, genre, strings.Join(tags, ", "))

	return system, prompt
}

// rawSTAARQuestion tolerates malformed answer shapes so repair can run
// before strict validation.
type rawSTAARQuestion struct {
	Type      domain.QuestionType `json:"type"`
	Prompt    string              `json:"prompt"`
	Choices   []domain.Choice     `json:"choices"`
	Answer    string              `json:"answer"`
	AnswerIDs []string            `json:"answer_ids"`
	Line      json.RawMessage     `json:"line"`
	Rubric    *domain.Rubric      `json:"rubric"`
	Tags      []string            `json:"tags"`
}

type rawSTAARSection struct {
	Kind      domain.SectionKind `json:"kind"`
	Title     string             `json:"title"`
	Questions []rawSTAARQuestion `json:"questions"`
}

type rawSTAARContent struct {
	Title    string            `json:"title"`
	Passage  string            `json:"passage"`
	Sections []rawSTAARSection `json:"sections"`
}

// parseSTAARContent unmarshals the model output into a tolerant
// intermediate form and repairs choose-a-line answers, then produces the
// strict domain representation for validation.
func parseSTAARContent(raw string) (*domain.WorksheetContent, error) {
	var rc rawSTAARContent
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, err
	}

	content := &domain.WorksheetContent{
		Title:   rc.Title,
		Passage: rc.Passage,
	}
	for _, rs := range rc.Sections {
		sec := domain.Section{Kind: rs.Kind, Title: rs.Title}
		for _, rq := range rs.Questions {
			q := domain.Question{
				Type:      rq.Type,
				Prompt:    rq.Prompt,
				Choices:   rq.Choices,
				Answer:    rq.Answer,
				AnswerIDs: rq.AnswerIDs,
				Rubric:    rq.Rubric,
				Tags:      rq.Tags,
			}
			if rq.Type == domain.QuestionChooseLine {
				line := RepairLineAnswer(rq.Line)
				q.Line = &line
			}
			sec.Questions = append(sec.Questions, q)
		}
		content.Sections = append(content.Sections, sec)
	}
	return content, nil
}

// RepairLineAnswer normalizes a choose-a-line answer of any malformed
// shape (array, bare string, bare number, missing) into a single object
// referencing a line index or literal line text, defaulting to line 0
// when nothing better is available. Repairing an already-correct object
// is a no-op.
func RepairLineAnswer(raw json.RawMessage) domain.LineAnswer {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return lineZero()
	}

	switch trimmed[0] {
	case '{':
		var la domain.LineAnswer
		if err := json.Unmarshal(raw, &la); err == nil {
			if la.LineIndex != nil || la.LineText != "" {
				return la
			}
		}
		return lineZero()
	case '[':
		// Take the first usable element of the array form.
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err == nil && len(elems) > 0 {
			return RepairLineAnswer(elems[0])
		}
		return lineZero()
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return domain.LineAnswer{LineText: s}
		}
		return lineZero()
	default:
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return domain.LineAnswer{LineIndex: &n}
		}
		return lineZero()
	}
}

func lineZero() domain.LineAnswer {
	zero := 0
	return domain.LineAnswer{LineIndex: &zero}
}

func validateSTAAR(content *domain.WorksheetContent, p Params) error {
	words := len(strings.Fields(content.Passage))
	if words < staarPassageMinWords || words > staarPassageMaxWords {
		return fmt.Errorf("passage has %d words, want %d-%d", words, staarPassageMinWords, staarPassageMaxWords)
	}

	if len(content.Sections) != 1 {
		return fmt.Errorf("want 1 question section, got %d", len(content.Sections))
	}
	sec := &content.Sections[0]
	if len(sec.Questions) != staarItemCount {
		return fmt.Errorf("want %d questions, got %d", staarItemCount, len(sec.Questions))
	}

	counts := sec.Count()
	objective := counts.MultipleChoice + counts.MultiSelect + counts.ChooseLine
	if objective != staarObjectiveItems {
		return fmt.Errorf("want %d objective questions, got %d", staarObjectiveItems, objective)
	}
	if counts.ShortResponse != 1 {
		return fmt.Errorf("want exactly 1 short response question, got %d", counts.ShortResponse)
	}
	if err := validateSectionQuestions(sec); err != nil {
		return err
	}

	genre := p.Genre
	if genre == "" {
		genre = "fiction"
	}
	allowed := make(map[string]bool)
	for _, tag := range allowedSkillTags(p.GradeLevel, genre) {
		allowed[tag] = true
	}
	for i := range sec.Questions {
		if !hasAllowedTag(sec.Questions[i].Tags, allowed) {
			return fmt.Errorf("question %d carries no taxonomy tag from the allowed set", i+1)
		}
	}
	return nil
}

func hasAllowedTag(tags []string, allowed map[string]bool) bool {
	for _, tag := range tags {
		if allowed[tag] {
			return true
		}
	}
	return false
}

// allowedSkillTags returns the taxonomy tags a question may carry for a
// grade band and genre.
func allowedSkillTags(gradeLevel, genre string) []string {
	tags := []string{
		"inference",
		"main_idea",
		"text_evidence",
		"vocabulary_in_context",
		"summary",
		"author_purpose",
	}

	switch genre {
	case "poetry":
		tags = append(tags, "figurative_language", "structure_and_form")
	case "nonfiction":
		tags = append(tags, "text_structure", "fact_and_opinion")
	case "drama":
		tags = append(tags, "dialogue", "stage_directions")
	default: // fiction
		tags = append(tags, "theme", "plot_elements", "characterization")
	}

	// Upper grades add analysis-level skills.
	switch gradeLevel {
	case "6", "7", "8":
		tags = append(tags, "media_literacy", "multiple_texts")
	}
	return tags
}
