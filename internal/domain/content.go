// This file defines the structured worksheet content schema shared by all
// subject generators. Question variants form a closed tagged union: the
// Type field selects which optional fields are meaningful, and structural
// validation in the generator package enforces the shape per subject.
package domain

// QuestionType tags a question variant.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultiSelect    QuestionType = "multi_select"
	QuestionChooseLine     QuestionType = "choose_line"
	QuestionOpenEnded      QuestionType = "open_ended"
	QuestionShortResponse  QuestionType = "short_response"
)

// Valid checks if the question type is a known variant.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionMultiSelect, QuestionChooseLine,
		QuestionOpenEnded, QuestionShortResponse:
		return true
	default:
		return false
	}
}

// Objective reports whether the variant has a machine-checkable answer.
func (t QuestionType) Objective() bool {
	switch t {
	case QuestionMultipleChoice, QuestionMultiSelect, QuestionChooseLine:
		return true
	default:
		return false
	}
}

// SectionKind distinguishes guided practice from independent practice.
type SectionKind string

const (
	SectionGuided      SectionKind = "guided"
	SectionIndependent SectionKind = "independent"
)

// WorksheetContent is the validated content of one worksheet.
type WorksheetContent struct {
	Title    string    `json:"title"`
	Passage  string    `json:"passage,omitempty"` // reading and STAAR subjects
	Sections []Section `json:"sections"`
}

// Section is an ordered group of questions within a worksheet.
type Section struct {
	Kind      SectionKind   `json:"kind"`
	Title     string        `json:"title,omitempty"`
	Questions []Question    `json:"questions"`
	Timeline  *TimelineItem `json:"timeline,omitempty"` // social studies only
}

// Question is one item. Which optional fields are set depends on Type:
//
//	multiple_choice: Choices (4), Answer
//	multi_select:    Choices (4), AnswerIDs (exactly 2)
//	choose_line:     Line
//	open_ended:      prompt only
//	short_response:  Rubric
//
// Tags carry STAAR taxonomy skill tags and are empty for other subjects.
type Question struct {
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Choices   []Choice     `json:"choices,omitempty"`
	Answer    string       `json:"answer,omitempty"`
	AnswerIDs []string     `json:"answer_ids,omitempty"`
	Line      *LineAnswer  `json:"line,omitempty"`
	Rubric    *Rubric      `json:"rubric,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
}

// Choice is one answer option for a choice-bearing question.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LineAnswer references a single passage line, by index or literal text.
// It is always a single object, never an array; the generator's repair
// pass normalizes malformed shapes into this form before validation.
type LineAnswer struct {
	LineIndex *int   `json:"line_index,omitempty"`
	LineText  string `json:"line_text,omitempty"`
}

// Rubric scores a short constructed response.
type Rubric struct {
	MaxPoints    int      `json:"max_points"`
	PointAnchors []string `json:"point_anchors"` // ordered, index = points awarded
}

// TimelineItem is a single timeline-ordering exercise: students put the
// dated entries in chronological order.
type TimelineItem struct {
	Instructions string          `json:"instructions,omitempty"`
	Entries      []TimelineEntry `json:"entries"`
}

// TimelineEntry is one dated event within a timeline item.
type TimelineEntry struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// QuestionCounts tallies question types within a section.
type QuestionCounts struct {
	MultipleChoice int
	MultiSelect    int
	ChooseLine     int
	OpenEnded      int
	ShortResponse  int
}

// Count tallies the question variants in a section.
func (s *Section) Count() QuestionCounts {
	var c QuestionCounts
	for _, q := range s.Questions {
		switch q.Type {
		case QuestionMultipleChoice:
			c.MultipleChoice++
		case QuestionMultiSelect:
			c.MultiSelect++
		case QuestionChooseLine:
			c.ChooseLine++
		case QuestionOpenEnded:
			c.OpenEnded++
		case QuestionShortResponse:
			c.ShortResponse++
		}
	}
	return c
}
