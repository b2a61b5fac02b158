package generator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksheetlab/server/internal/ai/mock"
	"github.com/worksheetlab/server/internal/domain"
)

func TestRepairLineAnswer(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantIndex *int
		wantText  string
	}{
		{"correct index object", `{"line_index": 7}`, intPtr(7), ""},
		{"correct text object", `{"line_text": "The dog barked."}`, nil, "The dog barked."},
		{"array of objects", `[{"line_index": 3}, {"line_index": 9}]`, intPtr(3), ""},
		{"array of numbers", `[5, 6]`, intPtr(5), ""},
		{"bare string", `"She ran home."`, nil, "She ran home."},
		{"bare number", `12`, intPtr(12), ""},
		{"missing", ``, intPtr(0), ""},
		{"null", `null`, intPtr(0), ""},
		{"empty object", `{}`, intPtr(0), ""},
		{"empty array", `[]`, intPtr(0), ""},
		{"garbage", `true`, intPtr(0), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairLineAnswer(json.RawMessage(tt.raw))
			if tt.wantIndex != nil {
				require.NotNil(t, got.LineIndex)
				assert.Equal(t, *tt.wantIndex, *got.LineIndex)
			} else {
				assert.Nil(t, got.LineIndex)
			}
			assert.Equal(t, tt.wantText, got.LineText)
		})
	}
}

func TestRepairLineAnswer_Idempotent(t *testing.T) {
	inputs := []string{
		`{"line_index": 4}`,
		`{"line_text": "A quiet morning."}`,
		`[3]`,
		`"some line"`,
		`null`,
	}
	for _, in := range inputs {
		first := RepairLineAnswer(json.RawMessage(in))
		b, err := json.Marshal(first)
		require.NoError(t, err)
		second := RepairLineAnswer(b)
		assert.Equal(t, first, second, "repair of %s not idempotent", in)
	}
}

// staarContent builds a valid 9-item STAAR set over a passage of the
// given word count.
func staarContent(words int) domain.WorksheetContent {
	passage := strings.TrimSpace(strings.Repeat("word ", words))

	questions := mcQuestions(6)
	for i := range questions {
		questions[i].Tags = []string{"inference"}
	}

	questions = append(questions, domain.Question{
		Type:   domain.QuestionMultiSelect,
		Prompt: "Select TWO details that support the main idea.",
		Choices: []domain.Choice{
			{ID: "a", Text: "one"}, {ID: "b", Text: "two"},
			{ID: "c", Text: "three"}, {ID: "d", Text: "four"},
		},
		AnswerIDs: []string{"a", "c"},
		Tags:      []string{"text_evidence"},
	})
	questions = append(questions, domain.Question{
		Type:   domain.QuestionChooseLine,
		Prompt: "Which line shows the character's change of heart?",
		Line:   &domain.LineAnswer{LineIndex: intPtr(14)},
		Tags:   []string{"characterization"},
	})
	questions = append(questions, domain.Question{
		Type:   domain.QuestionShortResponse,
		Prompt: "Explain the theme using evidence from the passage.",
		Rubric: &domain.Rubric{
			MaxPoints: 2,
			PointAnchors: []string{
				"No understanding of the theme.",
				"Partial understanding with weak evidence.",
				"Clear theme statement supported by text evidence.",
			},
		},
		Tags: []string{"theme"},
	})

	return domain.WorksheetContent{
		Title:    "A Change of Heart",
		Passage:  passage,
		Sections: []domain.Section{{Kind: domain.SectionIndependent, Questions: questions}},
	}
}

func TestValidateSTAAR(t *testing.T) {
	params := Params{GradeLevel: "4", Genre: "fiction"}

	t.Run("accepts valid", func(t *testing.T) {
		assert.NoError(t, validateSTAAR(ptr(staarContent(250)), params))
	})

	t.Run("rejects short passage", func(t *testing.T) {
		assert.Error(t, validateSTAAR(ptr(staarContent(150)), params))
	})

	t.Run("rejects long passage", func(t *testing.T) {
		assert.Error(t, validateSTAAR(ptr(staarContent(400)), params))
	})

	t.Run("rejects wrong item count", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions = content.Sections[0].Questions[:8]
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects multi-select with one answer", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[6].AnswerIDs = []string{"a"}
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects multi-select with three answers", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[6].AnswerIDs = []string{"a", "b", "c"}
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects missing rubric", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[8].Rubric = nil
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects rubric without anchors", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[8].Rubric.PointAnchors = nil
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects untagged question", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[0].Tags = nil
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("rejects tag outside allowed set", func(t *testing.T) {
		content := staarContent(250)
		content.Sections[0].Questions[0].Tags = []string{"long_division"}
		assert.Error(t, validateSTAAR(&content, params))
	})

	t.Run("fiction tags rejected for nonfiction genre", func(t *testing.T) {
		content := staarContent(250)
		// "theme" is fiction-only; the short response carries it.
		assert.Error(t, validateSTAAR(&content, Params{GradeLevel: "4", Genre: "nonfiction"}))
	})
}

func TestGenerate_STAARRepairsArrayLineAnswer(t *testing.T) {
	content := staarContent(250)
	raw := mustJSON(t, content)
	// Sabotage the choose-line answer into the array shape the backend
	// sometimes emits; repair must normalize it before validation.
	raw = strings.Replace(raw, `"line":{"line_index":14}`, `"line":[{"line_index":14},{"line_index":2}]`, 1)
	require.Contains(t, raw, `"line":[`)

	provider := mock.New(raw)
	g, err := New(domain.SubjectSTAARReading, provider, testLogger())
	require.NoError(t, err)

	result, err := g.Generate(context.Background(), Params{
		Topic:      "A Change of Heart",
		GradeLevel: "4",
		Genre:      "fiction",
	})
	require.NoError(t, err)

	var line *domain.LineAnswer
	for _, q := range result.Content.Sections[0].Questions {
		if q.Type == domain.QuestionChooseLine {
			line = q.Line
		}
	}
	require.NotNil(t, line)
	require.NotNil(t, line.LineIndex)
	assert.Equal(t, 14, *line.LineIndex)

	assert.True(t, strings.HasPrefix(result.FileKey, "staar-"))
}

func intPtr(n int) *int { return &n }
