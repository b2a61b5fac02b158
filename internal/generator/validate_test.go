package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksheetlab/server/internal/ai/mock"
	"github.com/worksheetlab/server/internal/domain"
)

func TestValidateReading_RejectsWrongCounts(t *testing.T) {
	// Sweep a grid of wrong counts around the required cardinalities and
	// assert every malformed candidate is rejected. The underlying risk is
	// off-by-one acceptance at the boundaries.
	cases := 0
	for guidedMC := 3; guidedMC <= 7; guidedMC++ {
		for guidedOE := 0; guidedOE <= 2; guidedOE++ {
			for indepMC := 9; indepMC <= 13; indepMC++ {
				for indepOE := 0; indepOE <= 2; indepOE++ {
					if guidedMC == 5 && guidedOE == 1 && indepMC == 11 && indepOE == 1 {
						continue // the one well-formed combination
					}
					cases++
					content := domain.WorksheetContent{
						Title:   "t",
						Passage: "p",
						Sections: []domain.Section{
							{Kind: domain.SectionGuided, Questions: appendOpenEnded(mcQuestions(guidedMC), guidedOE)},
							{Kind: domain.SectionIndependent, Questions: appendOpenEnded(mcQuestions(indepMC), indepOE)},
						},
					}
					name := fmt.Sprintf("g%d_%d_i%d_%d", guidedMC, guidedOE, indepMC, indepOE)
					t.Run(name, func(t *testing.T) {
						assert.Error(t, validateReading(&content, Params{}))
					})
				}
			}
		}
	}
	require.GreaterOrEqual(t, cases, 100)

	assert.NoError(t, validateReading(ptr(validReadingContent()), Params{}))
}

func TestValidateReading_ChoiceCardinality(t *testing.T) {
	content := validReadingContent()
	content.Sections[1].Questions[3].Choices = content.Sections[1].Questions[3].Choices[:3]
	err := validateReading(&content, Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 choices")
}

func TestValidateReading_AnswerMustMatchAChoice(t *testing.T) {
	content := validReadingContent()
	content.Sections[0].Questions[0].Answer = "z"
	assert.Error(t, validateReading(&content, Params{}))
}

func TestValidateReading_MissingPassage(t *testing.T) {
	content := validReadingContent()
	content.Passage = ""
	assert.Error(t, validateReading(&content, Params{}))
}

func TestValidateGrammar(t *testing.T) {
	valid := func() domain.WorksheetContent {
		return domain.WorksheetContent{
			Title: "Commas",
			Sections: []domain.Section{
				{Kind: domain.SectionGuided, Questions: append(mcQuestions(6), openEnded())},
				{Kind: domain.SectionIndependent, Questions: mcQuestions(6)},
				{Kind: domain.SectionIndependent, Questions: mcQuestions(7)},
			},
		}
	}

	t.Run("accepts valid", func(t *testing.T) {
		assert.NoError(t, validateGrammar(ptr(valid()), Params{}))
	})

	t.Run("accepts extra guided MC", func(t *testing.T) {
		content := valid()
		content.Sections[0].Questions = append(mcQuestions(8), openEnded())
		assert.NoError(t, validateGrammar(&content, Params{}))
	})

	t.Run("rejects short guided section", func(t *testing.T) {
		content := valid()
		content.Sections[0].Questions = append(mcQuestions(5), openEnded())
		assert.Error(t, validateGrammar(&content, Params{}))
	})

	t.Run("rejects missing open-ended", func(t *testing.T) {
		content := valid()
		content.Sections[0].Questions = mcQuestions(7)
		assert.Error(t, validateGrammar(&content, Params{}))
	})

	t.Run("rejects single independent section", func(t *testing.T) {
		content := valid()
		content.Sections = content.Sections[:2]
		assert.Error(t, validateGrammar(&content, Params{}))
	})

	t.Run("rejects short independent section", func(t *testing.T) {
		content := valid()
		content.Sections[2].Questions = mcQuestions(5)
		assert.Error(t, validateGrammar(&content, Params{}))
	})
}

func TestValidateSocialStudies(t *testing.T) {
	valid := func() domain.WorksheetContent {
		return domain.WorksheetContent{
			Title: "The Alamo",
			Sections: []domain.Section{
				{
					Kind:      domain.SectionGuided,
					Questions: append(mcQuestions(8), openEnded()),
					Timeline: &domain.TimelineItem{
						Instructions: "Put these events in order.",
						Entries: []domain.TimelineEntry{
							{Date: "1835", Event: "Siege of Bexar"},
							{Date: "1836", Event: "Battle of the Alamo"},
							{Date: "1836", Event: "Battle of San Jacinto"},
						},
					},
				},
				{Kind: domain.SectionIndependent, Questions: mcQuestions(6)},
			},
		}
	}

	t.Run("accepts valid", func(t *testing.T) {
		assert.NoError(t, validateSocialStudies(ptr(valid()), Params{}))
	})

	t.Run("rejects wrong guided MC count", func(t *testing.T) {
		content := valid()
		content.Sections[0].Questions = append(mcQuestions(7), openEnded())
		assert.Error(t, validateSocialStudies(&content, Params{}))
	})

	t.Run("rejects missing timeline", func(t *testing.T) {
		content := valid()
		content.Sections[0].Timeline = nil
		assert.Error(t, validateSocialStudies(&content, Params{}))
	})

	t.Run("rejects single-entry timeline", func(t *testing.T) {
		content := valid()
		content.Sections[0].Timeline.Entries = content.Sections[0].Timeline.Entries[:1]
		assert.Error(t, validateSocialStudies(&content, Params{}))
	})

	t.Run("rejects short independent section", func(t *testing.T) {
		content := valid()
		content.Sections[1].Questions = mcQuestions(4)
		assert.Error(t, validateSocialStudies(&content, Params{}))
	})
}

func TestGenerate_GrammarEndToEnd(t *testing.T) {
	content := domain.WorksheetContent{
		Title: "Commas in a Series",
		Sections: []domain.Section{
			{Kind: domain.SectionGuided, Questions: append(mcQuestions(6), openEnded())},
			{Kind: domain.SectionIndependent, Questions: mcQuestions(6)},
			{Kind: domain.SectionIndependent, Questions: mcQuestions(6)},
		},
	}
	provider := mock.New("```json\n" + mustJSON(t, content) + "\n```")
	g, err := New(domain.SubjectGrammar, provider, testLogger())
	require.NoError(t, err)

	params := testParams()
	params.Concept = "Commas in a Series"
	result, err := g.Generate(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "commas-in-a-series-grade-4-worksheet", result.FileKey)
}

func appendOpenEnded(qs []domain.Question, n int) []domain.Question {
	for i := 0; i < n; i++ {
		qs = append(qs, openEnded())
	}
	return qs
}

func ptr(c domain.WorksheetContent) *domain.WorksheetContent { return &c }
