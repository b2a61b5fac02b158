package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksheetlab/server/internal/ai/mock"
	"github.com/worksheetlab/server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testParams() Params {
	return Params{
		Topic:          "The Water Cycle",
		Concept:        "main idea",
		GradeLevel:     "4",
		StyleReference: "Example: Read the passage and answer the questions below.",
	}
}

// mcQuestions builds n well-formed multiple choice questions.
func mcQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Type:   domain.QuestionMultipleChoice,
			Prompt: "Which answer is correct?",
			Choices: []domain.Choice{
				{ID: "a", Text: "first"},
				{ID: "b", Text: "second"},
				{ID: "c", Text: "third"},
				{ID: "d", Text: "fourth"},
			},
			Answer: "a",
		}
	}
	return qs
}

func openEnded() domain.Question {
	return domain.Question{Type: domain.QuestionOpenEnded, Prompt: "Explain your thinking."}
}

// validReadingContent satisfies the reading schema: guided 5 MC + 1 OE,
// independent 11 MC + 1 OE, 4 choices everywhere.
func validReadingContent() domain.WorksheetContent {
	return domain.WorksheetContent{
		Title:   "The Water Cycle",
		Passage: "Water moves in a cycle. It evaporates, condenses, and falls as rain.",
		Sections: []domain.Section{
			{Kind: domain.SectionGuided, Questions: append(mcQuestions(5), openEnded())},
			{Kind: domain.SectionIndependent, Questions: append(mcQuestions(11), openEnded())},
		},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestGenerate_AcceptsWellFormedFirstAttempt(t *testing.T) {
	provider := mock.New(mustJSON(t, validReadingContent()))
	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	result, err := g.Generate(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Calls)
	assert.Equal(t, "The Water Cycle", result.Content.Title)
	assert.Contains(t, result.FileKey, "main-idea")
	assert.True(t, strings.HasSuffix(result.FileKey, "-worksheet"))
}

func TestGenerate_RetriesOnMalformedThenSucceeds(t *testing.T) {
	bad := validReadingContent()
	bad.Sections[0].Questions = append(mcQuestions(4), openEnded()) // 4 MC, want 5

	provider := mock.New(mustJSON(t, bad), mustJSON(t, validReadingContent()))
	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	result, err := g.Generate(context.Background(), testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls)
	assert.NotEmpty(t, result.FileKey)
}

func TestGenerate_TemperatureRisesAcrossAttempts(t *testing.T) {
	provider := mock.New("not json at all", mustJSON(t, validReadingContent()))
	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testParams())
	require.NoError(t, err)

	require.Len(t, provider.Requests, 2)
	assert.InDelta(t, 0.4, provider.Requests[0].Temperature, 1e-9)
	assert.InDelta(t, 0.5, provider.Requests[1].Temperature, 1e-9)
}

func TestGenerate_TerminalAfterRetriesExhausted(t *testing.T) {
	provider := mock.New("{not valid json")
	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), testParams())
	require.Error(t, err)
	assert.Equal(t, domain.EGENERATION, domain.ErrorCode(err))
	assert.Equal(t, 2, provider.Calls) // reading budget is 2 attempts
}

func TestGenerate_CancellationIsNotRetried(t *testing.T) {
	provider := mock.New(mustJSON(t, validReadingContent()))
	provider.Delay = 5 * time.Second

	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = g.Generate(ctx, testParams())
	require.Error(t, err)
	assert.Equal(t, domain.ECANCELLED, domain.ErrorCode(err))
	assert.Equal(t, 1, provider.Calls)
}

func TestGenerate_AttemptTimeoutIsRetried(t *testing.T) {
	provider := mock.New(mustJSON(t, validReadingContent()))
	provider.Delay = 30 * time.Millisecond

	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)
	g.spec.attemptTimeout = 5 * time.Millisecond

	_, err = g.Generate(context.Background(), testParams())
	require.Error(t, err)
	// Timed out on both attempts, then escalated as generation failure.
	assert.Equal(t, domain.EGENERATION, domain.ErrorCode(err))
	assert.Equal(t, 2, provider.Calls)
}

func TestGenerate_UnknownSubject(t *testing.T) {
	_, err := New(domain.SubjectType("calculus"), mock.New(), testLogger())
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"plain fences", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"fence glued to content", "```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestFileKey_TimestampedSubjectsDiffer(t *testing.T) {
	provider := mock.New(
		mustJSON(t, validReadingContent()),
		mustJSON(t, validReadingContent()),
	)
	g, err := New(domain.SubjectReading, provider, testLogger())
	require.NoError(t, err)

	base := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	g.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}

	first, err := g.Generate(context.Background(), testParams())
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), testParams())
	require.NoError(t, err)

	assert.NotEqual(t, first.FileKey, second.FileKey)
}

func TestFileKey_GrammarIsDeterministic(t *testing.T) {
	key1 := DeriveFileKey("", "Subject-Verb Agreement", "4", nil)
	key2 := DeriveFileKey("", "Subject-Verb Agreement", "4", nil)
	assert.Equal(t, key1, key2)
	assert.Equal(t, "subject-verb-agreement-grade-4-worksheet", key1)
}

func TestDeriveFileKey(t *testing.T) {
	ts := time.UnixMilli(1712345678901).UTC()

	tests := []struct {
		name    string
		prefix  string
		concept string
		grade   string
		ts      *time.Time
		want    string
	}{
		{"plain", "", "Main Idea", "3", nil, "main-idea-grade-3-worksheet"},
		{"prefix and timestamp", "staar", "Lost Dog!", "5", &ts, "staar-lost-dog-grade-5-1712345678901-worksheet"},
		{"diacritics folded", "", "Poésie Française", "6", nil, "poesie-francaise-grade-6-worksheet"},
		{"empty concept", "", "  ", "4", nil, "untitled-grade-4-worksheet"},
		{"messy grade", "", "fractions", "4th Grade", nil, "fractions-grade-4th-grade-worksheet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveFileKey(tt.prefix, tt.concept, tt.grade, tt.ts))
		})
	}
}
