// Package generator implements the worksheet content generation pipeline:
// prompt construction, model invocation with per-attempt timeouts,
// code-fence stripping, JSON parsing, structural repair, strict schema
// validation, and file-key derivation.
//
// All four subject generators share one pipeline; subjects differ only in
// their prompt, schema validation, retry budget, and timeout.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/worksheetlab/server/internal/ai"
	"github.com/worksheetlab/server/internal/domain"
)

// Params are the request parameters for one worksheet.
type Params struct {
	Topic          string
	Concept        string // optional; falls back to Topic for key derivation
	Genre          string // STAAR reading only
	GradeLevel     string
	StyleReference string // example text steering tone and difficulty
}

// Result is a validated worksheet plus its derived file key.
type Result struct {
	Content domain.WorksheetContent
	FileKey string
	Usage   ai.UsageInfo
}

// subjectSpec declares how one subject's generator behaves. The pipeline
// is shared; these are the only per-subject knobs.
type subjectSpec struct {
	subject        domain.SubjectType
	keyPrefix      string // optional leading token in the file key
	timestampedKey bool   // reading and STAAR keys embed a ms timestamp
	maxAttempts    int
	attemptTimeout time.Duration
	maxTokens      int
	buildPrompt    func(Params) (system, prompt string)
	parse          func(raw string) (*domain.WorksheetContent, error) // nil: plain JSON unmarshal
	validate       func(*domain.WorksheetContent, Params) error
}

// Temperature schedule: start conservative, diversify on retries.
const (
	baseTemperature = 0.4
	temperatureStep = 0.1
)

// Generator runs the generation pipeline for one subject.
type Generator struct {
	spec     subjectSpec
	provider ai.TextProvider
	logger   *slog.Logger
	now      func() time.Time
}

func newGenerator(spec subjectSpec, provider ai.TextProvider, logger *slog.Logger) *Generator {
	return &Generator{
		spec:     spec,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// New creates the generator for a subject, or an error for unknown subjects.
func New(subject domain.SubjectType, provider ai.TextProvider, logger *slog.Logger) (*Generator, error) {
	switch subject {
	case domain.SubjectGrammar:
		return newGenerator(grammarSpec(), provider, logger), nil
	case domain.SubjectReading:
		return newGenerator(readingSpec(), provider, logger), nil
	case domain.SubjectSocialStudies:
		return newGenerator(socialStudiesSpec(), provider, logger), nil
	case domain.SubjectSTAARReading:
		return newGenerator(staarSpec(), provider, logger), nil
	default:
		return nil, fmt.Errorf("unknown subject type %q", subject)
	}
}

// Subject returns the subject this generator produces.
func (g *Generator) Subject() domain.SubjectType {
	return g.spec.subject
}

// Generate runs the pipeline until a candidate validates or the attempt
// budget is exhausted. Structural and timeout failures retry with a
// raised sampling temperature; cancellation aborts immediately and is
// never retried.
func (g *Generator) Generate(ctx context.Context, params Params) (*Result, error) {
	op := fmt.Sprintf("generator.%s", g.spec.subject)

	var lastErr error
	for attempt := 0; attempt < g.spec.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, domain.Cancelled(op)
		}

		result, err := g.runAttempt(ctx, params, attempt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, domain.Cancelled(op)
		}

		lastErr = err
		g.logger.Warn("generation attempt failed",
			"subject", g.spec.subject,
			"attempt", attempt+1,
			"max_attempts", g.spec.maxAttempts,
			"error", err,
		)
	}

	return nil, domain.GenerationFailed(lastErr, op, g.spec.maxAttempts)
}

// runAttempt executes one bounded attempt: model call, fence stripping,
// parse, repair (inside spec.parse where applicable), validate, key.
func (g *Generator) runAttempt(ctx context.Context, params Params, attempt int) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.spec.attemptTimeout)
	defer cancel()

	system, prompt := g.spec.buildPrompt(params)
	completion, err := g.provider.Complete(attemptCtx, ai.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: temperatureForAttempt(attempt),
		MaxTokens:   g.spec.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt timed out after %s: %w", g.spec.attemptTimeout, ai.ETimeout)
		}
		return nil, err
	}

	raw := StripCodeFences(completion.Text)

	var content *domain.WorksheetContent
	if g.spec.parse != nil {
		content, err = g.spec.parse(raw)
	} else {
		content = &domain.WorksheetContent{}
		err = json.Unmarshal([]byte(raw), content)
	}
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	if err := g.spec.validate(content, params); err != nil {
		return nil, fmt.Errorf("structural validation: %w", err)
	}

	return &Result{
		Content: *content,
		FileKey: g.fileKey(params),
		Usage:   completion.Usage,
	}, nil
}

// fileKey derives the external handle for a generated worksheet.
func (g *Generator) fileKey(params Params) string {
	concept := params.Concept
	if concept == "" {
		concept = params.Topic
	}
	var ts *time.Time
	if g.spec.timestampedKey {
		now := g.now()
		ts = &now
	}
	return DeriveFileKey(g.spec.keyPrefix, concept, params.GradeLevel, ts)
}

// temperatureForAttempt raises sampling temperature slightly on each
// retry to diversify output (0.4, 0.5, 0.6, ...).
func temperatureForAttempt(attempt int) float64 {
	return baseTemperature + temperatureStep*float64(attempt)
}

// StripCodeFences removes leading/trailing markdown code-fence markers
// that models habitually wrap JSON output in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence ("json", "JSON", ...)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 8 && !strings.ContainsAny(firstLine, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
