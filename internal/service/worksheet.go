package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/ai"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/generator"
	"github.com/worksheetlab/server/internal/render"
	"github.com/worksheetlab/server/internal/storage"
)

const maxWorksheetsPerRequest = 3

// PendingWorksheets holds generated-but-unsaved worksheets.
type PendingWorksheets interface {
	Put(ctx context.Context, ws *domain.Worksheet) error
	Get(ctx context.Context, ownerID uuid.UUID, fileKey string) (*domain.Worksheet, error)
	Delete(ctx context.Context, ownerID uuid.UUID, fileKey string) error
}

// WorksheetStore persists saved worksheets.
type WorksheetStore interface {
	Insert(ctx context.Context, ws *domain.Worksheet) error
	GetByFileKey(ctx context.Context, ownerID uuid.UUID, fileKey string) (*domain.Worksheet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.Worksheet, error)
}

// Gate is the quota surface the worksheet service consumes.
type Gate interface {
	Authorize(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (domain.GateDecision, error)
	Commit(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind, ref string, decision domain.GateDecision) error
	Peek(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (bool, error)
}

// GenerationMetrics observes generation pipeline outcomes.
type GenerationMetrics interface {
	GenerationObserved(subject, outcome string, seconds float64)
	PDFRendered(subject string)
	AITokens(input, output int)
}

// GenerateRequest asks for one or more worksheets of a single subject.
type GenerateRequest struct {
	Subject        domain.SubjectType
	Topic          string
	Concept        string
	Genre          string
	GradeLevel     string
	StyleReference string
	Count          int
}

// GenerateResult carries the produced worksheets. Worksheets and
// FileKeys are parallel; both may be shorter than the requested count
// when quota ran out partway through.
type GenerateResult struct {
	Worksheets     []domain.WorksheetContent
	FileKeys       []string
	CanDownloadPdf bool
}

// SaveRequest persists a previously generated worksheet, optionally
// with teacher edits applied to the content.
type SaveRequest struct {
	FileKey string
	Content *domain.WorksheetContent
}

// PDFStream is a rendered worksheet ready to send to the client.
type PDFStream struct {
	Body io.ReadCloser
	Size int64
}

// WorksheetService runs the generate / save / render lifecycle.
type WorksheetService struct {
	gate       Gate
	provider   ai.TextProvider
	pending    PendingWorksheets
	worksheets WorksheetStore
	files      storage.Store
	renderer   render.Renderer
	metrics    GenerationMetrics
	logger     *slog.Logger
}

// NewWorksheetService creates a new WorksheetService.
func NewWorksheetService(gate Gate, provider ai.TextProvider, pending PendingWorksheets, worksheets WorksheetStore, files storage.Store, renderer render.Renderer, metrics GenerationMetrics, logger *slog.Logger) *WorksheetService {
	return &WorksheetService{
		gate:       gate,
		provider:   provider,
		pending:    pending,
		worksheets: worksheets,
		files:      files,
		renderer:   renderer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Generate produces up to req.Count worksheets. Each sheet passes the
// quota gate individually, so exhaustion partway through returns the
// sheets already produced rather than failing the whole request. A
// consumption event is committed per sheet, only after that sheet
// validated.
func (s *WorksheetService) Generate(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*GenerateResult, error) {
	const op = "worksheet.generate"

	if !req.Subject.Valid() {
		return nil, domain.Invalid(op, "unknown subject type")
	}
	if req.Topic == "" {
		return nil, domain.Invalid(op, "topic is required")
	}
	if req.Count < 1 || req.Count > maxWorksheetsPerRequest {
		return nil, domain.Invalid(op, "count must be between 1 and 3")
	}

	gen, err := generator.New(req.Subject, s.provider, s.logger)
	if err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	params := generator.Params{
		Topic:          req.Topic,
		Concept:        req.Concept,
		Genre:          req.Genre,
		GradeLevel:     req.GradeLevel,
		StyleReference: req.StyleReference,
	}

	result := &GenerateResult{}
	for i := 0; i < req.Count; i++ {
		decision, err := s.gate.Authorize(ctx, userID, domain.ResourceGeneration)
		if err != nil {
			return s.partialOrError(result, err)
		}

		start := time.Now()
		genResult, err := gen.Generate(ctx, params)
		if err != nil {
			s.observe(req.Subject, outcomeFor(err), start)
			return s.partialOrError(result, err)
		}
		s.observe(req.Subject, "success", start)
		if s.metrics != nil {
			s.metrics.AITokens(genResult.Usage.InputTokens, genResult.Usage.OutputTokens)
		}

		ws := &domain.Worksheet{
			ID:         uuid.New(),
			OwnerID:    userID,
			FileKey:    genResult.FileKey,
			Subject:    req.Subject,
			GradeLevel: req.GradeLevel,
			Topic:      req.Topic,
			Content:    genResult.Content,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.pending.Put(ctx, ws); err != nil {
			// The sheet still goes back to the caller; it just cannot
			// be saved later.
			s.logger.Error("failed to stage pending worksheet", "file_key", ws.FileKey, "error", err)
		}

		// A sheet whose commit failed was never billed, so it is neither
		// returned nor left claimable; sheets committed before it still
		// go back to the caller.
		if err := s.gate.Commit(ctx, userID, domain.ResourceGeneration, string(req.Subject), decision); err != nil {
			if derr := s.pending.Delete(ctx, userID, ws.FileKey); derr != nil {
				s.logger.Warn("failed to clear unbilled pending worksheet", "file_key", ws.FileKey, "error", derr)
			}
			return s.partialOrError(result, err)
		}

		result.Worksheets = append(result.Worksheets, genResult.Content)
		result.FileKeys = append(result.FileKeys, genResult.FileKey)
	}

	canDownload, err := s.gate.Peek(ctx, userID, domain.ResourceDownload)
	if err != nil {
		s.logger.Warn("download quota peek failed", "user_id", userID, "error", err)
	}
	result.CanDownloadPdf = canDownload

	return result, nil
}

// partialOrError returns what was produced so far, or the error when
// nothing was. Sheets already committed stay billed either way.
func (s *WorksheetService) partialOrError(result *GenerateResult, err error) (*GenerateResult, error) {
	if len(result.Worksheets) == 0 {
		return nil, err
	}
	s.logger.Info("returning partial generation batch",
		"produced", len(result.Worksheets),
		"reason", domain.ErrorCode(err),
	)
	return result, nil
}

// Save persists a pending worksheet. The pending entry must exist for
// this user; edits supplied in the request replace the generated
// content before the row is written.
func (s *WorksheetService) Save(ctx context.Context, userID uuid.UUID, req SaveRequest) (uuid.UUID, error) {
	const op = "worksheet.save"

	if req.FileKey == "" {
		return uuid.Nil, domain.Invalid(op, "file key is required")
	}

	ws, err := s.pending.Get(ctx, userID, req.FileKey)
	if err != nil {
		return uuid.Nil, err
	}
	if req.Content != nil {
		ws.Content = *req.Content
	}

	if err := s.worksheets.Insert(ctx, ws); err != nil {
		return uuid.Nil, domain.Internal(err, op, "failed to persist worksheet")
	}

	if err := s.pending.Delete(ctx, userID, req.FileKey); err != nil {
		s.logger.Warn("failed to clear pending worksheet", "file_key", req.FileKey, "error", err)
	}

	return ws.ID, nil
}

// Get returns a saved worksheet by file key.
func (s *WorksheetService) Get(ctx context.Context, userID uuid.UUID, fileKey string) (*domain.Worksheet, error) {
	return s.worksheets.GetByFileKey(ctx, userID, fileKey)
}

// List returns a user's saved worksheets, newest first.
func (s *WorksheetService) List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Worksheet, error) {
	return s.worksheets.ListByOwner(ctx, userID, limit)
}

// RenderPdf renders a saved worksheet to PDF. The download gate is
// re-evaluated on every call; the download event is committed only
// after a render (or cache hit) actually produced bytes.
func (s *WorksheetService) RenderPdf(ctx context.Context, userID uuid.UUID, fileKey string) (*PDFStream, error) {
	ws, err := s.worksheets.GetByFileKey(ctx, userID, fileKey)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.Authorize(ctx, userID, domain.ResourceDownload)
	if err != nil {
		return nil, err
	}

	key := storage.PDFKey(userID, fileKey)

	// Re-downloads of an already rendered sheet skip the renderer but
	// still count against the download quota.
	body, info, err := s.files.Get(ctx, key)
	if err == nil {
		if cerr := s.gate.Commit(ctx, userID, domain.ResourceDownload, fileKey, decision); cerr != nil {
			body.Close()
			return nil, cerr
		}
		return &PDFStream{Body: body, Size: info.Size}, nil
	}
	if !storage.IsNotFound(err) {
		s.logger.Warn("pdf cache lookup failed, rendering fresh", "key", key, "error", err)
	}

	var buf bytes.Buffer
	size, err := s.renderer.Render(ctx, ws, &buf)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PDFRendered(string(ws.Subject))
	}

	if err := s.files.Put(ctx, key, bytes.NewReader(buf.Bytes()), storage.PutOptions{
		ContentType: "application/pdf",
		Overwrite:   true,
	}); err != nil {
		// Storage is a cache here; the render already succeeded.
		s.logger.Warn("failed to store rendered pdf", "key", key, "error", err)
	}

	if err := s.gate.Commit(ctx, userID, domain.ResourceDownload, fileKey, decision); err != nil {
		return nil, err
	}

	return &PDFStream{Body: io.NopCloser(&buf), Size: size}, nil
}

func (s *WorksheetService) observe(subject domain.SubjectType, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.GenerationObserved(string(subject), outcome, time.Since(start).Seconds())
}

func outcomeFor(err error) string {
	switch domain.ErrorCode(err) {
	case domain.ECANCELLED:
		return "cancelled"
	case domain.ETIMEOUT:
		return "timeout"
	default:
		return "failed"
	}
}
