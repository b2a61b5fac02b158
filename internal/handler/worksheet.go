package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/worksheetlab/server/internal/auth"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/service"
)

// WorksheetHandler serves the generate / save / fetch / render routes.
//
// Routes (all behind auth):
//   - POST /api/worksheets/generate
//   - POST /api/worksheets
//   - GET  /api/worksheets
//   - GET  /api/worksheets/{fileKey}
//   - GET  /api/worksheets/{fileKey}/pdf
type WorksheetHandler struct {
	worksheets *service.WorksheetService
	logger     *slog.Logger
}

// NewWorksheetHandler creates a new WorksheetHandler.
func NewWorksheetHandler(worksheets *service.WorksheetService, logger *slog.Logger) *WorksheetHandler {
	return &WorksheetHandler{worksheets: worksheets, logger: logger}
}

// RegisterRoutes registers worksheet routes on the provided mux.
func (h *WorksheetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/worksheets/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/worksheets", h.HandleSave)
	mux.HandleFunc("GET /api/worksheets", h.HandleList)
	mux.HandleFunc("GET /api/worksheets/{fileKey}", h.HandleGet)
	mux.HandleFunc("GET /api/worksheets/{fileKey}/pdf", h.HandlePDF)
}

type generateRequest struct {
	Subject        string `json:"subject"`
	Topic          string `json:"topic"`
	Concept        string `json:"concept,omitempty"`
	Genre          string `json:"genre,omitempty"`
	GradeLevel     string `json:"grade_level"`
	StyleReference string `json:"style_reference,omitempty"`
	Count          int    `json:"count"`
}

type generateResponse struct {
	Worksheets     []domain.WorksheetContent `json:"worksheets"`
	FileKeys       []string                  `json:"file_keys"`
	CanDownloadPdf bool                      `json:"can_download_pdf"`
}

// HandleGenerate runs the generation pipeline for 1-3 worksheets.
func (h *WorksheetHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	result, err := h.worksheets.Generate(r.Context(), userID, service.GenerateRequest{
		Subject:        domain.SubjectType(req.Subject),
		Topic:          req.Topic,
		Concept:        req.Concept,
		Genre:          req.Genre,
		GradeLevel:     req.GradeLevel,
		StyleReference: req.StyleReference,
		Count:          req.Count,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Worksheets:     result.Worksheets,
		FileKeys:       result.FileKeys,
		CanDownloadPdf: result.CanDownloadPdf,
	})
}

type saveRequest struct {
	FileKey string                   `json:"file_key"`
	Content *domain.WorksheetContent `json:"content,omitempty"`
}

// HandleSave persists a previously generated worksheet.
func (h *WorksheetHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	id, err := h.worksheets.Save(r.Context(), userID, service.SaveRequest{
		FileKey: req.FileKey,
		Content: req.Content,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"worksheet_id": id})
}

type worksheetSummary struct {
	ID         uuid.UUID                `json:"id"`
	FileKey    string                   `json:"file_key"`
	Subject    domain.SubjectType       `json:"subject"`
	GradeLevel string                   `json:"grade_level"`
	Topic      string                   `json:"topic"`
	Content    *domain.WorksheetContent `json:"content,omitempty"`
	CreatedAt  string                   `json:"created_at"`
}

// HandleList returns the caller's saved worksheets.
func (h *WorksheetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	sheets, err := h.worksheets.List(r.Context(), userID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]worksheetSummary, 0, len(sheets))
	for _, ws := range sheets {
		out = append(out, worksheetSummary{
			ID:         ws.ID,
			FileKey:    ws.FileKey,
			Subject:    ws.Subject,
			GradeLevel: ws.GradeLevel,
			Topic:      ws.Topic,
			CreatedAt:  ws.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"worksheets": out})
}

// HandleGet returns one saved worksheet with its content.
func (h *WorksheetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	ws, err := h.worksheets.Get(r.Context(), userID, r.PathValue("fileKey"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, worksheetSummary{
		ID:         ws.ID,
		FileKey:    ws.FileKey,
		Subject:    ws.Subject,
		GradeLevel: ws.GradeLevel,
		Topic:      ws.Topic,
		Content:    &ws.Content,
		CreatedAt:  ws.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// HandlePDF streams the rendered PDF for a saved worksheet. The
// download quota gate runs on every call.
func (h *WorksheetHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	fileKey := r.PathValue("fileKey")
	stream, err := h.worksheets.RenderPdf(r.Context(), userID, fileKey)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileKey+".pdf"))
	if stream.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	}
	if _, err := io.Copy(w, stream.Body); err != nil {
		h.logger.Warn("pdf stream interrupted", "file_key", fileKey, "error", err)
	}
}
