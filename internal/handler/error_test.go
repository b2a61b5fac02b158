package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/worksheetlab/server/internal/domain"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	testCases := []struct {
		code   string
		status int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EQUOTA, http.StatusPaymentRequired},
		{domain.ECANCELLED, statusClientClosedRequest},
		{domain.ETIMEOUT, http.StatusGatewayTimeout},
		{domain.EGENERATION, http.StatusBadGateway},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_new", http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tc.code); got != tc.status {
				t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tc.code, got, tc.status)
			}
		})
	}
}

func TestErrorResponse_QuotaError(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	err := domain.QuotaExceeded("quota.authorize", domain.ResourceGeneration, 3, 3)

	req := httptest.NewRequest("POST", "/api/worksheets/generate", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, err)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error.Code != domain.EQUOTA {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.EQUOTA)
	}
	if body.Error.Message == "" {
		t.Error("message should explain the rejection")
	}
}

func TestErrorResponse_DoesNotExposeInternals(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	wrapped := domain.Internal(errors.New("pq: connection refused host=db-prod-1"), "worksheet.save", "failed to persist worksheet")

	req := httptest.NewRequest("POST", "/api/worksheets", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, wrapped)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	body := rec.Body.String()
	if strings.Contains(body, "db-prod-1") || strings.Contains(body, "connection refused") {
		t.Errorf("response exposes backing store details: %s", body)
	}
	if strings.Contains(body, "worksheet.save") {
		t.Errorf("response exposes internal operation name: %s", body)
	}
}

func TestErrorResponse_PlainErrorFallsBackTo500(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("raw error text leaked to the client: %s", rec.Body.String())
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/worksheets", strings.NewReader(`{"file_key":"k","bogus":true}`))
	var dst struct {
		FileKey string `json:"file_key"`
	}
	err := decodeJSON(req, &dst)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}
}

func TestDecodeJSON_AcceptsWellFormedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/worksheets", strings.NewReader(`{"file_key":"reading-abc123"}`))
	var dst struct {
		FileKey string `json:"file_key"`
	}
	if err := decodeJSON(req, &dst); err != nil {
		t.Fatalf("decodeJSON() error = %v", err)
	}
	if dst.FileKey != "reading-abc123" {
		t.Errorf("FileKey = %q", dst.FileKey)
	}
}
