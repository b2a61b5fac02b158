package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir(), "http://localhost:8080/files", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s
}

func TestLocal_PutGetRoundTrip(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	key := PDFKey(uuid.New(), "reading-abc123")
	payload := []byte("%PDF-1.4 test document")

	err := s.Put(ctx, key, bytes.NewReader(payload), PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)

	body, info, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, key, info.Key)
}

func TestLocal_GetMissingKey(t *testing.T) {
	s := newTestLocal(t)

	_, _, err := s.Get(context.Background(), "pdfs/nobody/never.pdf")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Get", serr.Op)
}

func TestLocal_PutRespectsOverwriteFlag(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	const key = "pdfs/u/one.pdf"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("first"), PutOptions{}))

	err := s.Put(ctx, key, strings.NewReader("second"), PutOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyExists))

	require.NoError(t, s.Put(ctx, key, strings.NewReader("second"), PutOptions{Overwrite: true}))
	body, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer body.Close()
	got, _ := io.ReadAll(body)
	assert.Equal(t, "second", string(got))
}

func TestLocal_PutEnforcesMaxSize(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	err := s.Put(ctx, "pdfs/u/big.pdf", strings.NewReader("0123456789"), PutOptions{MaxSize: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	// The oversized write must not leave a partial object behind
	exists, err := s.Exists(ctx, "pdfs/u/big.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocal_DeleteIsIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	const key = "pdfs/u/gone.pdf"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("x"), PutOptions{}))
	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocal_RejectsTraversalKeys(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"parent escape", "../../../etc/passwd"},
		{"embedded parent", "pdfs/../../secrets"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Put(ctx, tc.key, strings.NewReader("x"), PutOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidKey))

			_, _, err = s.Get(ctx, tc.key)
			assert.True(t, errors.Is(err, ErrInvalidKey))
		})
	}
}

func TestLocal_URL(t *testing.T) {
	s := newTestLocal(t)

	url, err := s.URL(context.Background(), "pdfs/u/one.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/pdfs/u/one.pdf", url)
}

func TestPDFKey(t *testing.T) {
	ownerID := uuid.MustParse("6f1f9a34-0b5b-4c4e-9a64-16c6dcde0001")
	key := PDFKey(ownerID, "grammar-nouns-4")
	assert.Equal(t, "pdfs/6f1f9a34-0b5b-4c4e-9a64-16c6dcde0001/grammar-nouns-4.pdf", key)
}
