package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteErrorPolicyByCode(t *testing.T) {
	cases := []struct {
		code       pkgerrors.Code
		status     int
		message    string
		retryAfter string
	}{
		{pkgerrors.CodeCapacityExceeded, http.StatusConflict, "pool says no", ""},
		{pkgerrors.CodeDuplicateParticipant, http.StatusConflict, "pool says no", ""},
		{pkgerrors.CodeThresholdNotMet, http.StatusUnprocessableEntity, "pool says no", ""},
		{pkgerrors.CodeInvalidState, http.StatusUnprocessableEntity, "pool says no", ""},
		{pkgerrors.CodeConcurrencyConflict, http.StatusConflict, "concurrent update detected, retry later", "1"},
		{pkgerrors.CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", "5"},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, pkgerrors.New(tc.code, "pool says no"))
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.retryAfter, w.Header().Get("Retry-After"))
			assert.Equal(t, tc.message, decodeError(t, w).Message)
		})
	}
}

func TestWriteErrorDetailsOnlyWhenAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "quantity"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, "bad input", got.Message)
	assert.NotNil(t, got.Details)

	w = httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeForbidden, "not your pool").
		WithDetails(map[string]string{"owner": "someone"}))
	assert.Nil(t, decodeError(t, w).Details)
}

func TestWriteErrorHidesUntypedErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-42")
	WriteError(context.Background(), logg, w, errors.New("dial tcp 10.0.0.3:5432: refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), got.Code)
	assert.Equal(t, "internal server error", got.Message)
	assert.Equal(t, "req-42", got.RequestID)
	assert.Nil(t, got.Details)
	assert.Contains(t, buf.String(), "request.error")
	assert.Contains(t, buf.String(), `"http_status":500`)
}
