package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("pipeline %q: %w", "x", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("run: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("body: %w", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("queue: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.status, problem.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("dsn postgres://secret"))
	require.NotContains(t, rr.Body.String(), "secret")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		FiscalYear int `json:"fiscal_year"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fiscal_year":2024}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, 2024, target.FiscalYear)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":2024}`))
	require.ErrorIs(t, DecodeJSON(req, &target), ErrValidation)
}
