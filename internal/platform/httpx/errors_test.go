package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"unauthenticated", Unauthenticated("missing token"), http.StatusUnauthorized, "missing token"},
		{"forbidden", Forbidden("Insufficient permissions"), http.StatusForbidden, "Insufficient permissions"},
		{"invalid", Invalid("Both images are required"), http.StatusBadRequest, "Both images are required"},
		{"unavailable", Errorf(ErrServiceUnavailable, "identity unreachable"), http.StatusServiceUnavailable, "identity unreachable"},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound, ""},
		{"internal hides detail", Errorf(ErrInternal, "boom"), http.StatusInternalServerError, ""},
		{"unknown", errors.New("raw"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.detail, body.Detail)
		})
	}
}

func TestErrorUnwrapsToKind(t *testing.T) {
	err := fmt.Errorf("guard: %w", Unauthenticated("invalid token"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "invalid token", Detail(err))
	assert.Equal(t, "unauthorized: invalid token", Unauthenticated("invalid token").Error())
}
