package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframe/reframe/backend-go/internal/auth"
)

func authedRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	ctx := context.WithValue(r.Context(), auth.UserIDKey, "user_1")
	return r.WithContext(ctx)
}

func TestGetAPIKeyReportsConfigured(t *testing.T) {
	svc := NewService(newFakeStore())
	h := NewHandler(svc)

	w := httptest.NewRecorder()
	h.GetAPIKey(w, authedRequest(http.MethodGet, "/api/settings/apikey", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"configured":false}`, w.Body.String())

	require.NoError(t, svc.SetAPIKey(context.Background(), "user_1", "sk-test"))

	w = httptest.NewRecorder()
	h.GetAPIKey(w, authedRequest(http.MethodGet, "/api/settings/apikey", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"configured":true}`, w.Body.String())
}

func TestSetAPIKeyValidation(t *testing.T) {
	h := NewHandler(NewService(newFakeStore()))

	w := httptest.NewRecorder()
	h.SetAPIKey(w, authedRequest(http.MethodPut, "/api/settings/apikey", `{"apiKey":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.SetAPIKey(w, authedRequest(http.MethodPut, "/api/settings/apikey", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.SetAPIKey(w, authedRequest(http.MethodPut, "/api/settings/apikey", `{"apiKey":"sk-test"}`))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClearAPIKeyHandler(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	h := NewHandler(svc)

	require.NoError(t, svc.SetAPIKey(context.Background(), "user_1", "sk-test"))

	w := httptest.NewRecorder()
	h.ClearAPIKey(w, authedRequest(http.MethodDelete, "/api/settings/apikey", ""))
	assert.Equal(t, http.StatusNoContent, w.Code)

	key, err := svc.APIKey(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Empty(t, key)
}
