package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authGet(h http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledWhenNoKeyConfigured(t *testing.T) {
	app := newTestApp(t, "")
	rec := authGet(app.server.Handler(), "/v1/prices/btc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t, "s3cr3t")
	h := app.server.Handler()

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic s3cr3t",
		"no scheme":      "s3cr3t",
		"wrong key":      "Bearer nope",
		"prefix of key":  "Bearer s3cr",
	}
	for name, header := range cases {
		rec := authGet(h, "/v1/prices/btc", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, rec.Body.String(), name)
	}
}

func TestAuthAcceptsValidKey(t *testing.T) {
	app := newTestApp(t, "s3cr3t")
	rec := authGet(app.server.Handler(), "/v1/prices/btc", "Bearer s3cr3t")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthSkipsProbes(t *testing.T) {
	app := newTestApp(t, "s3cr3t")
	h := app.server.Handler()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := authGet(h, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
