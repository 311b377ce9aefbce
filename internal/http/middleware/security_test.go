package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartdom/crm-api/internal/config"
	"github.com/smartdom/crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(cfg *config.SecurityConfig, path string) *httptest.ResponseRecorder {
	handler := middleware.SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSecurityHeaders_Configured(t *testing.T) {
	cfg := &config.SecurityConfig{
		ContentTypeNosniff:    true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}

	w := serveWithHeaders(cfg, "/api/v1/objects")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	w := serveWithHeaders(&config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: 31536000}, "/")
	assert.Equal(t, "max-age=31536000", w.Header().Get("Strict-Transport-Security"))

	w = serveWithHeaders(&config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: 600, HSTSIncludeSubdomains: true}, "/")
	assert.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_SwaggerSkipsCSP(t *testing.T) {
	cfg := &config.SecurityConfig{ContentSecurityPolicy: "default-src 'none'", FrameOptions: "DENY"}

	w := serveWithHeaders(cfg, "/swagger/index.html")
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestSecurityHeaders_EmptyConfig(t *testing.T) {
	w := serveWithHeaders(&config.SecurityConfig{}, "/health")
	for _, header := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		assert.Empty(t, w.Header().Get(header), header)
	}
}
