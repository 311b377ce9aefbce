package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/config"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 5}, zap.NewNop())
	calls := 0
	handler := rl.LimitByIP(okHandler(&calls))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/objects", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 50, calls)
}

func TestRateLimiter_Whitelists(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		WhitelistIPs:      []string{"127.0.0.1"},
		WhitelistPaths:    []string{"/health", "/swagger/*"},
	}, zap.NewNop())
	calls := 0
	handler := rl.LimitByIP(okHandler(&calls))

	tests := []struct {
		name       string
		path       string
		remoteAddr string
	}{
		{"whitelisted ip", "/api/v1/objects", "127.0.0.1:5555"},
		{"exact path", "/health", "10.0.0.1:5555"},
		{"path prefix", "/swagger/index.html", "10.0.0.2:5555"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				req := httptest.NewRequest(http.MethodGet, tt.path, nil)
				req.RemoteAddr = tt.remoteAddr
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
	assert.Equal(t, 30, calls)
}

func TestRateLimiter_LimitExceeded(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 5}, zap.NewNop())
	calls := 0
	handler := rl.LimitByIP(okHandler(&calls))

	limited := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/objects", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, 5, calls)
	assert.Equal(t, 15, limited)
}

func TestRateLimiter_ForwardedForIsKey(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		TrustedProxies:    []string{"10.0.0.0/8"},
	}, zap.NewNop())
	calls := 0
	handler := rl.LimitByIP(okHandler(&calls))

	for _, client := range []string{"203.0.113.1", "203.0.113.2, 10.0.0.1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/objects", nil)
		req.RemoteAddr = "10.0.0.1:80"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "clients behind one proxy are limited separately")
	}
	assert.Equal(t, 2, calls)
}

func TestRateLimiter_ForwardedHeadersFromUntrustedPeer(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		WhitelistIPs:      []string{"127.0.0.1"},
		TrustedProxies:    []string{"10.0.0.1"},
	}, zap.NewNop())
	calls := 0
	handler := rl.LimitByIP(okHandler(&calls))

	send := func(remoteAddr, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/objects", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.Header.Set("X-Real-IP", forwardedFor)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// a direct client cannot claim a whitelisted address or rotate its key
	assert.Equal(t, http.StatusOK, send("198.51.100.7:4000", "127.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.7:4000", "127.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.7:4000", "203.0.113.50"))

	// behind the proxy, addresses the client prepended are skipped
	assert.Equal(t, http.StatusOK, send("10.0.0.1:80", "127.0.0.1, 203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:80", "127.0.0.1, 203.0.113.9"))

	// the proxy forwarding a whitelisted client is honored
	assert.Equal(t, http.StatusOK, send("10.0.0.1:80", "127.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:80", "127.0.0.1"))
	assert.Equal(t, 4, calls)
}

func TestRateLimiter_AuthenticatedKeyedByProfile(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     1,
		RequestsPerMinuteAuth: 3,
	}, zap.NewNop())
	calls := 0
	handler := rl.Limit(okHandler(&calls))

	send := func(profileID uuid.UUID) int {
		actor := &auth.ActorContext{ProfileID: profileID, Roles: []domain.ProfileRole{domain.ProfileRoleInstaller}}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/my", nil)
		req.RemoteAddr = "10.1.1.1:4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req.WithContext(auth.WithActor(context.Background(), actor)))
		return w.Code
	}

	first, second := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(first))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(first))
	assert.Equal(t, http.StatusOK, send(second), "profiles sharing an address have separate budgets")
}
