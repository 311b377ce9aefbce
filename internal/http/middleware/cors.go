package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/smartdom/crm-api/internal/config"
	"go.uber.org/zap"
)

// Headers the browser client cannot work without, whatever the config lists.
var (
	// X-Actor-* accompany API keys, Last-Event-ID is sent by EventSource on reconnect
	requiredRequestHeaders = []string{
		"Authorization", "Content-Type", "X-API-Key", "X-Actor-ID", "X-Actor-Roles",
		"X-Request-ID", "Last-Event-ID",
	}
	// Content-Disposition names attachment downloads, Retry-After comes with 429
	requiredExposedHeaders = []string{"Location", "X-Request-ID", "Content-Disposition", "Retry-After"}
)

// CORS returns the cross-origin policy for the browser client.
//
// Explicit origins (go-chi/cors wildcards like https://*.smartdom.by included) are matched
// as configured. A bare "*" echoes any origin; outside development it also drops
// credentials so a foreign page cannot ride a session. With no origins configured the API
// is open in development and closed elsewhere.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, requiredRequestHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, requiredExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	dev := isDevelopment(environment)
	anyOrigin := func(r *http.Request, origin string) bool { return origin != "" }

	switch {
	case containsWildcard(cfg.AllowedOrigins):
		options.AllowOriginFunc = anyOrigin
		if !dev {
			options.AllowCredentials = false
			logger.Warn("CORS wildcard origin outside development, credentials disabled",
				zap.String("environment", environment))
		}
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", cfg.AllowedOrigins))
	case dev:
		options.AllowOriginFunc = anyOrigin
		logger.Info("CORS allows all origins in development")
	default:
		// empty AllowedOrigins means "*" to go-chi/cors
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("CORS has no allowed origins, cross-origin requests are denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func isDevelopment(environment string) bool {
	return environment == "" || environment == "development" || environment == "local"
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// mergeHeaders appends every required header missing from configured, ignoring case
func mergeHeaders(configured, required []string) []string {
	seen := make(map[string]bool, len(configured)+len(required))
	merged := make([]string, 0, len(configured)+len(required))
	for _, h := range append(append([]string{}, configured...), required...) {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, h)
	}
	return merged
}
