package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartdom/crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	recovery := middleware.Recovery(zap.New(core))

	t.Run("panic becomes 500", func(t *testing.T) {
		handler := recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("nil map write")
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/objects", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		entries := logs.FilterMessage("panic recovered").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "/api/v1/objects", entries[0].ContextMap()["path"])
	})

	t.Run("abort handler propagates", func(t *testing.T) {
		handler := recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
		})
	})

	t.Run("normal requests untouched", func(t *testing.T) {
		handler := recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/1", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
