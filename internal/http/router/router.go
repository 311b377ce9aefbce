package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/config"
	"github.com/smartdom/crm-api/internal/database"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/http/handler"
	"github.com/smartdom/crm-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/smartdom/crm-api/docs" // swagger spec registration
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Auth         *handler.AuthHandler
	Client       *handler.ClientHandler
	Object       *handler.ObjectHandler
	Task         *handler.TaskHandler
	Proposal     *handler.ProposalHandler
	Invoice      *handler.InvoiceHandler
	Notification *handler.NotificationHandler
	Events       *handler.EventsHandler
	File         *handler.FileHandler
}

// Check reports the health of an optional dependency for /health/ready
type Check func(ctx context.Context) error

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
	checks         map[string]Check
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
	checks map[string]Check,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
		checks:         checks,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.Limit)

		r.Get("/auth/me", h.Auth.Me)
		r.Get("/profiles", h.Auth.ListProfiles)
		r.Get("/events", h.Events.Stream)

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.Client.List)
			r.Post("/", h.Client.Create)
			r.Get("/{id}", h.Client.GetByID)
			r.Put("/{id}", h.Client.Update)
			r.Delete("/{id}", h.Client.Delete)
		})

		r.Route("/objects", func(r chi.Router) {
			r.Get("/", h.Object.List)
			r.Post("/", h.Object.Create)
			r.Get("/{id}", h.Object.GetByID)
			r.Put("/{id}", h.Object.Update)
			r.With(rt.authMiddleware.RequireRole(domain.ProfileRoleManager)).Delete("/{id}", h.Object.Delete)

			// Stage workflow
			r.Get("/{id}/stages", h.Object.ListStages)
			r.Get("/{id}/history", h.Object.History)
			r.Post("/{id}/advance", h.Object.Advance)
			r.Post("/{id}/finalize", h.Object.Finalize)
			r.Post("/{id}/rollback", h.Object.Rollback)
			r.Post("/{id}/restore", h.Object.Restore)
			r.Put("/{id}/status", h.Object.UpdateStatus)
			r.Post("/{id}/stages/{stageId}/extend", h.Object.ExtendDeadline)

			r.Get("/{id}/tasks", h.Object.ListTasks)
			r.Post("/{id}/tasks", h.Object.CreateTask)

			r.Get("/{id}/files", h.File.List)
			r.Post("/{id}/files", h.File.Upload)
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/{id}", h.File.GetByID)
			r.Get("/{id}/download", h.File.Download)
			r.Delete("/{id}", h.File.Delete)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/my", h.Task.ListMine)
			r.Get("/{id}", h.Task.GetByID)
			r.Put("/{id}", h.Task.Update)
			r.Delete("/{id}", h.Task.Delete)
			r.Put("/{id}/status", h.Task.UpdateStatus)
			r.Post("/{id}/complete", h.Task.Complete)
		})

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", h.Proposal.List)
			r.Post("/", h.Proposal.Create)
			r.Get("/{id}", h.Proposal.GetByID)
			r.Put("/{id}", h.Proposal.Update)
			r.Delete("/{id}", h.Proposal.Delete)

			r.Post("/{id}/items", h.Proposal.ApplyAction)
			r.Get("/{id}/totals", h.Proposal.Totals)

			r.Post("/{id}/send", h.Proposal.Send)
			r.Post("/{id}/accept", h.Proposal.Accept)
			r.Post("/{id}/reject", h.Proposal.Reject)
			r.Post("/{id}/duplicate", h.Proposal.Duplicate)

			r.Get("/{id}/invoices", h.Proposal.ListInvoices)
			r.Post("/{id}/invoices", h.Proposal.CreateInvoice)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.Invoice.List)
			r.Get("/{id}", h.Invoice.GetByID)
			r.Post("/{id}/payments", h.Invoice.RecordPayment)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(domain.ProfileRoleAccountant, domain.ProfileRoleManager))
				r.Post("/{id}/cancel", h.Invoice.Cancel)
				r.Delete("/{id}", h.Invoice.Delete)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notification.List)
			r.Get("/count", h.Notification.GetUnreadCount)
			r.Put("/read-all", h.Notification.MarkAllAsRead)
			r.Put("/{id}/read", h.Notification.MarkAsRead)
		})
	})

	return r
}

// databaseHealth is the readiness probe with connection pool stats
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks the database and every registered dependency
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			rt.logger.Error("Dependency health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			continue
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeHealth(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
