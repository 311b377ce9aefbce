package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/http/handler"
	"github.com/smartdom/crm-api/internal/pricing"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/smartdom/crm-api/internal/storage"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testAPI serves every handler over one in-memory database
type testAPI struct {
	db      *gorm.DB
	hub     *realtime.Hub
	router  chi.Router
	notices *service.NotificationService

	manager   *domain.Profile
	installer *domain.Profile
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	hub := realtime.NewHub(16)

	profileRepo := repository.NewProfileRepository(db)
	clientRepo := repository.NewClientRepository(db)
	objectRepo := repository.NewObjectRepository(db)
	stageRepo := repository.NewStageRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	proposalRepo := repository.NewProposalRepository(db)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), profileRepo, nil, hub, logger)
	t.Cleanup(notifications.Wait)
	numbers := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	clients := service.NewClientService(clientRepo, hub, logger)
	objects := service.NewObjectService(objectRepo, stageRepo, repository.NewHistoryRepository(db), clientRepo, notifications, hub, logger)
	workflow := service.NewWorkflowService(objectRepo, stageRepo, taskRepo, notifications, hub, logger)
	tasks := service.NewTaskService(taskRepo, objectRepo, notifications, hub, logger)
	invoices := service.NewInvoiceService(repository.NewInvoiceRepository(db), proposalRepo, numbers, notifications, hub, pricing.DefaultVATRate, logger)
	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	files := service.NewFileService(repository.NewFileRepository(db), objectRepo, fileStorage, hub, logger)
	proposals := service.NewProposalService(proposalRepo, clientRepo, objectRepo, numbers, invoices, notifications, hub, pricing.DefaultVATRate, logger)

	authH := handler.NewAuthHandler(profileRepo, logger)
	clientH := handler.NewClientHandler(clients, logger)
	objectH := handler.NewObjectHandler(objects, workflow, tasks, logger)
	taskH := handler.NewTaskHandler(tasks, logger)
	proposalH := handler.NewProposalHandler(proposals, invoices, logger)
	invoiceH := handler.NewInvoiceHandler(invoices, logger)
	notificationH := handler.NewNotificationHandler(notifications, logger)
	fileH := handler.NewFileHandler(files, 1, logger)

	r := chi.NewRouter()
	r.Get("/auth/me", authH.Me)
	r.Get("/profiles", authH.ListProfiles)
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", clientH.List)
		r.Post("/", clientH.Create)
		r.Get("/{id}", clientH.GetByID)
		r.Put("/{id}", clientH.Update)
		r.Delete("/{id}", clientH.Delete)
	})
	r.Route("/objects", func(r chi.Router) {
		r.Get("/", objectH.List)
		r.Post("/", objectH.Create)
		r.Get("/{id}", objectH.GetByID)
		r.Get("/{id}/stages", objectH.ListStages)
		r.Get("/{id}/history", objectH.History)
		r.Post("/{id}/advance", objectH.Advance)
		r.Post("/{id}/finalize", objectH.Finalize)
		r.Post("/{id}/rollback", objectH.Rollback)
		r.Post("/{id}/restore", objectH.Restore)
		r.Put("/{id}/status", objectH.UpdateStatus)
		r.Post("/{id}/stages/{stageId}/extend", objectH.ExtendDeadline)
		r.Get("/{id}/tasks", objectH.ListTasks)
		r.Post("/{id}/tasks", objectH.CreateTask)
		r.Get("/{id}/files", fileH.List)
		r.Post("/{id}/files", fileH.Upload)
	})
	r.Route("/files", func(r chi.Router) {
		r.Get("/{id}", fileH.GetByID)
		r.Get("/{id}/download", fileH.Download)
		r.Delete("/{id}", fileH.Delete)
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/my", taskH.ListMine)
		r.Get("/{id}", taskH.GetByID)
		r.Put("/{id}/status", taskH.UpdateStatus)
		r.Post("/{id}/complete", taskH.Complete)
		r.Delete("/{id}", taskH.Delete)
	})
	r.Route("/proposals", func(r chi.Router) {
		r.Get("/", proposalH.List)
		r.Post("/", proposalH.Create)
		r.Get("/{id}", proposalH.GetByID)
		r.Delete("/{id}", proposalH.Delete)
		r.Post("/{id}/items", proposalH.ApplyAction)
		r.Get("/{id}/totals", proposalH.Totals)
		r.Post("/{id}/send", proposalH.Send)
		r.Post("/{id}/accept", proposalH.Accept)
		r.Post("/{id}/reject", proposalH.Reject)
		r.Post("/{id}/duplicate", proposalH.Duplicate)
		r.Get("/{id}/invoices", proposalH.ListInvoices)
		r.Post("/{id}/invoices", proposalH.CreateInvoice)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", invoiceH.List)
		r.Get("/{id}", invoiceH.GetByID)
		r.Post("/{id}/payments", invoiceH.RecordPayment)
		r.Post("/{id}/cancel", invoiceH.Cancel)
	})
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", notificationH.List)
		r.Get("/count", notificationH.GetUnreadCount)
		r.Put("/read-all", notificationH.MarkAllAsRead)
		r.Put("/{id}/read", notificationH.MarkAsRead)
	})

	return &testAPI{
		db:        db,
		hub:       hub,
		router:    r,
		notices:   notifications,
		manager:   testutil.CreateTestProfile(t, db, "Anna Manager"),
		installer: testutil.CreateTestProfile(t, db, "Igor Installer"),
	}
}

func actorFor(profile *domain.Profile) *auth.ActorContext {
	return &auth.ActorContext{
		ProfileID:   profile.ID,
		DisplayName: profile.FullName,
		Roles:       []domain.ProfileRole{profile.Role},
		Source:      auth.SourceJWT,
	}
}

// do sends a request as actor; a nil actor sends it unauthenticated
func (a *testAPI) do(t *testing.T, actor *auth.ActorContext, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := context.Background()
	if actor != nil {
		ctx = auth.WithActor(ctx, actor)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// createObject posts a new object managed by the manager with the installer as participant
func (a *testAPI) createObject(t *testing.T) domain.ObjectDTO {
	t.Helper()
	w := a.do(t, actorFor(a.manager), http.MethodPost, "/objects", map[string]interface{}{
		"name":          "Villa on Lake Street",
		"address":       "Lake Street 1",
		"responsibleId": a.manager.ID,
		"participants":  []string{a.installer.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[domain.ObjectDTO](t, w)
}
