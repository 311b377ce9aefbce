package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/domain"
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

type notice struct {
	ProfileID uuid.UUID
	Message   string
	Link      string
}

// recordingNotifier captures notifications instead of delivering them
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(_ context.Context, profileID uuid.UUID, message, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{ProfileID: profileID, Message: message, Link: link})
}

func (n *recordingNotifier) recipients() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]uuid.UUID, len(n.notices))
	for i, x := range n.notices {
		out[i] = x.ProfileID
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) has(entity string, id uuid.UUID, action string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Entity == entity && e.ID == id && e.Action == action {
			return true
		}
	}
	return false
}

// testServices wires every service over one in-memory database
type testServices struct {
	db        *gorm.DB
	notifier  *recordingNotifier
	publisher *recordingPublisher

	clients   *service.ClientService
	objects   *service.ObjectService
	workflow  *service.WorkflowService
	tasks     *service.TaskService
	proposals *service.ProposalService
	invoices  *service.InvoiceService
	numbers   *service.NumberSequenceService
	files     *service.FileService

	manager   *domain.Profile
	installer *domain.Profile
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}

	objectRepo := repository.NewObjectRepository(db)
	stageRepo := repository.NewStageRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	clientRepo := repository.NewClientRepository(db)
	proposalRepo := repository.NewProposalRepository(db)

	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	numbers := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	invoices := service.NewInvoiceService(repository.NewInvoiceRepository(db), proposalRepo, numbers,
		notifier, publisher, pricing.DefaultVATRate, logger)

	return &testServices{
		db:        db,
		notifier:  notifier,
		publisher: publisher,
		clients:   service.NewClientService(clientRepo, publisher, logger),
		objects: service.NewObjectService(objectRepo, stageRepo, repository.NewHistoryRepository(db),
			clientRepo, notifier, publisher, logger),
		workflow: service.NewWorkflowService(objectRepo, stageRepo, taskRepo, notifier, publisher, logger),
		tasks:    service.NewTaskService(taskRepo, objectRepo, notifier, publisher, logger),
		proposals: service.NewProposalService(proposalRepo, clientRepo, objectRepo, numbers, invoices,
			notifier, publisher, pricing.DefaultVATRate, logger),
		invoices:  invoices,
		numbers:   numbers,
		files:     service.NewFileService(repository.NewFileRepository(db), objectRepo, fileStorage, publisher, logger),
		manager:   testutil.CreateTestProfile(t, db, "Anna Manager"),
		installer: testutil.CreateTestProfile(t, db, "Igor Installer"),
	}
}

func actorCtx(profile *domain.Profile) context.Context {
	return auth.WithActor(context.Background(), &auth.ActorContext{
		ProfileID:   profile.ID,
		DisplayName: profile.FullName,
		Email:       profile.Email,
		Roles:       []domain.ProfileRole{profile.Role},
		Source:      auth.SourceAPIKey,
	})
}

// createObject creates an object managed by the manager with the installer as participant
func (s *testServices) createObject(t *testing.T) *domain.ObjectDTO {
	t.Helper()
	obj, err := s.objects.Create(actorCtx(s.manager), &domain.CreateObjectRequest{
		Name:          "Villa on Lake Street",
		Address:       "Lake Street 1",
		ResponsibleID: &s.manager.ID,
		Participants:  []uuid.UUID{s.installer.ID},
	})
	require.NoError(t, err)
	return obj
}
