package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/workflow"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when the resource state does not allow the operation
	ErrConflict = errors.New("resource conflict")

	// ErrForbidden is returned when the actor may not act on the resource
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when no actor is present in the context
	ErrUnauthorized = errors.New("unauthorized")
)

// Stage machine errors, re-exported so handlers depend on one package
var (
	ErrInvalidTransition = workflow.ErrInvalidTransition
	ErrObjectCompleted   = workflow.ErrObjectCompleted
	ErrReasonRequired    = workflow.ErrReasonRequired
	ErrStageNotReached   = workflow.ErrStageNotReached
	ErrNothingToRestore  = workflow.ErrNothingToRestore
)

// GateBlockedError is returned when unfinished tasks of the current stage block an
// advance or finalize. It is a soft block: the caller may confirm and retry with force.
type GateBlockedError struct {
	Stage   domain.StageID
	Pending []domain.Task
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("%d unfinished task(s) in stage %s", len(e.Pending), e.Stage)
}

// actorID returns the profile id of the current actor
func actorID(ctx context.Context) (uuid.UUID, error) {
	actor, ok := auth.FromContext(ctx)
	if !ok || actor.ProfileID == uuid.Nil {
		return uuid.Nil, ErrUnauthorized
	}
	return actor.ProfileID, nil
}
