// Package workflow holds the object stage state machine and the task gate.
// Everything here is pure: callers load state, ask for a Plan and hand the plan
// to the repository, which applies it atomically.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
)

var (
	// ErrInvalidTransition is returned when the transition table has no entry for the request
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrObjectCompleted is returned for any transition of a finalized object
	ErrObjectCompleted = errors.New("object is completed")

	// ErrReasonRequired is returned when a rollback has no reason
	ErrReasonRequired = errors.New("rollback reason is required")

	// ErrStageNotReached is returned when rolling back to a stage the object never entered
	ErrStageNotReached = errors.New("stage was never reached by the object")

	// ErrNothingToRestore is returned when restore is requested without a prior rollback
	ErrNothingToRestore = errors.New("object has no rolled back stage to restore")
)

// Kind names a transition of the stage machine
type Kind string

const (
	KindAdvance  Kind = "advance"
	KindFinalize Kind = "finalize"
	KindRollback Kind = "rollback"
	KindRestore  Kind = "restore"
)

// Transitions is the allowed-from -> allowed-to table for each kind of transition.
// A stage missing from a kind's map, or mapped to an empty list, cannot make that transition.
var Transitions = map[Kind]map[domain.StageID][]domain.StageID{
	KindAdvance: {
		domain.StageNegotiation:   {domain.StageDesign},
		domain.StageDesign:        {domain.StageLogistics},
		domain.StageLogistics:     {domain.StageAssembly},
		domain.StageAssembly:      {domain.StageMounting},
		domain.StageMounting:      {domain.StageCommissioning},
		domain.StageCommissioning: {domain.StageProgramming},
		domain.StageProgramming:   {domain.StageSupport},
		domain.StageSupport:       {},
	},
	KindFinalize: {
		domain.StageSupport: {domain.StageSupport},
	},
	KindRollback: {
		domain.StageNegotiation: {},
		domain.StageDesign:      {domain.StageNegotiation},
		domain.StageLogistics:   {domain.StageNegotiation, domain.StageDesign},
		domain.StageAssembly:    {domain.StageNegotiation, domain.StageDesign, domain.StageLogistics},
		domain.StageMounting: {
			domain.StageNegotiation, domain.StageDesign, domain.StageLogistics, domain.StageAssembly,
		},
		domain.StageCommissioning: {
			domain.StageNegotiation, domain.StageDesign, domain.StageLogistics, domain.StageAssembly,
			domain.StageMounting,
		},
		domain.StageProgramming: {
			domain.StageNegotiation, domain.StageDesign, domain.StageLogistics, domain.StageAssembly,
			domain.StageMounting, domain.StageCommissioning,
		},
		domain.StageSupport: {
			domain.StageNegotiation, domain.StageDesign, domain.StageLogistics, domain.StageAssembly,
			domain.StageMounting, domain.StageCommissioning, domain.StageProgramming,
		},
	},
	KindRestore: {
		domain.StageNegotiation: {
			domain.StageDesign, domain.StageLogistics, domain.StageAssembly, domain.StageMounting,
			domain.StageCommissioning, domain.StageProgramming, domain.StageSupport,
		},
		domain.StageDesign: {
			domain.StageLogistics, domain.StageAssembly, domain.StageMounting,
			domain.StageCommissioning, domain.StageProgramming, domain.StageSupport,
		},
		domain.StageLogistics: {
			domain.StageAssembly, domain.StageMounting, domain.StageCommissioning,
			domain.StageProgramming, domain.StageSupport,
		},
		domain.StageAssembly: {
			domain.StageMounting, domain.StageCommissioning, domain.StageProgramming, domain.StageSupport,
		},
		domain.StageMounting:      {domain.StageCommissioning, domain.StageProgramming, domain.StageSupport},
		domain.StageCommissioning: {domain.StageProgramming, domain.StageSupport},
		domain.StageProgramming:   {domain.StageSupport},
		domain.StageSupport:       {},
	},
}

// Allowed reports whether the transition table permits kind from -> to
func Allowed(kind Kind, from, to domain.StageID) bool {
	for _, s := range Transitions[kind][from] {
		if s == to {
			return true
		}
	}
	return false
}

// State is the part of an object the machine needs to plan a transition
type State struct {
	CurrentStage   domain.StageID
	Status         domain.ObjectStatus
	RolledBackFrom *domain.StageID
	// Reached lists every stage name the object has a stage row for
	Reached []domain.StageID
}

// StateOf builds a State from an object and its stage rows
func StateOf(obj *domain.Object, stages []domain.ObjectStage) State {
	reached := make([]domain.StageID, 0, len(stages))
	for _, s := range stages {
		reached = append(reached, s.StageName)
	}
	return State{
		CurrentStage:   obj.CurrentStage,
		Status:         obj.CurrentStatus,
		RolledBackFrom: obj.RolledBackFrom,
		Reached:        reached,
	}
}

func (s State) reached(stage domain.StageID) bool {
	if stage == s.CurrentStage {
		return true
	}
	for _, r := range s.Reached {
		if r == stage {
			return true
		}
	}
	return false
}

// Request asks the machine for a transition. Target is ignored for finalize and restore.
// An advance with an empty Target goes to the next stage in order.
type Request struct {
	Kind          Kind
	Target        domain.StageID
	Reason        string
	ResponsibleID *uuid.UUID
	Deadline      *time.Time
}

// Plan describes every mutation of one transition. It is applied as a unit.
type Plan struct {
	Kind Kind
	From domain.StageID
	To   domain.StageID

	// CloseActiveAs is the status given to the currently active stage row
	CloseActiveAs domain.StageStatus
	// OpenStage is false only for finalize, which creates no new row
	OpenStage bool
	// ReuseRolledBack reactivates the latest rolled back row of To instead of inserting
	ReuseRolledBack bool

	ResponsibleID *uuid.UUID
	Deadline      *time.Time

	// ObjectStatus, when set, replaces the object's current status
	ObjectStatus *domain.ObjectStatus
	// RolledBackFrom is written to the object when SetRolledBackFrom is true; nil clears it
	RolledBackFrom    *domain.StageID
	SetRolledBackFrom bool

	HistoryAction domain.HistoryAction
	Reason        string
}

// NewPlan validates req against the transition table and the object state and returns
// the mutations to apply
func NewPlan(state State, req Request) (*Plan, error) {
	if state.Status.IsTerminal() {
		return nil, ErrObjectCompleted
	}
	if !state.CurrentStage.IsValid() {
		return nil, fmt.Errorf("%w: unknown current stage %q", ErrInvalidTransition, state.CurrentStage)
	}

	switch req.Kind {
	case KindAdvance:
		return planAdvance(state, req)
	case KindFinalize:
		return planFinalize(state)
	case KindRollback:
		return planRollback(state, req)
	case KindRestore:
		return planRestore(state, req)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransition, req.Kind)
	}
}

func planAdvance(state State, req Request) (*Plan, error) {
	from := state.CurrentStage
	if from.IsLast() && (req.Target == "" || req.Target == from) {
		return planFinalize(state)
	}

	to := req.Target
	if to == "" {
		to, _ = from.Next()
	}
	if !Allowed(KindAdvance, from, to) {
		return nil, fmt.Errorf("%w: cannot advance from %s to %s", ErrInvalidTransition, from, to)
	}

	plan := &Plan{
		Kind:          KindAdvance,
		From:          from,
		To:            to,
		CloseActiveAs: domain.StageStatusCompleted,
		OpenStage:     true,
		ResponsibleID: req.ResponsibleID,
		Deadline:      req.Deadline,
		HistoryAction: domain.HistoryActionAdvanced,
	}
	if rb := state.RolledBackFrom; rb != nil && to.Index() >= rb.Index() {
		plan.SetRolledBackFrom = true
	}
	return plan, nil
}

func planFinalize(state State) (*Plan, error) {
	from := state.CurrentStage
	if !Allowed(KindFinalize, from, from) {
		return nil, fmt.Errorf("%w: cannot finalize from %s", ErrInvalidTransition, from)
	}
	completed := domain.ObjectStatusCompleted
	return &Plan{
		Kind:              KindFinalize,
		From:              from,
		To:                from,
		CloseActiveAs:     domain.StageStatusCompleted,
		OpenStage:         false,
		ObjectStatus:      &completed,
		SetRolledBackFrom: state.RolledBackFrom != nil,
		HistoryAction:     domain.HistoryActionFinalized,
	}, nil
}

func planRollback(state State, req Request) (*Plan, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	from, to := state.CurrentStage, req.Target
	if !Allowed(KindRollback, from, to) {
		return nil, fmt.Errorf("%w: cannot roll back from %s to %s", ErrInvalidTransition, from, to)
	}
	if !state.reached(to) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotReached, to)
	}

	rolledBackFrom := from
	return &Plan{
		Kind:              KindRollback,
		From:              from,
		To:                to,
		CloseActiveAs:     domain.StageStatusRolledBack,
		OpenStage:         true,
		ResponsibleID:     req.ResponsibleID,
		RolledBackFrom:    &rolledBackFrom,
		SetRolledBackFrom: true,
		HistoryAction:     domain.HistoryActionRolledBack,
		Reason:            reason,
	}, nil
}

func planRestore(state State, req Request) (*Plan, error) {
	if state.RolledBackFrom == nil {
		return nil, ErrNothingToRestore
	}
	from, to := state.CurrentStage, *state.RolledBackFrom
	if !Allowed(KindRestore, from, to) {
		return nil, fmt.Errorf("%w: cannot restore from %s to %s", ErrInvalidTransition, from, to)
	}
	return &Plan{
		Kind:              KindRestore,
		From:              from,
		To:                to,
		CloseActiveAs:     domain.StageStatusCompleted,
		OpenStage:         true,
		ReuseRolledBack:   true,
		ResponsibleID:     req.ResponsibleID,
		SetRolledBackFrom: true,
		HistoryAction:     domain.HistoryActionRestored,
	}, nil
}

// NeedsGate reports whether the task gate must be consulted before applying the plan
func (p *Plan) NeedsGate() bool {
	return p.Kind == KindAdvance || p.Kind == KindFinalize
}
