package domain

// StageID identifies one of the eight fixed phases of an installation object
type StageID string

const (
	StageNegotiation   StageID = "negotiation"
	StageDesign        StageID = "design"
	StageLogistics     StageID = "logistics"
	StageAssembly      StageID = "assembly"
	StageMounting      StageID = "mounting"
	StageCommissioning StageID = "commissioning"
	StageProgramming   StageID = "programming"
	StageSupport       StageID = "support"
)

// StageOrder is the canonical progression of an object
var StageOrder = [...]StageID{
	StageNegotiation,
	StageDesign,
	StageLogistics,
	StageAssembly,
	StageMounting,
	StageCommissioning,
	StageProgramming,
	StageSupport,
}

// FirstStage is the stage every new object starts in
const FirstStage = StageNegotiation

// LastStage is the stage from which an object can only be finalized
const LastStage = StageSupport

// Index returns the position of the stage in StageOrder, or -1 for unknown values
func (s StageID) Index() int {
	for i, id := range StageOrder {
		if id == s {
			return i
		}
	}
	return -1
}

// IsValid checks if the StageID is one of the canonical stages
func (s StageID) IsValid() bool {
	return s.Index() >= 0
}

// Next returns the stage that follows s. ok is false for the last stage and unknown values.
func (s StageID) Next() (StageID, bool) {
	i := s.Index()
	if i < 0 || i == len(StageOrder)-1 {
		return "", false
	}
	return StageOrder[i+1], true
}

// Before reports whether s comes strictly earlier than other in the canonical order
func (s StageID) Before(other StageID) bool {
	i, j := s.Index(), other.Index()
	return i >= 0 && j >= 0 && i < j
}

// IsLast reports whether s is the terminal stage
func (s StageID) IsLast() bool {
	return s == LastStage
}

// StageStatus is the state of a single ObjectStage row
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusActive     StageStatus = "active"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusRolledBack StageStatus = "rolled_back"
)

// IsValid checks if the StageStatus is a valid enum value
func (s StageStatus) IsValid() bool {
	switch s {
	case StageStatusPending, StageStatusActive, StageStatusCompleted, StageStatusRolledBack:
		return true
	}
	return false
}

// ObjectStatus is the work status of an object within its current stage
type ObjectStatus string

const (
	ObjectStatusInWork         ObjectStatus = "in_work"
	ObjectStatusOnPause        ObjectStatus = "on_pause"
	ObjectStatusFrozen         ObjectStatus = "frozen"
	ObjectStatusReviewRequired ObjectStatus = "review_required"
	ObjectStatusCompleted      ObjectStatus = "completed"
)

// IsValid checks if the ObjectStatus is a valid enum value
func (s ObjectStatus) IsValid() bool {
	switch s {
	case ObjectStatusInWork, ObjectStatusOnPause, ObjectStatusFrozen, ObjectStatusReviewRequired, ObjectStatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further stage transitions are allowed
func (s ObjectStatus) IsTerminal() bool {
	return s == ObjectStatusCompleted
}
