package domain_test

import (
	"testing"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStageOrder(t *testing.T) {
	assert.Len(t, domain.StageOrder, 8)
	assert.Equal(t, domain.StageNegotiation, domain.StageOrder[0])
	assert.Equal(t, domain.StageSupport, domain.StageOrder[7])
	assert.Equal(t, domain.FirstStage, domain.StageOrder[0])
	assert.Equal(t, domain.LastStage, domain.StageOrder[len(domain.StageOrder)-1])
}

func TestStageID_Index(t *testing.T) {
	for i, s := range domain.StageOrder {
		assert.Equal(t, i, s.Index(), "stage %s", s)
		assert.True(t, s.IsValid())
	}
	assert.Equal(t, -1, domain.StageID("warehouse").Index())
	assert.False(t, domain.StageID("").IsValid())
}

func TestStageID_Next(t *testing.T) {
	next, ok := domain.StageNegotiation.Next()
	assert.True(t, ok)
	assert.Equal(t, domain.StageDesign, next)

	next, ok = domain.StageProgramming.Next()
	assert.True(t, ok)
	assert.Equal(t, domain.StageSupport, next)

	_, ok = domain.StageSupport.Next()
	assert.False(t, ok)

	_, ok = domain.StageID("unknown").Next()
	assert.False(t, ok)
}

func TestStageID_Before(t *testing.T) {
	assert.True(t, domain.StageNegotiation.Before(domain.StageDesign))
	assert.True(t, domain.StageDesign.Before(domain.StageSupport))
	assert.False(t, domain.StageDesign.Before(domain.StageDesign))
	assert.False(t, domain.StageSupport.Before(domain.StageLogistics))
	assert.False(t, domain.StageID("x").Before(domain.StageSupport))
}

func TestObjectStatus(t *testing.T) {
	tests := []struct {
		status   domain.ObjectStatus
		valid    bool
		terminal bool
	}{
		{domain.ObjectStatusInWork, true, false},
		{domain.ObjectStatusOnPause, true, false},
		{domain.ObjectStatusFrozen, true, false},
		{domain.ObjectStatusReviewRequired, true, false},
		{domain.ObjectStatusCompleted, true, true},
		{domain.ObjectStatus("archived"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestStageStatus_IsValid(t *testing.T) {
	assert.True(t, domain.StageStatusActive.IsValid())
	assert.True(t, domain.StageStatusRolledBack.IsValid())
	assert.False(t, domain.StageStatus("done").IsValid())
}
