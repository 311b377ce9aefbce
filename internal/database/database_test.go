package database_test

import (
	"testing"

	"github.com/smartdom/crm-api/internal/database"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := testutil.SetupTestDB(t)

	for _, model := range []interface{}{
		&domain.Object{}, &domain.ObjectStage{}, &domain.ObjectHistory{}, &domain.Task{},
		&domain.Proposal{}, &domain.ProposalItem{}, &domain.Invoice{}, &domain.InvoiceItem{},
		&domain.InvoicePayment{}, &domain.Notification{}, &domain.NumberSequence{},
	} {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, db.Migrator().HasTable("object_history"))
}

func TestHealthCheckWithStats(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, database.HealthCheck(db))
	stats, err := database.HealthCheckWithStats(db)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConns)
}
