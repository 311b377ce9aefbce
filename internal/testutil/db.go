// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/database"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh in-memory SQLite database with the full schema migrated.
// The pool is pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err, "Failed to open in-memory test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db), "Failed to migrate test schema")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestProfile creates an active profile with the given name
func CreateTestProfile(t *testing.T, db *gorm.DB, name string) *domain.Profile {
	t.Helper()
	profile := &domain.Profile{
		FullName: name,
		Email:    uuid.NewString()[:8] + "@smartdom.test",
		Role:     domain.ProfileRoleManager,
		IsActive: true,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

// CreateTestClient creates a client owned by createdBy
func CreateTestClient(t *testing.T, db *gorm.DB, name string, createdBy uuid.UUID) *domain.Client {
	t.Helper()
	client := &domain.Client{
		Name:      name,
		Phone:     "+375291234567",
		CreatedBy: createdBy,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// CreateTestTask inserts a task directly, bypassing the service
func CreateTestTask(t *testing.T, db *gorm.DB, objectID uuid.UUID, stage domain.StageID, status domain.TaskStatus) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ObjectID: objectID,
		StageID:  stage,
		Title:    "Task for " + string(stage),
		Status:   status,
	}
	if status == domain.TaskStatusCompleted {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

// Money parses a decimal literal and fails the test on error
func Money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
