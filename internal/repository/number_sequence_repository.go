package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository hands out document sequence numbers. A sequence is
// keyed by scope, author and calendar day, so every author starts from 1 each day.
type NumberSequenceRepository struct {
	db *gorm.DB
}

func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// GetNextNumber atomically increments and returns the sequence for scope/author/day,
// creating it at 1 on first use. day is formatted YYYYMMDD.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, scope domain.SequenceScope, authorID uuid.UUID, day string) (int, error) {
	var next int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.NumberSequence
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("scope = ? AND author_id = ? AND day = ?", scope, authorID, day).
			First(&seq)

		switch {
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			seq = domain.NumberSequence{
				Scope:        scope,
				AuthorID:     authorID,
				Day:          day,
				LastSequence: 1,
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create number sequence: %w", err)
			}
			next = 1
		case result.Error != nil:
			return fmt.Errorf("failed to get number sequence: %w", result.Error)
		default:
			next = seq.LastSequence + 1
			if err := tx.Model(&seq).Updates(map[string]interface{}{
				"last_sequence": next,
				"updated_at":    time.Now().UTC(),
			}).Error; err != nil {
				return fmt.Errorf("failed to update number sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// GetCurrentSequence returns the last issued number, or 0 when none was issued
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, scope domain.SequenceScope, authorID uuid.UUID, day string) (int, error) {
	var seq domain.NumberSequence
	err := r.db.WithContext(ctx).
		Where("scope = ? AND author_id = ? AND day = ?", scope, authorID, day).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", err)
	}
	return seq.LastSequence, nil
}
