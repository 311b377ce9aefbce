package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberSequenceRepository_GetNextNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNumberSequenceRepository(db)
	ctx := context.Background()
	author := uuid.New()

	current, err := repo.GetCurrentSequence(ctx, domain.SequenceScopeProposal, author, "20261018")
	require.NoError(t, err)
	assert.Zero(t, current)

	for want := 1; want <= 3; want++ {
		n, err := repo.GetNextNumber(ctx, domain.SequenceScopeProposal, author, "20261018")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	t.Run("sequences are independent per key", func(t *testing.T) {
		n, err := repo.GetNextNumber(ctx, domain.SequenceScopeProposal, author, "20261019")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.GetNextNumber(ctx, domain.SequenceScopeInvoice, author, "20261018")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.GetNextNumber(ctx, domain.SequenceScopeProposal, uuid.New(), "20261018")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	current, err = repo.GetCurrentSequence(ctx, domain.SequenceScopeProposal, author, "20261018")
	require.NoError(t, err)
	assert.Equal(t, 3, current)
}
