package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberSequenceService_Generate(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()
	author := uuid.MustParse("3f2a9c1b-0000-4000-8000-000000000001")
	other := uuid.New()

	first, err := s.numbers.GenerateProposalNumber(ctx, author)
	require.NoError(t, err)
	assert.Regexp(t, `^KP-\d{8}-3F2A9C1B-01$`, first)

	second, err := s.numbers.GenerateProposalNumber(ctx, author)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(second, "-02"))

	t.Run("each author has a separate counter", func(t *testing.T) {
		n, err := s.numbers.GenerateProposalNumber(ctx, other)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(n, "-01"))
	})

	t.Run("invoices are numbered apart from proposals", func(t *testing.T) {
		n, err := s.numbers.GenerateInvoiceNumber(ctx, author)
		require.NoError(t, err)
		assert.Regexp(t, `^INV-\d{8}-3F2A9C1B-01$`, n)
	})

	t.Run("author is required", func(t *testing.T) {
		_, err := s.numbers.GenerateProposalNumber(ctx, uuid.Nil)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}
