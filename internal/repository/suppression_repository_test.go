package repository

import (
	"context"
	"testing"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuppressionRepository_Upsert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSuppressionRepository(db)
	ctx := context.Background()

	t.Run("repeated signals keep one row", func(t *testing.T) {
		_, err := repo.Upsert(ctx, &model.Suppression{
			CompanyID: 1,
			Email:     "Bounce@Example.com",
			Reason:    model.SuppressionReasonBounce,
			Source:    model.SuppressionSourceWebhook,
		})
		require.NoError(t, err)

		_, err = repo.Upsert(ctx, &model.Suppression{
			CompanyID: 1,
			Email:     "bounce@example.com",
			Reason:    model.SuppressionReasonComplaint,
			Source:    model.SuppressionSourceWebhook,
		})
		require.NoError(t, err)

		list, err := repo.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, model.SuppressionReasonBounce, list[0].Reason)
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := repo.Upsert(ctx, &model.Suppression{
			CompanyID: 2,
			Email:     "bounce@example.com",
			Reason:    model.SuppressionReasonBounce,
			Source:    model.SuppressionSourceWebhook,
		})
		require.NoError(t, err)

		list, err := repo.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestSuppressionRepository_IsSuppressed(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewSuppressionRepository(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &model.Suppression{
		CompanyID: 1,
		Email:     "blocked@example.com",
		Reason:    model.SuppressionReasonComplaint,
		Source:    model.SuppressionSourceWebhook,
	})
	require.NoError(t, err)

	suppressed, err := repo.IsSuppressed(ctx, 1, "  BLOCKED@example.com ")
	require.NoError(t, err)
	assert.True(t, suppressed)

	suppressed, err = repo.IsSuppressed(ctx, 1, "fine@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)

	suppressed, err = repo.IsSuppressed(ctx, 2, "blocked@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)
}
