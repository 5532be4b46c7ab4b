package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRepository_FindByEmail(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := repo.Create(ctx, &model.Customer{
		CompanyID: 1,
		Name:      "Pat Jones",
		Email:     "pat@example.com",
		CreatedAt: older,
		UpdatedAt: older,
	})
	require.NoError(t, err)

	second, err := repo.Create(ctx, &model.Customer{
		CompanyID: 1,
		Name:      "Pat Jones (new)",
		Email:     "PAT@Example.COM",
		CreatedAt: newer,
		UpdatedAt: newer,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.Customer{
		CompanyID: 2,
		Name:      "Other Tenant Pat",
		Email:     "pat@example.com",
		CreatedAt: newer,
		UpdatedAt: newer,
	})
	require.NoError(t, err)

	t.Run("case-insensitive match scoped to company", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, 1, "  Pat@Example.com ")
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("most recently updated first", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, 1, "pat@example.com")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := repo.FindByEmail(ctx, 1, "nobody@example.com")
		require.NoError(t, err)
		assert.Len(t, got, 0)
	})
}

func TestCustomerRepository_GetByID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Customer{CompanyID: 1, Name: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.Name)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
