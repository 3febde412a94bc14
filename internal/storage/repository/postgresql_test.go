package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/storeplan-sync/internal/migrations"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("SKIP_INTEGRATION_TESTS") != "" {
		t.Skip("SKIP_INTEGRATION_TESTS is set")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	_, err = migrations.Run(storage.DB, filepath.Join(root, "migrations"))
	require.NoError(t, err)
	require.NoError(t, CheckDatabaseReady(ctx, storage))
	return storage
}

func TestStorage_Sites(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()

	_, err := storage.GetSite(ctx, 1)
	require.ErrorIs(t, err, ErrSiteNotFound)

	site := models.Site{ID: 1, Name: "Shop", URL: "https://shop.example.com", OwnerEmail: "owner@example.com", IsWordPressComStore: true}
	require.NoError(t, storage.UpsertSite(ctx, site))

	got, err := storage.GetSite(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, site, *got)

	site.Name = "Renamed"
	require.NoError(t, storage.UpsertSite(ctx, site))
	got, err = storage.GetSite(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestStorage_CurrentPlan(t *testing.T) {
	storage := setupTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, storage.UpsertSite(ctx, models.Site{ID: 7, Name: "Shop", IsWordPressComStore: true}))

	_, err := storage.LoadCurrentPlan(ctx, 7)
	require.ErrorIs(t, err, models.ErrNoCurrentPlan)

	subscribed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trial := models.PlanSnapshot{
		ID:             models.FreeTrialPlanID,
		Name:           models.FreeTrialPlanSlug,
		IsFreeTrial:    true,
		SubscribedDate: &subscribed,
	}
	require.NoError(t, storage.SetCurrentPlan(ctx, 7, trial))

	got, err := storage.LoadCurrentPlan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, trial.ID, got.ID)
	assert.True(t, got.IsFreeTrial)
	require.NotNil(t, got.SubscribedDate)
	assert.True(t, subscribed.Equal(*got.SubscribedDate))
	assert.Nil(t, got.ExpiryDate)

	require.NoError(t, storage.SetCurrentPlan(ctx, 7, models.PlanSnapshot{ID: "1011", Name: "business-bundle"}))
	got, err = storage.LoadCurrentPlan(ctx, 7)
	require.NoError(t, err)
	assert.False(t, got.IsFreeTrial)
	assert.Nil(t, got.SubscribedDate)

	require.NoError(t, storage.DeleteCurrentPlan(ctx, 7))
	_, err = storage.LoadCurrentPlan(ctx, 7)
	require.ErrorIs(t, err, models.ErrNoCurrentPlan)
}

func TestStorage_CancelledContext(t *testing.T) {
	storage := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.GetSite(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = storage.LoadCurrentPlan(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, storage.UpsertSite(ctx, models.Site{ID: 1}), context.Canceled)
	require.ErrorIs(t, storage.SetCurrentPlan(ctx, 1, models.PlanSnapshot{}), context.Canceled)
}
