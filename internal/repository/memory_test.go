package repository

import (
	"context"
	"testing"
	"time"

	"cleanops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFieldStateRepository(t *testing.T) {
	repo := NewMemoryFieldStateRepository(time.Hour)
	now := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SaveAndLoadPing", func(t *testing.T) {
		ping := &models.LocationPing{EmployeeID: 123, Location: models.Location{Latitude: 1, Longitude: 2}}
		require.NoError(t, repo.SavePing(ctx, ping))

		got, err := repo.LatestPing(ctx, 123)
		require.NoError(t, err)
		assert.Equal(t, ping, got)
		assert.NotSame(t, ping, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		got, err := repo.LatestPing(ctx, 123)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearPing", func(t *testing.T) {
		require.NoError(t, repo.SavePing(ctx, &models.LocationPing{EmployeeID: 7}))
		require.NoError(t, repo.ClearPing(ctx, 7))
		got, _ := repo.LatestPing(ctx, 7)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "ping:456"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
	})
}
