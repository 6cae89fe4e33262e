//go:build integration

package aml

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/domain"
	"custos/pkg/testutil/containers"
)

func TestRedisBlacklistCache_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	t.Run("round trip and negative caching", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		cache := NewRedisBlacklistCache(rc.Client, time.Minute)
		userID := domain.UserID(uuid.New())

		_, found, err := cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.False(t, found, "cold cache must report a miss")

		require.NoError(t, cache.Set(ctx, userID, true))
		listed, found, err := cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, listed)

		// Clear answers are cached too, so repeated screening of clean
		// users stays off the database.
		require.NoError(t, cache.Set(ctx, userID, false))
		listed, found, err = cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, listed)
	})

	t.Run("entries expire after the TTL", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		cache := NewRedisBlacklistCache(rc.Client, 100*time.Millisecond)
		userID := domain.UserID(uuid.New())

		require.NoError(t, cache.Set(ctx, userID, true))
		require.Eventually(t, func() bool {
			_, found, err := cache.Get(ctx, userID)
			return err == nil && !found
		}, 2*time.Second, 50*time.Millisecond, "cached answer must expire")
	})

	t.Run("service writes through on mutations", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		cache := NewRedisBlacklistCache(rc.Client, time.Minute)

		service := NewService(NewInMemoryStore(),
			WithCache(cache),
			WithLogger(slog.New(slog.DiscardHandler)))

		authority := domain.AuthorityKey(uuid.New())
		_, err := service.RegisterAuthority(ctx, RegisterAuthorityParams{
			Key:         authority,
			AuthorityID: "FIU-DE",
			Powers:      PowerView | PowerModifyBlacklist,
		})
		require.NoError(t, err)

		userID := domain.UserID(uuid.New())
		_, err = service.Blacklist(ctx, BlacklistParams{
			UserID:    userID,
			Authority: authority,
			Reason:    "sanctions match",
		})
		require.NoError(t, err)

		listed, found, err := cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, found, "listing must write through to the cache")
		assert.True(t, listed)

		_, err = service.DeactivateEntry(ctx, BlacklistParams{
			UserID:    userID,
			Authority: authority,
			Reason:    "court order lifted",
		})
		require.NoError(t, err)

		listed, found, err = cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, found, "release must write through to the cache")
		assert.False(t, listed)

		screened, err := service.IsBlacklisted(ctx, userID)
		require.NoError(t, err)
		assert.False(t, screened)
	})
}
