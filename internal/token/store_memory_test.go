package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

func TestInMemoryStore_MintInfo(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, err := store.MintInfo(ctx)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.ErrorIs(t, store.UpdateMintInfo(ctx, &MintInfo{}), sentinel.ErrNotFound)

	info := &MintInfo{
		Mint:         domain.MintID(uuid.New()),
		Issuer:       domain.AuthorityKey(uuid.New()),
		Active:       true,
		CreationTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateMintInfo(ctx, info))
	require.ErrorIs(t, store.CreateMintInfo(ctx, info), sentinel.ErrConflict)

	loaded, err := store.MintInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.Mint, loaded.Mint)

	// Mutating the returned copy must not leak into the store.
	loaded.Active = false
	reloaded, err := store.MintInfo(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded.Active)

	reloaded.ReserveIPFSCID = "bafybeireserve"
	require.NoError(t, store.UpdateMintInfo(ctx, reloaded))
	final, err := store.MintInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bafybeireserve", final.ReserveIPFSCID)
}
