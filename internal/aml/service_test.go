package aml_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/internal/aml"
	"custos/internal/audit"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/requestcontext"
)

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

type capturingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *capturingAuditor) Emit(_ context.Context, event audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *capturingAuditor) Last() (audit.Event, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return audit.Event{}, false
	}
	return a.events[len(a.events)-1], true
}

type fakeCache struct {
	mu   sync.Mutex
	data map[domain.UserID]bool
	down bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[domain.UserID]bool)}
}

func (c *fakeCache) Get(_ context.Context, userID domain.UserID) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return false, false, errors.New("cache unavailable")
	}
	listed, ok := c.data[userID]
	return listed, ok, nil
}

func (c *fakeCache) Set(_ context.Context, userID domain.UserID, listed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return errors.New("cache unavailable")
	}
	c.data[userID] = listed
	return nil
}

func newTestService(t *testing.T, opts ...aml.Option) (*aml.Service, *aml.InMemoryStore, *capturingAuditor) {
	t.Helper()
	store := aml.NewInMemoryStore()
	auditor := &capturingAuditor{}
	opts = append(opts, aml.WithAuditor(auditor))
	return aml.NewService(store, opts...), store, auditor
}

func registerAuthority(t *testing.T, svc *aml.Service, powers aml.Power) domain.AuthorityKey {
	t.Helper()
	key := domain.AuthorityKey(uuid.New())
	_, err := svc.RegisterAuthority(ctxAt(testClock), aml.RegisterAuthorityParams{
		Key:         key,
		AuthorityID: "BaFin",
		Powers:      powers,
	})
	require.NoError(t, err)
	return key
}

func TestRegisterAuthority(t *testing.T) {
	t.Run("creates active record with timestamps", func(t *testing.T) {
		svc, _, auditor := newTestService(t)
		key := domain.AuthorityKey(uuid.New())

		authority, err := svc.RegisterAuthority(ctxAt(testClock), aml.RegisterAuthorityParams{
			Key:         key,
			AuthorityID: "FIU",
			Powers:      aml.PowerView | aml.PowerModifyBlacklist,
		})
		require.NoError(t, err)
		assert.True(t, authority.Active)
		assert.Equal(t, testClock, authority.RegisteredTime)
		assert.Equal(t, testClock, authority.LastActionTime)
		assert.True(t, authority.Powers.Has(aml.PowerModifyBlacklist))
		assert.False(t, authority.Powers.Has(aml.PowerFreeze))

		last, ok := auditor.Last()
		require.True(t, ok)
		assert.Equal(t, audit.EventAuthorityRegistered, last.Event)
	})

	t.Run("duplicate key conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.AllPowers)

		_, err := svc.RegisterAuthority(ctxAt(testClock), aml.RegisterAuthorityParams{
			Key: key, AuthorityID: "other", Powers: aml.PowerView,
		})
		require.ErrorIs(t, err, aml.ErrAuthorityExists)
	})

	t.Run("requires an authority id", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.RegisterAuthority(ctxAt(testClock), aml.RegisterAuthorityParams{
			Key: domain.AuthorityKey(uuid.New()),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestDeactivateAuthority(t *testing.T) {
	t.Run("strips all powers at once", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.AllPowers)

		later := testClock.Add(time.Hour)
		authority, err := svc.DeactivateAuthority(ctxAt(later), key)
		require.NoError(t, err)
		assert.False(t, authority.Active)
		assert.Equal(t, later, authority.LastActionTime)

		// A deactivated authority cannot act even though its power bits remain.
		_, err = svc.Blacklist(ctxAt(later), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: key,
			Reason:    "sanctions match",
		})
		require.ErrorIs(t, err, aml.ErrAuthorityInactive)
	})

	t.Run("already inactive", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.AllPowers)
		_, err := svc.DeactivateAuthority(ctxAt(testClock), key)
		require.NoError(t, err)

		_, err = svc.DeactivateAuthority(ctxAt(testClock), key)
		require.ErrorIs(t, err, aml.ErrAuthorityInactive)
	})

	t.Run("unknown authority", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.DeactivateAuthority(ctxAt(testClock), domain.AuthorityKey(uuid.New()))
		require.ErrorIs(t, err, aml.ErrAuthorityNotFound)
	})
}

func TestUpdatePowers(t *testing.T) {
	t.Run("replaces the bit field", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerView)

		authority, err := svc.UpdatePowers(ctxAt(testClock.Add(time.Minute)), key, aml.PowerView|aml.PowerFreeze)
		require.NoError(t, err)
		assert.True(t, authority.Powers.Has(aml.PowerFreeze))
		assert.Equal(t, testClock.Add(time.Minute), authority.LastActionTime)

		// Replacement, not accumulation: dropping a power works the same way.
		authority, err = svc.UpdatePowers(ctxAt(testClock.Add(2*time.Minute)), key, aml.PowerFreeze)
		require.NoError(t, err)
		assert.False(t, authority.Powers.Has(aml.PowerView))
	})

	t.Run("deactivated authority cannot be repowered", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.AllPowers)
		_, err := svc.DeactivateAuthority(ctxAt(testClock), key)
		require.NoError(t, err)

		_, err = svc.UpdatePowers(ctxAt(testClock), key, aml.AllPowers)
		require.ErrorIs(t, err, aml.ErrAuthorityInactive)
	})
}

func TestBlacklist(t *testing.T) {
	t.Run("blocks a user", func(t *testing.T) {
		svc, _, auditor := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		entry, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{
			UserID:    user,
			Authority: key,
			Reason:    "sanctions match",
		})
		require.NoError(t, err)
		assert.True(t, entry.Active)
		assert.Equal(t, key, entry.Authority)
		assert.Equal(t, "sanctions match", entry.Reason)
		assert.Equal(t, testClock, entry.CreationTime)

		listed, err := svc.IsBlacklisted(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, listed)

		last, ok := auditor.Last()
		require.True(t, ok)
		assert.Equal(t, audit.EventBlacklistCreated, last.Event)
		assert.Equal(t, user.String(), last.Subject)
	})

	t.Run("listing twice conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)
		_, err = svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.ErrorIs(t, err, aml.ErrUserBlacklisted)
	})

	t.Run("relisting a deactivated entry refreshes it", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		first := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		second := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: first, Reason: "fraud"})
		require.NoError(t, err)
		_, err = svc.DeactivateEntry(ctxAt(testClock.Add(time.Hour)), aml.BlacklistParams{UserID: user, Authority: first})
		require.NoError(t, err)

		relistedAt := testClock.Add(48 * time.Hour)
		entry, err := svc.Blacklist(ctxAt(relistedAt), aml.BlacklistParams{UserID: user, Authority: second, Reason: "structuring"})
		require.NoError(t, err)
		assert.True(t, entry.Active)
		assert.Equal(t, second, entry.Authority)
		assert.Equal(t, "structuring", entry.Reason)
		assert.Equal(t, relistedAt, entry.CreationTime)
	})

	t.Run("requires modify_blacklist power", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerView|aml.PowerFreeze|aml.PowerSeize)

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: key,
			Reason:    "fraud",
		})
		require.ErrorIs(t, err, aml.ErrUnauthorizedAuthority)
	})

	t.Run("unregistered authority", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: domain.AuthorityKey(uuid.New()),
			Reason:    "fraud",
		})
		require.ErrorIs(t, err, aml.ErrAuthorityNotFound)
	})

	t.Run("requires a reason", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: key,
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("stamps the acting authority", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)

		actedAt := testClock.Add(3 * time.Hour)
		_, err := svc.Blacklist(ctxAt(actedAt), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: key,
			Reason:    "fraud",
		})
		require.NoError(t, err)

		authority, err := svc.Authority(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, actedAt, authority.LastActionTime)
	})
}

func TestDeactivateEntry(t *testing.T) {
	t.Run("lifts the block", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)

		entry, err := svc.DeactivateEntry(ctxAt(testClock.Add(time.Hour)), aml.BlacklistParams{UserID: user, Authority: key})
		require.NoError(t, err)
		assert.False(t, entry.Active)

		listed, err := svc.IsBlacklisted(context.Background(), user)
		require.NoError(t, err)
		assert.False(t, listed, "a deactivated entry must not block the user")
	})

	t.Run("any empowered authority may lift a block", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		lister := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		other := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: lister, Reason: "fraud"})
		require.NoError(t, err)

		_, err = svc.DeactivateEntry(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: other})
		require.NoError(t, err)
	})

	t.Run("no entry", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		_, err := svc.DeactivateEntry(ctxAt(testClock), aml.BlacklistParams{
			UserID:    domain.UserID(uuid.New()),
			Authority: key,
		})
		require.ErrorIs(t, err, aml.ErrEntryNotFound)
	})

	t.Run("already deactivated", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)
		_, err = svc.DeactivateEntry(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key})
		require.NoError(t, err)

		_, err = svc.DeactivateEntry(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key})
		require.ErrorIs(t, err, aml.ErrEntryInactive)
	})
}

func TestIsBlacklisted(t *testing.T) {
	t.Run("unknown user is clear", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		listed, err := svc.IsBlacklisted(context.Background(), domain.UserID(uuid.New()))
		require.NoError(t, err)
		assert.False(t, listed)
	})

	t.Run("cache answers repeat screenings", func(t *testing.T) {
		cache := newFakeCache()
		svc, store, _ := newTestService(t, aml.WithCache(cache))
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)

		// The mutation wrote through, so the store never sees this check.
		store.Clear()
		listed, err := svc.IsBlacklisted(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, listed)
	})

	t.Run("cache miss falls through and backfills", func(t *testing.T) {
		cache := newFakeCache()
		store := aml.NewInMemoryStore()
		svc := aml.NewService(store, aml.WithCache(cache))
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)
		cache.data = make(map[domain.UserID]bool)

		listed, err := svc.IsBlacklisted(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, listed)

		cached, ok, err := cache.Get(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, ok, "the store answer must be backfilled into the cache")
		assert.True(t, cached)
	})

	t.Run("degraded cache falls back to the store", func(t *testing.T) {
		cache := newFakeCache()
		cache.down = true
		svc, _, _ := newTestService(t, aml.WithCache(cache))
		key := registerAuthority(t, svc, aml.PowerModifyBlacklist)
		user := domain.UserID(uuid.New())

		_, err := svc.Blacklist(ctxAt(testClock), aml.BlacklistParams{UserID: user, Authority: key, Reason: "fraud"})
		require.NoError(t, err)

		listed, err := svc.IsBlacklisted(context.Background(), user)
		require.NoError(t, err)
		assert.True(t, listed, "screening must work with the cache down")
	})
}
