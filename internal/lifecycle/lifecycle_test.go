package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/catalog"
	"storefront-offers/internal/events"
	"storefront-offers/internal/models"
)

type failingCache struct{ *cache.InMemoryCache }

func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("disk full")
}

func setupStore(t *testing.T) (*Store, *cache.InMemoryCache) {
	t.Helper()
	kv := cache.NewInMemoryCache()
	return NewStore(kv, events.NewManager(true, zerolog.Nop()), zerolog.Nop()), kv
}

func offerByID(t *testing.T, id string) models.Offer {
	t.Helper()
	o, err := catalog.Default().Lookup(id)
	require.NoError(t, err)
	return o
}

func TestActivateThenActive_RoundTrips(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	profile := uuid.NewString()

	for _, id := range []string{"discount_100", "free_keychain", "golden_dragon"} {
		offer := offerByID(t, id)
		require.NoError(t, s.Activate(ctx, profile, offer))

		got := s.Active(ctx, profile)
		require.NotNil(t, got)
		assert.Equal(t, offer, *got)
	}
}

func TestActivate_ReplacesPrevious(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	profile := uuid.NewString()

	require.NoError(t, s.Activate(ctx, profile, offerByID(t, "discount_10")))
	require.NoError(t, s.Activate(ctx, profile, offerByID(t, "discount_100")))

	got := s.Active(ctx, profile)
	require.NotNil(t, got)
	assert.Equal(t, "discount_100", got.ID)
}

func TestClear(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	profile := uuid.NewString()

	require.NoError(t, s.Activate(ctx, profile, offerByID(t, "discount_10")))
	require.NoError(t, s.Clear(ctx, profile))
	assert.Nil(t, s.Active(ctx, profile))

	// clearing twice is harmless
	require.NoError(t, s.Clear(ctx, profile))
}

func TestActive_MissingAndCorrupt(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()
	profile := uuid.NewString()

	assert.Nil(t, s.Active(ctx, profile))

	require.NoError(t, kv.Set(ctx, ActiveKey(profile), []byte("{not json"), 0))
	assert.Nil(t, s.Active(ctx, profile))

	require.NoError(t, kv.Set(ctx, ActiveKey(profile), []byte(`{"title":"no id"}`), 0))
	assert.Nil(t, s.Active(ctx, profile))
}

func TestProfilesAreIsolated(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()

	require.NoError(t, s.Activate(ctx, a, offerByID(t, "discount_10")))
	assert.Nil(t, s.Active(ctx, b))
}

func TestNoClientContext_IsNoOp(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()

	notified := false
	s.Subscribe(func(ctx context.Context, profile string, offer *models.Offer) { notified = true })

	require.NoError(t, s.Activate(ctx, "", offerByID(t, "discount_10")))
	assert.Nil(t, s.Active(ctx, ""))
	require.NoError(t, s.Clear(ctx, ""))
	assert.False(t, notified)

	_, err := kv.Get(ctx, ActiveKey(""))
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestSubscribe_NotifiesSynchronously(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	profile := uuid.NewString()

	type change struct {
		profile string
		offerID string
	}
	var got []change
	unsubscribe := s.Subscribe(func(ctx context.Context, p string, offer *models.Offer) {
		c := change{profile: p}
		if offer != nil {
			c.offerID = offer.ID
		}
		got = append(got, c)
	})

	require.NoError(t, s.Activate(ctx, profile, offerByID(t, "discount_15")))
	require.Len(t, got, 1, "listener must run before Activate returns")
	require.NoError(t, s.Clear(ctx, profile))

	assert.Equal(t, []change{{profile, "discount_15"}, {profile, ""}}, got)

	unsubscribe()
	require.NoError(t, s.Activate(ctx, profile, offerByID(t, "discount_10")))
	assert.Len(t, got, 2)
}

func TestActivate_PersistFailureSkipsNotification(t *testing.T) {
	kv := failingCache{cache.NewInMemoryCache()}
	s := NewStore(kv, events.NewManager(true, zerolog.Nop()), zerolog.Nop())

	notified := false
	s.Subscribe(func(ctx context.Context, profile string, offer *models.Offer) { notified = true })

	err := s.Activate(context.Background(), uuid.NewString(), offerByID(t, "discount_10"))
	assert.Error(t, err)
	assert.False(t, notified)
}
