package shipping

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/database"
	"storefront-offers/internal/features"
	"storefront-offers/internal/validation"
)

type mapSource map[string]decimal.Decimal

func (m mapSource) DeliveryCharge(ctx context.Context, pincode string) (decimal.Decimal, bool, error) {
	c, ok := m[pincode]
	return c, ok, nil
}

type countingQuoter struct {
	calls  int
	charge decimal.Decimal
	err    error
}

func (q *countingQuoter) Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
	q.calls++
	return q.charge, q.err
}

func TestTableQuoter(t *testing.T) {
	q := NewTableQuoter(mapSource{"110001": decimal.NewFromInt(40)}, DefaultTableOptions(), zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		pincode string
		weight  int
		want    int64
	}{
		{"known pincode, light", "110001", 200, 40},
		{"known pincode, exactly one slab", "110001", 500, 40},
		{"known pincode, second slab", "110001", 501, 60},
		{"known pincode, three slabs", "110001", 1500, 80},
		{"unknown pincode uses default", "560099", 0, 50},
		{"unknown pincode, heavy", "560099", 2100, 130},
		{"whitespace is trimmed", " 110001 ", 100, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.Quote(ctx, tt.pincode, tt.weight)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestTableQuoter_RejectsBadInput(t *testing.T) {
	q := NewTableQuoter(mapSource{}, DefaultTableOptions(), zerolog.Nop())
	var verr *validation.ValidationError

	_, err := q.Quote(context.Background(), "12345", 100)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Quote(context.Background(), "012345", 100)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Quote(context.Background(), "110001", -1)
	assert.ErrorAs(t, err, &verr)
}

func TestTableQuoter_WithDatabase(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	q := NewTableQuoter(db, DefaultTableOptions(), zerolog.Nop())

	got, err := q.Quote(context.Background(), "781001", 700)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(110)), "got %s", got)
}

func TestCachedQuoter(t *testing.T) {
	next := &countingQuoter{charge: decimal.NewFromInt(45)}
	kv := cache.NewInMemoryCache()
	flags := features.NewDefaultManager(nil)
	q := NewCachedQuoter(next, kv, flags, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := q.Quote(ctx, "400001", 300)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(45)))
	}
	assert.Equal(t, 1, next.calls)

	_, err := q.Quote(ctx, "400001", 900)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "different weight is a different quote")

	flags.Disable(features.FeatureCacheEnabled)
	_, err = q.Quote(ctx, "400001", 300)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedQuoter_ErrorsAreNotCached(t *testing.T) {
	next := &countingQuoter{err: errors.New("provider down")}
	q := NewCachedQuoter(next, cache.NewInMemoryCache(), features.NewDefaultManager(nil), time.Minute, zerolog.Nop())

	_, err := q.Quote(context.Background(), "400001", 300)
	assert.Error(t, err)

	next.err = nil
	next.charge = decimal.NewFromInt(45)
	got, err := q.Quote(context.Background(), "400001", 300)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, 2, next.calls)
}

func TestCachedQuoter_CorruptEntryIsRefetched(t *testing.T) {
	next := &countingQuoter{charge: decimal.NewFromInt(60)}
	kv := cache.NewInMemoryCache()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, QuoteKey("700001", 100), []byte("sixty"), 0))

	q := NewCachedQuoter(next, kv, features.NewDefaultManager(nil), time.Minute, zerolog.Nop())
	got, err := q.Quote(ctx, "700001", 100)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 1, next.calls)
}

func TestBreakerQuoter_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &countingQuoter{err: errors.New("timeout")}
	q := NewBreakerQuoter(next, BreakerOptions{FailureThreshold: 3, OpenTimeout: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Quote(ctx, "110001", 100)
		assert.Error(t, err)
	}
	assert.Equal(t, "open", q.State())

	_, err := q.Quote(ctx, "110001", 100)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "open breaker must not call the provider")
}

func TestBreakerQuoter_ValidationErrorsDoNotTrip(t *testing.T) {
	inner := NewTableQuoter(mapSource{}, DefaultTableOptions(), zerolog.Nop())
	q := NewBreakerQuoter(inner, BreakerOptions{FailureThreshold: 2, OpenTimeout: time.Hour}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := q.Quote(context.Background(), "bad", 100)
		require.Error(t, err)
	}
	assert.Equal(t, "closed", q.State())

	got, err := q.Quote(context.Background(), "110001", 100)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(50)))
}

func TestQuoterFunc(t *testing.T) {
	var q Quoter = QuoterFunc(func(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
		return decimal.NewFromInt(int64(weightGrams)), nil
	})

	got, err := q.Quote(context.Background(), "110001", 12)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(12)))
}
