package shipping

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-offers/internal/validation"
)

// Quoter prices delivery of a package to a pincode.
type Quoter interface {
	Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error)
}

// QuoterFunc adapts a function to Quoter.
type QuoterFunc func(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error)

func (f QuoterFunc) Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
	return f(ctx, pincode, weightGrams)
}

// ChargeSource looks up the base delivery charge of a pincode.
type ChargeSource interface {
	DeliveryCharge(ctx context.Context, pincode string) (decimal.Decimal, bool, error)
}

// TableOptions configures TableQuoter.
type TableOptions struct {
	DefaultCharge decimal.Decimal // base charge for pincodes without a row
	SlabGrams     int
	PerSlab       decimal.Decimal // added for every slab after the first
}

// DefaultTableOptions returns ₹50 base and ₹20 per extra 500 g.
func DefaultTableOptions() TableOptions {
	return TableOptions{
		DefaultCharge: decimal.NewFromInt(50),
		SlabGrams:     500,
		PerSlab:       decimal.NewFromInt(20),
	}
}

// TableQuoter quotes from a per-pincode charge table plus a weight surcharge.
type TableQuoter struct {
	source ChargeSource
	opts   TableOptions
	logger zerolog.Logger
}

// NewTableQuoter creates a quoter over source.
func NewTableQuoter(source ChargeSource, opts TableOptions, logger zerolog.Logger) *TableQuoter {
	if opts.SlabGrams <= 0 {
		opts.SlabGrams = DefaultTableOptions().SlabGrams
	}
	return &TableQuoter{source: source, opts: opts, logger: logger}
}

// Quote returns base + perSlab * (slabs - 1), where slabs rounds the weight up.
func (q *TableQuoter) Quote(ctx context.Context, pincode string, weightGrams int) (decimal.Decimal, error) {
	pincode = validation.SanitizeString(pincode)
	if err := validation.ValidatePincode(pincode); err != nil {
		return decimal.Zero, err
	}
	if err := validation.ValidateWeight(weightGrams); err != nil {
		return decimal.Zero, err
	}

	base, ok, err := q.source.DeliveryCharge(ctx, pincode)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to look up delivery charge: %w", err)
	}
	if !ok {
		q.logger.Debug().Str("pincode", pincode).Str("charge", q.opts.DefaultCharge.String()).
			Msg("pincode not in delivery table, using default charge")
		base = q.opts.DefaultCharge
	}

	return base.Add(q.opts.PerSlab.Mul(decimal.NewFromInt(int64(extraSlabs(weightGrams, q.opts.SlabGrams))))), nil
}

func extraSlabs(weightGrams, slabGrams int) int {
	if weightGrams <= slabGrams {
		return 0
	}
	slabs := (weightGrams + slabGrams - 1) / slabGrams
	return slabs - 1
}
