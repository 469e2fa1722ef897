package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/degentalk/ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FeeRouter splits transfer amounts into the recipient's share and the
// treasury fee. It holds no state beyond its configuration.
type FeeRouter struct {
	percent   decimal.Decimal
	overrides map[models.EntryKind]decimal.Decimal
}

// NewFeeRouter validates percentages; each must lie in [0, 100)
func NewFeeRouter(percent decimal.Decimal, overrides map[models.EntryKind]decimal.Decimal) (*FeeRouter, error) {
	if err := checkPercent(percent); err != nil {
		return nil, err
	}
	copied := make(map[models.EntryKind]decimal.Decimal, len(overrides))
	for kind, p := range overrides {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown entry kind %q", ErrInvalidConfiguration, kind)
		}
		if err := checkPercent(p); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		copied[kind] = p
	}
	return &FeeRouter{percent: percent, overrides: copied}, nil
}

func checkPercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: fee percent %s outside [0, 100)", ErrInvalidConfiguration, p)
	}
	return nil
}

// PercentFor returns the fee percent applied to kind
func (r *FeeRouter) PercentFor(kind models.EntryKind) decimal.Decimal {
	if p, ok := r.overrides[kind]; ok {
		return p
	}
	return r.percent
}

// Split returns (net, fee) with fee = floor(amount * percent / 100).
// Rounding favours the recipient.
func (r *FeeRouter) Split(amount int64, kind models.EntryKind) (int64, int64, error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	fee := decimal.NewFromInt(amount).
		Mul(r.PercentFor(kind)).
		Div(hundred).
		Floor().
		IntPart()
	return amount - fee, fee, nil
}
