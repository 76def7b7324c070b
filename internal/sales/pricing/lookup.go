package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/shared"
)

// PriceRecord is the configured per-pair price of a lens with a coating.
type PriceRecord struct {
	ID        int64           `json:"id"`
	LensID    int64           `json:"lensId"`
	CoatingID int64           `json:"coatingId"`
	Price     decimal.Decimal `json:"price"`
}

// PriceSource is the master-data collaborator that holds price records.
type PriceSource interface {
	LookupPrice(ctx context.Context, lensID, coatingID int64) (PriceRecord, error)
}

// Lookup resolves the price for a lens/coating pair. A missing or zero record is
// ErrPriceNotConfigured; it is never replaced by a default.
func Lookup(ctx context.Context, src PriceSource, lensID, coatingID int64) (PriceRecord, error) {
	rec, err := src.LookupPrice(ctx, lensID, coatingID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return PriceRecord{}, fmt.Errorf("lens %d coating %d: %w", lensID, coatingID, shared.ErrPriceNotConfigured)
		}
		return PriceRecord{}, shared.Upstream("price", err)
	}
	if !rec.Price.IsPositive() {
		return PriceRecord{}, fmt.Errorf("lens %d coating %d: %w", lensID, coatingID, shared.ErrPriceNotConfigured)
	}
	return rec, nil
}
