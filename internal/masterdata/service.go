package masterdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/sales/pricing"
	"github.com/lensworks/lensworks/internal/shared"
)

// Service exposes master data to the sales core. Every call reads through to
// the database so prices are never stale.
type Service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// LookupPrice implements pricing.PriceSource.
func (s *Service) LookupPrice(ctx context.Context, lensID, coatingID int64) (pricing.PriceRecord, error) {
	if lensID <= 0 || coatingID <= 0 {
		return pricing.PriceRecord{}, shared.NewValidationError(idErrors(map[string]int64{"lensId": lensID, "coatingId": coatingID}))
	}
	return s.repo.LookupPrice(ctx, lensID, coatingID)
}

func (s *Service) GetPrice(ctx context.Context, id int64) (pricing.PriceRecord, error) {
	if id <= 0 {
		return pricing.PriceRecord{}, shared.NewValidationError([]shared.FieldError{{Field: "priceRecordId", Message: "required"}})
	}
	rec, err := s.repo.GetPrice(ctx, id)
	if err != nil {
		return pricing.PriceRecord{}, fmt.Errorf("get price record: %w", err)
	}
	return rec, nil
}

func (s *Service) FittingPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	return s.componentPrice(ctx, KindFittings, id)
}

func (s *Service) TintingPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	return s.componentPrice(ctx, KindTintings, id)
}

func (s *Service) componentPrice(ctx context.Context, kind OptionKind, id int64) (decimal.Decimal, error) {
	price, err := s.repo.ComponentPrice(ctx, kind, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get %s price: %w", kind, err)
	}
	return price, nil
}

func (s *Service) Options(ctx context.Context, kind OptionKind) ([]Option, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("option kind %q: %w", kind, shared.ErrNotFound)
	}
	opts, err := s.repo.ListOptions(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return opts, nil
}

func idErrors(ids map[string]int64) []shared.FieldError {
	var errs []shared.FieldError
	for _, field := range []string{"lensId", "coatingId"} {
		if id, ok := ids[field]; ok && id <= 0 {
			errs = append(errs, shared.FieldError{Field: field, Message: "required"})
		}
	}
	return errs
}
