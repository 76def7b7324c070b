package masterdata

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/sales/pricing"
)

// OptionKind names a dropdown source.
type OptionKind string

const (
	KindLenses     OptionKind = "lenses"
	KindCoatings   OptionKind = "coatings"
	KindFittings   OptionKind = "fittings"
	KindTintings   OptionKind = "tintings"
	KindCategories OptionKind = "categories"
	KindTypes      OptionKind = "types"
	KindDias       OptionKind = "dias"
)

var optionTables = map[OptionKind]string{
	KindLenses:     "lenses",
	KindCoatings:   "coatings",
	KindFittings:   "fittings",
	KindTintings:   "tintings",
	KindCategories: "categories",
	KindTypes:      "lens_types",
	KindDias:       "dias",
}

// IsValid checks if the kind is known.
func (k OptionKind) IsValid() bool {
	_, ok := optionTables[k]
	return ok
}

func (k OptionKind) priced() bool {
	return k == KindFittings || k == KindTintings
}

// Option is a single dropdown entry. Price is set for fittings and tintings.
type Option struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// Repository defines master data persistence.
type Repository interface {
	LookupPrice(ctx context.Context, lensID, coatingID int64) (pricing.PriceRecord, error)
	GetPrice(ctx context.Context, id int64) (pricing.PriceRecord, error)
	ComponentPrice(ctx context.Context, kind OptionKind, id int64) (decimal.Decimal, error)
	ListOptions(ctx context.Context, kind OptionKind) ([]Option, error)
}
