package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/sales/pricing"
	"github.com/lensworks/lensworks/internal/shared"
)

// repo implements Repository interface
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) LookupPrice(ctx context.Context, lensID, coatingID int64) (pricing.PriceRecord, error) {
	query := `SELECT id, lens_id, coating_id, price FROM lens_prices
	          WHERE lens_id = $1 AND coating_id = $2 AND is_active
	          ORDER BY id DESC LIMIT 1`
	var p pricing.PriceRecord
	err := r.db.QueryRow(ctx, query, lensID, coatingID).Scan(&p.ID, &p.LensID, &p.CoatingID, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.PriceRecord{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repo) GetPrice(ctx context.Context, id int64) (pricing.PriceRecord, error) {
	query := `SELECT id, lens_id, coating_id, price FROM lens_prices WHERE id = $1`
	var p pricing.PriceRecord
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.LensID, &p.CoatingID, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.PriceRecord{}, fmt.Errorf("price record %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

func (r *repo) ComponentPrice(ctx context.Context, kind OptionKind, id int64) (decimal.Decimal, error) {
	if !kind.priced() {
		return decimal.Zero, fmt.Errorf("%s have no price", kind)
	}
	// table name comes from the fixed optionTables map
	query := fmt.Sprintf(`SELECT price FROM %s WHERE id = $1`, optionTables[kind])
	var price decimal.Decimal
	err := r.db.QueryRow(ctx, query, id).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return price, err
}

func (r *repo) ListOptions(ctx context.Context, kind OptionKind) ([]Option, error) {
	table, ok := optionTables[kind]
	if !ok {
		return nil, fmt.Errorf("option kind %q: %w", kind, shared.ErrNotFound)
	}
	cols := "id, name, NULL::numeric"
	if kind.priced() {
		cols = "id, name, price"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE is_active ORDER BY name`, cols, table)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []Option{}
	for rows.Next() {
		var (
			o     Option
			price decimal.NullDecimal
		)
		if err := rows.Scan(&o.ID, &o.Name, &price); err != nil {
			return nil, err
		}
		if price.Valid {
			p := price.Decimal
			o.Price = &p
		}
		options = append(options, o)
	}
	return options, rows.Err()
}
