package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lensworks/lensworks/internal/shared"
)

// ErrNotFound indicates the customer does not exist.
var ErrNotFound = fmt.Errorf("customer %w", shared.ErrNotFound)

type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectCustomer = `
	SELECT id, code, name, phone, email, credit_limit, outstanding_credit,
	       discount_percent, is_active, created_at, updated_at
	FROM customers
	WHERE id = $1`

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, selectCustomer, id).Scan(
		&c.ID, &c.Code, &c.Name, &c.Phone, &c.Email, &c.CreditLimit, &c.OutstandingCredit,
		&c.DiscountPercent, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
