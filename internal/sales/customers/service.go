package customers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// Standing implements StandingSource.
func (s *Service) Standing(ctx context.Context, id int64) (Standing, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Standing{}, err
	}
	return StandingOf(*c), nil
}

// Discount returns the customer's default discount percentage.
func (s *Service) Discount(ctx context.Context, id int64) (decimal.Decimal, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return c.DiscountPercent, nil
}
