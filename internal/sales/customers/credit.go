package customers

import (
	"context"
	"fmt"

	"github.com/lensworks/lensworks/internal/shared"
)

// StandingSource reports a customer's outstanding balance.
type StandingSource interface {
	Standing(ctx context.Context, id int64) (Standing, error)
}

// CreditGate decides whether an order may proceed for a customer. In advisory
// mode an exceeded limit is reported but never blocks.
type CreditGate struct {
	source      StandingSource
	allowExceed bool
}

func NewCreditGate(source StandingSource, allowExceed bool) *CreditGate {
	return &CreditGate{source: source, allowExceed: allowExceed}
}

// Advisory reports whether exceeding the limit is allowed.
func (g *CreditGate) Advisory() bool {
	return g.allowExceed
}

// Check loads the standing. An unknown customer keeps its not-found meaning;
// any other failure is an upstream error and never a clean standing.
func (g *CreditGate) Check(ctx context.Context, customerID int64) (Standing, error) {
	st, err := g.source.Standing(ctx, customerID)
	if err != nil {
		return Standing{}, shared.Upstream("customer standing", err)
	}
	return st, nil
}

// Violation returns the field error that blocks the order, or nil.
func (g *CreditGate) Violation(st Standing) *shared.FieldError {
	if g.allowExceed || !st.ExceedsLimit {
		return nil
	}
	return &shared.FieldError{
		Field:   "customerId",
		Message: fmt.Sprintf("outstanding credit %s exceeds credit limit %s", st.OutstandingCredit.StringFixed(2), st.CreditLimit.StringFixed(2)),
	}
}
