package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the slice of the customer master the sales core reads.
type Customer struct {
	ID                int64               `json:"id" db:"id"`
	Code              string              `json:"code" db:"code"`
	Name              string              `json:"name" db:"name"`
	Phone             *string             `json:"phone,omitempty" db:"phone"`
	Email             *string             `json:"email,omitempty" db:"email"`
	CreditLimit       decimal.Decimal     `json:"creditLimit" db:"credit_limit"`
	OutstandingCredit decimal.NullDecimal `json:"outstandingCredit" db:"outstanding_credit"`
	DiscountPercent   decimal.Decimal     `json:"discountPercent" db:"discount_percent"`
	IsActive          bool                `json:"isActive" db:"is_active"`
	CreatedAt         time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time           `json:"updatedAt" db:"updated_at"`
}

// Standing is a customer's outstanding balance against the configured limit.
type Standing struct {
	CustomerID        int64           `json:"customerId"`
	OutstandingCredit decimal.Decimal `json:"outstandingCredit"`
	CreditLimit       decimal.Decimal `json:"creditLimit"`
	HasOutstanding    bool            `json:"hasOutstanding"`
	ExceedsLimit      bool            `json:"exceedsLimit"`
}

// StandingOf derives the standing. A null or zero balance clears the indicator.
func StandingOf(c Customer) Standing {
	st := Standing{CustomerID: c.ID, CreditLimit: c.CreditLimit, OutstandingCredit: decimal.Zero}
	if !c.OutstandingCredit.Valid || !c.OutstandingCredit.Decimal.IsPositive() {
		return st
	}
	st.OutstandingCredit = c.OutstandingCredit.Decimal
	st.HasOutstanding = true
	st.ExceedsLimit = st.OutstandingCredit.GreaterThan(c.CreditLimit)
	return st
}
