// Package pricing computes the price of a customized lens order.
package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Charge is an ad-hoc additional charge row.
type Charge struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Input holds every independently priced component of an order.
type Input struct {
	BasePrice         decimal.Decimal
	FittingPrice      decimal.Decimal
	TintingPrice      decimal.Decimal
	AdditionalCharges []Charge
	DiscountPercent   decimal.Decimal
	FreeLens          bool
	FreeFitting       bool
}

// Result keeps full precision; amounts are rounded only when marshalled.
type Result struct {
	LensPrice       decimal.Decimal
	FittingPrice    decimal.Decimal
	TintingPrice    decimal.Decimal
	AdditionalTotal decimal.Decimal
	DiscountPercent decimal.Decimal
	Subtotal        decimal.Decimal
	Waived          decimal.Decimal
	DiscountBase    decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalTotal      decimal.Decimal
}

// MarshalJSON presents every amount with two decimals.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]json.Number{
		"lensPrice":       money(r.LensPrice),
		"fittingPrice":    money(r.FittingPrice),
		"tintingPrice":    money(r.TintingPrice),
		"additionalTotal": money(r.AdditionalTotal),
		"discount":        money(r.DiscountPercent),
		"subtotal":        money(r.Subtotal),
		"waived":          money(r.Waived),
		"discountBase":    money(r.DiscountBase),
		"discountAmount":  money(r.DiscountAmount),
		"finalTotal":      money(r.FinalTotal),
	})
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Calculate applies waivers before the discount: free lines are removed from
// the subtotal and never discounted.
func Calculate(in Input) (Result, error) {
	if !in.BasePrice.IsPositive() {
		return Result{}, shared.ErrPriceNotConfigured
	}
	if errs := validateInput(in); len(errs) > 0 {
		return Result{}, shared.NewValidationError(errs)
	}

	additional := decimal.Zero
	for _, c := range in.AdditionalCharges {
		additional = additional.Add(c.Value)
	}

	subtotal := in.BasePrice.Add(in.FittingPrice).Add(in.TintingPrice).Add(additional)

	waived := decimal.Zero
	if in.FreeLens {
		waived = waived.Add(in.BasePrice)
	}
	if in.FreeFitting {
		waived = waived.Add(in.FittingPrice)
	}

	discountBase := subtotal.Sub(waived)
	discountAmount := discountBase.Mul(in.DiscountPercent).Div(hundred)

	return Result{
		LensPrice:       in.BasePrice,
		FittingPrice:    in.FittingPrice,
		TintingPrice:    in.TintingPrice,
		AdditionalTotal: additional,
		DiscountPercent: in.DiscountPercent,
		Subtotal:        subtotal,
		Waived:          waived,
		DiscountBase:    discountBase,
		DiscountAmount:  discountAmount,
		FinalTotal:      discountBase.Sub(discountAmount),
	}, nil
}

func validateInput(in Input) []shared.FieldError {
	var errs []shared.FieldError
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		errs = append(errs, shared.FieldError{Field: "discount", Message: "out of range: expected [0, 100]"})
	}
	if in.FittingPrice.IsNegative() {
		errs = append(errs, shared.FieldError{Field: "fittingPrice", Message: "must not be negative"})
	}
	if in.TintingPrice.IsNegative() {
		errs = append(errs, shared.FieldError{Field: "tintingPrice", Message: "must not be negative"})
	}
	for i, c := range in.AdditionalCharges {
		if c.Value.IsNegative() {
			errs = append(errs, shared.FieldError{
				Field:   fmt.Sprintf("additionalPrice[%d].value", i),
				Message: "must not be negative",
			})
		}
	}
	return errs
}

// BasePriceForEyes converts a per-pair price into the price of the selected
// lenses: full price for both eyes, half for one.
func BasePriceForEyes(pairPrice decimal.Decimal, rightEye, leftEye bool) decimal.Decimal {
	switch {
	case rightEye && leftEye:
		return pairPrice
	case rightEye || leftEye:
		return pairPrice.Div(decimal.NewFromInt(2))
	default:
		return decimal.Zero
	}
}
