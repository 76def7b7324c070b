package orders

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/lensworks/lensworks/internal/sales/customers"
	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/sales/pricing"
)

// OrderPayload is the full order as submitted by create and draft pricing.
type OrderPayload struct {
	OrderFields
	Status lifecycle.Status `json:"status,omitempty"`
}

// OrderPatch is a partial order document for update. Keys present in it
// replace the stored values; absent keys keep them. Status is ignored.
type OrderPatch json.RawMessage

// UnmarshalJSON keeps the raw object for later application.
func (p *OrderPatch) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return errors.New("orders: update payload must be a JSON object")
	}
	*p = append((*p)[:0], data...)
	return nil
}

// AdvanceRequest moves an order one step through the lifecycle. ExpectedStatus
// defaults to the status loaded at the start of the request. Dispatch fields,
// when given, are stored together with the new status.
type AdvanceRequest struct {
	Status         lifecycle.Status `json:"status"`
	ExpectedStatus lifecycle.Status `json:"expectedStatus,omitempty"`
	Dispatch       *DispatchBlock   `json:"dispatch,omitempty"`
}

// CostRequest prices an ad-hoc lens quote from a known price record.
type CostRequest struct {
	CustomerID      int64            `json:"customerId" validate:"required,gt=0"`
	PriceRecordID   int64            `json:"priceRecordId" validate:"required,gt=0"`
	FittingID       int64            `json:"fittingId" validate:"gte=0"`
	TintingID       int64            `json:"tintingId" validate:"gte=0"`
	Quantity        int              `json:"quantity" validate:"required,oneof=1 2"`
	FreeLens        bool             `json:"freeLens"`
	FreeFitting     bool             `json:"freeFitting"`
	AdditionalPrice []pricing.Charge `json:"additionalPrice"`
}

// OrderView is the response shape of every order endpoint.
type OrderView struct {
	*SaleOrder
	AllowedTransitions []lifecycle.Action  `json:"allowedTransitions"`
	CreditStanding     *customers.Standing `json:"creditStanding,omitempty"`
	Replayed           bool                `json:"-"`
}
