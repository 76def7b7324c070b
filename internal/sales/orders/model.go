package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/sales/eyespec"
	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/sales/pricing"
)

// Date layouts accepted on the wire.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// DispatchStatus tracks delivery progress once an order is ready for dispatch.
type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "Pending"
	DispatchAssigned  DispatchStatus = "Assigned"
	DispatchInTransit DispatchStatus = "In Transit"
	DispatchDelivered DispatchStatus = "Delivered"
	DispatchReturned  DispatchStatus = "Returned"
)

// IsValid checks if the dispatch status is known.
func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchPending, DispatchAssigned, DispatchInTransit, DispatchDelivered, DispatchReturned:
		return true
	default:
		return false
	}
}

// EyeSpec holds both prescription blocks in their flat wire form.
type EyeSpec struct {
	RightSpherical   eyespec.Measurement `json:"rightSpherical"`
	RightCylindrical eyespec.Measurement `json:"rightCylindrical"`
	RightAxis        eyespec.Measurement `json:"rightAxis"`
	RightAdd         eyespec.Measurement `json:"rightAdd"`
	RightDia         string              `json:"rightDia"`
	RightBase        string              `json:"rightBase"`
	RightBaseSize    string              `json:"rightBaseSize"`
	RightBled        string              `json:"rightBled"`
	LeftSpherical    eyespec.Measurement `json:"leftSpherical"`
	LeftCylindrical  eyespec.Measurement `json:"leftCylindrical"`
	LeftAxis         eyespec.Measurement `json:"leftAxis"`
	LeftAdd          eyespec.Measurement `json:"leftAdd"`
	LeftDia          string              `json:"leftDia"`
	LeftBase         string              `json:"leftBase"`
	LeftBaseSize     string              `json:"leftBaseSize"`
	LeftBled         string              `json:"leftBled"`
}

// Block returns one side as an eyespec.Block.
func (e EyeSpec) Block(side eyespec.Side) eyespec.Block {
	if side == eyespec.Right {
		return eyespec.Block{
			Spherical: e.RightSpherical, Cylindrical: e.RightCylindrical, Axis: e.RightAxis, Add: e.RightAdd,
			Dia: e.RightDia, Base: e.RightBase, BaseSize: e.RightBaseSize, Bled: e.RightBled,
		}
	}
	return eyespec.Block{
		Spherical: e.LeftSpherical, Cylindrical: e.LeftCylindrical, Axis: e.LeftAxis, Add: e.LeftAdd,
		Dia: e.LeftDia, Base: e.LeftBase, BaseSize: e.LeftBaseSize, Bled: e.LeftBled,
	}
}

func (e *EyeSpec) clear(side eyespec.Side) {
	if side == eyespec.Right {
		e.RightSpherical, e.RightCylindrical, e.RightAxis, e.RightAdd = "", "", "", ""
		e.RightDia, e.RightBase, e.RightBaseSize, e.RightBled = "", "", "", ""
		return
	}
	e.LeftSpherical, e.LeftCylindrical, e.LeftAxis, e.LeftAdd = "", "", "", ""
	e.LeftDia, e.LeftBase, e.LeftBaseSize, e.LeftBled = "", "", "", ""
}

// DispatchBlock is required once the order is READY_FOR_DISPATCH.
type DispatchBlock struct {
	DispatchStatus   DispatchStatus `json:"dispatchStatus"`
	AssignedPersonID int64          `json:"assignedPersonId,omitempty" validate:"gte=0"`
	DispatchID       string         `json:"dispatchId,omitempty"`
	EstimatedDate    string         `json:"estimatedDate,omitempty"`
	EstimatedTime    string         `json:"estimatedTime,omitempty"`
	ActualDate       string         `json:"actualDate,omitempty"`
	ActualTime       string         `json:"actualTime,omitempty"`
	DispatchNotes    string         `json:"dispatchNotes,omitempty"`
}

// OrderFields are the user-entered fields shared by payloads and stored orders.
type OrderFields struct {
	CustomerID       int64  `json:"customerId" validate:"required,gt=0"`
	OrderDate        string `json:"orderDate" validate:"required"`
	DeliverySchedule string `json:"deliverySchedule,omitempty"`
	Type             string `json:"type,omitempty"`
	UrgentOrder      bool   `json:"urgentOrder"`
	FreeLens         bool   `json:"freeLens"`
	FreeFitting      bool   `json:"freeFitting"`

	LensID     int64 `json:"lensId" validate:"required,gt=0"`
	CategoryID int64 `json:"categoryId" validate:"required,gt=0"`
	TypeID     int64 `json:"typeId" validate:"required,gt=0"`
	DiaID      int64 `json:"diaId" validate:"required,gt=0"`
	FittingID  int64 `json:"fittingId,omitempty" validate:"required_if=FreeFitting false,gte=0"`
	TintingID  int64 `json:"tintingId" validate:"required,gt=0"`
	CoatingID  int64 `json:"coatingId" validate:"required,gt=0"`

	RightEye bool `json:"rightEye"`
	LeftEye  bool `json:"leftEye"`
	EyeSpec
	DispatchBlock

	AdditionalPrice []pricing.Charge `json:"additionalPrice"`
	Remark          string           `json:"remark,omitempty"`
	CustomerRefNo   string           `json:"customerRefNo,omitempty"`
	ItemRefNo       string           `json:"itemRefNo,omitempty"`
}

// SaleOrder is the aggregate root.
type SaleOrder struct {
	ID           int64            `json:"id"`
	OrderNo      string           `json:"orderNo"`
	CustomerName string           `json:"customerName,omitempty"`
	CustomerCode string           `json:"customerCode,omitempty"`
	Status       lifecycle.Status `json:"status"`
	OrderFields

	LensPrice      decimal.Decimal `json:"lensPrice"`
	FittingPrice   decimal.Decimal `json:"fittingPrice"`
	TintingPrice   decimal.Decimal `json:"tintingPrice"`
	Discount       decimal.Decimal `json:"discount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Waived         decimal.Decimal `json:"waived"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`

	CreatedBy *int64    `json:"createdBy,omitempty"`
	UpdatedBy *int64    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// applyPricing copies computed amounts onto the order at full precision.
func (o *SaleOrder) applyPricing(res pricing.Result) {
	o.LensPrice = res.LensPrice
	o.FittingPrice = res.FittingPrice
	o.TintingPrice = res.TintingPrice
	o.Discount = res.DiscountPercent
	o.Subtotal = res.Subtotal
	o.Waived = res.Waived
	o.DiscountAmount = res.DiscountAmount
	o.FinalTotal = res.FinalTotal
}

// StatusChange describes an applied lifecycle transition.
type StatusChange struct {
	OrderID int64            `json:"orderId"`
	OrderNo string           `json:"orderNo"`
	From    lifecycle.Status `json:"from"`
	To      lifecycle.Status `json:"to"`
	ActorID int64            `json:"actorId,omitempty"`
	At      time.Time        `json:"at"`
}
