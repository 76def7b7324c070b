package orders

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lensworks/lensworks/internal/sales/eyespec"
	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/sales/pricing"
	"github.com/lensworks/lensworks/internal/shared"
)

const (
	msgEyeSelection   = "at least one eye must be selected"
	msgDeliveryBefore = "delivery date cannot be before order date"
	msgEstimatedPast  = "estimated date cannot be in the past"
	msgInvalidDate    = "must be a valid date (YYYY-MM-DD)"
	msgInvalidTime    = "must be a valid time (HH:MM)"
	msgInvalidSched   = "must be a valid date-time (YYYY-MM-DDTHH:MM)"
)

var deliveryLayouts = []string{"2006-01-02T15:04", DateTimeLayout, time.RFC3339}

// requirement is one status-dependent required field.
type requirement struct {
	field string
	check func(d DispatchBlock, today time.Time) string
}

// statusRequirements lists the fields each status adds to the base required set.
var statusRequirements = map[lifecycle.Status][]requirement{
	lifecycle.StatusReadyForDispatch: {
		{field: "dispatchStatus", check: func(d DispatchBlock, _ time.Time) string {
			if d.DispatchStatus == "" {
				return eyespec.MsgRequired
			}
			return ""
		}},
		{field: "assignedPersonId", check: func(d DispatchBlock, _ time.Time) string {
			if d.AssignedPersonID <= 0 {
				return eyespec.MsgRequired
			}
			return ""
		}},
		{field: "estimatedDate", check: func(d DispatchBlock, today time.Time) string {
			if strings.TrimSpace(d.EstimatedDate) == "" {
				return eyespec.MsgRequired
			}
			t, err := time.Parse(DateLayout, d.EstimatedDate)
			if err != nil {
				return "" // reported by the format check
			}
			if t.Before(today) {
				return msgEstimatedPast
			}
			return ""
		}},
	},
}

// RequiredFor lists the fields status adds to the base required set.
func RequiredFor(status lifecycle.Status) []string {
	reqs := statusRequirements[status]
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.field)
	}
	return out
}

// Validator checks order payloads without touching any collaborator.
type Validator struct {
	validate *validator.Validate
	ranges   eyespec.Ranges
	now      func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, ranges: eyespec.DefaultRanges, now: now}
}

// ValidateCreate checks a new order including the requested initial status.
func (v *Validator) ValidateCreate(p *OrderPayload, status lifecycle.Status) []shared.FieldError {
	var errs []shared.FieldError
	if !status.IsValid() {
		errs = append(errs, shared.FieldError{Field: "status", Message: "unknown status " + string(status)})
	}
	return append(errs, v.Validate(&p.OrderFields, status)...)
}

// Validate checks every block of f for an order in status and returns all
// violations at once.
func (v *Validator) Validate(f *OrderFields, status lifecycle.Status) []shared.FieldError {
	errs := v.presence(f)
	errs = append(errs, validateEyes(f, v.ranges)...)
	errs = append(errs, validateDates(f)...)
	errs = append(errs, validateCharges(f.AdditionalPrice)...)
	errs = append(errs, v.ValidateStatusFields(status, f.DispatchBlock)...)
	return errs
}

// ValidateStatusFields checks only what status requires of the dispatch block,
// plus the format of any dispatch value present.
func (v *Validator) ValidateStatusFields(status lifecycle.Status, d DispatchBlock) []shared.FieldError {
	var errs []shared.FieldError
	if d.DispatchStatus != "" && !d.DispatchStatus.IsValid() {
		errs = append(errs, shared.FieldError{
			Field:   "dispatchStatus",
			Message: "must be one of Pending, Assigned, In Transit, Delivered, Returned",
		})
	}
	errs = appendFormat(errs, "estimatedDate", d.EstimatedDate, DateLayout, msgInvalidDate)
	errs = appendFormat(errs, "actualDate", d.ActualDate, DateLayout, msgInvalidDate)
	errs = appendFormat(errs, "estimatedTime", d.EstimatedTime, "15:04", msgInvalidTime)
	errs = appendFormat(errs, "actualTime", d.ActualTime, "15:04", msgInvalidTime)

	today := v.today()
	for _, req := range statusRequirements[status] {
		if msg := req.check(d, today); msg != "" {
			errs = append(errs, shared.FieldError{Field: req.field, Message: msg})
		}
	}
	return errs
}

// ValidateDraftPricing checks the subset needed to price an unsaved order.
func (v *Validator) ValidateDraftPricing(f *OrderFields) []shared.FieldError {
	var errs []shared.FieldError
	ids := []struct {
		field string
		id    int64
	}{{"customerId", f.CustomerID}, {"lensId", f.LensID}, {"coatingId", f.CoatingID}}
	for _, c := range ids {
		if c.id <= 0 {
			errs = append(errs, shared.FieldError{Field: c.field, Message: eyespec.MsgRequired})
		}
	}
	if !f.RightEye && !f.LeftEye {
		errs = append(errs, shared.FieldError{Field: "eyeSelection", Message: msgEyeSelection})
	}
	return append(errs, validateCharges(f.AdditionalPrice)...)
}

// ValidateStruct runs tag validation on any request struct.
func (v *Validator) ValidateStruct(s any) []shared.FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []shared.FieldError{{Field: "payload", Message: err.Error()}}
	}
	out := make([]shared.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, shared.FieldError{Field: fe.Field(), Message: tagMessage(fe)})
	}
	return out
}

func (v *Validator) presence(f *OrderFields) []shared.FieldError {
	return v.ValidateStruct(f)
}

func (v *Validator) today() time.Time {
	y, m, d := v.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return eyespec.MsgRequired
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

func validateEyes(f *OrderFields, ranges eyespec.Ranges) []shared.FieldError {
	if !f.RightEye && !f.LeftEye {
		return []shared.FieldError{{Field: "eyeSelection", Message: msgEyeSelection}}
	}
	var errs []shared.FieldError
	for _, side := range activeSides(f) {
		errs = append(errs, eyespec.ValidateBlock(side, f.Block(side), ranges)...)
	}
	return errs
}

func activeSides(f *OrderFields) []eyespec.Side {
	var sides []eyespec.Side
	if f.RightEye {
		sides = append(sides, eyespec.Right)
	}
	if f.LeftEye {
		sides = append(sides, eyespec.Left)
	}
	return sides
}

func validateDates(f *OrderFields) []shared.FieldError {
	var errs []shared.FieldError
	var orderDate time.Time
	orderDateOK := false
	if strings.TrimSpace(f.OrderDate) != "" {
		t, err := time.Parse(DateLayout, f.OrderDate)
		if err != nil {
			errs = append(errs, shared.FieldError{Field: "orderDate", Message: msgInvalidDate})
		} else {
			orderDate, orderDateOK = t, true
		}
	}
	if strings.TrimSpace(f.DeliverySchedule) == "" {
		return errs
	}
	schedule, err := parseDeliverySchedule(f.DeliverySchedule)
	if err != nil {
		return append(errs, shared.FieldError{Field: "deliverySchedule", Message: msgInvalidSched})
	}
	y, m, d := schedule.Date()
	if orderDateOK && time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Before(orderDate) {
		errs = append(errs, shared.FieldError{Field: "deliverySchedule", Message: msgDeliveryBefore})
	}
	return errs
}

func parseDeliverySchedule(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deliveryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date-time %q", raw)
}

func validateCharges(charges []pricing.Charge) []shared.FieldError {
	var errs []shared.FieldError
	for i, c := range charges {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, shared.FieldError{Field: fmt.Sprintf("additionalPrice[%d].name", i), Message: eyespec.MsgRequired})
		}
		if c.Value.IsNegative() {
			errs = append(errs, shared.FieldError{Field: fmt.Sprintf("additionalPrice[%d].value", i), Message: "must not be negative"})
		}
	}
	return errs
}

func appendFormat(errs []shared.FieldError, field, value, layout, msg string) []shared.FieldError {
	if strings.TrimSpace(value) == "" {
		return errs
	}
	if _, err := time.Parse(layout, value); err != nil {
		errs = append(errs, shared.FieldError{Field: field, Message: msg})
	}
	return errs
}

// normalize prepares validated fields for storage.
func normalize(f *OrderFields) {
	if !f.RightEye {
		f.EyeSpec.clear(eyespec.Right)
	}
	if !f.LeftEye {
		f.EyeSpec.clear(eyespec.Left)
	}
	if f.DispatchStatus == "" {
		f.DispatchStatus = DispatchPending
	}
	if t, err := parseDeliverySchedule(f.DeliverySchedule); err == nil {
		f.DeliverySchedule = t.Format(DateTimeLayout)
	}
	if f.AdditionalPrice == nil {
		f.AdditionalPrice = []pricing.Charge{}
	}
}
