// Package eyespec validates optical prescription blocks.
package eyespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/shared"
)

// Measurement is a raw prescription value as submitted. Clients send either
// JSON numbers or strings; both are kept verbatim so "20.0" stays "20.0".
type Measurement string

// UnmarshalJSON accepts numbers, strings and null.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Measurement(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("eyespec: measurement must be a number or string")
	}
	*m = Measurement(n.String())
	return nil
}

// IsBlank reports whether nothing was entered.
func (m Measurement) IsBlank() bool {
	return strings.TrimSpace(string(m)) == ""
}

// Decimal parses the value.
func (m Measurement) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(m)))
}

// Range is an inclusive numeric bound.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (r Range) contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.Min) && v.LessThanOrEqual(r.Max)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min.String(), r.Max.String())
}

// Ranges holds the bound for every numeric field of a block.
type Ranges struct {
	Spherical   Range
	Cylindrical Range
	Axis        Range
	Add         Range
}

// DefaultRanges is the shared range table used for both eyes.
var DefaultRanges = Ranges{
	Spherical:   Range{Min: decimal.NewFromInt(-20), Max: decimal.NewFromInt(20)},
	Cylindrical: Range{Min: decimal.NewFromInt(-6), Max: decimal.NewFromInt(6)},
	Axis:        Range{Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(180)},
	Add:         Range{Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(4)},
}

// Block is one eye's prescription. Dia, Base, BaseSize and Bled are descriptive
// and never validated.
type Block struct {
	Spherical   Measurement
	Cylindrical Measurement
	Axis        Measurement
	Add         Measurement
	Dia         string
	Base        string
	BaseSize    string
	Bled        string
}

// Side names the eye a block belongs to and prefixes its field names.
type Side string

const (
	Right Side = "right"
	Left  Side = "left"
)

// Field returns the payload field name, e.g. Right.Field("Spherical") = "rightSpherical".
func (s Side) Field(name string) string {
	return string(s) + name
}

// Validation messages.
const (
	MsgRequired      = "required"
	MsgInvalidNumber = "must be a valid number"
)

// ValidateBlock checks every numeric field and returns one error per offending
// field. Callers only invoke it for a selected eye.
func ValidateBlock(side Side, b Block, ranges Ranges) []shared.FieldError {
	checks := []struct {
		name  string
		value Measurement
		rng   Range
	}{
		{"Spherical", b.Spherical, ranges.Spherical},
		{"Cylindrical", b.Cylindrical, ranges.Cylindrical},
		{"Axis", b.Axis, ranges.Axis},
		{"Add", b.Add, ranges.Add},
	}

	var errs []shared.FieldError
	for _, c := range checks {
		if msg := checkValue(c.value, c.rng); msg != "" {
			errs = append(errs, shared.FieldError{Field: side.Field(c.name), Message: msg})
		}
	}
	return errs
}

func checkValue(v Measurement, rng Range) string {
	if v.IsBlank() {
		return MsgRequired
	}
	d, err := v.Decimal()
	if err != nil {
		return MsgInvalidNumber
	}
	if !rng.contains(d) {
		return "out of range: expected " + rng.String()
	}
	return ""
}
