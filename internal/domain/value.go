package domain

import "encoding/json"

// MissingSentinel is the IHFS encoding for an absent stage or flow value.
// It only appears at the store boundary; inside the domain, absence is the
// zero Value.
const MissingSentinel = -9999.0

// Value is a stage or flow measurement that may be absent.
// The zero Value is "missing".
type Value struct {
	Float64 float64
	Valid   bool
}

// NewValue returns a present Value.
func NewValue(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// FromSentinel decodes a raw database value, mapping the -9999 missing
// sentinel (and anything below it, seen in some legacy rows) to absent.
func FromSentinel(v float64) Value {
	if v <= MissingSentinel+1 {
		return Value{}
	}
	return NewValue(v)
}

// GreaterThan reports whether v is strictly greater than o.
// A missing value compares as the minimum: it is never greater, and any
// present value is greater than it.
func (v Value) GreaterThan(o Value) bool {
	if !v.Valid {
		return false
	}
	if !o.Valid {
		return true
	}
	return v.Float64 > o.Float64
}

// AtLeast reports whether v is greater than or equal to o, with missing
// comparing as the minimum on either side.
func (v Value) AtLeast(o Value) bool {
	if !v.Valid {
		return !o.Valid
	}
	if !o.Valid {
		return true
	}
	return v.Float64 >= o.Float64
}

// MarshalJSON encodes a present value as a number and a missing one as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON decodes null as missing and a number as present.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = NewValue(f)
	return nil
}
