package threshold

import (
	"github.com/shopspring/decimal"
)

// Bounds is a normalised (lower, upper) pair.
type Bounds struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// NewBounds accepts the two thresholds in any order.
func NewBounds(a, b decimal.Decimal) Bounds {
	return Bounds{Lower: decimal.Min(a, b), Upper: decimal.Max(a, b)}
}

// NewBoundsFromFloat is a convenience for configuration values.
func NewBoundsFromFloat(a, b float64) Bounds {
	return NewBounds(decimal.NewFromFloat(a), decimal.NewFromFloat(b))
}

// Member is one instrument of a group with its bounds.
type Member struct {
	Instrument string
	Bounds     Bounds
}

// Group is a named set of instruments sharing one kind.
type Group struct {
	Name    string
	Kind    Kind
	Members []Member
}

// Sample is a fetched value or the absence of one.
type Sample struct {
	value     decimal.Decimal
	available bool
}

// Present wraps a fetched value.
func Present(v decimal.Decimal) Sample {
	return Sample{value: v, available: true}
}

// Unavailable is the sample of a failed fetch.
func Unavailable() Sample {
	return Sample{}
}

// SampleFrom converts a provider result into a Sample. Errors and negative
// values (the legacy "-1" sentinel) both become Unavailable.
func SampleFrom(v decimal.Decimal, err error) Sample {
	if err != nil || v.IsNegative() {
		return Unavailable()
	}
	return Present(v)
}

// Value returns the sampled value and whether one exists.
func (s Sample) Value() (decimal.Decimal, bool) {
	return s.value, s.available
}

// Available reports whether the sample carries a value.
func (s Sample) Available() bool {
	return s.available
}

func (s Sample) String() string {
	if !s.available {
		return "unavailable"
	}
	return FormatValue(s.value)
}

// Classification is the outcome of comparing a sample with its bounds.
type Classification int

const (
	ClassUnavailable Classification = iota
	BelowLower
	WithinBounds
	AboveUpper
)

func (c Classification) String() string {
	switch c {
	case BelowLower:
		return "below_lower"
	case WithinBounds:
		return "within_bounds"
	case AboveUpper:
		return "above_upper"
	default:
		return "unavailable"
	}
}

// Breach reports whether c crosses a bound.
func (c Classification) Breach() bool {
	return c == BelowLower || c == AboveUpper
}

// Decision says whether to notify and with which text.
type Decision struct {
	ShouldSend bool
	Subject    string
	Body       string
}
