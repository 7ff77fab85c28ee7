package threshold

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Classify compares a sample with its bounds. A value equal to either bound is
// within bounds.
func Classify(sample Sample, bounds Bounds) Classification {
	value, ok := sample.Value()
	if !ok {
		return ClassUnavailable
	}
	switch {
	case value.LessThan(bounds.Lower):
		return BelowLower
	case value.GreaterThan(bounds.Upper):
		return AboveUpper
	default:
		return WithinBounds
	}
}

// Decide derives the notification for a classified sample. The message is
// composed for every breach; enabled only gates ShouldSend.
func Decide(instrument string, kind Kind, sample Sample, bounds Bounds, class Classification, enabled bool) Decision {
	value, ok := sample.Value()
	if !ok || !class.Breach() {
		return Decision{}
	}

	name := strings.ToUpper(instrument)
	label := kind.Label()

	direction, relation, edge, crossed := "ABOVE", "higher", "upper", bounds.Upper
	if class == BelowLower {
		direction, relation, edge, crossed = "BELOW", "lower", "lower", bounds.Lower
	}

	return Decision{
		ShouldSend: enabled,
		Subject:    fmt.Sprintf("%s %s THRESHOLD ON %s", label, direction, name),
		Body: fmt.Sprintf("Current %s of %s is: %s, which is %s than the %s threshold of %s",
			label, name, FormatValue(value), relation, edge, FormatValue(crossed)),
	}
}

// Evaluate runs Classify and Decide in one step.
func Evaluate(instrument string, kind Kind, sample Sample, bounds Bounds, enabled bool) (Classification, Decision) {
	class := Classify(sample, bounds)
	return class, Decide(instrument, kind, sample, bounds, class, enabled)
}

// FormatValue renders a value with at least one fractional digit.
func FormatValue(v decimal.Decimal) string {
	places := -v.Exponent()
	if places < 1 {
		places = 1
	}
	return v.StringFixed(places)
}
