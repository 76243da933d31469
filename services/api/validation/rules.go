package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/02loveslollipop/estufa-iot/services/api/xmldoc"
)

// RuleValidator enforces per-sensor-type numeric ranges on readings.
type RuleValidator struct {
	limits LimitTable
}

// NewRuleValidator builds a validator over an immutable limit table.
func NewRuleValidator(limits LimitTable) *RuleValidator {
	return &RuleValidator{limits: limits}
}

// Limits returns the table the validator checks against.
func (v *RuleValidator) Limits() LimitTable {
	return v.limits
}

// Validate checks readings in document order and stops at the first
// violation. The content must already conform to the schema.
func (v *RuleValidator) Validate(content *xmldoc.Content) error {
	if content == nil {
		return nil
	}

	catalog := content.Catalog()
	for i, reading := range content.Readings {
		position := i + 1
		sensorType := catalog[reading.SensorRef].Type

		text := strings.TrimSpace(reading.ValueText)
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return &RuleError{
				Message: fmt.Sprintf("value '%s' for sensor '%s' (type: %s) is not a valid number", text, reading.SensorRef, sensorType),
				Locator: valueLocator(content.Root, position),
			}
		}

		bound, ok := v.limits.Lookup(sensorType)
		if !ok {
			continue
		}
		if !bound.Contains(value) {
			return &RuleError{
				Message: fmt.Sprintf("value %s for sensor '%s' (type: %s) is outside the allowed range %s", formatNumber(value), reading.SensorRef, sensorType, bound),
				Locator: valueLocator(content.Root, position),
			}
		}
	}
	return nil
}

// valueLocator addresses the value node of the reading at a 1-based position.
func valueLocator(root string, position int) string {
	if root == "" {
		root = "greenhouse"
	}
	return fmt.Sprintf("/%s/readings/reading[%d]/value", root, position)
}

// formatNumber renders floats with at least one fractional digit so that
// 61 reads as "61.0".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
