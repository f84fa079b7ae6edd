package engine

import (
	"github.com/TimurManjosov/goappconfig/internal/models"
)

// EvaluateSegment reports whether the entity attributes satisfy every
// attribute rule of the segment (AND across rules, OR across a rule's
// values). A segment with no rules matches every entity.
func EvaluateSegment(segment models.Segment, attributes map[string]any) bool {
	for _, rule := range segment.Rules {
		value, ok := attributes[rule.AttributeName]
		if !ok {
			return false
		}
		if !matchesAnyValue(value, rule) {
			return false
		}
	}
	return true
}

func matchesAnyValue(attributeValue any, rule models.AttributeRule) bool {
	handler, ok := getOperatorHandler(rule.Operator)
	if !ok {
		return false
	}
	for _, ruleValue := range rule.Values {
		if handler.Check(attributeValue, ruleValue) {
			return true
		}
	}
	return false
}
