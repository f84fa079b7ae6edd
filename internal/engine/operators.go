package engine

import (
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/TimurManjosov/goappconfig/internal/models"
)

// OperatorHandler evaluates one attribute-rule operator.
type OperatorHandler interface {
	Check(attributeValue, ruleValue any) bool
}

var operatorHandlers = map[models.Operator]OperatorHandler{
	models.OpIs:             isHandler{},
	models.OpContains:       containsHandler{},
	models.OpStartsWith:     startsWithHandler{},
	models.OpEndsWith:       endsWithHandler{},
	models.OpGreaterThan:    numericCompareHandler{cmp: func(a, b float64) bool { return a > b }},
	models.OpLesserThan:     numericCompareHandler{cmp: func(a, b float64) bool { return a < b }},
	models.OpGreaterThanEq:  numericCompareHandler{cmp: func(a, b float64) bool { return a >= b }},
	models.OpLesserThanEq:   numericCompareHandler{cmp: func(a, b float64) bool { return a <= b }},
	models.OpVersionGreater: semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.GreaterThan(b) }},
	models.OpVersionLesser:  semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.LessThan(b) }},
}

func getOperatorHandler(op models.Operator) (OperatorHandler, bool) {
	h, ok := operatorHandlers[normalizeOperator(op)]
	return h, ok
}

func normalizeOperator(op models.Operator) models.Operator {
	switch strings.ToLower(string(op)) {
	case "is", "==", "eq", "equals":
		return models.OpIs
	case "contains":
		return models.OpContains
	case "startswith", "starts_with":
		return models.OpStartsWith
	case "endswith", "ends_with":
		return models.OpEndsWith
	case "greaterthan", ">", "gt":
		return models.OpGreaterThan
	case "lesserthan", "<", "lt":
		return models.OpLesserThan
	case "greaterthanequals", ">=", "gte":
		return models.OpGreaterThanEq
	case "lesserthanequals", "<=", "lte":
		return models.OpLesserThanEq
	case "versiongreaterthan", "version_gt", "semver_gt":
		return models.OpVersionGreater
	case "versionlesserthan", "version_lt", "semver_lt":
		return models.OpVersionLesser
	default:
		return op
	}
}

type isHandler struct{}

func (isHandler) Check(attributeValue, ruleValue any) bool {
	if attr, ok := toString(attributeValue); ok {
		rule, ok := toString(ruleValue)
		return ok && attr == rule
	}
	if attr, ok := toFloat64(attributeValue); ok {
		rule, ok := toFloat64(ruleValue)
		return ok && attr == rule
	}
	if attr, ok := attributeValue.(bool); ok {
		rule, ok := ruleValue.(bool)
		return ok && attr == rule
	}
	return false
}

type containsHandler struct{}

func (containsHandler) Check(attributeValue, ruleValue any) bool {
	attr, ok := toString(attributeValue)
	if !ok {
		return false
	}
	rule, ok := toString(ruleValue)
	if !ok {
		return false
	}
	return strings.Contains(attr, rule)
}

type startsWithHandler struct{}

func (startsWithHandler) Check(attributeValue, ruleValue any) bool {
	attr, ok := toString(attributeValue)
	if !ok {
		return false
	}
	rule, ok := toString(ruleValue)
	if !ok {
		return false
	}
	return strings.HasPrefix(attr, rule)
}

type endsWithHandler struct{}

func (endsWithHandler) Check(attributeValue, ruleValue any) bool {
	attr, ok := toString(attributeValue)
	if !ok {
		return false
	}
	rule, ok := toString(ruleValue)
	if !ok {
		return false
	}
	return strings.HasSuffix(attr, rule)
}

type numericCompareHandler struct {
	cmp func(a, b float64) bool
}

func (h numericCompareHandler) Check(attributeValue, ruleValue any) bool {
	attr, ok := toFloat64(attributeValue)
	if !ok {
		return false
	}
	rule, ok := toFloat64(ruleValue)
	if !ok {
		return false
	}
	return h.cmp(attr, rule)
}

type semverCompareHandler struct {
	cmp func(a, b *semver.Version) bool
}

func (h semverCompareHandler) Check(attributeValue, ruleValue any) bool {
	attrStr, ok := toString(attributeValue)
	if !ok {
		return false
	}
	ruleStr, ok := toString(ruleValue)
	if !ok {
		return false
	}
	attrVer, err := semver.NewVersion(attrStr)
	if err != nil {
		return false
	}
	ruleVer, err := semver.NewVersion(ruleStr)
	if err != nil {
		return false
	}
	return h.cmp(attrVer, ruleVer)
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
