// Package models defines the configuration data model shared by the cache,
// the sync engine, and the evaluation engine. All types are plain value
// objects rebuilt wholesale from a snapshot document; nothing here is mutated
// in place after construction.
package models

// Operator represents a comparison operator used in segment attribute rules.
type Operator string

// Supported attribute-rule operators (string values for clean JSON serialization).
const (
	OpIs             Operator = "is"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
	OpGreaterThan    Operator = "greaterThan"
	OpLesserThan     Operator = "lesserThan"
	OpGreaterThanEq  Operator = "greaterThanEquals"
	OpLesserThanEq   Operator = "lesserThanEquals"
	OpVersionGreater Operator = "versionGreaterThan"
	OpVersionLesser  Operator = "versionLesserThan"
)

// DefaultValue is the sentinel a segment rule carries when a match should
// fall back to the feature's enabled value or the property's own value
// instead of an override literal.
const DefaultValue = "$default"

// DefaultSegmentID is reported as the evaluated segment when no segment rule
// matched (or none applied).
const DefaultSegmentID = "$$null$$"

// AttributeRule is a single predicate over one entity attribute.
// Values carry OR semantics: the rule matches when any value satisfies the
// operator against the attribute.
type AttributeRule struct {
	AttributeName string   `json:"attribute_name"`
	Operator      Operator `json:"operator"`
	Values        []any    `json:"values"`
}

// Segment is a named predicate over entity attributes used for targeting.
// Attribute rules carry AND semantics: all rules must match.
type Segment struct {
	Name      string          `json:"name"`
	SegmentID string          `json:"segment_id"`
	Rules     []AttributeRule `json:"rules"`
}

// RuleLevel names the segments checked at one level of a segment rule.
// Segment ids are resolved through the cache, never by embedded pointer.
type RuleLevel struct {
	Segments []string `json:"segments"`
}

// SegmentRule binds one or more segments to an override value for a feature
// or property. Order is the 1-based evaluation priority: lower orders
// evaluate first, regardless of list position. Value may be the DefaultValue
// sentinel. RolloutPercentage limits the rule to a deterministic share of
// entities; nil means 100 (everyone).
type SegmentRule struct {
	Rules             []RuleLevel `json:"rules"`
	Value             any         `json:"value"`
	Order             int         `json:"order"`
	RolloutPercentage *int        `json:"rollout_percentage,omitempty"`
}

// Rollout returns the effective rollout percentage for the rule.
func (r SegmentRule) Rollout() int {
	if r.RolloutPercentage == nil {
		return 100
	}
	return *r.RolloutPercentage
}

// Feature is a remotely managed feature flag. Immutable once constructed
// from a snapshot; replaced wholesale on each cache reload.
type Feature struct {
	Name          string        `json:"name"`
	FeatureID     string        `json:"feature_id"`
	Type          string        `json:"type,omitempty"`
	Enabled       bool          `json:"enabled"`
	EnabledValue  any           `json:"enabled_value"`
	DisabledValue any           `json:"disabled_value"`
	SegmentRules  []SegmentRule `json:"segment_rules"`
}

// IsEnabled reports whether the feature is switched on.
func (f Feature) IsEnabled() bool { return f.Enabled }

// Property is a remotely managed configuration value. Same lifecycle as
// Feature.
type Property struct {
	Name         string        `json:"name"`
	PropertyID   string        `json:"property_id"`
	Type         string        `json:"type,omitempty"`
	Value        any           `json:"value"`
	SegmentRules []SegmentRule `json:"segment_rules"`
}
