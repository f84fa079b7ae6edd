package engine

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goappconfig/internal/models"
)

type segmentMap map[string]models.Segment

func (m segmentMap) Segment(id string) (models.Segment, bool) {
	s, ok := m[id]
	return s, ok
}

type countingRecorder struct {
	calls      int
	featureID  string
	propertyID string
	entityID   string
	segmentID  string
}

func (r *countingRecorder) RecordEvaluation(featureID, propertyID, entityID, segmentID string) {
	r.calls++
	r.featureID = featureID
	r.propertyID = propertyID
	r.entityID = entityID
	r.segmentID = segmentID
}

func goldSegments() segmentMap {
	return segmentMap{
		"s1": {SegmentID: "s1", Rules: []models.AttributeRule{
			{AttributeName: "plan", Operator: models.OpIs, Values: []any{"gold"}},
		}},
		"s2": {SegmentID: "s2", Rules: []models.AttributeRule{
			{AttributeName: "plan", Operator: models.OpIs, Values: []any{"silver"}},
		}},
	}
}

func TestOperatorHandlers(t *testing.T) {
	tests := []struct {
		name      string
		op        models.Operator
		attrValue any
		ruleValue any
		want      bool
	}{
		{name: "is string true", op: models.OpIs, attrValue: "gold", ruleValue: "gold", want: true},
		{name: "is string false", op: models.Operator("is"), attrValue: "gold", ruleValue: "silver", want: false},
		{name: "is number mixed types", op: models.OpIs, attrValue: 10, ruleValue: 10.0, want: true},
		{name: "is bool", op: models.OpIs, attrValue: true, ruleValue: true, want: true},
		{name: "contains true", op: models.OpContains, attrValue: "gold_plan", ruleValue: "gold", want: true},
		{name: "startsWith true", op: models.Operator("startsWith"), attrValue: "gold_plan", ruleValue: "gold", want: true},
		{name: "endsWith true", op: models.Operator("endsWith"), attrValue: "gold_plan", ruleValue: "plan", want: true},
		{name: "greaterThan int float", op: models.OpGreaterThan, attrValue: 10, ruleValue: 9.5, want: true},
		{name: "lesserThanEquals float int", op: models.OpLesserThanEq, attrValue: 10.0, ruleValue: 10, want: true},
		{name: "greaterThanEquals json number", op: models.OpGreaterThanEq, attrValue: json.Number("12"), ruleValue: 10, want: true},
		{name: "version greaterThan", op: models.OpVersionGreater, attrValue: "1.2.0", ruleValue: "1.1.9", want: true},
		{name: "version lesserThan prerelease", op: models.OpVersionLesser, attrValue: "1.0.0-beta.1", ruleValue: "1.0.0", want: true},
		{name: "version invalid", op: models.OpVersionGreater, attrValue: "not-a-version", ruleValue: "1.0.0", want: false},
		{name: "legacy alias gte", op: models.Operator("gte"), attrValue: 5, ruleValue: 5, want: true},
		{name: "invalid type false", op: models.OpContains, attrValue: 123, ruleValue: "1", want: false},
		{name: "unknown operator", op: models.Operator("matches"), attrValue: "x", ruleValue: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, ok := getOperatorHandler(tt.op)
			if !ok {
				if tt.want {
					t.Fatalf("handler not found for %q", tt.op)
				}
				return
			}
			if got := handler.Check(tt.attrValue, tt.ruleValue); got != tt.want {
				t.Fatalf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateSegment_AndAcrossRulesOrAcrossValues(t *testing.T) {
	segment := models.Segment{
		SegmentID: "multi",
		Rules: []models.AttributeRule{
			{AttributeName: "country", Operator: models.OpIs, Values: []any{"US", "CA"}},
			{AttributeName: "plan", Operator: models.OpIs, Values: []any{"gold"}},
		},
	}

	tests := []struct {
		name  string
		attrs map[string]any
		want  bool
	}{
		{name: "both rules match via second value", attrs: map[string]any{"country": "CA", "plan": "gold"}, want: true},
		{name: "one rule fails", attrs: map[string]any{"country": "US", "plan": "silver"}, want: false},
		{name: "missing attribute", attrs: map[string]any{"plan": "gold"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateSegment(segment, tt.attrs); got != tt.want {
				t.Fatalf("EvaluateSegment() = %v, want %v", got, tt.want)
			}
		})
	}

	empty := models.Segment{SegmentID: "everyone"}
	if !EvaluateSegment(empty, map[string]any{"any": "thing"}) {
		t.Fatalf("segment with no rules should match every entity")
	}
}

func TestEvaluateFeature_NoAttributesReturnsEnabledValue(t *testing.T) {
	rec := &countingRecorder{}
	ev := NewEvaluator(goldSegments(), rec, zerolog.Nop())

	feature := models.Feature{
		FeatureID: "f1", Enabled: true, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{{
			Order: 1,
			Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
			Value: "override",
		}},
	}

	got := ev.EvaluateFeature(feature, "entity-1", nil)
	if got.Value != "on" {
		t.Fatalf("Value = %v, want on", got.Value)
	}
	if got.SegmentID != models.DefaultSegmentID {
		t.Fatalf("SegmentID = %s, want default sentinel", got.SegmentID)
	}
	if rec.calls != 1 {
		t.Fatalf("recorder calls = %d, want 1", rec.calls)
	}
	if rec.featureID != "f1" || rec.propertyID != "" {
		t.Fatalf("recorder ids = (%q, %q), want (f1, empty)", rec.featureID, rec.propertyID)
	}
}

func TestEvaluateFeature_DisabledSkipsRules(t *testing.T) {
	rec := &countingRecorder{}
	ev := NewEvaluator(goldSegments(), rec, zerolog.Nop())

	feature := models.Feature{
		FeatureID: "f1", Enabled: false, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{{
			Order: 1,
			Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
			Value: "override",
		}},
	}

	got := ev.EvaluateFeature(feature, "entity-1", map[string]any{"plan": "gold"})
	if got.Value != "off" {
		t.Fatalf("Value = %v, want off", got.Value)
	}
	if got.SegmentID != models.DefaultSegmentID {
		t.Fatalf("disabled feature must report default segment, got %s", got.SegmentID)
	}
	if rec.calls != 1 {
		t.Fatalf("recorder calls = %d, want 1", rec.calls)
	}
}

func TestEvaluateFeature_DefaultSentinelAndFallthrough(t *testing.T) {
	feature := models.Feature{
		FeatureID: "f1", Enabled: true, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{{
			Order: 1,
			Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
			Value: models.DefaultValue,
		}},
	}

	ev := NewEvaluator(goldSegments(), nil, zerolog.Nop())

	gold := ev.EvaluateFeature(feature, "e1", map[string]any{"plan": "gold"})
	if gold.Value != "on" || gold.SegmentID != "s1" {
		t.Fatalf("gold entity = (%v, %s), want (on, s1)", gold.Value, gold.SegmentID)
	}

	silver := ev.EvaluateFeature(feature, "e2", map[string]any{"plan": "silver"})
	if silver.Value != "on" || silver.SegmentID != models.DefaultSegmentID {
		t.Fatalf("silver entity = (%v, %s), want (on, default)", silver.Value, silver.SegmentID)
	}
}

func TestEvaluate_FirstMatchWinsByOrder(t *testing.T) {
	// Rules listed out of order: the order field is authoritative.
	feature := models.Feature{
		FeatureID: "f1", Enabled: true, EnabledValue: "base", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{
			{
				Order: 2,
				Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
				Value: "second",
			},
			{
				Order: 1,
				Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
				Value: "first",
			},
		},
	}

	ev := NewEvaluator(goldSegments(), nil, zerolog.Nop())
	got := ev.EvaluateFeature(feature, "e1", map[string]any{"plan": "gold"})
	if got.Value != "first" || got.SegmentID != "s1" {
		t.Fatalf("got (%v, %s), want (first, s1)", got.Value, got.SegmentID)
	}
}

func TestEvaluate_UnknownSegmentIsNonMatch(t *testing.T) {
	feature := models.Feature{
		FeatureID: "f1", Enabled: true, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{
			{
				Order: 1,
				Rules: []models.RuleLevel{{Segments: []string{"missing", "s1"}}},
				Value: "override",
			},
		},
	}

	ev := NewEvaluator(goldSegments(), nil, zerolog.Nop())
	got := ev.EvaluateFeature(feature, "e1", map[string]any{"plan": "gold"})
	if got.Value != "override" || got.SegmentID != "s1" {
		t.Fatalf("got (%v, %s), want (override, s1) after skipping unknown id", got.Value, got.SegmentID)
	}

	onlyMissing := models.Feature{
		FeatureID: "f2", Enabled: true, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{{
			Order: 1,
			Rules: []models.RuleLevel{{Segments: []string{"missing"}}},
			Value: "override",
		}},
	}
	got = ev.EvaluateFeature(onlyMissing, "e1", map[string]any{"plan": "gold"})
	if got.Value != "on" || got.SegmentID != models.DefaultSegmentID {
		t.Fatalf("got (%v, %s), want enabled-value fallback", got.Value, got.SegmentID)
	}
}

func TestEvaluateProperty_DualFallback(t *testing.T) {
	rec := &countingRecorder{}
	ev := NewEvaluator(goldSegments(), rec, zerolog.Nop())

	property := models.Property{
		PropertyID: "p1", Value: 25,
		SegmentRules: []models.SegmentRule{{
			Order: 1,
			Rules: []models.RuleLevel{{Segments: []string{"s1"}}},
			Value: models.DefaultValue,
		}},
	}

	// The sentinel resolves to the property's own value, not a feature field.
	got := ev.EvaluateProperty(property, "e1", map[string]any{"plan": "gold"})
	if got.Value != 25 || got.SegmentID != "s1" {
		t.Fatalf("got (%v, %s), want (25, s1)", got.Value, got.SegmentID)
	}
	if rec.calls != 1 || rec.propertyID != "p1" || rec.featureID != "" {
		t.Fatalf("recorder = %+v, want one property record", rec)
	}

	noAttrs := ev.EvaluateProperty(property, "e1", map[string]any{})
	if noAttrs.Value != 25 || noAttrs.SegmentID != models.DefaultSegmentID {
		t.Fatalf("empty attributes should return base value, got (%v, %s)", noAttrs.Value, noAttrs.SegmentID)
	}
}

func TestEvaluate_RolloutPercentage(t *testing.T) {
	zero := 0
	feature := models.Feature{
		FeatureID: "f1", Enabled: true, EnabledValue: "on", DisabledValue: "off",
		SegmentRules: []models.SegmentRule{{
			Order:             1,
			Rules:             []models.RuleLevel{{Segments: []string{"s1"}}},
			Value:             "override",
			RolloutPercentage: &zero,
		}},
	}

	ev := NewEvaluator(goldSegments(), nil, zerolog.Nop())
	got := ev.EvaluateFeature(feature, "e1", map[string]any{"plan": "gold"})
	if got.Value != "on" || got.SegmentID != models.DefaultSegmentID {
		t.Fatalf("0%% rollout must exclude every entity, got (%v, %s)", got.Value, got.SegmentID)
	}

	hundred := 100
	feature.SegmentRules[0].RolloutPercentage = &hundred
	got = ev.EvaluateFeature(feature, "e1", map[string]any{"plan": "gold"})
	if got.Value != "override" || got.SegmentID != "s1" {
		t.Fatalf("100%% rollout must include every entity, got (%v, %s)", got.Value, got.SegmentID)
	}

	// Determinism: the same entity sees the same outcome across calls.
	half := 50
	feature.SegmentRules[0].RolloutPercentage = &half
	first := ev.EvaluateFeature(feature, "fixed-entity", map[string]any{"plan": "gold"})
	for i := 0; i < 25; i++ {
		if got := ev.EvaluateFeature(feature, "fixed-entity", map[string]any{"plan": "gold"}); got != first {
			t.Fatalf("rollout outcome changed across evaluations: %v then %v", first, got)
		}
	}
}
