// Package engine resolves the effective value of a feature or property for
// an entity by walking its ordered segment rules against the cached
// segments. Evaluation never returns an error to the caller: data-shape
// problems degrade to the feature's enabled value or the property's own
// value.
package engine

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goappconfig/internal/models"
	"github.com/TimurManjosov/goappconfig/internal/rollout"
)

// SegmentLookup resolves segment ids against the current cache snapshot.
type SegmentLookup interface {
	Segment(id string) (models.Segment, bool)
}

// Recorder receives exactly one usage record per evaluation call.
// featureID and propertyID are mutually exclusive; the empty string stands
// for "not applicable".
type Recorder interface {
	RecordEvaluation(featureID, propertyID, entityID, segmentID string)
}

// Result is the outcome of one evaluation.
type Result struct {
	Value     any
	SegmentID string // models.DefaultSegmentID when no segment rule matched
}

// Evaluator applies segment rules in priority order, short-circuiting on the
// first matching segment.
type Evaluator struct {
	segments SegmentLookup
	recorder Recorder
	log      zerolog.Logger
}

// NewEvaluator returns an evaluator reading segments from lookup and
// reporting every evaluation to recorder. recorder may be nil.
func NewEvaluator(segments SegmentLookup, recorder Recorder, log zerolog.Logger) *Evaluator {
	return &Evaluator{segments: segments, recorder: recorder, log: log}
}

// EvaluateFeature resolves the feature's effective value for the entity.
// A disabled feature returns its disabled value without touching segment
// rules. One metering record is produced no matter how evaluation exits.
func (e *Evaluator) EvaluateFeature(feature models.Feature, entityID string, attributes map[string]any) (result Result) {
	result = Result{Value: feature.DisabledValue, SegmentID: models.DefaultSegmentID}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("feature_id", feature.FeatureID).
				Msg("feature evaluation recovered, serving disabled value")
			result = Result{Value: feature.DisabledValue, SegmentID: models.DefaultSegmentID}
		}
		e.record(feature.FeatureID, "", entityID, result.SegmentID)
	}()

	if !feature.IsEnabled() {
		return result
	}
	result = e.evaluate(feature.SegmentRules, feature.FeatureID, feature.EnabledValue, entityID, attributes)
	return result
}

// EvaluateProperty resolves the property's effective value for the entity.
func (e *Evaluator) EvaluateProperty(property models.Property, entityID string, attributes map[string]any) (result Result) {
	result = Result{Value: property.Value, SegmentID: models.DefaultSegmentID}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("property_id", property.PropertyID).
				Msg("property evaluation recovered, serving base value")
			result = Result{Value: property.Value, SegmentID: models.DefaultSegmentID}
		}
		e.record("", property.PropertyID, entityID, result.SegmentID)
	}()

	result = e.evaluate(property.SegmentRules, property.PropertyID, property.Value, entityID, attributes)
	return result
}

// evaluate walks rules by ascending order. Within a rule, rule levels run in
// the order given and each level's segment ids in order. The first matching
// segment wins; the sentinel value falls back to baseValue. A rule that
// fails to apply (missing segment, rollout exclusion) is treated as a
// non-match and evaluation continues with the next rule.
func (e *Evaluator) evaluate(rules []models.SegmentRule, resourceID string, baseValue any, entityID string, attributes map[string]any) Result {
	result := Result{Value: baseValue, SegmentID: models.DefaultSegmentID}
	if len(attributes) == 0 || len(rules) == 0 {
		return result
	}

	for _, rule := range orderRules(rules) {
		segmentID, matched := e.matchRule(rule, attributes)
		if !matched {
			continue
		}
		if rule.Rollout() < 100 && !rollout.Within(entityID, resourceID, rule.Rollout()) {
			e.log.Debug().Str("resource_id", resourceID).Str("entity_id", entityID).
				Int("rollout", rule.Rollout()).Msg("entity outside rule rollout")
			continue
		}
		result.SegmentID = segmentID
		if isDefaultSentinel(rule.Value) {
			result.Value = baseValue
		} else {
			result.Value = rule.Value
		}
		return result
	}
	return result
}

// matchRule returns the id of the first segment in the rule that matches the
// attributes. Unknown segment ids are logged and treated as non-matches.
func (e *Evaluator) matchRule(rule models.SegmentRule, attributes map[string]any) (string, bool) {
	for _, level := range rule.Rules {
		for _, segmentID := range level.Segments {
			segment, ok := e.segments.Segment(segmentID)
			if !ok {
				e.log.Debug().Str("segment_id", segmentID).Msg("segment not in cache, treating as non-match")
				continue
			}
			if EvaluateSegment(segment, attributes) {
				return segmentID, true
			}
		}
	}
	return "", false
}

// orderRules returns the rules sorted by ascending Order. Order is the
// authoritative priority; list position only breaks ties.
func orderRules(rules []models.SegmentRule) []models.SegmentRule {
	ordered := make([]models.SegmentRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	return ordered
}

func isDefaultSentinel(v any) bool {
	s, ok := v.(string)
	return ok && s == models.DefaultValue
}

func (e *Evaluator) record(featureID, propertyID, entityID, segmentID string) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordEvaluation(featureID, propertyID, entityID, segmentID)
}
