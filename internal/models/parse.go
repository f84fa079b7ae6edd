package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category names one of the three snapshot collections.
type Category string

const (
	CategoryFeature  Category = "feature"
	CategoryProperty Category = "property"
	CategorySegment  Category = "segment"
)

// SkippedEntry describes one snapshot entry that failed to parse and was
// dropped without aborting the rest of the load.
type SkippedEntry struct {
	Category Category
	Index    int
	Reason   string
}

func (s SkippedEntry) String() string {
	return fmt.Sprintf("%s[%d]: %s", s.Category, s.Index, s.Reason)
}

// ParseResult is the typed outcome of parsing one snapshot document.
// A nil category map means the category key was absent from the document;
// a non-nil empty map means the key was present but listed no valid entries.
type ParseResult struct {
	Features   map[string]Feature
	Properties map[string]Property
	Segments   map[string]Segment
	Skipped    []SkippedEntry
}

// document mirrors the wire shape. Pointer slices distinguish an absent
// category key from a present-but-empty one.
type document struct {
	Features   *[]json.RawMessage `json:"features"`
	Properties *[]json.RawMessage `json:"properties"`
	Segments   *[]json.RawMessage `json:"segments"`
}

// ParseConfiguration decodes a full snapshot document. Individual malformed
// entries are skipped and recorded in the result; only a document that is
// not valid JSON at the top level yields an error.
func ParseConfiguration(data []byte) (*ParseResult, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode configuration document: %w", err)
	}

	result := &ParseResult{}

	if doc.Features != nil {
		result.Features = make(map[string]Feature, len(*doc.Features))
		for i, raw := range *doc.Features {
			var f Feature
			if reason := decodeEntry(raw, &f); reason != "" {
				result.skip(CategoryFeature, i, reason)
				continue
			}
			if strings.TrimSpace(f.FeatureID) == "" {
				result.skip(CategoryFeature, i, "missing feature_id")
				continue
			}
			result.Features[f.FeatureID] = f
		}
	}

	if doc.Properties != nil {
		result.Properties = make(map[string]Property, len(*doc.Properties))
		for i, raw := range *doc.Properties {
			var p Property
			if reason := decodeEntry(raw, &p); reason != "" {
				result.skip(CategoryProperty, i, reason)
				continue
			}
			if strings.TrimSpace(p.PropertyID) == "" {
				result.skip(CategoryProperty, i, "missing property_id")
				continue
			}
			result.Properties[p.PropertyID] = p
		}
	}

	if doc.Segments != nil {
		result.Segments = make(map[string]Segment, len(*doc.Segments))
		for i, raw := range *doc.Segments {
			var s Segment
			if reason := decodeEntry(raw, &s); reason != "" {
				result.skip(CategorySegment, i, reason)
				continue
			}
			if strings.TrimSpace(s.SegmentID) == "" {
				result.skip(CategorySegment, i, "missing segment_id")
				continue
			}
			result.Segments[s.SegmentID] = s
		}
	}

	return result, nil
}

func decodeEntry(raw json.RawMessage, v any) (reason string) {
	if err := json.Unmarshal(raw, v); err != nil {
		return err.Error()
	}
	return ""
}

func (r *ParseResult) skip(c Category, index int, reason string) {
	r.Skipped = append(r.Skipped, SkippedEntry{Category: c, Index: index, Reason: reason})
}
