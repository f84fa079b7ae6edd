package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goappconfig/internal/models"
)

// OutputFormat specifies the output format for CLI commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// FeatureRow is the flattened view of a feature for CLI output.
type FeatureRow struct {
	FeatureID     string `json:"feature_id" yaml:"feature_id"`
	Name          string `json:"name" yaml:"name"`
	Type          string `json:"type" yaml:"type"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	EnabledValue  any    `json:"enabled_value" yaml:"enabled_value"`
	DisabledValue any    `json:"disabled_value" yaml:"disabled_value"`
	Rules         int    `json:"segment_rules" yaml:"segment_rules"`
}

// PropertyRow is the flattened view of a property for CLI output.
type PropertyRow struct {
	PropertyID string `json:"property_id" yaml:"property_id"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Value      any    `json:"value" yaml:"value"`
	Rules      int    `json:"segment_rules" yaml:"segment_rules"`
}

// Evaluation is the output of one eval command run.
type Evaluation struct {
	ID        string `json:"id" yaml:"id"`
	Kind      string `json:"kind" yaml:"kind"`
	EntityID  string `json:"entity_id" yaml:"entity_id"`
	Value     any    `json:"value" yaml:"value"`
	SegmentID string `json:"segment_id" yaml:"segment_id"`
}

// FeatureRows flattens features for printing, sorted by feature id for
// stable output.
func FeatureRows(features map[string]models.Feature) []FeatureRow {
	rows := make([]FeatureRow, 0, len(features))
	for _, f := range features {
		rows = append(rows, FeatureRow{
			FeatureID:     f.FeatureID,
			Name:          f.Name,
			Type:          f.Type,
			Enabled:       f.Enabled,
			EnabledValue:  f.EnabledValue,
			DisabledValue: f.DisabledValue,
			Rules:         len(f.SegmentRules),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FeatureID < rows[j].FeatureID })
	return rows
}

// PropertyRows flattens properties for printing.
func PropertyRows(properties map[string]models.Property) []PropertyRow {
	rows := make([]PropertyRow, 0, len(properties))
	for _, p := range properties {
		rows = append(rows, PropertyRow{
			PropertyID: p.PropertyID,
			Name:       p.Name,
			Type:       p.Type,
			Value:      p.Value,
			Rules:      len(p.SegmentRules),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PropertyID < rows[j].PropertyID })
	return rows
}

// PrintFeatures outputs features in the specified format.
func PrintFeatures(rows []FeatureRow, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]FeatureRow{"features": rows})
	case FormatYAML:
		return printYAML(rows)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Feature ID", "Name", "Type", "Enabled", "Enabled Value", "Disabled Value", "Rules")
		for _, r := range rows {
			table.Append(
				r.FeatureID,
				r.Name,
				r.Type,
				fmt.Sprintf("%t", r.Enabled),
				fmt.Sprintf("%v", r.EnabledValue),
				fmt.Sprintf("%v", r.DisabledValue),
				fmt.Sprintf("%d", r.Rules),
			)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintProperties outputs properties in the specified format.
func PrintProperties(rows []PropertyRow, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]PropertyRow{"properties": rows})
	case FormatYAML:
		return printYAML(rows)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property ID", "Name", "Type", "Value", "Rules")
		for _, r := range rows {
			table.Append(
				r.PropertyID,
				r.Name,
				r.Type,
				fmt.Sprintf("%v", r.Value),
				fmt.Sprintf("%d", r.Rules),
			)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEvaluation outputs one evaluation result.
func PrintEvaluation(ev Evaluation, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(ev)
	case FormatYAML:
		return printYAML(ev)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Kind", "Entity", "Value", "Segment")
		table.Append(ev.ID, ev.Kind, ev.EntityID, fmt.Sprintf("%v", ev.Value), ev.SegmentID)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
