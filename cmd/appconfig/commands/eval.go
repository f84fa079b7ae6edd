package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goappconfig/internal/cli"
	"github.com/TimurManjosov/goappconfig/internal/engine"
)

var (
	evalEntity string
	evalAttrs  []string
)

var evalCmd = &cobra.Command{
	Use:   "eval <id>",
	Short: "Evaluate a feature or property for an entity",
	Long: `Evaluate the feature or property with the given id against an entity
and its attributes, walking the segment rules the way the SDK does.

Attribute values are parsed as JSON where possible, so numbers and
booleans compare correctly; anything else is a string.

Examples:
  appconfig eval dark-mode --entity user-42 --attr plan=gold
  appconfig eval page-size --entity user-42 --attr plan=gold --attr age=34`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if evalEntity == "" {
			return fmt.Errorf("--entity is required")
		}
		attributes, err := parseAttrs(evalAttrs)
		if err != nil {
			return err
		}

		result, err := loadDocument(cmd.Context())
		if err != nil {
			return err
		}

		eval := engine.NewEvaluator(cli.SegmentMap(result.Segments), nil, logger())

		var ev cli.Evaluation
		if f, ok := result.Features[id]; ok {
			res := eval.EvaluateFeature(f, evalEntity, attributes)
			ev = cli.Evaluation{ID: id, Kind: "feature", EntityID: evalEntity, Value: res.Value, SegmentID: res.SegmentID}
		} else if p, ok := result.Properties[id]; ok {
			res := eval.EvaluateProperty(p, evalEntity, attributes)
			ev = cli.Evaluation{ID: id, Kind: "property", EntityID: evalEntity, Value: res.Value, SegmentID: res.SegmentID}
		} else {
			return fmt.Errorf("no feature or property with id '%s'", id)
		}

		if quiet {
			return nil
		}
		return cli.PrintEvaluation(ev, cli.OutputFormat(format))
	},
}

// parseAttrs turns key=value pairs into an attribute map. Values that
// decode as JSON keep their type.
func parseAttrs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("attribute '%s' must be key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			attrs[key] = decoded
		} else {
			attrs[key] = value
		}
	}
	return attrs, nil
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalEntity, "entity", "", "Entity id to evaluate for")
	evalCmd.Flags().StringArrayVar(&evalAttrs, "attr", nil, "Entity attribute as key=value (repeatable)")
}
