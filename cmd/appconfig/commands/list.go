package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goappconfig/internal/cli"
	"github.com/TimurManjosov/goappconfig/internal/models"
)

var (
	listFeaturesOnly   bool
	listPropertiesOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List features and properties",
	Long: `List the features and properties of one collection/environment, read
from the service or from a local snapshot file.

Examples:
  appconfig list --profile local
  appconfig list --file appconfig.json --format json
  appconfig list --profile prod --features-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := loadDocument(cmd.Context())
		if err != nil {
			return err
		}
		if quiet {
			return nil
		}

		if !listPropertiesOnly {
			rows := cli.FeatureRows(result.Features)
			if len(rows) == 0 {
				fmt.Println("No features found")
			} else if err := cli.PrintFeatures(rows, cli.OutputFormat(format)); err != nil {
				return err
			}
		}
		if !listFeaturesOnly {
			rows := cli.PropertyRows(result.Properties)
			if len(rows) == 0 {
				fmt.Println("No properties found")
			} else if err := cli.PrintProperties(rows, cli.OutputFormat(format)); err != nil {
				return err
			}
		}
		return nil
	},
}

// loadDocument reads the snapshot from --file or pulls it once using the
// resolved profile.
func loadDocument(ctx context.Context) (*models.ParseResult, error) {
	log := logger()
	if file != "" {
		return cli.LoadDocument(ctx, nil, file, log)
	}

	p, err := resolveProfile()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cli.LoadDocument(ctx, p, "", log)
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listFeaturesOnly, "features-only", false, "Show only features")
	listCmd.Flags().BoolVar(&listPropertiesOnly, "properties-only", false, "Show only properties")
}
