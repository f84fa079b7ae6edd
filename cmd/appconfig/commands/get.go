package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goappconfig/internal/cli"
	"github.com/TimurManjosov/goappconfig/internal/models"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one feature or property",
	Long: `Show the feature or property with the given id.

Examples:
  appconfig get dark-mode --profile local
  appconfig get page-size --file appconfig.json --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		result, err := loadDocument(cmd.Context())
		if err != nil {
			return err
		}

		if f, ok := result.Features[id]; ok {
			if quiet {
				return nil
			}
			return cli.PrintFeatures(cli.FeatureRows(map[string]models.Feature{id: f}), cli.OutputFormat(format))
		}
		if p, ok := result.Properties[id]; ok {
			if quiet {
				return nil
			}
			return cli.PrintProperties(cli.PropertyRows(map[string]models.Property{id: p}), cli.OutputFormat(format))
		}
		return fmt.Errorf("no feature or property with id '%s'", id)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
