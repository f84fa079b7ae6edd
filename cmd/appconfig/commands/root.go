package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goappconfig/internal/cli"
)

var (
	// Global flags
	profile     string
	region      string
	guid        string
	apikey      string
	baseURL     string
	collection  string
	environment string
	file        string
	format      string
	quiet       bool
	verbose     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "appconfig",
	Short: "CLI for the app configuration service",
	Long: `appconfig inspects and evaluates feature flags and properties from a
configuration service instance or a local snapshot file.

Examples:
  appconfig list --profile local
  appconfig get dark-mode --profile local
  appconfig eval dark-mode --entity user-42 --attr plan=gold
  appconfig serve --addr :8090 --snapshot appconfig.json`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func resolveProfile() (*cli.Profile, error) {
	return cli.ResolveProfile(profile, cli.FlagOverrides{
		Region:      region,
		Guid:        guid,
		APIKey:      apikey,
		BaseURL:     baseURL,
		Collection:  collection,
		Environment: environment,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile name from the config file")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "Service region")
	rootCmd.PersistentFlags().StringVar(&guid, "guid", "", "Instance guid")
	rootCmd.PersistentFlags().StringVar(&apikey, "apikey", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override the region-derived service host")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "Collection id")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "", "Environment id")
	rootCmd.PersistentFlags().StringVar(&file, "file", "", "Read the snapshot from a local file instead of the service")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
