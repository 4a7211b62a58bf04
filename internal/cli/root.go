package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/scimap/internal/config"
)

// Version is the release version, overridden at build time with -ldflags
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool

	// cfg is loaded once per invocation before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scimap",
	Short: "scimap - timeline dataset of historical mathematicians",
	Long: `scimap builds a dataset of historical mathematicians with
geolocated biographical timelines.

It lists candidates from Wikidata, ranks them, scrapes their English
Wikipedia biographies, extracts timeline events with a completion
backend, enriches them with page view statistics and coordinates, and
writes one record per person plus an aggregate dataset.

Runs are resumable: progress is checkpointed after every entity.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scimap v%s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.scimap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
}
