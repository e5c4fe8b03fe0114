// Package main implements the chainctl CLI: the per-stage entry point of the
// promotion pipeline. Each invocation runs exactly one pipeline step in
// reaction to a merge event or a marker push and then exits; all durable
// state lives in the marker and release-state repositories.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chainctl/internal/config"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
)

var (
	// configPath is the --config flag value; empty means the default
	// lookup ($CHAINCTL_CONFIG, then ~/.config/chainctl/config.yaml).
	configPath string
	// version information
	version = "dev"

	// populated by the persistent pre-run for every command
	cfg *config.Config
	log *logging.Logger
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chainctl",
	Short: "Promotion pipeline steps driven by markers in a shared git store",
	Long: `chainctl sequences the rollout of a versioned artifact across an ordered
chain of environments. Pipeline state is encoded entirely as immutable
marker tags in a shared git repository: a merge event allocates the first
marker, every marker push triggers the next environment's step, and one
environment's success marker gates the next.

Exit status is 0 on success and 1 on any fatal condition (missing identity
field, malformed marker, unsatisfied gate, exhausted allocator).`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithFile(configPath)
		if err != nil {
			return err
		}
		log, err = logging.NewLogger(&cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CHAINCTL_CONFIG or ~/.config/chainctl/config.yaml)")
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(statusCmd)
}
