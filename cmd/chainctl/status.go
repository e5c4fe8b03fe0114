package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
	"github.com/fyrsmithlabs/chainctl/internal/promotion"
	"github.com/fyrsmithlabs/chainctl/internal/topology"
)

var (
	statusApp     string
	statusVersion string
	statusRelease int
)

// statusCmd folds the marker log for one identity into a chain report. It is
// read-only: current state is always recomputed from the markers, never
// stored anywhere else.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report chain state for an identity from the marker log",
	Long: `Status folds the marker namespace into per-environment state for one
(app, version, release) identity. Without --release the highest allocated
release is reported.

Example:
  chainctl status --app orders --app-version 1.2.0 --release 1`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusApp, "app", "", "application name")
	statusCmd.Flags().StringVar(&statusVersion, "app-version", "", "application version (N.N.N)")
	statusCmd.Flags().IntVar(&statusRelease, "release", 0, "release number (default: highest allocated)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := logging.WithRunID(cmd.Context(), uuid.NewString())

	if statusApp == "" {
		return reportErr(ctx, fmt.Errorf("%w: app", promotion.ErrMissingField))
	}
	if statusVersion == "" {
		return reportErr(ctx, fmt.Errorf("%w: version", promotion.ErrMissingField))
	}

	topo, err := topology.LoadFile(cfg.Topology.File)
	if err != nil {
		return reportErr(ctx, err)
	}
	chain, err := topo.Chain(ctx, statusApp)
	if err != nil {
		return reportErr(ctx, err)
	}
	store, err := gitstore.OpenTagStore(cfg.MarkerRepo.Path, cfg.MarkerRepo.Remote)
	if err != nil {
		return reportErr(ctx, err)
	}
	names, err := store.List(ctx)
	if err != nil {
		return reportErr(ctx, err)
	}
	markers := promotion.ParseLog(names)

	release := statusRelease
	if release == 0 {
		releases := promotion.Releases(markers, statusApp, statusVersion)
		if len(releases) == 0 {
			return reportErr(ctx, fmt.Errorf("no releases found for %s %s", statusApp, statusVersion))
		}
		release = releases[len(releases)-1]
	}

	state := promotion.FoldChain(markers, statusApp, statusVersion, release, chain)

	fmt.Printf("%s %s release %d\n", state.App, state.Version, state.Release)
	for _, env := range state.Environments {
		line := fmt.Sprintf("  %-12s %s", env.Name, env.Status)
		if len(env.Zones) > 0 {
			line += " [" + strings.Join(env.Zones, ",") + "]"
		}
		fmt.Println(line)
	}
	if state.Complete {
		fmt.Println("chain complete")
	}
	return nil
}
