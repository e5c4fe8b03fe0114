package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
	"github.com/fyrsmithlabs/chainctl/internal/manifest"
	"github.com/fyrsmithlabs/chainctl/internal/marker"
	"github.com/fyrsmithlabs/chainctl/internal/outputs"
	"github.com/fyrsmithlabs/chainctl/internal/promotion"
	"github.com/fyrsmithlabs/chainctl/internal/topology"
)

var advanceMarker string

// advanceCmd is the marker-push entry point: it runs the promotion state
// machine for the environment named by the trigger marker.
var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Run one environment's promotion step for a trigger marker",
	Long: `Advance decodes the trigger marker and drives one environment's worth of
work: check the previous environment's gate, render manifests per zone
group, commit release-state changes, record success markers, and push the
next environment's marker (or finish the chain).

A run that fails its gate exits non-zero without mutating shared state; it
resolves itself once the previous environment completes and the platform
re-triggers.

Example:
  chainctl advance --marker orders-1.2.0-1-staging`,
	RunE: runAdvance,
}

func init() {
	advanceCmd.Flags().StringVar(&advanceMarker, "marker", "", "trigger marker string")
}

func runAdvance(cmd *cobra.Command, args []string) error {
	ctx := logging.WithRunID(cmd.Context(), uuid.NewString())

	if advanceMarker == "" {
		return reportErr(ctx, fmt.Errorf("%w: marker", promotion.ErrMissingField))
	}
	trig, err := marker.Parse(advanceMarker)
	if err != nil {
		return reportErr(ctx, err)
	}
	ctx = logging.WithMarker(ctx, trig.String())

	if cfg.ReleaseRepo.Path == "" {
		return reportErr(ctx, errors.New("release_repo.path is required for advance"))
	}

	topo, err := topology.LoadFile(cfg.Topology.File)
	if err != nil {
		return reportErr(ctx, err)
	}
	store, err := gitstore.OpenTagStore(cfg.MarkerRepo.Path, cfg.MarkerRepo.Remote)
	if err != nil {
		return reportErr(ctx, err)
	}
	repo, err := gitstore.OpenReleaseRepo(cfg.ReleaseRepo.Path, cfg.ReleaseRepo.Remote,
		cfg.ReleaseRepo.AuthorName, cfg.ReleaseRepo.AuthorEmail)
	if err != nil {
		return reportErr(ctx, err)
	}
	gen, err := manifest.NewExecGenerator(cfg.Generator.Command, repo.Path(), log.Named("generator"))
	if err != nil {
		return reportErr(ctx, err)
	}
	policy, err := promotion.ParsePolicy(cfg.Promotion.EnvSuccess)
	if err != nil {
		return reportErr(ctx, err)
	}

	machine := promotion.NewMachine(topo, gen, store, repo, policy, log.Named("promotion"))
	res, err := machine.Run(ctx, trig)
	if err != nil {
		return reportErr(ctx, err)
	}

	log.Info(ctx, "promotion step finished",
		zap.String("state", string(res.State)),
		zap.Int("committed_groups", res.CommittedGroups),
		zap.Strings("pushed", res.Pushed),
	)

	out, err := outputs.New()
	if err != nil {
		return reportErr(ctx, err)
	}
	defer out.Close()

	pairs := []kv{
		{"app", trig.App},
		{"app_version", trig.Version},
		{"release", strconv.Itoa(trig.Release)},
		{"environment", trig.Environment},
		{"marker", trig.String()},
		{"state", string(res.State)},
	}
	if res.CommittedGroups > 0 {
		pairs = append(pairs,
			kv{"changed_app", trig.App},
			kv{"changed_count", strconv.Itoa(res.CommittedGroups)},
		)
	}
	if res.NextMarker != "" {
		pairs = append(pairs, kv{"next_marker", res.NextMarker})
	}
	return emit(out, pairs...)
}
