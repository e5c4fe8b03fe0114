package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chainctl/internal/allocator"
	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
	"github.com/fyrsmithlabs/chainctl/internal/marker"
	"github.com/fyrsmithlabs/chainctl/internal/outputs"
	"github.com/fyrsmithlabs/chainctl/internal/promotion"
	"github.com/fyrsmithlabs/chainctl/internal/topology"
)

var (
	allocateApp     string
	allocateVersion string
)

// allocateCmd is the merge-event entry point: it claims a release slot and
// pushes the first-environment marker, which re-enters the pipeline as the
// first advance trigger.
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate a release slot and push the first-environment marker",
	Long: `Allocate finds the smallest free release number for (app, version) in the
first environment of the app's chain and pushes the corresponding marker.

The marker push is the serialization point: when a concurrent allocation
claims the same slot first, allocation retries against a refreshed marker
listing.

Example:
  chainctl allocate --app orders --app-version 1.2.0`,
	RunE: runAllocate,
}

func init() {
	allocateCmd.Flags().StringVar(&allocateApp, "app", "", "application name")
	allocateCmd.Flags().StringVar(&allocateVersion, "app-version", "", "application version (N.N.N)")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	ctx := logging.WithRunID(cmd.Context(), uuid.NewString())

	if allocateApp == "" {
		return reportErr(ctx, fmt.Errorf("%w: app", promotion.ErrMissingField))
	}
	if allocateVersion == "" {
		return reportErr(ctx, fmt.Errorf("%w: version", promotion.ErrMissingField))
	}

	topo, err := topology.LoadFile(cfg.Topology.File)
	if err != nil {
		return reportErr(ctx, err)
	}
	first, err := topo.FirstEnv(ctx, allocateApp)
	if err != nil {
		return reportErr(ctx, err)
	}

	// Reject grammar violations before touching the store.
	probe := marker.Marker{App: allocateApp, Version: allocateVersion, Release: 1, Environment: first}
	if err := probe.Validate(); err != nil {
		return reportErr(ctx, err)
	}

	store, err := gitstore.OpenTagStore(cfg.MarkerRepo.Path, cfg.MarkerRepo.Remote)
	if err != nil {
		return reportErr(ctx, err)
	}

	alloc := allocator.New(store,
		allocator.WithMaxSlots(cfg.Allocator.MaxSlots),
		allocator.WithMaxPushAttempts(cfg.Allocator.MaxPushAttempts),
	)
	m, err := alloc.AllocateAndPush(ctx, allocateApp, allocateVersion, first)
	if err != nil {
		return reportErr(ctx, err)
	}

	log.Info(ctx, "release slot allocated",
		zap.String("app", m.App),
		zap.String("version", m.Version),
		zap.Int("release", m.Release),
		zap.String("marker", m.String()),
	)

	out, err := outputs.New()
	if err != nil {
		return reportErr(ctx, err)
	}
	defer out.Close()
	return emit(out,
		kv{"app", m.App},
		kv{"app_version", m.Version},
		kv{"release", strconv.Itoa(m.Release)},
		kv{"environment", m.Environment},
		kv{"marker", m.String()},
	)
}
