package main

import (
	"fmt"

	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	genmapOpts costmap.GenerateOptions

	genmapCmd = &cobra.Command{
		Use:   "genmap <out.cfg[.bz2]>",
		Short: "Writes a random feasible environment file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenmap,
	}
)

func init() {
	addGenerateFlags(genmapCmd.Flags(), &genmapOpts)
}

func addGenerateFlags(flags *pflag.FlagSet, opts *costmap.GenerateOptions) {
	flags.IntVar(&opts.Width, "width", 50, "map width, in cells")
	flags.IntVar(&opts.Height, "height", 50, "map height, in cells")
	flags.Float64Var(&opts.ObstacleDensity, "density", 0.2, "fraction of obstacle cells")
	flags.Uint8Var(&opts.ObstacleThreshold, "obsthresh", 1, "obstacle threshold")
	flags.Uint8Var(&opts.ObstacleCost, "obstacle-cost", 255, "cost written to obstacle cells")
	flags.Uint8Var(&opts.MaxFreeCost, "max-free-cost", 0, "exclusive upper bound of free cell costs")
	flags.Int64Var(&opts.Seed, "map-seed", 1, "seed of the map generator")
}

func runGenmap(cmd *cobra.Command, args []string) error {
	cfg, err := costmap.Generate(genmapOpts)
	if err != nil {
		return err
	}
	if err := costmap.WriteEnvConfig(args[0], cfg); err != nil {
		return err
	}
	log.Info("map written", zap.String("file", args[0]), zap.Stringer("start", cfg.Start), zap.Stringer("goal", cfg.Goal))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d start %v goal %v\n", args[0], cfg.Map.Width(), cfg.Map.Height(),
		cfg.Start, cfg.Goal)
	return nil
}
