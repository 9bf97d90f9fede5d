package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/lintang-b-s/gridnav/pkg/config"
	"github.com/lintang-b-s/gridnav/pkg/costmap"
	"github.com/lintang-b-s/gridnav/pkg/simulation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <env.cfg>",
	Short: "Navigates one environment file and writes the solution log",
	Args:  cobra.ExactArgs(1),
	RunE:  runNavigation,
}

func init() {
	runCmd.Flags().String("out", "", "solution log file (default sol.txt)")
	if err := v.BindPFlag(config.KeySolutionPath, runCmd.Flags().Lookup("out")); err != nil {
		panic(err)
	}
}

func runNavigation(cmd *cobra.Command, args []string) (err error) {
	cfg, err := costmap.ReadEnvConfig(args[0])
	if err != nil {
		return err
	}
	family, err := params.Family()
	if err != nil {
		return err
	}

	f, err := os.Create(params.SolutionPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)

	log.Info("navigating", zap.String("env", args[0]), zap.String("params", params.String()),
		zap.String("solution", params.SolutionPath))
	res, _, err := simulation.NewRunner(params, nil, log).Run(cmd.Context(), cfg, family, w)
	// the partial log of a failed run is kept
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "goal reached after %d cycles (run %s)\n", res.Cycles, res.RunID)
	return nil
}
