package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/rotation-optimizer/internal/app"
	"github.com/stitts-dev/rotation-optimizer/pkg/config"
	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

var flags struct {
	verbose  bool
	offline  bool
	noCache  bool
	size     int
	encoding string
	refresh  bool
}

var rootCmd = &cobra.Command{
	Use:           "rotation",
	Short:         "Find each franchise's best rotation of players who were never teammates",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "show solver progress and debug logs")
	rootCmd.PersistentFlags().BoolVar(&flags.offline, "offline", false, "never contact Fangraphs; use saved histories only")
	rootCmd.PersistentFlags().BoolVar(&flags.noCache, "no-cache", false, "rebuild teammate relations instead of reading the cache")

	rootCmd.AddCommand(solveCmd, matrixCmd, scrapeCmd, playersCmd, validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and wires the app for a command
func setup(cmd *cobra.Command) (*app.App, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel
	if flags.verbose {
		level = "debug"
		cfg.SolverVerbose = true
	}
	log := logger.InitLogger(level, cfg.IsDevelopment())

	a, err := app.New(cmd.Context(), cfg, log, app.Options{
		Offline: flags.offline,
		NoCache: flags.noCache,
	})
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}
