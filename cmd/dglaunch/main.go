package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/notargets/DGLaunch/runner"
	"github.com/notargets/DGLaunch/utils"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dglaunch",
		Short: "Generate GPU launch kernels for marked device functions",
		Long: `dglaunch scans C/C++ headers for DEVICE_LAUNCHABLE declarations and
generates a __device__ declaration plus a __global__ kernel for each one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "TOML file overriding the default conventions")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log each accepted declaration")

	rootCmd.AddCommand(
		NewHeadersCmd(),
		NewInterfacesCmd(),
		NewPlanCmd(),
	)

	return rootCmd
}

// setup loads the configuration and logger shared by the generating commands
func setup(cmd *cobra.Command) (runner.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := utils.NewLogger(cmd.ErrOrStderr(), level)

	path, _ := cmd.Flags().GetString("config")
	cfg, err := runner.LoadConfig(path)
	if err != nil {
		return runner.Config{}, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
