package main

import (
	"fmt"

	"github.com/notargets/DGLaunch/runner"
	"github.com/notargets/DGLaunch/runner/builder"
	"github.com/notargets/DGLaunch/utils"
	"github.com/spf13/cobra"
)

func NewHeadersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Rewrite headers with grid-stride kernels for each marked declaration",
		Args:  cobra.NoArgs,
		RunE:  headersHandler,
	}

	cmd.Flags().String("vpath", "", "whitespace separated directories to search")
	cmd.Flags().String("fortran", "", "whitespace separated Fortran sources to scan for AMREX_DEVICE subroutines")
	cmd.Flags().String("headers", "", "whitespace separated headers to convert")
	cmd.Flags().String("output_dir", ".", "where to write the new headers")

	return cmd
}

func headersHandler(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	vpathFlag, _ := cmd.Flags().GetString("vpath")
	fortranFlag, _ := cmd.Flags().GetString("fortran")
	headersFlag, _ := cmd.Flags().GetString("headers")
	outputDir, _ := cmd.Flags().GetString("output_dir")

	vpath := utils.SplitList(vpathFlag)
	if headersFlag == "" {
		return fmt.Errorf("no headers given, use --headers")
	}

	fortranFiles, missing := utils.FindFiles(vpath, utils.SplitList(fortranFlag))
	for _, name := range missing {
		logger.Warn("Fortran source not found on vpath", "file", name)
	}
	fortranTargets, err := runner.FindFortranTargets(fortranFiles, logger)
	if err != nil {
		return err
	}

	headers, missing := utils.FindFiles(vpath, utils.SplitList(headersFlag))
	for _, name := range missing {
		logger.Warn("header not found on vpath", "file", name)
	}

	kr := runner.NewRunner(cfg, builder.Direct, logger)
	report, err := kr.RunDirect(headers, outputDir, fortranTargets)
	if err != nil {
		return err
	}

	renderReport(cmd.OutOrStdout(), report)
	return nil
}
