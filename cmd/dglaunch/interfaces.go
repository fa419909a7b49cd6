package main

import (
	"github.com/notargets/DGLaunch/runner"
	"github.com/notargets/DGLaunch/runner/builder"
	"github.com/spf13/cobra"
)

func NewInterfacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interfaces [header...]",
		Short: "Generate cuda_ headers and one translation unit holding every kernel",
		RunE:  interfacesHandler,
	}

	cmd.Flags().StringP("output", "o", "", "translation unit to write (default from config)")

	return cmd
}

func interfacesHandler(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	headers := args
	if len(headers) == 0 {
		headers = cfg.Indirect.Headers
	}
	unit, _ := cmd.Flags().GetString("output")
	if unit == "" {
		unit = cfg.Indirect.UnitName
	}

	kr := runner.NewRunner(cfg, builder.Indirect, logger)
	report, err := kr.RunIndirect(headers, unit)
	if err != nil {
		return err
	}

	renderReport(cmd.OutOrStdout(), report)
	return nil
}
