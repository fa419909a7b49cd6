package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/notargets/DGLaunch/runner"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// renderReport lists the accepted declarations and the files written
func renderReport(w io.Writer, report *runner.Report) {
	if len(report.FortranTargets) > 0 {
		fmt.Fprintf(w, "fortran targets: %s\n", strings.Join(report.FortranTargets, ", "))
	}

	data := lo.Map(report.Targets, func(t runner.Target, _ int) []string {
		return []string{
			t.Signature.Name,
			fmt.Sprintf("%s:%d", t.File, t.Line),
			fmt.Sprint(len(t.Signature.Params)),
			t.Call.String(),
		}
	})

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FUNCTION", "DECLARED", "PARAMS", "CALL"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	for _, out := range report.Outputs {
		fmt.Fprintf(w, "wrote %s\n", out)
	}
}
