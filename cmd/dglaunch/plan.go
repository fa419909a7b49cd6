package main

import (
	"fmt"
	"io"

	"github.com/notargets/DGLaunch/partitions"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the launch grid for a box and check every cell is visited once",
		Args:  cobra.NoArgs,
		RunE:  planHandler,
	}

	cmd.Flags().IntSlice("lo", []int{0, 0, 0}, "inclusive lower corner x,y,z")
	cmd.Flags().IntSlice("hi", []int{63, 63, 63}, "inclusive upper corner x,y,z")
	cmd.Flags().IntSlice("block", []int{16, 8, 4}, "threads per block x,y,z")
	cmd.Flags().Bool("verify", true, "evaluate the loop nest for every thread")

	return cmd
}

func dim3Flag(cmd *cobra.Command, name string) (partitions.Dim3, error) {
	values, err := cmd.Flags().GetIntSlice(name)
	if err != nil {
		return partitions.Dim3{}, err
	}
	if len(values) != 3 {
		return partitions.Dim3{}, fmt.Errorf("--%s needs 3 values, got %d", name, len(values))
	}
	return partitions.Dim3{values[0], values[1], values[2]}, nil
}

func planHandler(cmd *cobra.Command, args []string) error {
	var dims [3]partitions.Dim3
	for i, name := range []string{"lo", "hi", "block"} {
		d, err := dim3Flag(cmd, name)
		if err != nil {
			return err
		}
		dims[i] = d
	}
	lo, hi, block := dims[0], dims[1], dims[2]

	lc, err := partitions.NewLaunchConfig(lo, hi, block)
	if err != nil {
		return err
	}

	ext, err := partitions.Extent(lo, hi)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	renderPlan(w, lo, hi, ext, lc)

	if verify, _ := cmd.Flags().GetBool("verify"); !verify {
		return nil
	}
	cov, err := partitions.Cover(lo, hi, lc)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "cells %d, active threads %d of %d, max calls per thread %d\n",
		cov.Cells(), cov.ActiveThreads, lc.Threads(), cov.MaxCallsPerThread)
	if !cov.ExactlyOnce() {
		return fmt.Errorf("coverage failed: %d cells missed, %d visited more than once",
			cov.Missed(), cov.Duplicated())
	}
	fmt.Fprintln(w, "every cell visited exactly once")
	return nil
}

func renderPlan(w io.Writer, lo, hi, ext partitions.Dim3, lc partitions.LaunchConfig) {

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"AXIS", "LO", "HI", "EXTENT", "BLOCK", "GRID", "STRIDE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for a, name := range []string{"x", "y", "z"} {
		table.Append([]string{
			name,
			fmt.Sprint(lo[a]),
			fmt.Sprint(hi[a]),
			fmt.Sprint(ext[a]),
			fmt.Sprint(lc.BlockDim[a]),
			fmt.Sprint(lc.GridDim[a]),
			fmt.Sprint(lc.Stride(a)),
		})
	}
	table.Render()
}
