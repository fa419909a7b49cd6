package runner

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/notargets/DGLaunch/utils"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var fortranDevicePattern = regexp.MustCompile(`(?i)AMREX_DEVICE\s+subroutine\s+([a-z][a-z0-9_]*)`)

// ScanFortranTargets returns the lower-cased names of the subroutines marked
// AMREX_DEVICE in one Fortran source, in file order
func ScanFortranTargets(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if m := fortranDevicePattern.FindStringSubmatch(sc.Text()); m != nil {
			names = append(names, strings.ToLower(m[1]))
		}
	}
	return names, sc.Err()
}

// FindFortranTargets scans the Fortran sources concurrently. Names keep the
// order of files and lines with duplicates removed.
func FindFortranTargets(files []utils.ResolvedFile, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	perFile := make([][]string, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			logger.Info("working on", "file", f.Path())
			fin, err := os.Open(f.Path())
			if err != nil {
				return fmt.Errorf("cannot open Fortran file %s: %w", f.Path(), err)
			}
			defer fin.Close()

			names, err := ScanFortranTargets(fin)
			if err != nil {
				return fmt.Errorf("reading Fortran file %s: %w", f.Path(), err)
			}
			perFile[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Uniq(lo.Flatten(perFile)), nil
}
