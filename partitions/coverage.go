package partitions

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/combin"
)

const (
	// MaxCoverThreads bounds the launch size Cover is willing to enumerate
	MaxCoverThreads = 1 << 22
	// MaxCoverCells bounds the box size Cover keeps visit counts for
	MaxCoverCells = 1 << 24
)

var (
	ErrTooManyThreads = errors.New("launch too large to enumerate")
	ErrTooManyCells   = errors.New("box too large to enumerate")
)

// Coverage records how often the generated loop nest calls the wrapped
// function for each cell of a box
type Coverage struct {
	Lo, Hi Dim3
	Launch LaunchConfig

	// Visits per cell, x fastest
	Visits []int
	// Threads that made at least one call
	ActiveThreads int
	// Largest number of calls made by one thread
	MaxCallsPerThread int
}

// Cover evaluates the triple-nested grid-stride loop for every thread of
// the launch and counts the calls made for every cell of lo..hi
func Cover(lo, hi Dim3, lc LaunchConfig) (Coverage, error) {
	lens := []int{
		lc.GridDim[0], lc.GridDim[1], lc.GridDim[2],
		lc.BlockDim[0], lc.BlockDim[1], lc.BlockDim[2],
	}
	threads := 1
	for _, n := range lens {
		if n < 1 {
			return Coverage{}, fmt.Errorf("%w: launch %v", ErrInvalidBlock, lc)
		}
		// Checked before multiplying so the product cannot wrap
		if threads > MaxCoverThreads/n {
			return Coverage{}, fmt.Errorf("%w: launch %v exceeds %d threads", ErrTooManyThreads, lc, MaxCoverThreads)
		}
		threads *= n
	}

	ext, err := Extent(lo, hi)
	if err != nil {
		return Coverage{}, err
	}
	cells, err := ext.Cells()
	if err != nil {
		return Coverage{}, err
	}
	if cells > MaxCoverCells {
		return Coverage{}, fmt.Errorf("%w: %d cells exceeds %d", ErrTooManyCells, cells, MaxCoverCells)
	}

	cov := Coverage{
		Lo:     lo,
		Hi:     hi,
		Launch: lc,
		Visits: make([]int, cells),
	}
	dims := []int{ext[2], ext[1], ext[0]}
	sub := make([]int, 3)

	gen := combin.NewCartesianGenerator(lens)
	coord := make([]int, len(lens))
	for gen.Next() {
		coord = gen.Product(coord)
		calls := 0
		for _, k := range AxisIterations(lo[2], hi[2], coord[2], lc.BlockDim[2], coord[5], lc.GridDim[2]) {
			for _, j := range AxisIterations(lo[1], hi[1], coord[1], lc.BlockDim[1], coord[4], lc.GridDim[1]) {
				for _, i := range AxisIterations(lo[0], hi[0], coord[0], lc.BlockDim[0], coord[3], lc.GridDim[0]) {
					sub[0], sub[1], sub[2] = k-lo[2], j-lo[1], i-lo[0]
					cov.Visits[combin.IdxFor(sub, dims)]++
					calls++
				}
			}
		}
		if calls > 0 {
			cov.ActiveThreads++
		}
		cov.MaxCallsPerThread = max(cov.MaxCallsPerThread, calls)
	}

	return cov, nil
}

// Cells returns the number of cells in the box
func (c Coverage) Cells() int {
	return len(c.Visits)
}

// Missed returns the number of cells never visited
func (c Coverage) Missed() int {
	n := 0
	for _, v := range c.Visits {
		if v == 0 {
			n++
		}
	}
	return n
}

// Duplicated returns the number of cells visited more than once
func (c Coverage) Duplicated() int {
	n := 0
	for _, v := range c.Visits {
		if v > 1 {
			n++
		}
	}
	return n
}

// ExactlyOnce reports whether every cell was visited by exactly one call
func (c Coverage) ExactlyOnce() bool {
	return c.Missed() == 0 && c.Duplicated() == 0
}
