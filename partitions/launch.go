package partitions

import (
	"errors"
	"fmt"
	"math"
)

// Dim3 holds one value per grid axis, x first
type Dim3 [3]int

// MaxGridDim is the device limit on blocks per grid axis
var MaxGridDim = Dim3{1<<31 - 1, 65535, 65535}

// MaxThreadsPerBlock is the device limit on threads in one block
const MaxThreadsPerBlock = 1024

var (
	ErrInvalidBlock = errors.New("invalid thread block shape")
	ErrBoxTooLarge  = errors.New("box extent overflows int")
)

// LaunchConfig is the grid and block shape a generated kernel is launched
// with. Kernels iterate with a grid-stride loop, so any grid covers any box;
// the grid only decides how many cells each thread visits.
type LaunchConfig struct {
	GridDim  Dim3
	BlockDim Dim3
}

// Extent returns the number of cells per axis of the inclusive box lo..hi.
// Empty axes have extent zero. An axis whose extent does not fit in an int
// returns ErrBoxTooLarge.
func Extent(lo, hi Dim3) (Dim3, error) {
	var ext Dim3
	for a := range ext {
		if hi[a] < lo[a] {
			continue
		}
		// hi-lo wraps negative, or +1 passes MaxInt
		d := hi[a] - lo[a]
		if d < 0 || d == math.MaxInt {
			return Dim3{}, fmt.Errorf("%w: axis %d spans %d..%d", ErrBoxTooLarge, a, lo[a], hi[a])
		}
		ext[a] = d + 1
	}
	return ext, nil
}

// Cells returns the number of cells in the box with extent ext, or
// ErrBoxTooLarge when the product overflows
func (ext Dim3) Cells() (int, error) {
	if ext[0] == 0 || ext[1] == 0 || ext[2] == 0 {
		return 0, nil
	}
	n := 1
	for a, e := range ext {
		if n > math.MaxInt/e {
			return 0, fmt.Errorf("%w: cell count at axis %d", ErrBoxTooLarge, a)
		}
		n *= e
	}
	return n, nil
}

// NewLaunchConfig chooses a grid for the inclusive box lo..hi with blocks of
// the given shape, one cell per thread unless the grid limit is reached
func NewLaunchConfig(lo, hi, block Dim3) (LaunchConfig, error) {
	threads := 1
	for a, b := range block {
		if b < 1 {
			return LaunchConfig{}, fmt.Errorf("%w: axis %d has %d threads", ErrInvalidBlock, a, b)
		}
		threads *= b
	}
	if threads > MaxThreadsPerBlock {
		return LaunchConfig{}, fmt.Errorf("%w: %d threads per block exceeds %d",
			ErrInvalidBlock, threads, MaxThreadsPerBlock)
	}

	ext, err := Extent(lo, hi)
	if err != nil {
		return LaunchConfig{}, err
	}

	lc := LaunchConfig{BlockDim: block}
	for a := range lc.GridDim {
		blocks := 0
		if ext[a] > 0 {
			blocks = (ext[a]-1)/block[a] + 1
		}
		lc.GridDim[a] = max(1, min(blocks, MaxGridDim[a]))
	}
	return lc, nil
}

// Stride returns how far a thread advances per iteration along axis
func (lc LaunchConfig) Stride(axis int) int {
	return lc.BlockDim[axis] * lc.GridDim[axis]
}

// Threads returns the total number of threads launched
func (lc LaunchConfig) Threads() int {
	n := 1
	for a := range lc.GridDim {
		n *= lc.GridDim[a] * lc.BlockDim[a]
	}
	return n
}

// AxisIterations evaluates the generated loop for one axis and one thread:
// start at lo + blockIdx*blockDim + threadIdx, continue while <= hi, advance
// by blockDim*gridDim
func AxisIterations(lo, hi, blockIdx, blockDim, threadIdx, gridDim int) []int {
	if blockDim < 1 || gridDim < 1 {
		panic(fmt.Sprintf("blockDim %d and gridDim %d must be positive", blockDim, gridDim))
	}
	offset := blockIdx*blockDim + threadIdx
	stride := blockDim * gridDim
	if lo > math.MaxInt-offset {
		return nil
	}

	var values []int
	for v := lo + offset; v <= hi; v += stride {
		values = append(values, v)
		// The next step would pass hi or wrap around MaxInt
		if v > hi-stride {
			break
		}
	}
	return values
}
