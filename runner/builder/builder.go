package builder

import (
	"fmt"
	"strings"
)

// Mode selects how a generated kernel maps the launch grid onto the bounds
type Mode int

const (
	// Indirect kernels hand the block sub-range computation to a runtime helper
	Indirect Mode = iota + 1
	// Direct kernels contain the grid-stride loop nest themselves
	Direct
)

func (m Mode) String() string {
	switch m {
	case Indirect:
		return "indirect"
	case Direct:
		return "direct"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Config holds configuration for creating a Builder
type Config struct {
	Mode          Mode
	KernelPrefix  string // Prepended to the function name, default "cuda_"
	Bounds        *BoundConvention
	HelperName    string // Indirect mode block-bounds helper, default "get_loop_bounds"
	StaticKernels bool   // Emit kernels with internal linkage
}

// Builder generates the device/kernel declaration pair and the kernel body
// for each accepted signature. Output depends only on the signature.
type Builder struct {
	Mode          Mode
	KernelPrefix  string
	Bounds        *BoundConvention
	HelperName    string
	StaticKernels bool
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	if cfg.Mode != Indirect && cfg.Mode != Direct {
		panic(fmt.Sprintf("unknown kernel mode %v", cfg.Mode))
	}
	bounds := cfg.Bounds
	if bounds == nil {
		bounds = Bounds("lo", "hi")
	}
	if err := bounds.Validate(); err != nil {
		panic(err)
	}
	if cfg.Mode == Indirect && bounds.IsWrapped() {
		panic("indirect kernels pass the bounds to the helper by pointer and cannot use a bounds macro")
	}
	kb := &Builder{
		Mode:          cfg.Mode,
		KernelPrefix:  cfg.KernelPrefix,
		Bounds:        bounds,
		HelperName:    cfg.HelperName,
		StaticKernels: cfg.StaticKernels,
	}
	if kb.KernelPrefix == "" {
		kb.KernelPrefix = "cuda_"
	}
	if kb.HelperName == "" {
		kb.HelperName = "get_loop_bounds"
	}
	return kb
}

// KernelName returns the name of the kernel generated for sig
func (kb *Builder) KernelName(sig *Signature) string {
	return kb.KernelPrefix + sig.Name
}

// GenerateDeviceDeclaration generates the device-callable declaration of the
// wrapped function. With wrapped bounds the bounds macro is retargeted.
func (kb *Builder) GenerateDeviceDeclaration(sig *Signature) string {
	text := sig.Text
	if kb.Bounds.IsWrapped() && kb.Bounds.DeviceMacro != "" {
		text = strings.ReplaceAll(text, kb.Bounds.Macro, kb.Bounds.DeviceMacro)
	}
	return fmt.Sprintf("__device__ void %s;", text)
}

// GenerateKernelDeclaration generates the kernel-entry declaration, which
// keeps the declared parameter list
func (kb *Builder) GenerateKernelDeclaration(sig *Signature) string {
	return kb.kernelHead(sig) + ";"
}

func (kb *Builder) kernelHead(sig *Signature) string {
	qualifier := "__global__ "
	if kb.StaticKernels {
		qualifier += "static "
	}
	return qualifier + "void " + kb.KernelPrefix + sig.Text
}

// GenerateKernel generates the kernel definition calling the wrapped
// function with the block-local bounds
func (kb *Builder) GenerateKernel(sig *Signature, call RewrittenCall) string {
	if kb.Mode == Direct {
		return kb.generateDirectKernel(sig, call)
	}
	return kb.generateIndirectKernel(sig, call)
}

func (kb *Builder) generateIndirectKernel(sig *Signature, call RewrittenCall) string {
	var sb strings.Builder
	b := kb.Bounds

	sb.WriteString("\n")
	sb.WriteString(kb.kernelHead(sig))
	sb.WriteString("\n{\n\n")
	sb.WriteString(fmt.Sprintf("   int %s[3];\n", b.LocalLower))
	sb.WriteString(fmt.Sprintf("   int %s[3];\n", b.LocalUpper))
	sb.WriteString(fmt.Sprintf("   %s(%s, %s, %s, %s);\n",
		kb.HelperName, b.LocalLower, b.LocalUpper, b.Lower, b.Upper))
	sb.WriteString(fmt.Sprintf("   %s;\n", call))
	sb.WriteString("}\n")

	return sb.String()
}

// loopAxes lists the grid axes from the outermost loop to the innermost
var loopAxes = []struct {
	index     int
	loopVar   string
	component string
}{
	{2, "k", "z"},
	{1, "j", "y"},
	{0, "i", "x"},
}

// GridStrideLoop generates the loop header for one axis:
// start at lower + blockIdx*blockDim + threadIdx, run while <= upper and
// advance by blockDim*gridDim
func (kb *Builder) GridStrideLoop(axis int) string {
	if axis < 0 || axis >= len(loopAxes) {
		panic(fmt.Sprintf("axis %d out of range", axis))
	}
	ax := loopAxes[len(loopAxes)-1-axis]
	b := kb.Bounds
	c := ax.component
	return fmt.Sprintf("for (int %s = %s + blockIdx.%s * blockDim.%s + threadIdx.%s; %s <= %s; %s += blockDim.%s * gridDim.%s)",
		ax.loopVar, b.AxisRef(b.Lower, axis), c, c, c,
		ax.loopVar, b.AxisRef(b.Upper, axis),
		ax.loopVar, c, c)
}

func (kb *Builder) generateDirectKernel(sig *Signature, call RewrittenCall) string {
	var sb strings.Builder
	b := kb.Bounds

	sb.WriteString("\n")
	sb.WriteString(kb.kernelHead(sig))
	sb.WriteString("\n{\n")
	sb.WriteString(fmt.Sprintf("   int %s[3];\n", b.LocalLower))
	sb.WriteString(fmt.Sprintf("   int %s[3];\n", b.LocalUpper))

	// Each iteration is a single cell, lower and upper coincide per axis
	for depth, ax := range loopAxes {
		indent := strings.Repeat(" ", 3+2*depth)
		sb.WriteString(fmt.Sprintf("%s%s {\n", indent, kb.GridStrideLoop(ax.index)))
		sb.WriteString(fmt.Sprintf("%s  %s[%d] = %s;\n", indent, b.LocalLower, ax.index, ax.loopVar))
		sb.WriteString(fmt.Sprintf("%s  %s[%d] = %s;\n", indent, b.LocalUpper, ax.index, ax.loopVar))
	}
	sb.WriteString(fmt.Sprintf("%s%s;\n", strings.Repeat(" ", 3+2*len(loopAxes)), call))
	for depth := len(loopAxes) - 1; depth >= 0; depth-- {
		sb.WriteString(strings.Repeat(" ", 3+2*depth))
		sb.WriteString("}\n")
	}
	sb.WriteString("}\n")

	return sb.String()
}
