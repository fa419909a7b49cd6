package runner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/notargets/DGLaunch/runner/builder"
)

// BoundsConfig names the bound parameters for one generation mode
type BoundsConfig struct {
	Lower       string `toml:"lower"`
	Upper       string `toml:"upper"`
	LocalLower  string `toml:"local_lower"`
	LocalUpper  string `toml:"local_upper"`
	Macro       string `toml:"macro"`
	DeviceMacro string `toml:"device_macro"`
}

// Convention converts the names into a builder bound convention
func (bc BoundsConfig) Convention() *builder.BoundConvention {
	conv := builder.Bounds(bc.Lower, bc.Upper).Wrapped(bc.Macro, bc.DeviceMacro)
	if bc.LocalLower != "" || bc.LocalUpper != "" {
		conv.Local(bc.LocalLower, bc.LocalUpper)
	}
	return conv
}

// IndirectConfig configures header collection plus one translation unit
type IndirectConfig struct {
	Bounds       BoundsConfig `toml:"bounds"`
	Helper       string       `toml:"helper"`
	HeaderPrefix string       `toml:"header_prefix"`
	Headers      []string     `toml:"headers"`
	UnitName     string       `toml:"translation_unit"`
	UnitIncludes []string     `toml:"includes"`
}

// DirectConfig configures in-place header rewriting
type DirectConfig struct {
	Bounds        BoundsConfig `toml:"bounds"`
	Includes      []string     `toml:"includes"`
	GuardPrefix   string       `toml:"guard_prefix"`
	StaticKernels bool         `toml:"static_kernels"`
}

// Config holds configuration for creating a Runner
type Config struct {
	Marker       string                 `toml:"marker"`
	FeatureGuard string                 `toml:"feature_guard"`
	KernelPrefix string                 `toml:"kernel_prefix"`
	CallRewrites []builder.MacroRewrite `toml:"call_rewrite"`

	Indirect IndirectConfig `toml:"indirect"`
	Direct   DirectConfig   `toml:"direct"`
}

// DefaultConfig returns the AMReX/Castro conventions
func DefaultConfig() Config {
	return Config{
		Marker:       "DEVICE_LAUNCHABLE",
		FeatureGuard: "AMREX_USE_CUDA",
		KernelPrefix: "cuda_",
		CallRewrites: []builder.MacroRewrite{
			{From: "BL_FORT_FAB_ARG_3D", To: "BL_FORT_FAB_VAL_3D"},
		},
		Indirect: IndirectConfig{
			Bounds: BoundsConfig{
				Lower: "lo", Upper: "hi",
				LocalLower: "blo", LocalUpper: "bhi",
			},
			Helper:       "get_loop_bounds",
			HeaderPrefix: "cuda_",
			Headers:      []string{"Castro_F.H"},
			UnitName:     "cuda_interfaces.cpp",
			UnitIncludes: []string{"Castro.H", "Castro_F.H", "AMReX_BLFort.H", "AMReX_Device.H"},
		},
		Direct: DirectConfig{
			Bounds: BoundsConfig{
				Lower: "lo", Upper: "hi",
				LocalLower: "blo", LocalUpper: "bhi",
				Macro: "ARLIM_VAL", DeviceMacro: "ARLIM_REP",
			},
			Includes:      []string{"AMReX_ArrayLim.H", "AMReX_BLFort.H", "AMReX_Device.H"},
			GuardPrefix:   "_cuda_",
			StaticKernels: true,
		},
	}
}

// LoadConfig returns the defaults overlaid with the TOML file at path.
// An empty path returns the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	// Decoding reuses existing slice elements, so a file that lists its own
	// rewrites is decoded again over an empty list
	if meta.IsDefined("call_rewrite") {
		cfg.CallRewrites = nil
		if meta, err = toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration can build both generation modes
func (c Config) Validate() error {
	if strings.TrimSpace(c.Marker) == "" {
		return fmt.Errorf("marker must not be empty")
	}
	if c.FeatureGuard == "" {
		return fmt.Errorf("feature_guard must not be empty")
	}
	if c.KernelPrefix == "" {
		return fmt.Errorf("kernel_prefix must not be empty")
	}
	for _, rw := range c.CallRewrites {
		if rw.From == "" {
			return fmt.Errorf("call_rewrite entry has an empty from")
		}
	}
	if err := c.Indirect.Bounds.Convention().Validate(); err != nil {
		return fmt.Errorf("indirect bounds: %w", err)
	}
	if c.Indirect.Bounds.Macro != "" {
		return fmt.Errorf("indirect bounds cannot use a bounds macro")
	}
	if c.Indirect.HeaderPrefix == "" {
		return fmt.Errorf("indirect header_prefix must not be empty")
	}
	if c.Indirect.UnitName == "" {
		return fmt.Errorf("indirect translation_unit must not be empty")
	}
	if err := c.Direct.Bounds.Convention().Validate(); err != nil {
		return fmt.Errorf("direct bounds: %w", err)
	}
	return nil
}

// BuilderConfig returns the kernel builder configuration for mode
func (c Config) BuilderConfig(mode builder.Mode) builder.Config {
	bc := builder.Config{
		Mode:         mode,
		KernelPrefix: c.KernelPrefix,
	}
	switch mode {
	case builder.Indirect:
		bc.Bounds = c.Indirect.Bounds.Convention()
		bc.HelperName = c.Indirect.Helper
	case builder.Direct:
		bc.Bounds = c.Direct.Bounds.Convention()
		bc.StaticKernels = c.Direct.StaticKernels
	}
	return bc
}
