package builder

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBoundMismatch = errors.New("bound parameter mismatch")

// BoundConvention describes how the inclusive index range is passed to a
// marked function and what the per-thread-block replacements are called
type BoundConvention struct {
	Lower      string // Global lower bound, "lo"
	Upper      string // Global upper bound, "hi"
	LocalLower string // Block-local lower bound, "blo"
	LocalUpper string // Block-local upper bound, "bhi"

	// Bounds macro wrapping the identifiers, e.g. ARLIM_VAL(lo). Empty means
	// the bounds are passed as plain pointers.
	Macro string
	// Macro substituted for Macro in the device declaration, e.g. ARLIM_REP
	DeviceMacro string
}

// Bounds creates a convention for plain lower/upper bound parameters
func Bounds(lower, upper string) *BoundConvention {
	return &BoundConvention{
		Lower:      lower,
		Upper:      upper,
		LocalLower: "blo",
		LocalUpper: "bhi",
	}
}

// Local sets the block-local bound names
func (c *BoundConvention) Local(lower, upper string) *BoundConvention {
	c.LocalLower = lower
	c.LocalUpper = upper
	return c
}

// Wrapped marks the bounds as passed through a bounds macro. deviceMacro
// replaces macro in the device declaration.
func (c *BoundConvention) Wrapped(macro, deviceMacro string) *BoundConvention {
	c.Macro = macro
	c.DeviceMacro = deviceMacro
	return c
}

// IsWrapped reports whether the bounds are passed through a bounds macro
func (c *BoundConvention) IsWrapped() bool {
	return c.Macro != ""
}

// Validate checks the convention names are usable
func (c *BoundConvention) Validate() error {
	names := [][2]string{
		{"lower", c.Lower}, {"upper", c.Upper},
		{"local lower", c.LocalLower}, {"local upper", c.LocalUpper},
	}
	for _, n := range names {
		if !isIdentifier(n[1]) {
			return fmt.Errorf("%s bound name %q is not an identifier", n[0], n[1])
		}
	}
	if c.Lower == c.Upper || c.LocalLower == c.LocalUpper {
		return fmt.Errorf("lower and upper bound names must differ")
	}
	if c.IsWrapped() && !isIdentifier(c.Macro) {
		return fmt.Errorf("bounds macro %q is not an identifier", c.Macro)
	}
	if c.DeviceMacro != "" && !c.IsWrapped() {
		return fmt.Errorf("device macro %q set without a bounds macro", c.DeviceMacro)
	}
	return nil
}

// marker returns the bare parameter name a bound must appear as
func (c *BoundConvention) marker(name string) string {
	if c.IsWrapped() {
		return c.Macro + "(" + name + ")"
	}
	return name
}

// AxisRef returns the expression for one axis of a global bound inside a
// generated kernel. Wrapped bounds are expanded by the macro into
// name_1..name_3, plain bounds are indexed.
func (c *BoundConvention) AxisRef(name string, axis int) string {
	if c.IsWrapped() {
		return fmt.Sprintf("%s_%d", name, axis+1)
	}
	return fmt.Sprintf("%s[%d]", name, axis)
}

// RewrittenCall is the call expression a kernel makes to the wrapped
// function, with the bound arguments replaced by their block-local versions
type RewrittenCall struct {
	Prefix string
	Args   []string
}

func (rc RewrittenCall) String() string {
	return fmt.Sprintf("%s(%s)", rc.Prefix, strings.Join(rc.Args, ", "))
}

// Rewrite validates that the first two parameters are the lower and upper
// bounds and returns the call with them replaced by the block-local names.
// Every other argument passes through by its bare name.
func Rewrite(sig *Signature, conv *BoundConvention) (RewrittenCall, error) {
	lower, upper := conv.marker(conv.Lower), conv.marker(conv.Upper)

	switch {
	case len(sig.Params) < 2:
		return RewrittenCall{}, fmt.Errorf("%w: function signatures need %s and %s as the first two arguments, %s has %d",
			ErrBoundMismatch, lower, upper, sig.Name, len(sig.Params))
	case sig.Params[0].Name != lower:
		return RewrittenCall{}, fmt.Errorf("%w: function signatures need to start with %s, found %s",
			ErrBoundMismatch, lower, sig.Params[0].Name)
	case sig.Params[1].Name != upper:
		return RewrittenCall{}, fmt.Errorf("%w: function signatures need %s as the second argument, found %s",
			ErrBoundMismatch, upper, sig.Params[1].Name)
	}

	args := sig.ParameterNames()
	args[0] = conv.LocalLower
	args[1] = conv.LocalUpper

	return RewrittenCall{
		Prefix: sig.Prefix,
		Args:   args,
	}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
