package runner

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IncludeGuard returns the include guard macro for an output header,
// built from the file name without directory or extension
func IncludeGuard(prefix, path string) string {
	stem := filepath.Base(path)
	if ext := filepath.Ext(stem); ext != "" && ext != stem {
		stem = strings.TrimSuffix(stem, ext)
	}
	stem = strings.Map(func(r rune) rune {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, stem)
	return prefix + stem + "_"
}

func writeIncludes(sb *strings.Builder, includes []string) {
	for _, inc := range includes {
		sb.WriteString(fmt.Sprintf("#include <%s>\n", inc))
	}
}

// writeOpenGuard opens the feature guard and the C linkage block
func writeOpenGuard(sb *strings.Builder, feature string) {
	sb.WriteString(fmt.Sprintf("#ifdef %s\n", feature))
	sb.WriteString("extern \"C\" {\n")
}

func writeCloseGuard(sb *strings.Builder) {
	sb.WriteString("}\n")
	sb.WriteString("#endif\n")
}

// IndirectHeader generates the declaration header for the targets of one
// input header
func (kr *Runner) IndirectHeader(targets []Target) string {
	var sb strings.Builder

	writeOpenGuard(&sb, kr.Config.FeatureGuard)
	for _, t := range targets {
		sb.WriteString(kr.GenerateDeviceDeclaration(t.Signature))
		sb.WriteString("\n\n")
		sb.WriteString(kr.GenerateKernelDeclaration(t.Signature))
		sb.WriteString("\n\n")
	}
	writeCloseGuard(&sb)

	return sb.String()
}

// TranslationUnit generates the source file holding every kernel body
// accepted during an indirect run
func (kr *Runner) TranslationUnit(ts *TargetSet) string {
	var sb strings.Builder

	writeIncludes(&sb, kr.Config.Indirect.UnitIncludes)
	for _, t := range ts.Targets() {
		sb.WriteString(kr.GenerateKernel(t.Signature, t.Call))
	}

	return sb.String()
}

// directPreamble opens a rewritten header: includes, include guard, feature
// guard and C linkage
func (kr *Runner) directPreamble(name string) string {
	var sb strings.Builder
	guard := IncludeGuard(kr.Config.Direct.GuardPrefix, name)

	sb.WriteString("\n")
	writeIncludes(&sb, kr.Config.Direct.Includes)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("#ifndef %s\n", guard))
	sb.WriteString(fmt.Sprintf("#define %s\n", guard))
	sb.WriteString("\n")
	writeOpenGuard(&sb, kr.Config.FeatureGuard)
	sb.WriteString("\n")

	return sb.String()
}

// directTarget generates the replacement text for one marked declaration
func (kr *Runner) directTarget(t Target) string {
	var sb strings.Builder

	sb.WriteString(kr.GenerateDeviceDeclaration(t.Signature))
	sb.WriteString("\n\n")
	sb.WriteString(kr.GenerateKernelDeclaration(t.Signature))
	sb.WriteString("\n")
	sb.WriteString(kr.GenerateKernel(t.Signature, t.Call))
	sb.WriteString("\n")

	return sb.String()
}

func directPostamble() string {
	var sb strings.Builder
	sb.WriteString("\n")
	writeCloseGuard(&sb)
	sb.WriteString("\n#endif\n")
	return sb.String()
}
