package runner

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/DGLaunch/runner/builder"
	"github.com/notargets/DGLaunch/utils"
	"github.com/samber/lo"
)

// Runner drives one generation run: it scans headers, validates every marked
// declaration and writes the generated sources
type Runner struct {
	*builder.Builder
	Config Config
	Logger *slog.Logger
}

// NewRunner creates a new Runner instance for mode. Invalid configurations
// panic, as they do for builder.NewBuilder.
func NewRunner(cfg Config, mode builder.Mode, logger *slog.Logger) (kr *Runner) {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid runner config: %v", err))
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}

	kr = &Runner{
		Builder: builder.NewBuilder(cfg.BuilderConfig(mode)),
		Config:  cfg,
		Logger:  logger,
	}
	return
}

// accept turns a raw declaration into a target or a DeclarationError
func (kr *Runner) accept(file string, raw RawDeclaration) (Target, error) {
	text, err := builder.ExtractSignature(raw.Text, kr.Config.Marker)
	if err != nil {
		return Target{}, &DeclarationError{File: file, Line: raw.Line, Err: err}
	}

	sig, err := builder.ParseSignature(text, kr.Config.CallRewrites)
	if err != nil {
		return Target{}, &DeclarationError{File: file, Line: raw.Line, Err: err}
	}

	call, err := builder.Rewrite(sig, kr.Bounds)
	if err != nil {
		return Target{}, &DeclarationError{File: file, Line: raw.Line, Function: sig.Name, Err: err}
	}

	kr.Logger.Debug("accepted declaration", "file", file, "line", raw.Line, "function", sig.Name)
	return Target{File: file, Line: raw.Line, Signature: sig, Call: call}, nil
}

// scan accepts every marked declaration of one header. When emit is set it
// receives each copy-through line and each accepted target in input order.
func (kr *Runner) scan(name string, r io.Reader, passThrough func(string), emit func(Target)) ([]Target, error) {
	sc := NewScanner(name, r, kr.Config.Marker)
	sc.PassThrough = passThrough

	var targets []Target
	for {
		raw, ok := sc.Next()
		if !ok {
			break
		}
		t, err := kr.accept(name, raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
		if emit != nil {
			emit(t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// CollectHeader scans one header in indirect mode, appends its targets to ts
// and returns the declaration header generated for them
func (kr *Runner) CollectHeader(name string, r io.Reader, ts *TargetSet) (string, error) {
	targets, err := kr.scan(name, r, nil, nil)
	if err != nil {
		return "", err
	}
	for _, t := range targets {
		ts.Add(t)
	}
	return kr.IndirectHeader(targets), nil
}

// RunIndirect generates cuda_<name> beside each header plus the translation
// unit at unitPath. Every header is validated before any output is written.
func (kr *Runner) RunIndirect(headers []string, unitPath string) (*Report, error) {
	headers = lo.Uniq(lo.Map(headers, func(h string, _ int) string { return filepath.Clean(h) }))
	unitPath = filepath.Clean(unitPath)

	var (
		ts      TargetSet
		outputs = make(map[string]string, len(headers))
		order   []string
	)

	for _, h := range headers {
		kr.Logger.Info("working on", "file", h)
		f, err := os.Open(h)
		if err != nil {
			return nil, fmt.Errorf("cannot open header %s: %w", h, err)
		}
		text, err := kr.CollectHeader(h, f, &ts)
		f.Close()
		if err != nil {
			return nil, err
		}
		out := filepath.Join(filepath.Dir(h), kr.Config.Indirect.HeaderPrefix+filepath.Base(h))
		if _, dup := outputs[out]; !dup {
			order = append(order, out)
		}
		outputs[out] = text
	}
	if _, dup := outputs[unitPath]; dup {
		return nil, fmt.Errorf("translation unit %s would overwrite a generated header", unitPath)
	}
	outputs[unitPath] = kr.TranslationUnit(&ts)
	order = append(order, unitPath)

	for _, out := range order {
		if lo.ContainsBy(headers, func(h string) bool { return samePath(h, out) }) {
			return nil, fmt.Errorf("output %s would overwrite an input header", out)
		}
	}

	for _, out := range order {
		if err := writeOutput(out, outputs[out]); err != nil {
			return nil, err
		}
	}

	kr.Logger.Info("generated kernels", "count", ts.Len(), "functions", ts.Names(), "unit", unitPath)
	return &Report{Targets: ts.Targets(), Outputs: order}, nil
}

// RewriteHeader rewrites one header in direct mode. Marked declarations are
// replaced by their device declaration, kernel declaration and kernel body.
// Every other line is copied through.
func (kr *Runner) RewriteHeader(name string, r io.Reader) (string, []Target, error) {
	var sb strings.Builder

	sb.WriteString(kr.directPreamble(name))
	targets, err := kr.scan(name, r,
		func(line string) { sb.WriteString(line) },
		func(t Target) { sb.WriteString(kr.directTarget(t)) },
	)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(directPostamble())

	return sb.String(), targets, nil
}

// RunDirect rewrites each resolved header into outputDir under its own name.
// Declarations with no matching Fortran device subroutine are reported as
// warnings when fortranTargets is not empty.
func (kr *Runner) RunDirect(headers []utils.ResolvedFile, outputDir string, fortranTargets []string) (*Report, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create output directory %s: %w", outputDir, err)
	}

	report := &Report{FortranTargets: fortranTargets}
	for _, h := range headers {
		kr.Logger.Info("working on", "file", h.Path())
		f, err := os.Open(h.Path())
		if err != nil {
			return nil, fmt.Errorf("cannot open header %s: %w", h.Path(), err)
		}
		text, targets, err := kr.RewriteHeader(h.Name, f)
		f.Close()
		if err != nil {
			return nil, err
		}

		out := filepath.Join(outputDir, h.Name)
		if samePath(out, h.Path()) {
			return nil, fmt.Errorf("output %s would overwrite its input header, choose another output directory", out)
		}
		if err := writeOutput(out, text); err != nil {
			return nil, err
		}
		report.Targets = append(report.Targets, targets...)
		report.Outputs = append(report.Outputs, out)
	}

	if len(fortranTargets) > 0 {
		for _, t := range report.Targets {
			if !lo.Contains(fortranTargets, strings.ToLower(t.Signature.Name)) {
				kr.Logger.Warn("no AMREX_DEVICE subroutine for declaration",
					"function", t.Signature.Name, "file", t.File, "line", t.Line)
			}
		}
	}

	names := lo.Map(report.Targets, func(t Target, _ int) string { return t.Signature.Name })
	kr.Logger.Info("generated kernels", "count", len(names), "functions", names, "output_dir", outputDir)
	return report, nil
}

// samePath reports whether a and b name the same file
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func writeOutput(path, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot open output file %s: %w", path, err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
