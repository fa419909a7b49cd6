package runner

import (
	"errors"
	"fmt"

	"github.com/notargets/DGLaunch/runner/builder"
	"github.com/samber/lo"
)

var ErrUnterminatedDeclaration = errors.New("marked declaration is not terminated by ';'")

// RawDeclaration is the text of one marked declaration, from the line
// holding the marker through the line ending in ';'
type RawDeclaration struct {
	Text string
	Line int // 1-based line of the marker
}

// Target is a declaration accepted for kernel generation
type Target struct {
	File      string
	Line      int
	Signature *builder.Signature
	Call      builder.RewrittenCall
}

// TargetSet accumulates the targets of every header scanned in one run.
// It is owned by a single run and passed explicitly to each header.
type TargetSet struct {
	targets []Target
}

// Add appends an accepted target
func (ts *TargetSet) Add(t Target) {
	ts.targets = append(ts.targets, t)
}

// Len returns the number of accepted targets
func (ts *TargetSet) Len() int {
	return len(ts.targets)
}

// Targets returns the targets in acceptance order
func (ts *TargetSet) Targets() []Target {
	return ts.targets
}

// Names returns the function names in acceptance order
func (ts *TargetSet) Names() []string {
	return lo.Map(ts.targets, func(t Target, _ int) string {
		return t.Signature.Name
	})
}

// DeclarationError reports a marked declaration that cannot be turned into
// a kernel. Any DeclarationError aborts the run.
type DeclarationError struct {
	File     string
	Line     int
	Function string
	Err      error
}

func (e *DeclarationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Function != "" {
		return fmt.Sprintf("%s: %s: %v", loc, e.Function, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// Report summarises a completed run
type Report struct {
	Targets        []Target
	FortranTargets []string
	Outputs        []string
}
