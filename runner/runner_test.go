package runner

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notargets/DGLaunch/runner/builder"
	"github.com/notargets/DGLaunch/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyTestdata copies testdata files into a fresh directory
func copyTestdata(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestNewRunner(t *testing.T) {
	kr := NewRunner(DefaultConfig(), builder.Indirect, nil)
	assert.Equal(t, builder.Indirect, kr.Mode)
	assert.NotNil(t, kr.Logger)

	t.Run("InvalidConfig", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for invalid config")
			}
		}()
		cfg := DefaultConfig()
		cfg.Marker = ""
		NewRunner(cfg, builder.Direct, nil)
	})
}

func TestCollectHeader(t *testing.T) {
	kr := NewRunner(DefaultConfig(), builder.Indirect, nil)

	t.Run("Scenario", func(t *testing.T) {
		var ts TargetSet
		header, err := kr.CollectHeader("Castro_F.H",
			strings.NewReader("DEVICE_LAUNCHABLE(ca_func(const int* lo, const int* hi, double* dat));\n"), &ts)
		require.NoError(t, err)

		want := `#ifdef AMREX_USE_CUDA
extern "C" {
__device__ void ca_func(const int* lo, const int* hi, double* dat);

__global__ void cuda_ca_func(const int* lo, const int* hi, double* dat);

}
#endif
`
		assert.Equal(t, want, header)
		require.Equal(t, 1, ts.Len())
		assert.Equal(t, "ca_func(blo, bhi, dat)", ts.Targets()[0].Call.String())
		assert.Equal(t, 1, ts.Targets()[0].Line)
	})

	t.Run("AccumulatesAcrossHeaders", func(t *testing.T) {
		var ts TargetSet
		_, err := kr.CollectHeader("a.H", strings.NewReader("DEVICE_LAUNCHABLE(f(int* lo, int* hi));\n"), &ts)
		require.NoError(t, err)
		_, err = kr.CollectHeader("b.H", strings.NewReader("x\nDEVICE_LAUNCHABLE(g(int* lo, int* hi, int n));\n"), &ts)
		require.NoError(t, err)

		assert.Equal(t, []string{"f", "g"}, ts.Names())
		assert.Equal(t, "b.H", ts.Targets()[1].File)
	})

	t.Run("NoTargets", func(t *testing.T) {
		var ts TargetSet
		header, err := kr.CollectHeader("a.H", strings.NewReader("void f();\n"), &ts)
		require.NoError(t, err)
		assert.Equal(t, "#ifdef AMREX_USE_CUDA\nextern \"C\" {\n}\n#endif\n", header)
		assert.Zero(t, ts.Len())
	})

	t.Run("BoundMismatch", func(t *testing.T) {
		var ts TargetSet
		_, err := kr.CollectHeader("a.H",
			strings.NewReader("\n\nDEVICE_LAUNCHABLE(ca_func(const int* low, const int* hi));\n"), &ts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builder.ErrBoundMismatch))

		var de *DeclarationError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "ca_func", de.Function)
		assert.Equal(t, 3, de.Line)
		assert.Contains(t, err.Error(), "function signatures need to start with lo, found low")
	})

	t.Run("NoParameters", func(t *testing.T) {
		var ts TargetSet
		_, err := kr.CollectHeader("a.H", strings.NewReader("DEVICE_LAUNCHABLE(ca_func());\n"), &ts)
		assert.True(t, errors.Is(err, builder.ErrNoParameters))
	})

	t.Run("Unterminated", func(t *testing.T) {
		var ts TargetSet
		_, err := kr.CollectHeader("a.H", strings.NewReader("DEVICE_LAUNCHABLE(ca_func(int* lo, int* hi))\n"), &ts)
		assert.True(t, errors.Is(err, ErrUnterminatedDeclaration))
	})
}

func TestTranslationUnit(t *testing.T) {
	kr := NewRunner(DefaultConfig(), builder.Indirect, nil)
	var ts TargetSet
	_, err := kr.CollectHeader("a.H",
		strings.NewReader("DEVICE_LAUNCHABLE(ca_func(const int* lo, const int* hi, double* dat));\n"), &ts)
	require.NoError(t, err)

	unit := kr.TranslationUnit(&ts)
	includes := "#include <Castro.H>\n#include <Castro_F.H>\n#include <AMReX_BLFort.H>\n#include <AMReX_Device.H>\n"
	require.True(t, strings.HasPrefix(unit, includes))

	t0 := ts.Targets()[0]
	assert.Equal(t, includes+kr.GenerateKernel(t0.Signature, t0.Call), unit)
	assert.Contains(t, unit, "   get_loop_bounds(blo, bhi, lo, hi);\n   ca_func(blo, bhi, dat);\n")

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, includes, kr.TranslationUnit(&TargetSet{}))
	})
}

func TestRunIndirect(t *testing.T) {
	kr := NewRunner(DefaultConfig(), builder.Indirect, nil)

	t.Run("CastroHeader", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_F.H")
		unitPath := filepath.Join(dir, "cuda_interfaces.cpp")

		report, err := kr.RunIndirect([]string{filepath.Join(dir, "Castro_F.H")}, unitPath)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "cuda_Castro_F.H"), unitPath}, report.Outputs)
		require.Len(t, report.Targets, 2)
		assert.Equal(t, "ca_enforce_consistent_e", report.Targets[0].Signature.Name)
		assert.Equal(t, 12, report.Targets[0].Line)
		assert.Equal(t, "ca_compute_temp", report.Targets[1].Signature.Name)

		header, err := os.ReadFile(filepath.Join(dir, "cuda_Castro_F.H"))
		require.NoError(t, err)
		assert.Contains(t, string(header),
			"__device__ void ca_enforce_consistent_e(const int* lo, const int* hi,\n                    BL_FORT_FAB_ARG_3D(state));\n\n")
		assert.Contains(t, string(header),
			"__global__ void cuda_ca_compute_temp(const int* lo, const int* hi, BL_FORT_FAB_ARG_3D(state));\n\n")
		assert.NotContains(t, string(header), "ca_network_init")

		unit, err := os.ReadFile(unitPath)
		require.NoError(t, err)
		assert.Contains(t, string(unit), "   ca_enforce_consistent_e(blo, bhi, BL_FORT_FAB_VAL_3D(state));\n")
		assert.Contains(t, string(unit), "   ca_compute_temp(blo, bhi, BL_FORT_FAB_VAL_3D(state));\n")
	})

	t.Run("ValidatesBeforeWriting", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_F.H", "bad_bounds.H")
		unitPath := filepath.Join(dir, "cuda_interfaces.cpp")

		_, err := kr.RunIndirect([]string{
			filepath.Join(dir, "Castro_F.H"),
			filepath.Join(dir, "bad_bounds.H"),
		}, unitPath)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builder.ErrBoundMismatch))

		assert.NoFileExists(t, filepath.Join(dir, "cuda_Castro_F.H"))
		assert.NoFileExists(t, filepath.Join(dir, "cuda_bad_bounds.H"))
		assert.NoFileExists(t, unitPath)
	})

	t.Run("RepeatedHeader", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_F.H")
		header := filepath.Join(dir, "Castro_F.H")
		unitPath := filepath.Join(dir, "cuda_interfaces.cpp")

		report, err := kr.RunIndirect([]string{header, dir + "/./Castro_F.H", header}, unitPath)
		require.NoError(t, err)
		assert.Len(t, report.Targets, 2)
		assert.Len(t, report.Outputs, 2)

		unit, err := os.ReadFile(unitPath)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(unit), "void cuda_ca_compute_temp("))
	})

	t.Run("UnitOverwritesHeader", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_F.H")
		header := filepath.Join(dir, "Castro_F.H")
		before, err := os.ReadFile(header)
		require.NoError(t, err)

		_, err = kr.RunIndirect([]string{header}, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "would overwrite an input header")

		after, err := os.ReadFile(header)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
		assert.NoFileExists(t, filepath.Join(dir, "cuda_Castro_F.H"))
	})

	t.Run("UnitOverwritesGeneratedHeader", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_F.H")
		_, err := kr.RunIndirect([]string{filepath.Join(dir, "Castro_F.H")}, filepath.Join(dir, "cuda_Castro_F.H"))
		require.Error(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "cuda_Castro_F.H"))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		dir := t.TempDir()
		_, err := kr.RunIndirect([]string{filepath.Join(dir, "absent.H")}, filepath.Join(dir, "u.cpp"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot open header")
	})
}

func TestRewriteHeader(t *testing.T) {
	kr := NewRunner(DefaultConfig(), builder.Direct, nil)

	input := "a\nDEVICE_LAUNCHABLE(ca_fill(ARLIM_VAL(lo), ARLIM_VAL(hi), BL_FORT_FAB_ARG_3D(state)));\nb\n"
	text, targets, err := kr.RewriteHeader("Castro_fill.H", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, targets, 1)

	preamble := "\n#include <AMReX_ArrayLim.H>\n#include <AMReX_BLFort.H>\n#include <AMReX_Device.H>\n\n" +
		"#ifndef _cuda_Castro_fill_\n#define _cuda_Castro_fill_\n\n" +
		"#ifdef AMREX_USE_CUDA\nextern \"C\" {\n\n"
	postamble := "\n}\n#endif\n\n#endif\n"

	sig := targets[0].Signature
	want := preamble + "a\n" +
		"__device__ void ca_fill(ARLIM_REP(lo), ARLIM_REP(hi), BL_FORT_FAB_ARG_3D(state));\n\n" +
		"__global__ static void cuda_ca_fill(ARLIM_VAL(lo), ARLIM_VAL(hi), BL_FORT_FAB_ARG_3D(state));\n" +
		kr.GenerateKernel(sig, targets[0].Call) + "\n" +
		"b\n" + postamble
	assert.Equal(t, want, text)
	assert.Contains(t, text, "         ca_fill(blo, bhi, BL_FORT_FAB_VAL_3D(state));\n")

	t.Run("PlainBoundsRejected", func(t *testing.T) {
		_, _, err := kr.RewriteHeader("a.H",
			strings.NewReader("DEVICE_LAUNCHABLE(ca_func(const int* lo, const int* hi));\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "function signatures need to start with ARLIM_VAL(lo), found lo")
	})

	t.Run("SecondBound", func(t *testing.T) {
		_, _, err := kr.RewriteHeader("a.H",
			strings.NewReader("DEVICE_LAUNCHABLE(ca_func(ARLIM_VAL(lo), ARLIM_VAL(hix)));\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "function signatures need ARLIM_VAL(hi) as the second argument, found ARLIM_VAL(hix)")
	})
}

func TestRunDirect(t *testing.T) {
	var logs bytes.Buffer
	kr := NewRunner(DefaultConfig(), builder.Direct, utils.NewLogger(&logs, slog.LevelInfo))

	found, missing := utils.FindFiles([]string{"testdata"}, []string{"Castro_fill.H"})
	require.Empty(t, missing)

	t.Run("Rewrite", func(t *testing.T) {
		logs.Reset()
		outDir := filepath.Join(t.TempDir(), "cuda")
		report, err := kr.RunDirect(found, outDir, []string{"ca_fill"})
		require.NoError(t, err)

		out := filepath.Join(outDir, "Castro_fill.H")
		assert.Equal(t, []string{out}, report.Outputs)
		require.Len(t, report.Targets, 1)

		text, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(text), "  void ca_denfill(int* adv, const int* adv_lo, const int* adv_hi);\n")
		assert.Contains(t, string(text), "#define _cuda_Castro_fill_\n")
		assert.Contains(t, string(text), "__device__ void ca_fill(ARLIM_REP(lo), ARLIM_REP(hi),\n")
		assert.Contains(t, string(text), "ca_fill(blo, bhi, BL_FORT_FAB_VAL_3D(state), dx);\n")
		assert.True(t, strings.HasSuffix(string(text), "\n}\n#endif\n\n#endif\n"))

		assert.Contains(t, logs.String(), "working on")
		assert.NotContains(t, logs.String(), "level=WARN")
	})

	t.Run("UnmatchedFortranTarget", func(t *testing.T) {
		logs.Reset()
		_, err := kr.RunDirect(found, t.TempDir(), []string{"ca_other"})
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "level=WARN")
		assert.Contains(t, logs.String(), "function=ca_fill")
	})

	t.Run("OutputIsInput", func(t *testing.T) {
		dir := copyTestdata(t, "Castro_fill.H")
		inPlace, _ := utils.FindFiles([]string{dir}, []string{"Castro_fill.H"})
		before, err := os.ReadFile(filepath.Join(dir, "Castro_fill.H"))
		require.NoError(t, err)

		_, err = kr.RunDirect(inPlace, dir, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "would overwrite its input header")

		after, err := os.ReadFile(filepath.Join(dir, "Castro_fill.H"))
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	})

	t.Run("InvalidHeaderNotWritten", func(t *testing.T) {
		bad, _ := utils.FindFiles([]string{"testdata"}, []string{"Castro_F.H"})
		outDir := t.TempDir()
		_, err := kr.RunDirect(bad, outDir, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, builder.ErrBoundMismatch))
		assert.NoFileExists(t, filepath.Join(outDir, "Castro_F.H"))
	})
}

func TestIncludeGuard(t *testing.T) {
	assert.Equal(t, "_cuda_Castro_F_", IncludeGuard("_cuda_", "Castro_F.H"))
	assert.Equal(t, "_cuda_Castro_F_", IncludeGuard("_cuda_", "Source/driver/Castro_F.H"))
	assert.Equal(t, "_cuda_my_header_v2_", IncludeGuard("_cuda_", "my-header.v2.H"))
	assert.Equal(t, "_cuda__hidden_", IncludeGuard("_cuda_", ".hidden"))
}
