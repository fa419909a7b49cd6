package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(first, "Castro_F.H"), []byte("// first\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "Castro_F.H"), []byte("// second\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "Castro_nd.F90"), []byte("! f\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(first, "Castro_nd.F90"), 0755))

	found, missing := FindFiles([]string{first, second}, []string{"Castro_F.H", "Castro_nd.F90", "absent.H"})

	t.Run("FirstDirectoryWins", func(t *testing.T) {
		require.Len(t, found, 2)
		assert.Equal(t, ResolvedFile{Name: "Castro_F.H", Dir: first}, found[0])
	})

	t.Run("DirectoriesAreSkipped", func(t *testing.T) {
		assert.Equal(t, ResolvedFile{Name: "Castro_nd.F90", Dir: second}, found[1])
		assert.Equal(t, filepath.Join(second, "Castro_nd.F90"), found[1].Path())
	})

	t.Run("Missing", func(t *testing.T) {
		assert.Equal(t, []string{"absent.H"}, missing)
	})
}

func TestFindFilesDefaultsToWorkingDirectory(t *testing.T) {
	found, missing := FindFiles(nil, []string{"file_finder.go"})
	assert.Empty(t, missing)
	require.Len(t, found, 1)
	assert.Equal(t, ".", found[0].Dir)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList("  a b\tc \n"))
	assert.Empty(t, SplitList(""))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("working on", "file", "Castro_F.H")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=\"working on\" file=Castro_F.H")
}
