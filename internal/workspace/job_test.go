package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_CreatesIsolatedDirectories(t *testing.T) {
	base := t.TempDir()

	j1, err := NewJob(base)
	require.NoError(t, err)
	j2, err := NewJob(base)
	require.NoError(t, err)

	assert.NotEqual(t, j1.InputDir, j2.InputDir)
	assert.NotEqual(t, j1.OutputDir, j2.OutputDir)
	assert.NotEqual(t, j1.InputDir, j1.OutputDir)
	assert.Equal(t, base, filepath.Dir(j1.InputDir))

	for _, d := range []string{j1.InputDir, j1.OutputDir, j2.InputDir, j2.OutputDir} {
		st, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
}

func TestNewJob_CreatesMissingBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "work")
	j, err := NewJob(base)
	require.NoError(t, err)
	defer j.Cleanup()

	assert.Equal(t, base, filepath.Dir(j.OutputDir))
}

func TestWriteInputAndCleanup(t *testing.T) {
	j, err := NewJob(t.TempDir())
	require.NoError(t, err)

	p, err := j.WriteInput("cv.yaml", []byte("cv:\n  name: X\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(j.InputDir, "cv.yaml"), p)

	require.NoError(t, os.WriteFile(j.OutputPath("output.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(j.OutputDir, "rendercv_output"), 0o755))

	require.NoError(t, j.Cleanup())
	_, err = os.Stat(j.InputDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(j.OutputDir)
	assert.True(t, os.IsNotExist(err))

	// second call is a no-op
	assert.NoError(t, j.Cleanup())
}

func TestWriteInput_RejectsPaths(t *testing.T) {
	j, err := NewJob(t.TempDir())
	require.NoError(t, err)
	defer j.Cleanup()

	for _, name := range []string{"", "../escape.yaml", "sub/cv.yaml"} {
		_, err := j.WriteInput(name, []byte("x"))
		assert.Error(t, err, "name %q", name)
	}
}
