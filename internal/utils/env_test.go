package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFiles(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		chdir(t, t.TempDir())
		assert.NoError(t, LoadEnvFiles())
	})

	t.Run("values are loaded without overriding the environment", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTHGATE_TEST_A=from-file\nAUTHGATE_TEST_B=from-file\n"), 0o600))
		chdir(t, dir)
		t.Setenv("AUTHGATE_TEST_A", "from-env")
		t.Setenv("AUTHGATE_TEST_B", "")
		require.NoError(t, os.Unsetenv("AUTHGATE_TEST_B"))

		require.NoError(t, LoadEnvFiles())
		assert.Equal(t, "from-env", os.Getenv("AUTHGATE_TEST_A"))
		assert.Equal(t, "from-file", os.Getenv("AUTHGATE_TEST_B"))
	})
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
