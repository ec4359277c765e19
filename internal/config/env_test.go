package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `
# functions location
PIFAAS_TEST_FUNCS=/srv/functions
export PIFAAS_TEST_QUOTED="with spaces"
PIFAAS_TEST_SINGLE='single'
not a pair
=novalue
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	for _, k := range []string{"PIFAAS_TEST_FUNCS", "PIFAAS_TEST_QUOTED", "PIFAAS_TEST_SINGLE"} {
		os.Unsetenv(k)
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	require.NoError(t, LoadEnv(path))

	assert.Equal(t, "/srv/functions", os.Getenv("PIFAAS_TEST_FUNCS"))
	assert.Equal(t, "with spaces", os.Getenv("PIFAAS_TEST_QUOTED"))
	assert.Equal(t, "single", os.Getenv("PIFAAS_TEST_SINGLE"))
}

func TestLoadEnv_DoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PIFAAS_TEST_KEEP=file\n"), 0644))
	t.Setenv("PIFAAS_TEST_KEEP", "process")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "process", os.Getenv("PIFAAS_TEST_KEEP"))
}

func TestLoadEnv_Missing(t *testing.T) {
	err := LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadEnvOptional_Missing(t *testing.T) {
	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "absent.env")))
}
