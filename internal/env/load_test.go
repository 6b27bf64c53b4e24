package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSetsMissingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INGESTOR_TEST_BUCKET=lake\nINGESTOR_TEST_REGION=eu-west-1\n"), 0o600))

	t.Setenv("INGESTOR_TEST_REGION", "us-east-1")
	os.Unsetenv("INGESTOR_TEST_BUCKET")
	t.Cleanup(func() { os.Unsetenv("INGESTOR_TEST_BUCKET") })

	Load(path)

	assert.Equal(t, "lake", os.Getenv("INGESTOR_TEST_BUCKET"))
	assert.Equal(t, "us-east-1", os.Getenv("INGESTOR_TEST_REGION"))
}

func TestLoadMissingFile(t *testing.T) {
	assert.NotPanics(t, func() { Load(filepath.Join(t.TempDir(), "absent.env")) })
}
