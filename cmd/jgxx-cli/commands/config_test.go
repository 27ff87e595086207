package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(dir, "jgxx.json5"))
	require.NoError(t, err)
	require.Equal(t, Config{Region: defaultRegion}, cfg)

	err = os.WriteFile(filepath.Join(dir, "jgxx.json5"), []byte(`{
		// comments are fine
		base_url: "http://localhost:8080",
		retry_attempts: 5,
		retry_delay_seconds: 0.5,
		dump_dir: "`+filepath.ToSlash(filepath.Join(dir, "dump"))+`",
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "jgxx.local.json5"), []byte(`{timeout_seconds: 10}`), 0600)
	require.NoError(t, err)

	cfg, err = loadConfig(filepath.Join(dir, "jgxx.json5"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.BaseUrl)
	require.Equal(t, 10, cfg.TimeoutSeconds)
	require.Equal(t, defaultRegion, cfg.Region)

	opts, err := cfg.options()
	require.NoError(t, err)
	require.Equal(t, 5, opts.Attempts)
	require.Equal(t, 500*time.Millisecond, opts.RetryDelay)
	require.Equal(t, 10*time.Second, opts.Timeout)
	require.NotNil(t, opts.Dump)
	require.DirExists(t, filepath.Join(dir, "dump"))
}
