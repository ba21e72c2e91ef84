package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()
	assert.Equal(t, BackendFile, c.StoreBackend)
	assert.Equal(t, "vault.db", c.SnapshotName)
	assert.Equal(t, 5*time.Minute, c.UnlockTimeout)
	assert.NotEmpty(t, c.DataDir)
	require.NoError(t, c.Validate())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"data_dir":       "/from/json",
		"store_backend":  "s3",
		"s3_bucket":      "vaults",
		"s3_region":      "eu-north-1",
		"log_level":      "debug",
		"unlock_timeout": "90s",
	})

	cfg, err := LoadConfig([]string{"-c", path, "-d", "/from/flag"})
	require.NoError(t, err)

	want := defaults()
	want.DataDir = "/from/flag"
	want.StoreBackend = BackendS3
	want.S3Bucket = "vaults"
	want.S3Region = "eu-north-1"
	want.LogLevel = "debug"
	want.UnlockTimeout = 90 * time.Second
	assert.Empty(t, cmp.Diff(want, *cfg))
}

func TestLoadConfig_TimeoutFlag(t *testing.T) {
	cfg, err := LoadConfig([]string{"-t", "0"})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.UnlockTimeout)

	cfg, err = LoadConfig([]string{"-t=30", "-l", "error"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.UnlockTimeout)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ not json`), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing file", args: []string{"-c", filepath.Join(t.TempDir(), "absent.json")}},
		{name: "invalid json", args: []string{"-config", bad}},
		{name: "bad timeout", args: []string{"-t", "soon"}},
		{name: "unknown backend", args: []string{"-b", "ftp"}},
		{name: "s3 without bucket", args: []string{"-b", "s3"}},
		{name: "negative timeout", args: []string{"-t", "-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.args)
			require.Error(t, err)
		})
	}
}

func TestParseJson_AbsentKeysKeepValues(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"snapshot_name": "other.db", "unlock_timeout": 1000000000})

	cfg := defaults()
	require.NoError(t, parseJson(&cfg, []string{"-c", path}))

	want := defaults()
	want.SnapshotName = "other.db"
	want.UnlockTimeout = time.Second
	assert.Empty(t, cmp.Diff(want, cfg))
}
