package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().MinQuality, cfg.MinQuality)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: \"1.0\"\nmin_quality: 8\nmax_review_iter: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MinQuality)
	assert.Equal(t, 4, cfg.MaxReviewIter)
	// Unset fields keep their defaults.
	assert.Equal(t, Default().ContextLimit, cfg.ContextLimit)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MIN_QUALITY", "7")
	t.Setenv("ORCHESTRATOR_CHUNK_DELAY", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MinQuality)
	assert.Equal(t, 250*time.Millisecond, cfg.ChunkDelay)
}

func TestLoadFailsValidationAfterEnvOverride(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MIN_QUALITY", "99")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsUnparsableEnvValue(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MAX_REVIEW_ITER", "not-a-number")
	_, err := Load("")
	assert.Error(t, err)
}
