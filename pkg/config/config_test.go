package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/core/pkg/models"
)

func TestDefault_AllStagesEnabled(t *testing.T) {
	cfg := Default()
	for _, s := range models.AllStages {
		assert.True(t, cfg.StageEnabled(s))
	}
}

func TestConfig_StageEnabled_AbsentDefaultsTrue(t *testing.T) {
	cfg := &Config{Stages: map[models.Stage]StageConfig{}}
	assert.True(t, cfg.StageEnabled(models.StageJudge))
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "visionforge.yaml")
	content := []byte(`
llm_endpoint: "http://example.internal:11434"
cooldown_seconds: 15
stages:
  judge:
    enabled: false
  ideator:
    model: "mistral:7b"
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://example.internal:11434", cfg.LLMEndpoint)
	assert.Equal(t, "http://localhost:8188", cfg.DiffusionEndpoint)
	assert.Equal(t, 15, cfg.CooldownSeconds)
	assert.False(t, cfg.StageEnabled(models.StageJudge))
	assert.True(t, cfg.StageEnabled(models.StageComposer))
	assert.Equal(t, "mistral:7b", cfg.StageModel(models.StageIdeator))
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile("/nonexistent/visionforge.yaml")
	assert.Error(t, err)
}

func TestLoadFile_RejectsNegativeCooldown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "visionforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cooldown_seconds: -1\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
