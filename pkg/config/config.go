// Package config defines the resolved configuration snapshot the core
// operates on, plus an optional YAML loader for hosts that want to read it
// from a file (ambient concern; reading the file is otherwise the embedding
// shell's job).
package config

import "github.com/visionforge/core/pkg/models"

// StageConfig is the per-stage slice of configuration the pipeline reads:
// whether the stage runs, and which model it calls.
type StageConfig struct {
	Enabled bool
	Model   string
}

// Config is the resolved, immutable snapshot the core's components share.
// The host builds one of these (from YAML, env vars, or hardcoded defaults)
// and the running process treats it as read-only for its lifetime; restart
// to pick up changes.
type Config struct {
	// LLMEndpoint is the base URL of the chat completion service (spec §6.1).
	LLMEndpoint string

	// DiffusionEndpoint is the base URL of the diffusion service (spec §6.2).
	DiffusionEndpoint string

	// Stages maps each pipeline stage to its enable flag and model name.
	Stages map[models.Stage]StageConfig

	// StorageRoot is the configurable root directory for images and the
	// store file (spec §6.5). Empty means the default (~/.visionforge).
	StorageRoot string

	// CooldownSeconds is the mandatory idle interval between consecutive
	// jobs (spec §4.H).
	CooldownSeconds int

	// MaxConsecutive is the number of jobs the executor may run back to
	// back before a forced cooldown resets the counter; 0 disables the
	// limit (spec §4.H).
	MaxConsecutive int

	// DefaultCheckpointContext supplies the Prompt-Engineer stage's
	// checkpoint profile when a job does not specify one.
	DefaultCheckpointContext models.CheckpointContext
}

// StageEnabled reports whether the given stage is enabled in this
// configuration. An absent entry defaults to enabled, matching the spec's
// "all five stages enabled" baseline scenario (S1).
func (c *Config) StageEnabled(stage models.Stage) bool {
	sc, ok := c.Stages[stage]
	if !ok {
		return true
	}
	return sc.Enabled
}

// StageModel returns the model name configured for the given stage.
func (c *Config) StageModel(stage models.Stage) string {
	return c.Stages[stage].Model
}

// Default returns a Config with every stage enabled, no model names
// assigned (the host must fill these in), and the spec's default
// diffusion/queue knobs.
func Default() *Config {
	stages := make(map[models.Stage]StageConfig, len(models.AllStages))
	for _, s := range models.AllStages {
		stages[s] = StageConfig{Enabled: true}
	}
	return &Config{
		LLMEndpoint:              "http://localhost:11434",
		DiffusionEndpoint:        "http://localhost:8188",
		Stages:                   stages,
		CooldownSeconds:          0,
		MaxConsecutive:           0,
		DefaultCheckpointContext: models.DefaultCheckpointContext(),
	}
}
