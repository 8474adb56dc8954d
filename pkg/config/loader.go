package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/visionforge/core/pkg/models"
)

// yamlStageConfig mirrors StageConfig with YAML tags and an optional
// "enabled" so an absent key still defaults to true after merge.
type yamlStageConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// yamlConfig represents the on-disk visionforge.yaml shape.
type yamlConfig struct {
	LLMEndpoint       string                     `yaml:"llm_endpoint"`
	DiffusionEndpoint string                     `yaml:"diffusion_endpoint"`
	Stages            map[string]yamlStageConfig `yaml:"stages"`
	StorageRoot       string                     `yaml:"storage_root"`
	CooldownSeconds   int                        `yaml:"cooldown_seconds"`
	MaxConsecutive    int                        `yaml:"max_consecutive"`
	Checkpoint        *yamlCheckpointContext     `yaml:"default_checkpoint"`
}

type yamlCheckpointContext struct {
	CheckpointName   string  `yaml:"checkpoint_name"`
	BaseModel        string  `yaml:"base_model"`
	PreferredCFGLow  float64 `yaml:"preferred_cfg_low"`
	PreferredCFGHigh float64 `yaml:"preferred_cfg_high"`
	PreferredSampler string  `yaml:"preferred_sampler"`
}

// LoadFile reads a visionforge.yaml file at path and merges it over
// Default(), so any field the file omits keeps the built-in default
// (ambient config-loading capability; reading the file from disk at all is
// the embedding host's call, not a pipeline/queue concern).
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	var parsed yamlConfig
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("invalid yaml: %w", err))
	}

	cfg := Default()

	overlay := &Config{
		LLMEndpoint:       parsed.LLMEndpoint,
		DiffusionEndpoint: parsed.DiffusionEndpoint,
		StorageRoot:       parsed.StorageRoot,
		CooldownSeconds:   parsed.CooldownSeconds,
		MaxConsecutive:    parsed.MaxConsecutive,
	}
	if parsed.Checkpoint != nil {
		overlay.DefaultCheckpointContext = models.CheckpointContext{
			CheckpointName:   parsed.Checkpoint.CheckpointName,
			BaseModel:        parsed.Checkpoint.BaseModel,
			PreferredCFGLow:  parsed.Checkpoint.PreferredCFGLow,
			PreferredCFGHigh: parsed.Checkpoint.PreferredCFGHigh,
			PreferredSampler: parsed.Checkpoint.PreferredSampler,
		}
	}

	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge failed: %w", err))
	}

	for name, sc := range parsed.Stages {
		stage := models.Stage(name)
		merged := cfg.Stages[stage]
		if sc.Enabled != nil {
			merged.Enabled = *sc.Enabled
		}
		if sc.Model != "" {
			merged.Model = sc.Model
		}
		cfg.Stages[stage] = merged
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.LLMEndpoint == "" {
		return NewValidationError("llm_endpoint", errors.New("must not be empty"))
	}
	if cfg.DiffusionEndpoint == "" {
		return NewValidationError("diffusion_endpoint", errors.New("must not be empty"))
	}
	if cfg.CooldownSeconds < 0 {
		return NewValidationError("cooldown_seconds", errors.New("must not be negative"))
	}
	if cfg.MaxConsecutive < 0 {
		return NewValidationError("max_consecutive", errors.New("must not be negative"))
	}
	return nil
}
