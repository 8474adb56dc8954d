package models

import (
	"encoding/json"
	"time"
)

// GenerationRequest is the parsed settings payload for a job (spec §4.H.4,
// §6.3). Field names match original_source/src-tauri/src/types/generation.rs
// so settings round-trip unchanged through the opaque JSON blob.
type GenerationRequest struct {
	Checkpoint string `json:"checkpoint"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Steps      int    `json:"steps"`
	CFGScale   float64 `json:"cfgScale"`
	Sampler    string `json:"sampler"`
	Scheduler  string `json:"scheduler"`
	Seed       int64  `json:"seed"`
	BatchSize  int    `json:"batchSize"`
}

// DefaultGenerationRequest returns the settings defaults from spec §4.H.4.
func DefaultGenerationRequest() GenerationRequest {
	return GenerationRequest{
		Width:     512,
		Height:    768,
		Steps:     25,
		CFGScale:  7.5,
		Sampler:   "dpmpp_2m",
		Scheduler: "karras",
		Seed:      -1,
		BatchSize: 1,
	}
}

// ParseGenerationRequest parses a job's opaque settings blob, accepting both
// camelCase and snake_case keys (spec §4.H.4) and applying defaults for any
// field absent from the payload.
func ParseGenerationRequest(raw json.RawMessage) (GenerationRequest, error) {
	req := DefaultGenerationRequest()
	if len(raw) == 0 {
		return req, nil
	}

	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return GenerationRequest{}, err
	}

	pick := func(camel, snake string) (json.RawMessage, bool) {
		if v, ok := loose[camel]; ok {
			return v, true
		}
		if v, ok := loose[snake]; ok {
			return v, true
		}
		return nil, false
	}

	assignString := func(dst *string, camel, snake string) {
		if v, ok := pick(camel, snake); ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	assignInt := func(dst *int, camel, snake string) {
		if v, ok := pick(camel, snake); ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	assignFloat := func(dst *float64, camel, snake string) {
		if v, ok := pick(camel, snake); ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	assignInt64 := func(dst *int64, camel, snake string) {
		if v, ok := pick(camel, snake); ok {
			_ = json.Unmarshal(v, dst)
		}
	}

	assignString(&req.Checkpoint, "checkpoint", "checkpoint")
	assignInt(&req.Width, "width", "width")
	assignInt(&req.Height, "height", "height")
	assignInt(&req.Steps, "steps", "steps")
	assignFloat(&req.CFGScale, "cfgScale", "cfg_scale")
	assignString(&req.Sampler, "sampler", "sampler_name")
	assignString(&req.Scheduler, "scheduler", "scheduler")
	assignInt64(&req.Seed, "seed", "seed")
	assignInt(&req.BatchSize, "batchSize", "batch_size")

	return req, nil
}

// Image is the terminal artifact of a successful job (spec §3).
type Image struct {
	ID          string
	Filename    string
	CreatedAt   time.Time
	Settings    GenerationRequest // actually-used settings, including resolved seed
	PipelineLog json.RawMessage
}
