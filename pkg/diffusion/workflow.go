package diffusion

import (
	"crypto/rand"
	"math/big"

	"github.com/visionforge/core/pkg/models"
)

// nodeRef is the ["<node id>", <output index>] wire shape ComfyUI-style
// graphs use to reference another node's output.
type nodeRef [2]any

func ref(nodeID string, outputIndex int) nodeRef {
	return nodeRef{nodeID, outputIndex}
}

// node is one entry of the workflow graph (spec §6.3).
type node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Graph is the fixed seven-node DAG submitted to the diffusion service for
// one generation, keyed by string node id "1".."7" (spec §6.3). It is a
// wire format, not a domain model — BuildTxt2Img serializes it directly
// from a GenerationRequest rather than building an in-memory node graph
// that is walked elsewhere.
type Graph map[string]node

// maxInt63 is the exclusive upper bound for a resolved random seed,
// 2^63 (spec §6.3, invariant 7).
var maxInt63 = new(big.Int).Lsh(big.NewInt(1), 63)

// resolveSeed returns seed unchanged if non-negative, otherwise draws a
// uniformly random value in [0, 2^63).
func resolveSeed(seed int64) (int64, error) {
	if seed >= 0 {
		return seed, nil
	}
	n, err := rand.Int(rand.Reader, maxInt63)
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// BuildTxt2Img serializes req into the seven-node text-to-image graph
// (spec §6.3) plus the positive/negative prompt text supplied separately
// since GenerationRequest itself carries no prompt fields. If req.Seed is
// negative, a fresh random seed is resolved and returned alongside the
// graph so the caller can persist the value actually used (invariant 7).
func BuildTxt2Img(req models.GenerationRequest, positive, negative string) (Graph, int64, error) {
	seed, err := resolveSeed(req.Seed)
	if err != nil {
		return nil, 0, err
	}

	graph := Graph{
		"1": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{
			"ckpt_name": req.Checkpoint,
		}},
		"2": {ClassType: "EmptyLatentImage", Inputs: map[string]any{
			"width": req.Width, "height": req.Height, "batch_size": req.BatchSize,
		}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": positive, "clip": ref("1", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": negative, "clip": ref("1", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed": seed, "steps": req.Steps, "cfg": req.CFGScale,
			"sampler_name": req.Sampler, "scheduler": req.Scheduler, "denoise": 1.0,
			"model": ref("1", 0), "positive": ref("3", 0), "negative": ref("4", 0),
			"latent_image": ref("2", 0),
		}},
		"6": {ClassType: "VAEDecode", Inputs: map[string]any{
			"samples": ref("5", 0), "vae": ref("1", 2),
		}},
		"7": {ClassType: "SaveImage", Inputs: map[string]any{
			"filename_prefix": "VisionForge", "images": ref("6", 0),
		}},
	}

	return graph, seed, nil
}
