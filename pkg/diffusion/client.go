// Package diffusion is the HTTP+WebSocket façade over the remote image
// generation service (spec §4.E, §6.2).
package diffusion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/visionforge/core/pkg/corerr"
)

// Client is a handle to one diffusion service endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a handle pointed at endpoint (e.g.
// "http://localhost:8188"). httpClient may be nil, in which case
// http.DefaultClient is used with per-call timeouts applied via context.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// CheckHealth reports whether the service is reachable (spec §4.E).
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// QueuePrompt submits a workflow graph and returns its prompt id (spec
// §4.E). A non-empty node_errors object in the response fails with
// corerr.KindWorkflow.
func (c *Client) QueuePrompt(ctx context.Context, workflowGraph json.RawMessage, clientID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body, err := json.Marshal(struct {
		Prompt   json.RawMessage `json:"prompt"`
		ClientID string          `json:"client_id"`
	}{workflowGraph, clientID})
	if err != nil {
		return "", corerr.Wrap(corerr.KindIO, "failed to encode workflow graph", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", corerr.Wrap(corerr.KindUpstream, "failed to build queue_prompt request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", corerr.Wrap(corerr.KindUpstream, fmt.Sprintf("cannot connect to diffusion service at %s", c.endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		head := make([]byte, 1024)
		n, _ := io.ReadFull(resp.Body, head)
		return "", corerr.Newf(corerr.KindUpstream, "diffusion service returned %d when queuing prompt: %s", resp.StatusCode, head[:n])
	}

	var payload struct {
		PromptID   string          `json:"prompt_id"`
		NodeErrors json.RawMessage `json:"node_errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", corerr.Wrap(corerr.KindUpstream, "failed to decode queue_prompt response", err)
	}

	if isNonEmptyObject(payload.NodeErrors) {
		pretty, _ := json.MarshalIndent(json.RawMessage(payload.NodeErrors), "", "  ")
		return "", corerr.Newf(corerr.KindWorkflow, "workflow has node errors: %s", pretty)
	}
	if payload.PromptID == "" {
		return "", corerr.New(corerr.KindUpstream, "diffusion service response missing prompt_id")
	}

	return payload.PromptID, nil
}

func isNonEmptyObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return len(obj) > 0
}

// ImageRef identifies one output image in a history entry.
type ImageRef struct {
	Filename  string
	Subfolder string
	ImgType   string
}

// History is the parsed /history/{id} entry for one prompt (spec §4.E).
type History struct {
	StatusStr string
	Completed bool
	Images    []ImageRef
}

// GetHistory fetches the history entry for promptID. A 404 or non-2xx
// response, or an entry absent from the response body, yields (nil, nil)
// rather than an error — the caller is expected to poll.
func (c *Client) GetHistory(ctx context.Context, promptID string) (*History, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/history/"+promptID, nil)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to build get_history request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to fetch diffusion history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var payload map[string]struct {
		Status struct {
			StatusStr string `json:"status_str"`
			Completed bool   `json:"completed"`
		} `json:"status"`
		Outputs map[string]struct {
			Images []struct {
				Filename  string `json:"filename"`
				Subfolder string `json:"subfolder"`
				Type      string `json:"type"`
			} `json:"images"`
		} `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to decode history response", err)
	}

	entry, ok := payload[promptID]
	if !ok {
		return nil, nil
	}

	var images []ImageRef
	for _, output := range entry.Outputs {
		for _, img := range output.Images {
			imgType := img.Type
			if imgType == "" {
				imgType = "output"
			}
			images = append(images, ImageRef{Filename: img.Filename, Subfolder: img.Subfolder, ImgType: imgType})
		}
	}

	return &History{StatusStr: entry.Status.StatusStr, Completed: entry.Status.Completed, Images: images}, nil
}

// GetImage downloads one output image (spec §4.E).
func (c *Client) GetImage(ctx context.Context, filename, subfolder, imgType string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	u := c.endpoint + "/view?" + url.Values{
		"filename":  {filename},
		"subfolder": {subfolder},
		"type":      {imgType},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to build get_image request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, fmt.Sprintf("failed to fetch image %s", filename), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, corerr.Newf(corerr.KindUpstream, "diffusion service returned %d fetching image %s", resp.StatusCode, filename)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to read image bytes", err)
	}
	return data, nil
}

// QueueStatus is the size of the running/pending diffusion queue.
type QueueStatus struct {
	Running uint32
	Pending uint32
}

// GetQueueStatus fetches the current size of the diffusion service's own
// internal queue (spec §4.E).
func (c *Client) GetQueueStatus(ctx context.Context) (QueueStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/queue", nil)
	if err != nil {
		return QueueStatus{}, corerr.Wrap(corerr.KindUpstream, "failed to build get_queue_status request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return QueueStatus{}, corerr.Wrap(corerr.KindUpstream, "failed to fetch diffusion queue status", err)
	}
	defer resp.Body.Close()

	var payload struct {
		QueueRunning []json.RawMessage `json:"queue_running"`
		QueuePending []json.RawMessage `json:"queue_pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return QueueStatus{}, corerr.Wrap(corerr.KindUpstream, "failed to decode queue status response", err)
	}

	return QueueStatus{Running: uint32(len(payload.QueueRunning)), Pending: uint32(len(payload.QueuePending))}, nil
}

// FreeMemory asks the service to release VRAM, optionally unloading models
// entirely. Best-effort: a failure to reach the service is swallowed and
// reported as nil; only a request that cannot be built returns an error.
func (c *Client) FreeMemory(ctx context.Context, unloadModels bool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	field := "free_memory"
	if unloadModels {
		field = "unload_models"
	}
	body, _ := json.Marshal(map[string]bool{field: true})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/free", bytes.NewReader(body))
	if err != nil {
		return corerr.Wrap(corerr.KindUpstream, "failed to build free_memory request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Interrupt asks the service to stop its current generation. Best-effort: a
// failure to reach the service is swallowed and reported as nil; only a
// request that cannot be built returns an error.
func (c *Client) Interrupt(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/interrupt", nil)
	if err != nil {
		return corerr.Wrap(corerr.KindUpstream, "failed to build interrupt request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
