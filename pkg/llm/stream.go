package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/visionforge/core/pkg/corerr"
)

// maxLineSize bounds a single NDJSON line; chat chunks are small, this only
// guards against a misbehaving remote sending an unbounded line.
const maxLineSize = 1 << 20

// consumeStream reads newline-delimited JSON chunks, accumulating content
// deltas and invoking onToken for each non-empty one. The cancel flag is
// tested at every chunk boundary (spec §4.A).
func consumeStream(r io.Reader, onToken func(string), cancel func() bool) (Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var acc bytes.Buffer
	var result Result

	for scanner.Scan() {
		if cancel != nil && cancel() {
			return Result{}, corerr.New(corerr.KindCancelled, "generation cancelled")
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to decode streamed chat chunk", err)
		}
		if chunk.Error != "" {
			return Result{}, corerr.New(corerr.KindUpstream, chunk.Error)
		}

		delta := chunk.Message.Content
		if delta == "" {
			delta = chunk.Response
		}
		if delta != "" {
			acc.WriteString(delta)
			onToken(delta)
		}

		if chunk.Done {
			result.TotalNS = chunk.TotalDuration
			result.PromptTokens = chunk.PromptEvalCount
			result.EvalTokens = chunk.EvalCount
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to read streamed chat response", err)
	}

	if cancel != nil && cancel() {
		return Result{}, corerr.New(corerr.KindCancelled, "generation cancelled")
	}

	result.Content = acc.String()
	return result, nil
}

// UnloadModel sends a zero-length prompt with keep_alive=0 to request the
// remote release the model's VRAM. Errors are swallowed (spec §4.A, §9
// resource policy) since this is a best-effort hint.
func (c *Client) UnloadModel(ctx context.Context, model string) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  nil,
		Stream:    false,
		KeepAlive: "0",
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

// Model is one entry of the /api/tags model listing.
type Model struct {
	Name   string
	Size   int64
	Digest string
}

// ListModels fetches the models currently available to the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to build tags request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "cannot connect to LLM service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, corerr.Newf(corerr.KindUpstream, "LLM service returned %d listing models", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name   string `json:"name"`
			Size   int64  `json:"size"`
			Digest string `json:"digest"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, corerr.Wrap(corerr.KindUpstream, "failed to decode tags response", err)
	}

	models := make([]Model, len(payload.Models))
	for i, m := range payload.Models {
		models[i] = Model{Name: m.Name, Size: m.Size, Digest: m.Digest}
	}
	return models, nil
}

// CheckHealth reports whether the endpoint is reachable and responding.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
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
