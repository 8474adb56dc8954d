package diffusion

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/visionforge/core/pkg/corerr"
)

const (
	perMessageReadTimeout = 30 * time.Second
	pollFallbackInterval  = 2 * time.Second
)

// GenerationState is the terminal or in-progress outcome of a completion
// wait (spec §4.E wait_for_completion_ws).
type GenerationState string

const (
	StateCompleted GenerationState = "completed"
	StateFailed    GenerationState = "failed"
)

// GenerationStatus is the result of waiting for one prompt to finish.
type GenerationStatus struct {
	State  GenerationState
	Images []ImageRef
	Error  string
}

// OnProgress is called with the current/total step counts reported by a
// `progress` WebSocket message.
type OnProgress func(currentStep, totalStep int)

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wsProgressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
}

type wsExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type wsExecutionErrorData struct {
	PromptID         string `json:"prompt_id"`
	ExceptionMessage string `json:"exception_message"`
}

func wsURL(httpEndpoint, clientID string) string {
	u := httpEndpoint
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws?" + url.Values{"clientId": {clientID}}.Encode()
}

// WaitForCompletionWS waits for promptID to finish, preferring a WebSocket
// subscription and falling back to polling get_history if the socket
// cannot be opened or disconnects unexpectedly (spec §4.E).
func (c *Client) WaitForCompletionWS(ctx context.Context, promptID, clientID string, timeout time.Duration, onProgress OnProgress) (GenerationStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := c.waitViaWebSocket(ctx, promptID, clientID, onProgress)
	if err == nil {
		return status, nil
	}

	return c.waitViaPolling(ctx, promptID)
}

// waitViaWebSocket opens a WebSocket and dispatches messages until a
// completion signal, an execution_error, or the socket fails. Any error
// (including context deadline) tells the caller to fall back to polling.
// A done context, whether by deadline or by caller cancellation, is not
// returned as an error: this loop and the polling fallback both report it
// as a failed "Generation timed out" status without waiting further.
func (c *Client) waitViaWebSocket(ctx context.Context, promptID, clientID string, onProgress OnProgress) (GenerationStatus, error) {
	conn, _, err := websocket.Dial(ctx, wsURL(c.endpoint, clientID), nil)
	if err != nil {
		return GenerationStatus{}, err
	}
	defer conn.CloseNow()

	for {
		if ctx.Err() != nil {
			return GenerationStatus{State: StateFailed, Error: "Generation timed out"}, nil
		}

		readCtx, readCancel := context.WithTimeout(ctx, perMessageReadTimeout)
		_, data, readErr := conn.Read(readCtx)
		readCancel()
		if readErr != nil {
			return GenerationStatus{}, readErr
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "progress":
			var p wsProgressData
			if err := json.Unmarshal(msg.Data, &p); err != nil || p.PromptID != promptID {
				continue
			}
			if onProgress != nil {
				onProgress(p.Value, p.Max)
			}

		case "executing":
			var e wsExecutingData
			if err := json.Unmarshal(msg.Data, &e); err != nil || e.PromptID != promptID {
				continue
			}
			if e.Node == nil {
				return c.synthesizeCompletion(ctx, promptID)
			}

		case "execution_error":
			var e wsExecutionErrorData
			if err := json.Unmarshal(msg.Data, &e); err != nil || e.PromptID != promptID {
				continue
			}
			return GenerationStatus{State: StateFailed, Error: e.ExceptionMessage}, nil

		default:
			// ignored
		}
	}
}

// synthesizeCompletion fetches history once the executing{node:null}
// signal has been observed.
func (c *Client) synthesizeCompletion(ctx context.Context, promptID string) (GenerationStatus, error) {
	hist, err := c.GetHistory(ctx, promptID)
	if err != nil {
		return GenerationStatus{}, err
	}
	if hist == nil {
		return GenerationStatus{State: StateFailed, Error: "No history found after generation"}, nil
	}
	if hist.Completed {
		return GenerationStatus{State: StateCompleted, Images: hist.Images}, nil
	}
	return GenerationStatus{State: StateFailed, Error: "ComfyUI generation failed"}, nil
}

// waitViaPolling is the fallback path used when the WebSocket cannot be
// opened or disconnects unexpectedly: poll get_history every 2s until ctx's
// deadline (the original total completion-wait timeout) elapses.
func (c *Client) waitViaPolling(ctx context.Context, promptID string) (GenerationStatus, error) {
	ticker := time.NewTicker(pollFallbackInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return GenerationStatus{State: StateFailed, Error: "Generation timed out"}, nil
		}

		hist, err := c.GetHistory(ctx, promptID)
		if err != nil {
			return GenerationStatus{}, corerr.Wrap(corerr.KindUpstream, "polling fallback failed to fetch history", err)
		}
		if hist != nil {
			if hist.Completed {
				return GenerationStatus{State: StateCompleted, Images: hist.Images}, nil
			}
			if hist.StatusStr == "error" {
				return GenerationStatus{State: StateFailed, Error: "ComfyUI generation failed"}, nil
			}
		}

		select {
		case <-ctx.Done():
			return GenerationStatus{State: StateFailed, Error: "Generation timed out"}, nil
		case <-ticker.C:
		}
	}
}
