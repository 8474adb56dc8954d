// Package llm implements the HTTP+NDJSON transport to the local chat
// completion service (spec §4.A). It exposes blocking and streaming chat
// primitives and a best-effort VRAM-release call.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/visionforge/core/pkg/corerr"
)

const (
	requestTimeout = 300 * time.Second
	connectTimeout = 10 * time.Second

	defaultKeepAlive = "30m"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options carries the sampling knobs the pipeline sets per stage (spec
// §4.A, §4.C).
type Options struct {
	NumPredict    int
	RepeatPenalty float64
	RepeatLastN   int
}

// Result is the outcome of a (possibly streamed) chat call.
type Result struct {
	Content      string
	TotalNS      int64
	PromptTokens int
	EvalTokens   int
}

// Client is a handle to one chat completion endpoint. It is safe for
// concurrent use; the pipeline shares one Client across stages.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a transport handle pointed at endpoint (e.g.
// "http://localhost:11434"). httpClient may be nil, in which case a client
// with the spec's connect/request timeouts is constructed.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

type chatRequest struct {
	Model     string          `json:"model"`
	Messages  []Message       `json:"messages"`
	Stream    bool            `json:"stream"`
	Format    string          `json:"format,omitempty"`
	KeepAlive string          `json:"keep_alive,omitempty"`
	Options   *requestOptions `json:"options,omitempty"`
}

type requestOptions struct {
	NumPredict    int     `json:"num_predict,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	RepeatLastN   int     `json:"repeat_last_n,omitempty"`
}

// chatChunk is one newline-delimited JSON line of a streaming /api/chat
// response, and also doubles as the shape of a non-streaming response body.
type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func buildRequest(model string, messages []Message, jsonMode bool, opts *Options, stream bool) chatRequest {
	req := chatRequest{
		Model:     model,
		Messages:  messages,
		Stream:    stream,
		KeepAlive: defaultKeepAlive,
	}
	if jsonMode {
		req.Format = "json"
	}
	if opts != nil {
		req.Options = &requestOptions{
			NumPredict:    opts.NumPredict,
			RepeatPenalty: opts.RepeatPenalty,
			RepeatLastN:   opts.RepeatLastN,
		}
	}
	return req
}

// Chat sends a non-streaming chat completion request (spec §4.A).
func (c *Client) Chat(ctx context.Context, model string, messages []Message, jsonMode bool, opts *Options) (Result, error) {
	return c.chat(ctx, model, messages, jsonMode, opts, nil, nil)
}

// ChatStreaming sends a streaming chat completion request, invoking
// onToken with each non-empty content delta as it arrives. cancel is
// polled at each chunk boundary; if it reports true the call fails with
// corerr.KindCancelled (spec §4.A — the pipeline's sole suspension point
// for prompt cancellation).
func (c *Client) ChatStreaming(ctx context.Context, model string, messages []Message, jsonMode bool, opts *Options, onToken func(string), cancel func() bool) (Result, error) {
	return c.chat(ctx, model, messages, jsonMode, opts, onToken, cancel)
}

func (c *Client) chat(ctx context.Context, model string, messages []Message, jsonMode bool, opts *Options, onToken func(string), cancel func() bool) (Result, error) {
	ctx, stopTimeout := context.WithTimeout(ctx, requestTimeout)
	defer stopTimeout()

	stream := onToken != nil
	reqBody := buildRequest(model, messages, jsonMode, opts, stream)

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to encode chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to build chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, fmt.Sprintf("cannot connect to LLM service at %s", c.endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		head := make([]byte, 1024)
		n, _ := io.ReadFull(resp.Body, head)
		return Result{}, corerr.Newf(corerr.KindUpstream, "LLM service returned %d: %s", resp.StatusCode, head[:n])
	}

	if stream {
		return consumeStream(resp.Body, onToken, cancel)
	}
	return consumeWhole(resp.Body)
}

func consumeWhole(r io.Reader) (Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to read chat response", err)
	}
	var chunk chatChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return Result{}, corerr.Wrap(corerr.KindUpstream, "failed to decode chat response", err)
	}
	if chunk.Error != "" {
		return Result{}, corerr.New(corerr.KindUpstream, chunk.Error)
	}
	content := chunk.Message.Content
	if content == "" {
		content = chunk.Response
	}
	return Result{
		Content:      content,
		TotalNS:      chunk.TotalDuration,
		PromptTokens: chunk.PromptEvalCount,
		EvalTokens:   chunk.EvalCount,
	}, nil
}
