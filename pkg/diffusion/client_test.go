package diffusion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/core/pkg/corerr"
)

func TestCheckHealth_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/system_stats", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	assert.True(t, c.CheckHealth(context.Background()))
}

func TestCheckHealth_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	assert.False(t, c.CheckHealth(context.Background()))
}

func TestQueuePrompt_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prompt", r.URL.Path)
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, ok := body["client_id"]
		assert.True(t, ok)
		json.NewEncoder(w).Encode(map[string]any{"prompt_id": "abc123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	id, err := c.QueuePrompt(context.Background(), json.RawMessage(`{"1":{}}`), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestQueuePrompt_NodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"prompt_id":   "abc123",
			"node_errors": map[string]any{"5": map[string]any{"errors": []string{"bad sampler"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.QueuePrompt(context.Background(), json.RawMessage(`{}`), "client-1")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindWorkflow))
}

func TestQueuePrompt_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.QueuePrompt(context.Background(), json.RawMessage(`{}`), "client-1")
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindUpstream))
}

func TestGetHistory_Completed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/abc123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"abc123": map[string]any{
				"status": map[string]any{"status_str": "success", "completed": true},
				"outputs": map[string]any{
					"7": map[string]any{
						"images": []map[string]any{
							{"filename": "img1.png", "subfolder": "", "type": "output"},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	hist, err := c.GetHistory(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.True(t, hist.Completed)
	require.Len(t, hist.Images, 1)
	assert.Equal(t, "img1.png", hist.Images[0].Filename)
}

func TestGetHistory_MissingEntryYieldsNilNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	hist, err := c.GetHistory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, hist)
}

func TestGetHistory_NonSuccessYieldsNilNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	hist, err := c.GetHistory(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Nil(t, hist)
}

func TestGetQueueStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"queue_running": []any{map[string]any{}},
			"queue_pending": []any{map[string]any{}, map[string]any{}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	status, err := c.GetQueueStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status.Running)
	assert.Equal(t, uint32(2), status.Pending)
}

func TestFreeMemory_SwallowsErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	assert.NoError(t, c.FreeMemory(context.Background(), true))
}

func TestInterrupt_SwallowsErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	assert.NoError(t, c.Interrupt(context.Background()))
}
