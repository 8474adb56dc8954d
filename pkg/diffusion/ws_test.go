package diffusion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsTestServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		handle(conn)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeWSJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

func TestWaitForCompletionWS_ProgressThenExecutingSynthesizesCompletion(t *testing.T) {
	var historyRequested bool
	mux := http.NewServeMux()
	mux.HandleFunc("/history/prompt-1", func(w http.ResponseWriter, r *http.Request) {
		historyRequested = true
		json.NewEncoder(w).Encode(map[string]any{
			"prompt-1": map[string]any{
				"status": map[string]any{"completed": true},
				"outputs": map[string]any{
					"7": map[string]any{"images": []map[string]any{{"filename": "a.png", "type": "output"}}},
				},
			},
		})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		require.NoError(t, err)
		writeWSJSON(t, conn, wsMessage{Type: "progress", Data: mustJSON(t, wsProgressData{Value: 2, Max: 10, PromptID: "prompt-1"})})
		writeWSJSON(t, conn, wsMessage{Type: "executing", Data: mustJSON(t, wsExecutingData{Node: nil, PromptID: "prompt-1"})})
		time.Sleep(200 * time.Millisecond)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	var steps []int
	status, err := c.WaitForCompletionWS(context.Background(), "prompt-1", "client-1", 5*time.Second, func(cur, total int) {
		steps = append(steps, cur, total)
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	require.Len(t, status.Images, 1)
	assert.Equal(t, "a.png", status.Images[0].Filename)
	assert.Equal(t, []int{2, 10}, steps)
	assert.True(t, historyRequested)
}

func TestWaitForCompletionWS_ExecutionError(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		writeWSJSON(t, conn, wsMessage{Type: "execution_error", Data: mustJSON(t, wsExecutionErrorData{PromptID: "prompt-1", ExceptionMessage: "boom"})})
		time.Sleep(200 * time.Millisecond)
	})

	c := NewClient(srv.URL, nil)
	status, err := c.WaitForCompletionWS(context.Background(), "prompt-1", "client-1", 5*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "boom", status.Error)
}

func TestWaitForCompletionWS_FallsBackToPollingWhenDialFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/history/prompt-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"prompt-1": map[string]any{
				"status":  map[string]any{"completed": true},
				"outputs": map[string]any{},
			},
		})
	})
	// No /ws route registered: dial fails with a 404, forcing fallback.
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	status, err := c.WaitForCompletionWS(context.Background(), "prompt-1", "client-1", 5*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
}

func TestWaitForCompletionWS_IgnoresOtherPromptID(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		writeWSJSON(t, conn, wsMessage{Type: "progress", Data: mustJSON(t, wsProgressData{Value: 1, Max: 5, PromptID: "other-prompt"})})
		writeWSJSON(t, conn, wsMessage{Type: "executing", Data: mustJSON(t, wsExecutingData{Node: nil, PromptID: "prompt-1"})})
		time.Sleep(200 * time.Millisecond)
	})

	c := NewClient(srv.URL, nil)
	var calls int
	_, err := c.WaitForCompletionWS(context.Background(), "prompt-1", "client-1", 5*time.Second, func(cur, total int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "progress for a different prompt id must be ignored")
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
