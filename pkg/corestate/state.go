// Package corestate holds the process-wide mutable state shared by the
// pipeline engine and the queue: the store lock, the queue-paused flag, and
// the pipeline-cancelled flag (spec §5, §9 "Global mutable state"). These
// three pieces are kept together in one record passed by reference rather
// than hidden behind package-level singletons.
package corestate

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/visionforge/core/pkg/config"
)

// State is the single shared record every long-lived component is handed a
// pointer to at construction time.
type State struct {
	// StoreLock guards durable-store critical sections. Sections under
	// this lock must be short: no network I/O, no long compute (spec §5).
	StoreLock sync.Mutex

	// Config is the read-only configuration snapshot; restart to change it.
	Config *config.Config

	// HTTPClient is the shared, internally thread-safe client reused by
	// every outbound call (spec §5).
	HTTPClient *http.Client

	queuePaused  atomic.Bool
	pipelineCanc atomic.Bool
}

// New builds a State for the given configuration and HTTP client.
func New(cfg *config.Config, httpClient *http.Client) *State {
	return &State{Config: cfg, HTTPClient: httpClient}
}

// PauseQueue sets the process-wide queue-paused flag.
func (s *State) PauseQueue() { s.queuePaused.Store(true) }

// ResumeQueue clears the process-wide queue-paused flag.
func (s *State) ResumeQueue() { s.queuePaused.Store(false) }

// QueuePaused reports whether the executor should skip picking up new jobs.
func (s *State) QueuePaused() bool { return s.queuePaused.Load() }

// CancelPipeline sets the process-wide pipeline-cancelled flag. Pipeline
// invocations observe this at stage boundaries and stream chunk
// boundaries (spec §5 cancellation).
func (s *State) CancelPipeline() { s.pipelineCanc.Store(true) }

// ResetPipelineCancel clears the pipeline-cancelled flag; called before a
// new pipeline invocation starts so a prior cancellation does not leak.
func (s *State) ResetPipelineCancel() { s.pipelineCanc.Store(false) }

// PipelineCancelled reports whether the current pipeline invocation has
// been asked to stop.
func (s *State) PipelineCancelled() bool { return s.pipelineCanc.Load() }
