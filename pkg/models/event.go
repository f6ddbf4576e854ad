// Package models provides domain types for the graphloom transformer core.
package models

import (
	"encoding/json"
	"time"
)

// EventKind identifies the kind of transformer event.
type EventKind string

const (
	// Agent output and tool protocol
	EventText       EventKind = "text"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventValidation EventKind = "validation"

	// Run lifecycle
	EventIterationStart EventKind = "iteration_start"
	EventPhase          EventKind = "phase"
	EventProgress       EventKind = "progress"
	EventComplete       EventKind = "complete"
	EventError          EventKind = "error"

	// Chunked generation lifecycle
	EventChunkedStart    EventKind = "chunked_start"
	EventChunkStart      EventKind = "chunk_start"
	EventChunkComplete   EventKind = "chunk_complete"
	EventChunkUnderflow  EventKind = "chunk_underflow"
	EventChunkEmpty      EventKind = "chunk_empty"
	EventChunkedComplete EventKind = "chunked_complete"

	// Session protocol
	EventKeepalive       EventKind = "keepalive"
	EventMessageComplete EventKind = "message_complete"
	EventSystemPrompt    EventKind = "system_prompt"
)

// Event is the unified streaming unit emitted by the orchestrator, the
// chunked transformer, and chat sessions. It is a tagged record: the Kind
// field discriminates, and payload fields are populated per kind.
// Intermediaries must pass unknown kinds through untouched.
//
// Ordering is monotonic per run: Sequence increases with each event and the
// terminal complete (or error) event is last.
type Event struct {
	// Kind identifies the event. Serialised as "event" on the wire.
	Kind EventKind `json:"event"`

	// Sequence is monotonic within a run for ordering guarantees.
	Sequence uint64 `json:"seq,omitempty"`

	// Time is when the event was emitted.
	Time time.Time `json:"time,omitempty"`

	// RunID identifies the transform run (empty for session events).
	RunID string `json:"run_id,omitempty"`

	// Text carries agent text blocks (kind=text) and system prompts
	// (kind=system_prompt).
	Text string `json:"text,omitempty"`

	// Tool call / result payloads.
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`

	// Iteration is the 0-based agent iteration (kind=iteration_start,
	// tool_call).
	Iteration int `json:"iteration,omitempty"`

	// Validation payload (kind=validation).
	Valid     *bool    `json:"valid,omitempty"`
	ItemCount int      `json:"item_count,omitempty"`
	Errors    []string `json:"errors,omitempty"`

	// Chunked generation payload.
	Chunk       int `json:"chunk,omitempty"`
	ChunkItems  int `json:"chunk_items,omitempty"`
	TotalChunks int `json:"total_chunks,omitempty"`
	TotalItems  int `json:"total_items,omitempty"`

	// Phase names the orchestrator phase (kind=phase).
	Phase string `json:"phase,omitempty"`

	// Message is a human-readable status or error message.
	Message string `json:"message,omitempty"`

	// Manifest is attached to the terminal complete event.
	Manifest *TransformManifest `json:"manifest,omitempty"`
}

// EventSink receives events from a run. The orchestrator invokes the sink
// synchronously and never concurrently for a single run; a nil sink
// discards events.
type EventSink func(Event)
