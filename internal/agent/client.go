// Package agent defines the coding-agent capability the transformer core
// drives: a client that accepts an instruction plus tool definitions and
// yields a stream of text blocks, tool-use blocks, tool-result blocks, and
// per-turn terminators, with pre- and post-tool hook points.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// Common sentinel errors for agent clients.
var (
	// ErrNotOpened indicates Query was called before Open.
	ErrNotOpened = errors.New("agent client not opened")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("agent client closed")

	// ErrMaxTurns indicates the agent exhausted its turn budget.
	ErrMaxTurns = errors.New("max turns exceeded")
)

// BlockKind identifies a block in the agent's response stream.
type BlockKind string

const (
	// BlockText is a text block from the agent.
	BlockText BlockKind = "text"

	// BlockToolUse is a tool invocation requested by the agent.
	BlockToolUse BlockKind = "tool_use"

	// BlockToolResult carries the result of an executed tool call.
	BlockToolResult BlockKind = "tool_result"

	// BlockTurnEnd terminates one agent turn.
	BlockTurnEnd BlockKind = "turn_end"
)

// Block is one unit of the agent response stream. The producing client
// closes the channel when the query completes; a Block with Err set is
// terminal.
type Block struct {
	Kind BlockKind

	// Text content (kind=text).
	Text string

	// Tool protocol fields (kind=tool_use, tool_result).
	ToolCallID string
	ToolName   string
	Input      json.RawMessage
	Content    string
	IsError    bool

	// Err reports a stream-level failure. No further blocks follow.
	Err error
}

// PreToolHook runs before every tool execution. Returning an error denies
// the call; the denial is surfaced to the agent as an error tool result.
type PreToolHook func(ctx context.Context, name string, input json.RawMessage) error

// PostToolHook runs after every tool execution with the produced result.
type PostToolHook func(ctx context.Context, name string, input json.RawMessage, result *ToolResult)

// PermissionMode controls how the agent treats file-modifying tools.
type PermissionMode string

// PermissionAcceptEdits lets the agent apply edits inside the sandbox
// without interactive approval.
const PermissionAcceptEdits PermissionMode = "acceptEdits"

// Options configures one agent client instance for a run or session.
type Options struct {
	// SystemPrompt guides the agent for every query.
	SystemPrompt string

	// Registry provides the executable tools exposed to the agent.
	Registry *Registry

	// AllowedTools whitelists tool names. Empty means all registered
	// tools are allowed.
	AllowedTools []string

	// WorkDir is the sandbox root the agent operates in.
	WorkDir string

	// MaxTurns bounds agent turns per query. Default: 10.
	MaxTurns int

	// PermissionMode is passed through to the agent capability.
	PermissionMode PermissionMode

	// PreToolUse and PostToolUse are invoked around every tool
	// execution.
	PreToolUse  PreToolHook
	PostToolUse PostToolHook

	// Logger receives client diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func sanitizeOptions(opts Options) Options {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PermissionMode == "" {
		opts.PermissionMode = PermissionAcceptEdits
	}
	return opts
}

// Client is the agent capability contract. Implementations must invoke the
// configured pre-tool hook before every tool execution and the post-tool
// hook after, and must close the block channel when a query completes.
type Client interface {
	// Open prepares the client for queries.
	Open(ctx context.Context) error

	// Query submits a user message and streams the agent's response.
	Query(ctx context.Context, message string) (<-chan Block, error)

	// Close releases the client. Idempotent.
	Close() error
}

// Factory constructs a client for a run or session. The orchestrator and
// session manager accept a factory so tests can substitute a scripted
// client.
type Factory func(opts Options) (Client, error)

// Allowed reports whether a tool name passes the options whitelist.
func (o Options) Allowed(name string) bool {
	if len(o.AllowedTools) == 0 {
		return true
	}
	for _, allowed := range o.AllowedTools {
		if allowed == name {
			return true
		}
	}
	return false
}
