// Package agenttest provides a scripted agent client for tests. The client
// replays a fixed sequence of turns, executing real tools through the
// configured registry so sandbox and hook behavior is exercised end to end.
package agenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/graphloom/internal/agent"
)

// Action is one scripted step inside a turn: either a text block or a tool
// invocation executed against the real registry.
type Action struct {
	// Text emits a text block when non-empty.
	Text string

	// ToolName invokes the named tool with Input when non-empty.
	ToolName string
	Input    json.RawMessage
}

// Turn is one agent turn: a sequence of actions followed by a turn_end.
type Turn struct {
	Actions []Action
}

// Script is the full scripted conversation, one Turn per Query call. A
// Query past the end of the script replays the final turn.
type Script struct {
	Turns []Turn
}

// ScriptedClient implements agent.Client by replaying a script. Tool
// actions run the real tool through the registry, with pre- and post-tool
// hooks applied, so orchestrator tests observe genuine tool effects.
type ScriptedClient struct {
	opts   agent.Options
	script Script

	mu     sync.Mutex
	opened bool
	closed bool
	cursor int

	// Queries records the messages passed to Query, in order.
	Queries []string
}

// NewScriptedClient creates a scripted client for the given options.
func NewScriptedClient(opts agent.Options, script Script) *ScriptedClient {
	return &ScriptedClient{opts: opts, script: script}
}

// Factory returns an agent.Factory producing scripted clients that all
// replay the same script. The last created client is retained for
// inspection.
func Factory(script Script, created *[]*ScriptedClient) agent.Factory {
	var mu sync.Mutex
	return func(opts agent.Options) (agent.Client, error) {
		client := NewScriptedClient(opts, script)
		if created != nil {
			mu.Lock()
			*created = append(*created, client)
			mu.Unlock()
		}
		return client, nil
	}
}

func (c *ScriptedClient) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return agent.ErrClosed
	}
	c.opened = true
	return nil
}

func (c *ScriptedClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.opened = false
	return nil
}

func (c *ScriptedClient) Query(ctx context.Context, message string) (<-chan agent.Block, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, agent.ErrClosed
	}
	if !c.opened {
		c.mu.Unlock()
		return nil, agent.ErrNotOpened
	}
	c.Queries = append(c.Queries, message)
	turn := c.currentTurnLocked()
	c.cursor++
	c.mu.Unlock()

	blocks := make(chan agent.Block, 16)
	go func() {
		defer close(blocks)
		c.replay(ctx, turn, blocks)
	}()
	return blocks, nil
}

func (c *ScriptedClient) currentTurnLocked() Turn {
	if len(c.script.Turns) == 0 {
		return Turn{}
	}
	if c.cursor >= len(c.script.Turns) {
		return c.script.Turns[len(c.script.Turns)-1]
	}
	return c.script.Turns[c.cursor]
}

func (c *ScriptedClient) replay(ctx context.Context, turn Turn, blocks chan<- agent.Block) {
	callSeq := 0
	for _, action := range turn.Actions {
		select {
		case <-ctx.Done():
			blocks <- agent.Block{Err: ctx.Err()}
			return
		default:
		}

		if action.Text != "" {
			blocks <- agent.Block{Kind: agent.BlockText, Text: action.Text}
			continue
		}
		if action.ToolName == "" {
			continue
		}

		callSeq++
		callID := fmt.Sprintf("call_%d_%d", c.cursor, callSeq)
		input := action.Input
		if input == nil {
			input = json.RawMessage("{}")
		}

		blocks <- agent.Block{
			Kind:       agent.BlockToolUse,
			ToolCallID: callID,
			ToolName:   action.ToolName,
			Input:      input,
		}

		var result *agent.ToolResult
		if !c.opts.Allowed(action.ToolName) {
			result = &agent.ToolResult{Content: "tool not allowed: " + action.ToolName, IsError: true}
		} else {
			if hook := c.opts.PreToolUse; hook != nil {
				if err := hook(ctx, action.ToolName, input); err != nil {
					result = &agent.ToolResult{Content: "tool denied: " + err.Error(), IsError: true}
				}
			}
			if result == nil {
				res, err := c.opts.Registry.Execute(ctx, action.ToolName, input)
				if err != nil {
					result = &agent.ToolResult{Content: "tool execution failed: " + err.Error(), IsError: true}
				} else {
					result = res
				}
			}
		}

		if hook := c.opts.PostToolUse; hook != nil {
			hook(ctx, action.ToolName, input, result)
		}

		blocks <- agent.Block{
			Kind:       agent.BlockToolResult,
			ToolCallID: callID,
			ToolName:   action.ToolName,
			Input:      input,
			Content:    result.Content,
			IsError:    result.IsError,
		}
	}
	blocks <- agent.Block{Kind: agent.BlockTurnEnd}
}
