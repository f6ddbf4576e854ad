package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig holds configuration for the Anthropic-backed client.
type AnthropicConfig struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default API base URL.
	BaseURL string

	// Model is the model ID. Default: "claude-sonnet-4-20250514".
	Model string

	// MaxTokens bounds each model turn. Default: 4096.
	MaxTokens int
}

// AnthropicClient implements the agent Client contract on the Anthropic
// Messages API. Each Query drives a bounded tool loop: model turns are
// streamed, requested tools are executed locally through the registry with
// the configured hooks, and results are fed back until the model stops
// calling tools or the turn budget is exhausted.
type AnthropicClient struct {
	cfg  AnthropicConfig
	opts Options
	api  anthropic.Client

	mu      sync.Mutex
	history []anthropic.MessageParam
	opened  bool
	closed  bool
}

// NewAnthropicClient creates an Anthropic-backed agent client.
func NewAnthropicClient(cfg AnthropicConfig, opts Options) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		cfg:  cfg,
		opts: sanitizeOptions(opts),
		api:  anthropic.NewClient(requestOpts...),
	}, nil
}

// Open prepares the client for queries.
func (c *AnthropicClient) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.opened = true
	return nil
}

// Close releases the client. Idempotent.
func (c *AnthropicClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.opened = false
	return nil
}

// Query submits a user message and streams the agent's response blocks.
// The returned channel is closed when the query completes or fails.
func (c *AnthropicClient) Query(ctx context.Context, message string) (<-chan Block, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !c.opened {
		c.mu.Unlock()
		return nil, ErrNotOpened
	}
	c.history = append(c.history, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
	c.mu.Unlock()

	blocks := make(chan Block, 16)
	go func() {
		defer close(blocks)
		c.run(ctx, blocks)
	}()
	return blocks, nil
}

// pendingToolCall accumulates a streamed tool invocation.
type pendingToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (c *AnthropicClient) run(ctx context.Context, blocks chan<- Block) {
	for turn := 0; turn < c.opts.MaxTurns; turn++ {
		select {
		case <-ctx.Done():
			blocks <- Block{Err: ctx.Err()}
			return
		default:
		}

		text, toolCalls, err := c.streamTurn(ctx, blocks)
		if err != nil {
			blocks <- Block{Err: err}
			return
		}

		c.appendAssistantTurn(text, toolCalls)

		if len(toolCalls) == 0 {
			blocks <- Block{Kind: BlockTurnEnd}
			return
		}

		results := make([]anthropic.ContentBlockParamUnion, 0, len(toolCalls))
		for _, call := range toolCalls {
			result := c.executeToolCall(ctx, call, blocks)
			results = append(results, anthropic.NewToolResultBlock(call.ID, result.Content, result.IsError))
		}

		c.mu.Lock()
		c.history = append(c.history, anthropic.NewUserMessage(results...))
		c.mu.Unlock()

		blocks <- Block{Kind: BlockTurnEnd}
	}

	blocks <- Block{Err: fmt.Errorf("%w: %d", ErrMaxTurns, c.opts.MaxTurns)}
}

// streamTurn runs one model turn and emits text blocks as they complete.
func (c *AnthropicClient) streamTurn(ctx context.Context, blocks chan<- Block) (string, []pendingToolCall, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		Messages:  c.snapshotHistory(),
		MaxTokens: int64(c.cfg.MaxTokens),
	}
	if c.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: c.opts.SystemPrompt}}
	}
	tools, err := convertTools(c.opts.Registry.Tools(c.opts.AllowedTools))
	if err != nil {
		return "", nil, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	stream := c.api.Messages.NewStreaming(ctx, params)

	var turnText strings.Builder
	var blockText strings.Builder
	var current *pendingToolCall
	var currentInput strings.Builder
	var toolCalls []pendingToolCall

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				toolUse := start.ContentBlock.AsToolUse()
				current = &pendingToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentInput.Reset()
			} else {
				blockText.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				blockText.WriteString(delta.Text)
			case "input_json_delta":
				currentInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if current != nil {
				input := currentInput.String()
				if input == "" {
					input = "{}"
				}
				current.Input = json.RawMessage(input)
				toolCalls = append(toolCalls, *current)
				current = nil
			} else if blockText.Len() > 0 {
				text := blockText.String()
				turnText.WriteString(text)
				blocks <- Block{Kind: BlockText, Text: text}
				blockText.Reset()
			}

		case "message_stop":
			return turnText.String(), toolCalls, nil
		}
	}

	if err := stream.Err(); err != nil {
		return "", nil, fmt.Errorf("anthropic stream: %w", err)
	}
	return turnText.String(), toolCalls, nil
}

// executeToolCall runs one requested tool with hooks and emits the
// tool_use and tool_result blocks.
func (c *AnthropicClient) executeToolCall(ctx context.Context, call pendingToolCall, blocks chan<- Block) *ToolResult {
	blocks <- Block{
		Kind:       BlockToolUse,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Input:      call.Input,
	}

	var result *ToolResult
	switch {
	case !c.opts.Allowed(call.Name):
		result = &ToolResult{Content: "tool not allowed: " + call.Name, IsError: true}
	default:
		if hook := c.opts.PreToolUse; hook != nil {
			if err := hook(ctx, call.Name, call.Input); err != nil {
				result = &ToolResult{Content: "tool denied: " + err.Error(), IsError: true}
			}
		}
		if result == nil {
			res, err := c.opts.Registry.Execute(ctx, call.Name, call.Input)
			if err != nil {
				result = &ToolResult{Content: "tool execution failed: " + err.Error(), IsError: true}
			} else {
				result = res
			}
		}
	}

	if hook := c.opts.PostToolUse; hook != nil {
		hook(ctx, call.Name, call.Input, result)
	}

	blocks <- Block{
		Kind:       BlockToolResult,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Input:      call.Input,
		Content:    result.Content,
		IsError:    result.IsError,
	}
	return result
}

func (c *AnthropicClient) appendAssistantTurn(text string, toolCalls []pendingToolCall) {
	var content []anthropic.ContentBlockParamUnion
	if text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}
	for _, call := range toolCalls {
		var input map[string]any
		if err := json.Unmarshal(call.Input, &input); err != nil {
			input = map[string]any{}
		}
		content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
	}
	if len(content) == 0 {
		return
	}
	c.mu.Lock()
	c.history = append(c.history, anthropic.NewAssistantMessage(content...))
	c.mu.Unlock()
}

func (c *AnthropicClient) snapshotHistory() []anthropic.MessageParam {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]anthropic.MessageParam, len(c.history))
	copy(out, c.history)
	return out
}

// convertTools converts registered tools to Anthropic tool definitions.
func convertTools(tools []Tool) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name(), err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name())
		}
		param.OfTool.Description = anthropic.String(tool.Description())
		result = append(result, param)
	}
	return result, nil
}

// AnthropicFactory returns a Factory producing streaming clients with the
// given API configuration.
func AnthropicFactory(cfg AnthropicConfig) Factory {
	return func(opts Options) (Client, error) {
		return NewAnthropicClient(cfg, opts)
	}
}
