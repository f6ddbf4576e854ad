// Package sessions provides named conversational sessions over the agent
// tool protocol: single-flight query processing, idle eviction, and a live
// event stream per session.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/internal/graph"
	"github.com/haasonsaas/graphloom/internal/tools"
	"github.com/haasonsaas/graphloom/internal/transform"
	"github.com/haasonsaas/graphloom/pkg/models"
)

var (
	// ErrSessionBusy indicates a query arrived while another is in
	// flight. Queries fail fast rather than queuing.
	ErrSessionBusy = errors.New("session busy")

	// ErrSessionClosed indicates the session's agent client is closed.
	ErrSessionClosed = errors.New("session closed")
)

// skillsDirName is the skills directory provisioned in every session
// work directory.
const skillsDirName = ".claude/skills"

// Options configures one chat session.
type Options struct {
	// WorkDir is the session work directory. Empty means a fresh
	// temporary directory retained after close.
	WorkDir string

	// GraphDBPath, when set, provisions the read-only graph-query
	// sidecar pointing at this store and registers the graph tools.
	GraphDBPath string

	// SystemPrompt guides the session's agent. Surfaced once as a
	// system_prompt event on the first query.
	SystemPrompt string

	// Subscriber receives the session's ordered event stream. Optional.
	Subscriber models.EventSink

	// MaxTurns bounds agent turns per query. Zero uses the agent
	// default.
	MaxTurns int
}

// Message is one entry in the session's ordered history. Assistant
// entries hold a compact summary, not the verbatim reply.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// ChatSession is one conversational session bound to an agent client and
// a work directory.
type ChatSession struct {
	ID         string
	WorkflowID string

	opts    Options
	factory agent.Factory
	logger  *slog.Logger
	emitter *transform.Emitter

	processing atomic.Bool
	toolCalls  atomic.Int64

	mu           sync.Mutex
	workDir      string
	client       agent.Client
	active       bool
	promptSent   bool
	lastActivity time.Time
	messages     []Message

	nowFunc func() time.Time
}

// NewChatSession creates an uninitialised session. Initialize must be
// called before Query.
func NewChatSession(id, workflowID string, opts Options, factory agent.Factory, logger *slog.Logger) *ChatSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSession{
		ID:         id,
		WorkflowID: workflowID,
		opts:       opts,
		factory:    factory,
		logger:     logger.With("session_id", id, "workflow_id", workflowID),
		emitter:    transform.NewEmitter("", opts.Subscriber),
		nowFunc:    time.Now,
	}
}

// Initialize provisions the work directory, the optional graph-query
// sidecar, the skills directory, and the agent client.
func (s *ChatSession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	workDir := s.opts.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "graphloom-session-")
		if err != nil {
			return fmt.Errorf("create session work dir: %w", err)
		}
		workDir = dir
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create session work dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(workDir, filepath.FromSlash(skillsDirName)), 0o755); err != nil {
		return fmt.Errorf("create skills dir: %w", err)
	}

	registry := agent.NewRegistry()
	if s.opts.GraphDBPath != "" {
		cfg := graph.Config{WorkflowID: s.WorkflowID, DBPath: s.opts.GraphDBPath}
		if err := graph.WriteConfig(workDir, cfg); err != nil {
			return fmt.Errorf("write graph sidecar: %w", err)
		}
		tools.RegisterGraphTools(registry, tools.Context{WorkDir: workDir})
	}

	client, err := s.factory(agent.Options{
		SystemPrompt: s.opts.SystemPrompt,
		Registry:     registry,
		WorkDir:      workDir,
		MaxTurns:     s.opts.MaxTurns,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("create agent client: %w", err)
	}
	if err := client.Open(ctx); err != nil {
		return fmt.Errorf("open agent client: %w", err)
	}

	s.workDir = workDir
	s.client = client
	s.active = true
	s.lastActivity = s.nowFunc()
	s.logger.Info("session initialized", "work_dir", workDir, "graph_tools", s.opts.GraphDBPath != "")
	return nil
}

// WorkDir returns the session work directory. Empty before Initialize.
func (s *ChatSession) WorkDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workDir
}

// IsActive reports whether the agent client is opened and not closed.
func (s *ChatSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsProcessing reports whether a query is in flight.
func (s *ChatSession) IsProcessing() bool {
	return s.processing.Load()
}

// LastActivity returns when the session was last looked up or queried.
func (s *ChatSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Messages returns a copy of the session's ordered history.
func (s *ChatSession) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ChatSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// Query submits one user message and streams the agent's response as
// events. A second concurrent Query fails fast with ErrSessionBusy. Loop
// failures are surfaced as error events and returned; the session stays
// usable.
func (s *ChatSession) Query(ctx context.Context, message string) error {
	if !s.processing.CompareAndSwap(false, true) {
		return ErrSessionBusy
	}
	defer s.processing.Store(false)

	now := s.nowFunc()
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	client := s.client
	s.lastActivity = now
	firstQuery := !s.promptSent
	s.promptSent = true
	s.messages = append(s.messages, Message{Role: "user", Content: message, Time: now})
	s.mu.Unlock()

	if firstQuery && s.opts.SystemPrompt != "" {
		s.emitter.Emit(models.Event{Kind: models.EventSystemPrompt, Text: s.opts.SystemPrompt})
	}

	callsBefore := s.toolCalls.Load()
	if err := s.consume(ctx, client, message); err != nil {
		s.emitter.Emit(models.Event{Kind: models.EventError, Message: err.Error()})
		s.logger.Error("session query failed", "error", err)
		return err
	}
	callCount := s.toolCalls.Load() - callsBefore

	s.mu.Lock()
	s.messages = append(s.messages, Message{
		Role:    "assistant",
		Content: fmt.Sprintf("assistant turn, %d tool calls", callCount),
		Time:    s.nowFunc(),
	})
	s.mu.Unlock()

	s.emitter.Emit(models.Event{Kind: models.EventMessageComplete})
	return nil
}

// consume drains one query's block stream. All events are emitted here, on
// the consuming goroutine, so subscribers see text and tool events in the
// agent's order.
func (s *ChatSession) consume(ctx context.Context, client agent.Client, message string) error {
	blocks, err := client.Query(ctx, message)
	if err != nil {
		return err
	}
	for block := range blocks {
		if block.Err != nil {
			if errors.Is(block.Err, agent.ErrMaxTurns) {
				s.logger.Warn("agent turn budget exhausted")
				break
			}
			return block.Err
		}
		switch block.Kind {
		case agent.BlockText:
			s.emitter.Emit(models.Event{Kind: models.EventText, Text: block.Text})
		case agent.BlockToolUse:
			s.toolCalls.Add(1)
			s.emitter.Emit(models.Event{
				Kind:       models.EventToolCall,
				ToolName:   block.ToolName,
				ToolCallID: block.ToolCallID,
				Input:      block.Input,
			})
		case agent.BlockToolResult:
			s.emitter.Emit(models.Event{
				Kind:       models.EventToolResult,
				ToolName:   block.ToolName,
				ToolCallID: block.ToolCallID,
				Output:     block.Content,
				IsError:    block.IsError,
			})
		}
	}
	return nil
}

// Close shuts the agent client down. The work directory is retained.
// Idempotent.
func (s *ChatSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	s.active = false
	err := s.client.Close()
	s.logger.Info("session closed")
	return err
}
