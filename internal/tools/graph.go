package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/internal/graph"
)

// graphToolBase locates the workflow store through the sandbox sidecar on
// every call, keeping the tools stateless across queries.
type graphToolBase struct {
	workDir string
}

func (b graphToolBase) withStore(fn func(store graph.Store) (*agent.ToolResult, error)) (*agent.ToolResult, error) {
	store, err := graph.OpenFromSidecar(b.workDir)
	if err != nil {
		return toolError(fmt.Sprintf("open graph store: %v", err)), nil
	}
	defer store.Close()
	return fn(store)
}

func graphResult(value any) (*agent.ToolResult, error) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// SearchNodesTool searches workflow nodes by title.
type SearchNodesTool struct {
	graphToolBase
}

// NewSearchNodesTool creates a node search tool scoped to the sandbox.
func NewSearchNodesTool(tc Context) *SearchNodesTool {
	return &SearchNodesTool{graphToolBase{workDir: tc.WorkDir}}
}

func (t *SearchNodesTool) Name() string {
	return "search_nodes"
}

func (t *SearchNodesTool) Description() string {
	return "Search workflow graph nodes by title, optionally filtered by node type."
}

func (t *SearchNodesTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Substring to match against node titles.",
			},
			"node_type": map[string]any{
				"type":        "string",
				"description": "Restrict results to one node type.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum results (default: 20).",
				"minimum":     1,
			},
		},
	})
}

func (t *SearchNodesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Query    string `json:"query"`
		NodeType string `json:"node_type"`
		Limit    int    `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	return t.withStore(func(store graph.Store) (*agent.ToolResult, error) {
		nodes, err := store.SearchNodes(ctx, input.Query, input.NodeType, input.Limit)
		if err != nil {
			return toolError(fmt.Sprintf("search nodes: %v", err)), nil
		}
		return graphResult(map[string]any{"nodes": nodes, "count": len(nodes)})
	})
}

// GetNodeTool fetches one node by id.
type GetNodeTool struct {
	graphToolBase
}

// NewGetNodeTool creates a node lookup tool scoped to the sandbox.
func NewGetNodeTool(tc Context) *GetNodeTool {
	return &GetNodeTool{graphToolBase{workDir: tc.WorkDir}}
}

func (t *GetNodeTool) Name() string {
	return "get_node"
}

func (t *GetNodeTool) Description() string {
	return "Fetch one workflow graph node by id."
}

func (t *GetNodeTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_id": map[string]any{
				"type":        "string",
				"description": "Node id to fetch.",
			},
		},
		"required": []string{"node_id"},
	})
}

func (t *GetNodeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		NodeID string `json:"node_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.NodeID) == "" {
		return toolError("node_id is required"), nil
	}
	return t.withStore(func(store graph.Store) (*agent.ToolResult, error) {
		node, err := store.GetNode(ctx, input.NodeID)
		if err != nil {
			if errors.Is(err, graph.ErrNodeNotFound) {
				return toolError(err.Error()), nil
			}
			return toolError(fmt.Sprintf("get node: %v", err)), nil
		}
		return graphResult(node)
	})
}

// GetNeighborsTool fetches nodes connected to a given node.
type GetNeighborsTool struct {
	graphToolBase
}

// NewGetNeighborsTool creates a neighbor query tool scoped to the sandbox.
func NewGetNeighborsTool(tc Context) *GetNeighborsTool {
	return &GetNeighborsTool{graphToolBase{workDir: tc.WorkDir}}
}

func (t *GetNeighborsTool) Name() string {
	return "get_neighbors"
}

func (t *GetNeighborsTool) Description() string {
	return "Fetch nodes connected to a workflow graph node, optionally filtered by edge type."
}

func (t *GetNeighborsTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_id": map[string]any{
				"type":        "string",
				"description": "Node id whose neighbors to fetch.",
			},
			"edge_type": map[string]any{
				"type":        "string",
				"description": "Restrict to one edge type.",
			},
		},
		"required": []string{"node_id"},
	})
}

func (t *GetNeighborsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		NodeID   string `json:"node_id"`
		EdgeType string `json:"edge_type"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.NodeID) == "" {
		return toolError("node_id is required"), nil
	}
	return t.withStore(func(store graph.Store) (*agent.ToolResult, error) {
		neighbors, err := store.GetNeighbors(ctx, input.NodeID, input.EdgeType)
		if err != nil {
			if errors.Is(err, graph.ErrNodeNotFound) {
				return toolError(err.Error()), nil
			}
			return toolError(fmt.Sprintf("get neighbors: %v", err)), nil
		}
		return graphResult(map[string]any{"neighbors": neighbors, "count": len(neighbors)})
	})
}

// CountNodesTool returns node counts grouped by type.
type CountNodesTool struct {
	graphToolBase
}

// NewCountNodesTool creates a count tool scoped to the sandbox.
func NewCountNodesTool(tc Context) *CountNodesTool {
	return &CountNodesTool{graphToolBase{workDir: tc.WorkDir}}
}

func (t *CountNodesTool) Name() string {
	return "count_nodes"
}

func (t *CountNodesTool) Description() string {
	return "Count workflow graph nodes grouped by node type."
}

func (t *CountNodesTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{"type": "object", "properties": map[string]any{}})
}

func (t *CountNodesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return t.withStore(func(store graph.Store) (*agent.ToolResult, error) {
		counts, err := store.CountNodes(ctx)
		if err != nil {
			return toolError(fmt.Sprintf("count nodes: %v", err)), nil
		}
		return graphResult(map[string]any{"counts": counts})
	})
}
