// Package graph provides read-only access to a workflow's graph storage
// for agent tools. The backing store is a SQLite database named by a
// sandbox-local sidecar file.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrNodeNotFound indicates a lookup for a node id that does not exist in
// the workflow.
var ErrNodeNotFound = errors.New("node not found")

// Node is one graph node as stored for a workflow.
type Node struct {
	ID         string         `json:"id"`
	NodeType   string         `json:"node_type"`
	Title      string         `json:"title"`
	Status     string         `json:"status,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Neighbor is a node reached over one edge, annotated with the edge type
// and direction.
type Neighbor struct {
	Node      Node   `json:"node"`
	EdgeType  string `json:"edge_type"`
	Direction string `json:"direction"` // "out" or "in"
}

// Store is the read-only query surface the graph tools expose to agents.
type Store interface {
	// SearchNodes returns nodes whose title matches the query, newest
	// first, optionally filtered by node type.
	SearchNodes(ctx context.Context, query, nodeType string, limit int) ([]Node, error)

	// GetNode returns one node by id.
	GetNode(ctx context.Context, id string) (*Node, error)

	// GetNeighbors returns nodes connected to the given node, optionally
	// filtered by edge type.
	GetNeighbors(ctx context.Context, id, edgeType string) ([]Neighbor, error)

	// CountNodes returns node counts grouped by node type.
	CountNodes(ctx context.Context) (map[string]int, error)

	Close() error
}

// SQLiteStore implements Store against a workflow-scoped SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	workflowID string
}

// Open opens the database at path scoped to one workflow.
func Open(path, workflowID string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("graph: database path is required")
	}
	if workflowID == "" {
		return nil, errors.New("graph: workflow id is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open graph database: %w", err)
	}
	return &SQLiteStore{db: db, workflowID: workflowID}, nil
}

// Init creates the node and edge tables when absent. Exposed so tests and
// local tooling can build fixture databases; the platform owns the schema
// in production.
func (s *SQLiteStore) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			node_type TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT,
			properties TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_workflow ON nodes(workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(workflow_id, from_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(workflow_id, to_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init graph schema: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces a node. Fixture helper, see Init.
func (s *SQLiteStore) Put(ctx context.Context, node Node) error {
	props, err := json.Marshal(node.Properties)
	if err != nil {
		return fmt.Errorf("encode node properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO nodes (id, workflow_id, node_type, title, status, properties) VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, s.workflowID, node.NodeType, node.Title, node.Status, string(props))
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	return nil
}

// Link inserts or replaces an edge. Fixture helper, see Init.
func (s *SQLiteStore) Link(ctx context.Context, id, edgeType, fromID, toID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO edges (id, workflow_id, edge_type, from_id, to_id) VALUES (?, ?, ?, ?, ?)`,
		id, s.workflowID, edgeType, fromID, toID)
	if err != nil {
		return fmt.Errorf("link nodes: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SearchNodes(ctx context.Context, query, nodeType string, limit int) ([]Node, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	clauses := []string{"workflow_id = ?"}
	args := []any{s.workflowID}
	if query != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+query+"%")
	}
	if nodeType != "" {
		clauses = append(clauses, "node_type = ?")
		args = append(args, nodeType)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, node_type, title, COALESCE(status, ''), COALESCE(properties, '')
		 FROM nodes WHERE `+strings.Join(clauses, " AND ")+`
		 ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, node_type, title, COALESCE(status, ''), COALESCE(properties, '')
		 FROM nodes WHERE workflow_id = ? AND id = ?`, s.workflowID, id)

	var node Node
	var props string
	if err := row.Scan(&node.ID, &node.NodeType, &node.Title, &node.Status, &props); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	if err := decodeProperties(props, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *SQLiteStore) GetNeighbors(ctx context.Context, id, edgeType string) ([]Neighbor, error) {
	if _, err := s.GetNode(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT n.id, n.node_type, n.title, COALESCE(n.status, ''), COALESCE(n.properties, ''), e.edge_type,
		       CASE WHEN e.from_id = ? THEN 'out' ELSE 'in' END AS direction
		FROM edges e
		JOIN nodes n ON n.workflow_id = e.workflow_id
		 AND n.id = CASE WHEN e.from_id = ? THEN e.to_id ELSE e.from_id END
		WHERE e.workflow_id = ? AND (e.from_id = ? OR e.to_id = ?)`
	args := []any{id, id, s.workflowID, id, id}
	if edgeType != "" {
		query += " AND e.edge_type = ?"
		args = append(args, edgeType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get neighbors: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var n Neighbor
		var props string
		if err := rows.Scan(&n.Node.ID, &n.Node.NodeType, &n.Node.Title, &n.Node.Status, &props, &n.EdgeType, &n.Direction); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		if err := decodeProperties(props, &n.Node); err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

func (s *SQLiteStore) CountNodes(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_type, COUNT(*) FROM nodes WHERE workflow_id = ? GROUP BY node_type`, s.workflowID)
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var nodeType string
		var count int
		if err := rows.Scan(&nodeType, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[nodeType] = count
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (Node, error) {
	var node Node
	var props string
	if err := row.Scan(&node.ID, &node.NodeType, &node.Title, &node.Status, &props); err != nil {
		return Node{}, fmt.Errorf("scan node: %w", err)
	}
	if err := decodeProperties(props, &node); err != nil {
		return Node{}, err
	}
	return node, nil
}

func decodeProperties(raw string, node *Node) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &node.Properties); err != nil {
		return fmt.Errorf("decode properties for node %s: %w", node.ID, err)
	}
	return nil
}
