package models

// SeedData is the domain output shape for workflow-graph seeding: a flat
// batch of nodes and edges joined by temporary identifiers.
type SeedData struct {
	Nodes []SeedNode `json:"nodes"`
	Edges []SeedEdge `json:"edges"`
}

// SeedNode is one node in a seed batch.
type SeedNode struct {
	// TempID is the batch-local identifier edges reference. Must be
	// unique within the batch.
	TempID string `json:"temp_id"`

	// Type names a node type declared by the graph schema.
	Type string `json:"type"`

	// Title is the display title.
	Title string `json:"title,omitempty"`

	// Status must be one of the node type's declared states, or absent
	// when the type declares none.
	Status string `json:"status,omitempty"`

	// Properties holds typed property values keyed by declared property
	// keys.
	Properties map[string]any `json:"properties,omitempty"`
}

// SeedEdge is one edge in a seed batch, referencing nodes by temp id.
type SeedEdge struct {
	// Type names an edge type declared by the graph schema.
	Type string `json:"type"`

	// FromTempID and ToTempID reference node temp ids in the same batch.
	FromTempID string `json:"from_temp_id"`
	ToTempID   string `json:"to_temp_id"`
}
