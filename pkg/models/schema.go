package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// OutputModel describes the structural schema of one artifact item. The
// orchestrator hashes the canonical serialisation to detect schema drift
// between runs.
type OutputModel struct {
	// Name labels the item type (e.g. "Person", "seed_data").
	Name string `json:"name"`

	// Schema is a JSON Schema document validating one artifact item.
	Schema json.RawMessage `json:"schema"`
}

// CanonicalJSON returns a canonical serialisation of the model: object
// keys sorted, insignificant whitespace removed. Hashing the result is
// stable across processes.
func (m OutputModel) CanonicalJSON() ([]byte, error) {
	var decoded any
	if err := json.Unmarshal(m.Schema, &decoded); err != nil {
		return nil, fmt.Errorf("decode output model schema: %w", err)
	}
	canonical, err := json.Marshal(map[string]any{
		"name":   m.Name,
		"schema": decoded,
	})
	if err != nil {
		return nil, fmt.Errorf("canonicalise output model: %w", err)
	}
	return canonical, nil
}

// Hash returns the stable hex-encoded hash of the canonical serialisation.
func (m OutputModel) Hash() (string, error) {
	canonical, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// PropertyKind is the declared value kind of a node property.
type PropertyKind string

const (
	PropertyString   PropertyKind = "string"
	PropertyNumber   PropertyKind = "number"
	PropertyInteger  PropertyKind = "integer"
	PropertyBoolean  PropertyKind = "boolean"
	PropertyDatetime PropertyKind = "datetime"
	PropertyArray    PropertyKind = "array"
	PropertyEnum     PropertyKind = "enum"
)

// PropertyDef declares one property on a node type.
type PropertyDef struct {
	Key      string       `json:"key"`
	Kind     PropertyKind `json:"kind"`
	Required bool         `json:"required,omitempty"`
	Unique   bool         `json:"unique,omitempty"`

	// Enum lists the allowed values for enum-kind properties.
	Enum []string `json:"enum,omitempty"`
}

// NodeTypeDef declares one node type.
type NodeTypeDef struct {
	Name       string        `json:"name"`
	Properties []PropertyDef `json:"properties,omitempty"`

	// States lists the allowed status values. Empty means the type
	// declares no states and seed nodes must omit status.
	States []string `json:"states,omitempty"`
}

// Property returns the declared property with the given key.
func (n NodeTypeDef) Property(key string) (PropertyDef, bool) {
	for _, p := range n.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// EdgeTypeDef declares one edge type and its endpoint node types.
type EdgeTypeDef struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphSchema declares the node and edge types a workflow graph accepts.
// It is the domain output model for seed-data transformations.
type GraphSchema struct {
	NodeTypes []NodeTypeDef `json:"node_types"`
	EdgeTypes []EdgeTypeDef `json:"edge_types"`
}

// NodeType returns the declared node type with the given name.
func (s *GraphSchema) NodeType(name string) (NodeTypeDef, bool) {
	for _, nt := range s.NodeTypes {
		if nt.Name == name {
			return nt, true
		}
	}
	return NodeTypeDef{}, false
}

// EdgeType returns the declared edge type with the given name.
func (s *GraphSchema) EdgeType(name string) (EdgeTypeDef, bool) {
	for _, et := range s.EdgeTypes {
		if et.Name == name {
			return et, true
		}
	}
	return EdgeTypeDef{}, false
}

// OutputModel derives the structural output model for seed-data items.
// Structural validation checks shape only; the domain validators enforce
// type membership, references, and property semantics.
func (s *GraphSchema) OutputModel() (OutputModel, error) {
	nodeTypes := make([]string, 0, len(s.NodeTypes))
	for _, nt := range s.NodeTypes {
		nodeTypes = append(nodeTypes, nt.Name)
	}
	edgeTypes := make([]string, 0, len(s.EdgeTypes))
	for _, et := range s.EdgeTypes {
		edgeTypes = append(edgeTypes, et.Name)
	}
	sort.Strings(nodeTypes)
	sort.Strings(edgeTypes)

	schema := map[string]any{
		"type":                 "object",
		"required":             []string{"nodes", "edges"},
		"additionalProperties": false,
		"properties": map[string]any{
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"temp_id", "type"},
					"properties": map[string]any{
						"temp_id":    map[string]any{"type": "string", "minLength": 1},
						"type":       map[string]any{"type": "string"},
						"title":      map[string]any{"type": "string"},
						"status":     map[string]any{"type": "string"},
						"properties": map[string]any{"type": "object"},
					},
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "from_temp_id", "to_temp_id"},
					"properties": map[string]any{
						"type":         map[string]any{"type": "string"},
						"from_temp_id": map[string]any{"type": "string", "minLength": 1},
						"to_temp_id":   map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return OutputModel{}, fmt.Errorf("encode seed schema: %w", err)
	}
	return OutputModel{Name: "seed_data", Schema: payload}, nil
}

// Canonical returns the schema with node types, edge types, properties,
// states, and enums in sorted order. Used before hashing so declaration
// order does not affect the hash.
func (s *GraphSchema) Canonical() *GraphSchema {
	out := &GraphSchema{
		NodeTypes: make([]NodeTypeDef, len(s.NodeTypes)),
		EdgeTypes: make([]EdgeTypeDef, len(s.EdgeTypes)),
	}
	copy(out.NodeTypes, s.NodeTypes)
	copy(out.EdgeTypes, s.EdgeTypes)
	for i := range out.NodeTypes {
		props := make([]PropertyDef, len(out.NodeTypes[i].Properties))
		copy(props, out.NodeTypes[i].Properties)
		sort.Slice(props, func(a, b int) bool { return props[a].Key < props[b].Key })
		for j := range props {
			enum := make([]string, len(props[j].Enum))
			copy(enum, props[j].Enum)
			sort.Strings(enum)
			props[j].Enum = enum
		}
		out.NodeTypes[i].Properties = props

		states := make([]string, len(out.NodeTypes[i].States))
		copy(states, out.NodeTypes[i].States)
		sort.Strings(states)
		out.NodeTypes[i].States = states
	}
	sort.Slice(out.NodeTypes, func(a, b int) bool { return out.NodeTypes[a].Name < out.NodeTypes[b].Name })
	sort.Slice(out.EdgeTypes, func(a, b int) bool {
		if out.EdgeTypes[a].Name != out.EdgeTypes[b].Name {
			return out.EdgeTypes[a].Name < out.EdgeTypes[b].Name
		}
		if out.EdgeTypes[a].From != out.EdgeTypes[b].From {
			return out.EdgeTypes[a].From < out.EdgeTypes[b].From
		}
		return out.EdgeTypes[a].To < out.EdgeTypes[b].To
	})
	return out
}

// Hash returns the stable hex-encoded hash of the canonical schema.
func (s *GraphSchema) Hash() (string, error) {
	payload, err := json.Marshal(s.Canonical())
	if err != nil {
		return "", fmt.Errorf("canonicalise graph schema: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
