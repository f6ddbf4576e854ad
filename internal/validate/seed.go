package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/haasonsaas/graphloom/pkg/models"
)

func nodePath(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("nodes[%d]", i)
	}
	return fmt.Sprintf("nodes[%d].%s", i, field)
}

func edgePath(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("edges[%d]", i)
	}
	return fmt.Sprintf("edges[%d].%s", i, field)
}

func errorIssue(path, message, code string, ctx map[string]any) models.CustomValidationError {
	return models.CustomValidationError{
		Path:     path,
		Message:  message,
		Code:     code,
		Context:  ctx,
		Severity: models.SeverityError,
	}
}

func warningIssue(path, message, code string, ctx map[string]any) models.CustomValidationError {
	return models.CustomValidationError{
		Path:     path,
		Message:  message,
		Code:     code,
		Context:  ctx,
		Severity: models.SeverityWarning,
	}
}

func checkDuplicateTempIDs(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	seen := make(map[string]int, len(data.Nodes))
	for i, node := range data.Nodes {
		if first, dup := seen[node.TempID]; dup {
			issues = append(issues, errorIssue(
				nodePath(i, "temp_id"),
				fmt.Sprintf("duplicate temp_id %q (first used by nodes[%d])", node.TempID, first),
				"duplicate_temp_id",
				map[string]any{"temp_id": node.TempID, "first_index": first},
			))
			continue
		}
		seen[node.TempID] = i
	}
	return issues
}

func checkSelfLoopEdges(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, edge := range data.Edges {
		if edge.FromTempID == edge.ToTempID {
			issues = append(issues, errorIssue(
				edgePath(i, ""),
				fmt.Sprintf("edge %q connects %q to itself", edge.Type, edge.FromTempID),
				"self_loop_edge",
				map[string]any{"temp_id": edge.FromTempID},
			))
		}
	}
	return issues
}

func checkDuplicateEdges(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	seen := make(map[string]int, len(data.Edges))
	for i, edge := range data.Edges {
		key := edge.Type + "\x00" + edge.FromTempID + "\x00" + edge.ToTempID
		if first, dup := seen[key]; dup {
			issues = append(issues, errorIssue(
				edgePath(i, ""),
				fmt.Sprintf("duplicate edge %q from %q to %q (first at edges[%d])", edge.Type, edge.FromTempID, edge.ToTempID, first),
				"duplicate_edge",
				map[string]any{"type": edge.Type, "from_temp_id": edge.FromTempID, "to_temp_id": edge.ToTempID},
			))
			continue
		}
		seen[key] = i
	}
	return issues
}

func checkNodeTypes(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	known := make([]string, 0, len(schema.NodeTypes))
	for _, nt := range schema.NodeTypes {
		known = append(known, nt.Name)
	}

	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		if _, ok := schema.NodeType(node.Type); !ok {
			issues = append(issues, errorIssue(
				nodePath(i, "type"),
				fmt.Sprintf("unknown node type %q", node.Type),
				"invalid_node_type",
				map[string]any{"type": node.Type, "known_types": known},
			))
		}
	}
	return issues
}

func checkEdgeTypes(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	known := make([]string, 0, len(schema.EdgeTypes))
	for _, et := range schema.EdgeTypes {
		known = append(known, et.Name)
	}

	var issues []models.CustomValidationError
	for i, edge := range data.Edges {
		if _, ok := schema.EdgeType(edge.Type); !ok {
			issues = append(issues, errorIssue(
				edgePath(i, "type"),
				fmt.Sprintf("unknown edge type %q", edge.Type),
				"invalid_edge_type",
				map[string]any{"type": edge.Type, "known_types": known},
			))
		}
	}
	return issues
}

func checkTempIDReferences(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	ids := make(map[string]struct{}, len(data.Nodes))
	candidates := make([]string, 0, len(data.Nodes))
	for _, node := range data.Nodes {
		if _, dup := ids[node.TempID]; !dup {
			ids[node.TempID] = struct{}{}
			candidates = append(candidates, node.TempID)
		}
	}

	var issues []models.CustomValidationError
	report := func(i int, field, id string) {
		ctx := map[string]any{"temp_id": id}
		message := fmt.Sprintf("referenced temp_id %q does not exist", id)
		if suggestion, ok := suggest(id, candidates); ok {
			ctx["suggested_correction"] = suggestion
			message = fmt.Sprintf("referenced temp_id %q does not exist (did you mean %q?)", id, suggestion)
		}
		issues = append(issues, errorIssue(edgePath(i, field), message, "invalid_temp_id_reference", ctx))
	}

	for i, edge := range data.Edges {
		if _, ok := ids[edge.FromTempID]; !ok {
			report(i, "from_temp_id", edge.FromTempID)
		}
		if _, ok := ids[edge.ToTempID]; !ok {
			report(i, "to_temp_id", edge.ToTempID)
		}
	}
	return issues
}

func checkEdgeConnectivity(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	typesByID := make(map[string]string, len(data.Nodes))
	for _, node := range data.Nodes {
		typesByID[node.TempID] = node.Type
	}

	var issues []models.CustomValidationError
	for i, edge := range data.Edges {
		decl, ok := schema.EdgeType(edge.Type)
		if !ok {
			continue
		}
		fromType, fromOK := typesByID[edge.FromTempID]
		toType, toOK := typesByID[edge.ToTempID]
		if !fromOK || !toOK {
			continue
		}
		if fromType != decl.From || toType != decl.To {
			issues = append(issues, errorIssue(
				edgePath(i, ""),
				fmt.Sprintf("edge %q requires %s -> %s, got %s -> %s", edge.Type, decl.From, decl.To, fromType, toType),
				"invalid_edge_connectivity",
				map[string]any{
					"type":          edge.Type,
					"expected_from": decl.From,
					"expected_to":   decl.To,
					"actual_from":   fromType,
					"actual_to":     toType,
				},
			))
		}
	}
	return issues
}

func checkRequiredFields(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if !prop.Required {
				continue
			}
			value, present := node.Properties[prop.Key]
			if !present || value == nil {
				issues = append(issues, errorIssue(
					nodePath(i, "properties."+prop.Key),
					fmt.Sprintf("required field %q is missing", prop.Key),
					"missing_required_field",
					map[string]any{"field": prop.Key, "node_type": node.Type},
				))
			}
		}
	}
	return issues
}

func checkUnknownPropertyKeys(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		known := make([]string, 0, len(decl.Properties))
		for _, prop := range decl.Properties {
			known = append(known, prop.Key)
		}
		for key := range node.Properties {
			if _, declared := decl.Property(key); !declared {
				issues = append(issues, errorIssue(
					nodePath(i, "properties."+key),
					fmt.Sprintf("property %q is not declared on node type %q", key, node.Type),
					"unknown_property_key",
					map[string]any{"field": key, "node_type": node.Type, "known_keys": known},
				))
			}
		}
	}
	return issues
}

func checkEnumValues(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if prop.Kind != models.PropertyEnum {
				continue
			}
			raw, present := node.Properties[prop.Key]
			if !present || raw == nil {
				continue
			}
			value, isString := raw.(string)
			if isString && contains(prop.Enum, value) {
				continue
			}
			issues = append(issues, errorIssue(
				nodePath(i, "properties."+prop.Key),
				fmt.Sprintf("value %v is not allowed for enum field %q", raw, prop.Key),
				"invalid_enum_value",
				map[string]any{"field": prop.Key, "value": raw, "allowed": prop.Enum},
			))
		}
	}
	return issues
}

func checkStatus(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		if node.Status == "" {
			continue
		}
		if len(decl.States) == 0 {
			issues = append(issues, errorIssue(
				nodePath(i, "status"),
				fmt.Sprintf("node type %q declares no states; status must be omitted", node.Type),
				"invalid_status",
				map[string]any{"status": node.Status, "node_type": node.Type},
			))
			continue
		}
		if !contains(decl.States, node.Status) {
			issues = append(issues, errorIssue(
				nodePath(i, "status"),
				fmt.Sprintf("status %q is not allowed for node type %q", node.Status, node.Type),
				"invalid_status",
				map[string]any{"status": node.Status, "node_type": node.Type, "allowed": decl.States},
			))
		}
	}
	return issues
}

// datetimeLayouts are the accepted ISO-8601 shapes, trailing Z included
// via RFC3339.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func checkDatetimes(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if prop.Kind != models.PropertyDatetime {
				continue
			}
			raw, present := node.Properties[prop.Key]
			if !present || raw == nil {
				continue
			}
			if value, isString := raw.(string); isString && parseDatetime(value) {
				continue
			}
			issues = append(issues, errorIssue(
				nodePath(i, "properties."+prop.Key),
				fmt.Sprintf("value %v is not a valid ISO-8601 datetime", raw),
				"invalid_datetime",
				map[string]any{"field": prop.Key, "value": raw},
			))
		}
	}
	return issues
}

func parseDatetime(value string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func checkNumbers(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if prop.Kind != models.PropertyNumber && prop.Kind != models.PropertyInteger {
				continue
			}
			raw, present := node.Properties[prop.Key]
			if !present || raw == nil {
				continue
			}
			value, isNumber := raw.(float64)
			valid := isNumber && !math.IsNaN(value) && !math.IsInf(value, 0)
			if valid && prop.Kind == models.PropertyInteger {
				valid = value == math.Trunc(value)
			}
			if valid {
				continue
			}
			issues = append(issues, errorIssue(
				nodePath(i, "properties."+prop.Key),
				fmt.Sprintf("value %v is not a valid %s", raw, prop.Kind),
				"invalid_number",
				map[string]any{"field": prop.Key, "value": raw, "kind": string(prop.Kind)},
			))
		}
	}
	return issues
}

func checkArrays(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if prop.Kind != models.PropertyArray {
				continue
			}
			raw, present := node.Properties[prop.Key]
			if !present || raw == nil {
				continue
			}
			if _, isArray := raw.([]any); isArray {
				continue
			}
			issues = append(issues, errorIssue(
				nodePath(i, "properties."+prop.Key),
				fmt.Sprintf("field %q must hold an array", prop.Key),
				"invalid_array",
				map[string]any{"field": prop.Key, "value": raw},
			))
		}
	}
	return issues
}

func checkUniqueValues(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	var issues []models.CustomValidationError
	// (node type, field) -> rendered value -> first node index
	seen := make(map[string]map[string]int)
	for i, node := range data.Nodes {
		decl, ok := schema.NodeType(node.Type)
		if !ok {
			continue
		}
		for _, prop := range decl.Properties {
			if !prop.Unique {
				continue
			}
			raw, present := node.Properties[prop.Key]
			if !present || raw == nil {
				continue
			}
			scope := node.Type + "\x00" + prop.Key
			if seen[scope] == nil {
				seen[scope] = make(map[string]int)
			}
			rendered := fmt.Sprintf("%v", raw)
			if first, dup := seen[scope][rendered]; dup {
				issues = append(issues, errorIssue(
					nodePath(i, "properties."+prop.Key),
					fmt.Sprintf("value %v for unique field %q is already used by nodes[%d]", raw, prop.Key, first),
					"duplicate_unique_value",
					map[string]any{"field": prop.Key, "value": raw, "first_index": first},
				))
				continue
			}
			seen[scope][rendered] = i
		}
	}
	return issues
}

func warnEmptySeedData(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	if len(data.Nodes) > 0 || len(data.Edges) > 0 {
		return nil
	}
	return []models.CustomValidationError{warningIssue(
		"$", "seed data contains no nodes or edges", "empty_seed_data", nil,
	)}
}

func warnOrphanNodes(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	if len(data.Nodes) < 2 {
		return nil
	}
	connected := make(map[string]struct{}, len(data.Edges)*2)
	for _, edge := range data.Edges {
		connected[edge.FromTempID] = struct{}{}
		connected[edge.ToTempID] = struct{}{}
	}

	var issues []models.CustomValidationError
	for i, node := range data.Nodes {
		if _, ok := connected[node.TempID]; !ok {
			issues = append(issues, warningIssue(
				nodePath(i, ""),
				fmt.Sprintf("node %q has no edges", node.TempID),
				"orphan_node",
				map[string]any{"temp_id": node.TempID},
			))
		}
	}
	return issues
}

func warnLowEdgeDensity(data *models.SeedData, _ *models.GraphSchema) []models.CustomValidationError {
	if len(data.Nodes) < 2 {
		return nil
	}
	if float64(len(data.Edges)) >= 0.3*float64(len(data.Nodes)) {
		return nil
	}
	return []models.CustomValidationError{warningIssue(
		"$",
		fmt.Sprintf("graph is sparsely connected: %d edges for %d nodes", len(data.Edges), len(data.Nodes)),
		"low_edge_density",
		map[string]any{"node_count": len(data.Nodes), "edge_count": len(data.Edges)},
	)}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
