package loader

import (
	"fmt"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/registry"
)

// Diagnostic represents a lint error or warning for a graph document.
type Diagnostic struct {
	Code     string `json:"code"`           // e.g. "SG-001"
	Severity string `json:"severity"`       // "error" or "warning"
	Message  string `json:"message"`        // human-readable description
	Path     string `json:"path,omitempty"` // JSON path to offending field
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// HasErrors returns true if any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning-severity diagnostics.
func Warnings(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Lint checks a graph document for structural problems:
//   - SG-001: edge endpoint references an unknown node (warning; the
//     executor resolves dangling references to "no successor")
//   - SG-002: duplicate node ID (error; ToGraph rejects these)
//   - SG-003: unknown node category (error)
//   - SG-004: orphan node, no edge touches it and it is not an Event
//     (warning)
//   - SG-005: two edges leave the same source port; only the first is ever
//     followed (warning)
//   - SG-006: condition branch port on a non-Condition source (warning)
//
// Registry-dependent checks require a handler registry and are performed
// by LintWithRegistry. Linting is an authoring-time concern: the executor
// never requires a clean report.
func Lint(doc *GraphDocument) []Diagnostic {
	var diags []Diagnostic

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	categories := make(map[string]scriptflow.NodeCategory, len(doc.Nodes))
	for i, node := range doc.Nodes {
		if nodeIDs[node.ID] {
			diags = append(diags, Diagnostic{
				Code:     "SG-002",
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate node ID %q", node.ID),
				Path:     fmt.Sprintf("nodes[%d].id", i),
			})
		}
		nodeIDs[node.ID] = true

		cat := scriptflow.ParseCategory(node.Type)
		categories[node.ID] = cat
		switch cat {
		case scriptflow.CategoryEvent, scriptflow.CategoryCondition, scriptflow.CategoryAction:
		default:
			diags = append(diags, Diagnostic{
				Code:     "SG-003",
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has unknown category %q", node.ID, node.Type),
				Path:     fmt.Sprintf("nodes[%d].type", i),
			})
		}
	}

	touched := make(map[string]bool, len(doc.Nodes))
	seenPorts := make(map[string]bool, len(doc.Edges))
	for i, edge := range doc.Edges {
		fromNode, fromPort := scriptflow.SplitPortRef(edge.From)
		toNode, _ := scriptflow.SplitPortRef(edge.To)

		for _, endpoint := range []struct {
			id, side string
		}{{fromNode, "from"}, {toNode, "to"}} {
			if !nodeIDs[endpoint.id] {
				diags = append(diags, Diagnostic{
					Code:     "SG-001",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("edge %s %s references unknown node %q", edge.ID, endpoint.side, endpoint.id),
					Path:     fmt.Sprintf("edges[%d].%s", i, endpoint.side),
				})
			}
		}
		touched[fromNode] = true
		touched[toNode] = true

		key := scriptflow.PortRef(fromNode, fromPort)
		if seenPorts[key] {
			diags = append(diags, Diagnostic{
				Code:     "SG-005",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("port %q has multiple outgoing edges; only the first is followed", key),
				Path:     fmt.Sprintf("edges[%d].from", i),
			})
		}
		seenPorts[key] = true

		if fromPort == scriptflow.PortTrue || fromPort == scriptflow.PortFalse {
			if cat, ok := categories[fromNode]; ok && cat != scriptflow.CategoryCondition {
				diags = append(diags, Diagnostic{
					Code:     "SG-006",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("port %q is a condition branch but node %q is %s", fromPort, fromNode, cat),
					Path:     fmt.Sprintf("edges[%d].from", i),
				})
			}
		}
	}

	for i, node := range doc.Nodes {
		if !touched[node.ID] && categories[node.ID] != scriptflow.CategoryEvent {
			diags = append(diags, Diagnostic{
				Code:     "SG-004",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q is not connected to any edge", node.ID),
				Path:     fmt.Sprintf("nodes[%d]", i),
			})
		}
	}

	return diags
}

// LintWithRegistry runs Lint and then checks every node kind against the
// handler registry:
//   - SG-007: no handler registered for (category, kind) (warning; the
//     executor logs and does not advance past such nodes)
func LintWithRegistry(doc *GraphDocument, reg *registry.Registry) []Diagnostic {
	diags := Lint(doc)
	for i, node := range doc.Nodes {
		cat := scriptflow.ParseCategory(node.Type)
		switch cat {
		case scriptflow.CategoryEvent, scriptflow.CategoryCondition, scriptflow.CategoryAction:
			if !reg.Has(cat, node.Kind) {
				diags = append(diags, Diagnostic{
					Code:     "SG-007",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("no %s handler registered for kind %q", cat, node.Kind),
					Path:     fmt.Sprintf("nodes[%d].kind", i),
				})
			}
		}
	}
	return diags
}
