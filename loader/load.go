// Package loader reads scriptflow graph documents in JSON or YAML form and
// builds executable graphs from them. Loading is deliberately permissive:
// structural problems such as dangling edges degrade to "no successor" at
// traversal time. The Lint pass reports them for authoring tools that want
// diagnostics.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emberforge/scriptflow"
)

// GraphDocument is the serializable shape of a behavior graph as produced
// by the authoring tool.
type GraphDocument struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Nodes     []NodeDoc      `json:"nodes" yaml:"nodes"`
	Edges     []EdgeDoc      `json:"edges" yaml:"edges"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// NodeDoc is a serializable node within a GraphDocument.
type NodeDoc struct {
	ID    string         `json:"id" yaml:"id"`
	Type  string         `json:"type" yaml:"type"` // Event | Condition | Action
	Kind  string         `json:"kind" yaml:"kind"`
	X     float64        `json:"x,omitempty" yaml:"x,omitempty"`
	Y     float64        `json:"y,omitempty" yaml:"y,omitempty"`
	Props map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// EdgeDoc is a serializable edge within a GraphDocument. Endpoints use
// composite "nodeId:port" addressing.
type EdgeDoc struct {
	ID   string `json:"id" yaml:"id"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Load reads and parses one graph document file. The format is chosen by
// extension: .yaml/.yml parse as YAML, everything else as JSON.
func Load(path string) (*GraphDocument, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses a graph document from memory. The path is only used for
// format detection and error messages.
func LoadBytes(data []byte, path string) (*GraphDocument, error) {
	var doc GraphDocument
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML graph %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON graph %s: %w", path, err)
		}
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &doc, nil
}

// LoadGraph reads a file and builds the executable graph in one step.
func LoadGraph(path string) (*scriptflow.Graph, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ToGraph(doc)
}

// ToGraph builds an executable graph from a document. Duplicate node IDs
// are the only fatal condition; everything else is the lint pass's
// business.
func ToGraph(doc *GraphDocument) (*scriptflow.Graph, error) {
	g := scriptflow.NewGraph(doc.ID, doc.Name)
	for k, v := range doc.Variables {
		g.Variables[k] = v
	}
	for _, nd := range doc.Nodes {
		node := &scriptflow.Node{
			ID:       nd.ID,
			Category: scriptflow.ParseCategory(nd.Type),
			Kind:     nd.Kind,
			Props:    nd.Props,
			X:        nd.X,
			Y:        nd.Y,
		}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("graph %s: %w", doc.ID, err)
		}
	}
	for _, ed := range doc.Edges {
		g.AddEdge(scriptflow.Edge{ID: ed.ID, From: ed.From, To: ed.To})
	}
	return g, nil
}

// isYAML returns true if the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
