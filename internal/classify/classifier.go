// Package classify resolves diagram source files to a (backend, diagram
// type) pair. Classification is a two-stage process: a static extension
// table first, then an ordered list of content-sniffing rules over the
// trimmed source text. Classification never fails with an error; an input
// no rule matches degrades to an unresolved result the caller must settle
// interactively.
package classify

import (
	"strings"

	"diaview/internal/types"
)

// extensionEntry is one row of the static extension table.
type extensionEntry struct {
	backend types.BackendKind
	diagram types.DiagramType
}

// extensionTable maps file extensions to their backend and diagram type.
// Immutable process-wide.
var extensionTable = map[string]extensionEntry{
	".mmd":      {types.BackendLocal, types.DiagramMermaid},
	".mermaid":  {types.BackendLocal, types.DiagramMermaid},
	".puml":     {types.BackendLocal, types.DiagramPlantUML},
	".plantuml": {types.BackendLocal, types.DiagramPlantUML},
	".iuml":     {types.BackendLocal, types.DiagramPlantUML},
	".c4puml":   {types.BackendLocal, types.DiagramC4PlantUML},
	".dot":      {types.BackendRemote, types.DiagramGraphviz},
	".gv":       {types.BackendRemote, types.DiagramGraphviz},
	".dsl":      {types.BackendRemote, types.DiagramStructurizr},
}

// mermaidKeywords are the leading tokens that identify Mermaid source when
// no extension matched. Direction-qualified "graph" headers are handled by
// a dedicated rule so they are matched as whole tokens.
var mermaidKeywords = []string{
	"flowchart",
	"sequenceDiagram",
	"classDiagram",
	"stateDiagram",
	"erDiagram",
	"journey",
	"gantt",
	"pie",
	"mindmap",
	"timeline",
	"gitGraph",
	"quadrantChart",
	"requirementDiagram",
}

// mermaidGraphDirections are the direction qualifiers of a Mermaid "graph"
// header.
var mermaidGraphDirections = []string{"TB", "BT", "RL", "LR", "TD"}

// sniffRule is one ordered content-sniffing rule. First match wins.
type sniffRule struct {
	name  string
	match func(trimmed string) bool
	entry extensionEntry
}

// Classifier resolves sources to backends and diagram types. The zero
// value is not usable; construct with New.
type Classifier struct {
	rules []sniffRule
	// structurizrBackend is the configured backend for Structurizr DSL,
	// which both the remote service and the container pipeline can render.
	structurizrBackend types.BackendKind
}

// New creates a classifier. structurizrBackend selects which backend serves
// Structurizr DSL sources.
func New(structurizrBackend types.BackendKind) *Classifier {
	c := &Classifier{structurizrBackend: structurizrBackend}

	// Rule order matters. GraphViz's bare "graph" token would otherwise
	// collide with Mermaid's "graph" keyword, so GraphViz claims it only
	// when a "{" follows; the Mermaid rule requires a direction qualifier.
	c.rules = []sniffRule{
		{
			name: "structurizr",
			match: func(s string) bool {
				return strings.HasPrefix(s, "workspace")
			},
			entry: extensionEntry{structurizrBackend, types.DiagramStructurizr},
		},
		{
			name: "plantuml",
			match: func(s string) bool {
				return strings.HasPrefix(s, "@start")
			},
			entry: extensionEntry{types.BackendLocal, types.DiagramPlantUML},
		},
		{
			name: "graphviz",
			match: func(s string) bool {
				if strings.HasPrefix(s, "digraph") {
					return true
				}
				// A bare "graph" is GraphViz only when its header line
				// opens a block; a direction qualifier always means
				// Mermaid regardless of later braces.
				if rest, ok := strings.CutPrefix(s, "graph"); ok {
					line := rest
					if i := strings.IndexByte(line, '\n'); i >= 0 {
						line = line[:i]
					}
					header := strings.TrimLeft(line, " \t")
					for _, dir := range mermaidGraphDirections {
						if hasToken(header, dir) {
							return false
						}
					}
					return strings.Contains(line, "{")
				}
				return false
			},
			entry: extensionEntry{types.BackendRemote, types.DiagramGraphviz},
		},
		{
			name:  "mermaid",
			match: matchMermaid,
			entry: extensionEntry{types.BackendLocal, types.DiagramMermaid},
		},
	}

	return c
}

// matchMermaid reports whether the trimmed source starts with a Mermaid
// keyword or a direction-qualified graph header.
func matchMermaid(s string) bool {
	for _, kw := range mermaidKeywords {
		if hasToken(s, kw) {
			return true
		}
	}

	if rest, ok := strings.CutPrefix(s, "graph"); ok {
		rest = strings.TrimLeft(rest, " \t")
		for _, dir := range mermaidGraphDirections {
			if hasToken(rest, dir) {
				return true
			}
		}
	}

	return false
}

// hasToken reports whether s starts with token followed by a boundary.
func hasToken(s, token string) bool {
	if !strings.HasPrefix(s, token) {
		return false
	}
	if len(s) == len(token) {
		return true
	}
	next := s[len(token)]
	return next == ' ' || next == '\t' || next == '\n' || next == '\r' || next == ';'
}

// Classify resolves a source file to its backend and diagram type.
//
// The extension table is the fast path. When the extension is unknown the
// content-sniffing rules run in order against the trimmed text. When
// nothing matches, ok is false and the result is unresolved; the caller
// decides how to settle it (interactively in the preview flow). Classify
// never returns an error.
func (c *Classifier) Classify(path, text string) (types.ClassificationResult, bool) {
	ext := strings.ToLower(extension(path))
	if entry, found := extensionTable[ext]; found {
		result := types.ClassificationResult{Backend: entry.backend, Type: entry.diagram}
		if entry.diagram == types.DiagramStructurizr {
			result.Backend = c.structurizrBackend
		}
		return result, true
	}

	trimmed := strings.TrimSpace(text)
	for _, rule := range c.rules {
		if rule.match(trimmed) {
			return types.ClassificationResult{
				Backend: rule.entry.backend,
				Type:    rule.entry.diagram,
			}, true
		}
	}

	return types.ClassificationResult{}, false
}

// KnownExtensions returns the extensions the static table covers.
func KnownExtensions() []string {
	exts := make([]string, 0, len(extensionTable))
	for ext := range extensionTable {
		exts = append(exts, ext)
	}
	return exts
}

// IsDiagramFile reports whether the path carries a known diagram extension.
func IsDiagramFile(path string) bool {
	_, found := extensionTable[strings.ToLower(extension(path))]
	return found
}

// extension returns the final dot-suffix of the path, dot included.
func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
