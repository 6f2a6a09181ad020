// Package types defines the core data model shared by the rendering
// pipeline: diagram sources, classification results, backend capabilities,
// render requests and render results.
//
// Values in this package are plain data. A RenderResult is immutable once
// produced and safe to share across consumers; ownership of mutable state
// (cache entries, backend handles) lives with the packages that create it.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// BackendKind identifies a render execution strategy. It is a closed set:
// every value a classifier or registry produces is one of the constants
// below, and dispatch on it is exhaustive.
type BackendKind int

const (
	// BackendLocal renders through locally installed command-line tools.
	BackendLocal BackendKind = iota
	// BackendRemote renders through a remote HTTP rendering service.
	BackendRemote
	// BackendContainer renders through a containerized CLI pipeline.
	BackendContainer
)

// String returns the string representation of the backend kind.
func (k BackendKind) String() string {
	switch k {
	case BackendLocal:
		return "local"
	case BackendRemote:
		return "remote"
	case BackendContainer:
		return "container"
	default:
		return "unknown"
	}
}

// DiagramType names the grammar a backend must target, as distinct from the
// backend that executes it.
type DiagramType string

const (
	DiagramMermaid     DiagramType = "mermaid"
	DiagramPlantUML    DiagramType = "plantuml"
	DiagramC4PlantUML  DiagramType = "c4plantuml"
	DiagramGraphviz    DiagramType = "graphviz"
	DiagramStructurizr DiagramType = "structurizr"
)

// DiagramSource is one diagram file as supplied by the editing surface.
// It is read-only to the rendering core for the duration of a render.
type DiagramSource struct {
	Path      string
	Text      string
	Extension string
}

// ClassificationResult is the outcome of classifying a diagram source.
// Type may be empty when the extension pins the backend but the concrete
// grammar must be detected by the backend or chosen by the user.
type ClassificationResult struct {
	Backend BackendKind
	Type    DiagramType
}

// Resolved reports whether the classification carries a concrete diagram
// type.
func (c ClassificationResult) Resolved() bool {
	return c.Type != ""
}

// Capability describes what a backend can currently do. It is recomputed on
// demand; a probe result may be cached for a session but never across
// process restarts.
type Capability struct {
	Backend        BackendKind
	Available      bool
	SupportedTypes map[DiagramType]bool
	Diagnostic     string
}

// Supports reports whether the capability covers the given diagram type.
func (c Capability) Supports(t DiagramType) bool {
	return c.Available && c.SupportedTypes[t]
}

// OutputFormat is the artifact format a render produced.
type OutputFormat string

const (
	FormatSVG OutputFormat = "svg"
	FormatPNG OutputFormat = "png"
)

// ResultKind tags a RenderResult.
type ResultKind int

const (
	ResultSVG ResultKind = iota
	ResultPNG
	ResultError
)

// String returns the string representation of the result kind.
func (k ResultKind) String() string {
	switch k {
	case ResultSVG:
		return "svg"
	case ResultPNG:
		return "png"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// RenderRequest carries one unit of render work to a backend. Theme travels
// separately from the cache key: the cache is theme-insensitive unless a
// backend is theme-aware.
type RenderRequest struct {
	Content  string
	Type     DiagramType
	Theme    string
	CacheKey string
}

// RenderResult is the tagged outcome of a render: an SVG payload, a PNG
// payload, or an error with diagnostic text. Immutable once produced.
type RenderResult struct {
	Kind    ResultKind
	Payload []byte
	Message string
}

// SVGResult wraps an SVG payload.
func SVGResult(payload []byte) RenderResult {
	return RenderResult{Kind: ResultSVG, Payload: payload}
}

// PNGResult wraps a PNG payload.
func PNGResult(payload []byte) RenderResult {
	return RenderResult{Kind: ResultPNG, Payload: payload}
}

// ErrorResult wraps a failure with its diagnostic message.
func ErrorResult(message string) RenderResult {
	return RenderResult{Kind: ResultError, Message: message}
}

// IsError reports whether the result is a failure.
func (r RenderResult) IsError() bool {
	return r.Kind == ResultError
}

// Format maps the result kind to its output format. Only meaningful for
// non-error results.
func (r RenderResult) Format() OutputFormat {
	if r.Kind == ResultPNG {
		return FormatPNG
	}
	return FormatSVG
}

// CacheKey derives the content-addressed cache key for a source file. The
// path keeps renamed files from colliding; the content hash makes the key
// valid again when an external edit restores prior content.
func CacheKey(path, content string) string {
	sum := sha256.Sum256([]byte(content))
	return path + ":" + hex.EncodeToString(sum[:])
}
