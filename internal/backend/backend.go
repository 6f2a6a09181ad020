// Package backend implements the render execution strategies and the
// registry that dispatches to them.
//
// Three backends hide three execution models behind one contract: a local
// subprocess toolchain, a remote HTTP rendering service, and a containerized
// CLI pipeline. The registry selects the backend named by the
// classification result; if that backend cannot serve the required diagram
// type the request fails deterministically instead of silently trying
// another backend kind. Fallback across output formats (SVG to PNG) is
// allowed within a backend; fallback across backend kinds is not.
package backend

import (
	"context"

	"diaview/internal/types"
)

// Backend is a render execution strategy.
//
// Probe is side-effect-free apart from the external process or network
// calls it needs to answer. Render reports every failure as a
// RenderResult with kind error; it does not panic across this boundary.
type Backend interface {
	// Kind identifies the backend.
	Kind() types.BackendKind
	// Probe reports current availability and supported diagram types.
	Probe(ctx context.Context) types.Capability
	// Render produces an artifact for the request.
	Render(ctx context.Context, req types.RenderRequest) types.RenderResult
	// Close releases resources held for the session.
	Close() error
}

// typeSet builds a supported-types set.
func typeSet(diagramTypes ...types.DiagramType) map[types.DiagramType]bool {
	set := make(map[types.DiagramType]bool, len(diagramTypes))
	for _, t := range diagramTypes {
		set[t] = true
	}
	return set
}
