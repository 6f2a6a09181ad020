package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaview/internal/logging"
	"diaview/internal/sanitize"
	"diaview/internal/types"
)

// stubBackend is a scripted backend for registry tests.
type stubBackend struct {
	kind       types.BackendKind
	capability types.Capability
	result     types.RenderResult
	probes     int
	renders    int
	closed     bool
}

func (s *stubBackend) Kind() types.BackendKind { return s.kind }

func (s *stubBackend) Probe(ctx context.Context) types.Capability {
	s.probes++
	return s.capability
}

func (s *stubBackend) Render(ctx context.Context, req types.RenderRequest) types.RenderResult {
	s.renders++
	return s.result
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

func availableStub(kind types.BackendKind, diagramTypes ...types.DiagramType) *stubBackend {
	return &stubBackend{
		kind: kind,
		capability: types.Capability{
			Backend:        kind,
			Available:      true,
			SupportedTypes: typeSet(diagramTypes...),
		},
		result: types.SVGResult([]byte("<svg>stub</svg>")),
	}
}

func newTestRegistry(backends ...Backend) *Registry {
	return NewRegistryWithBackends(
		sanitize.New(logging.NewNopLogger()),
		logging.NewNopLogger(),
		backends...)
}

func TestRegistryDispatch(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	remote := availableStub(types.BackendRemote, types.DiagramGraphviz)
	r := newTestRegistry(local, remote)

	result := r.Render(context.Background(), types.BackendLocal, types.RenderRequest{
		Content: "graph TD\nA-->B",
		Type:    types.DiagramMermaid,
	})

	require.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, 1, local.renders)
	assert.Equal(t, 0, remote.renders)
}

func TestRegistryUnconfiguredBackend(t *testing.T) {
	r := newTestRegistry(availableStub(types.BackendLocal, types.DiagramMermaid))

	result := r.Render(context.Background(), types.BackendContainer, types.RenderRequest{
		Content: "workspace {}",
		Type:    types.DiagramStructurizr,
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Message, "not configured")
}

func TestRegistryUnavailableBackendNoFallback(t *testing.T) {
	local := &stubBackend{
		kind: types.BackendLocal,
		capability: types.Capability{
			Backend:    types.BackendLocal,
			Available:  false,
			Diagnostic: "mermaid CLI: not found",
		},
	}
	// A remote backend that could render the type exists, but dispatch
	// never reroutes.
	remote := availableStub(types.BackendRemote, types.DiagramMermaid)
	r := newTestRegistry(local, remote)

	result := r.Render(context.Background(), types.BackendLocal, types.RenderRequest{
		Content: "graph TD\nA-->B",
		Type:    types.DiagramMermaid,
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Message, "cannot render mermaid")
	assert.Contains(t, result.Message, "mermaid CLI: not found")
	assert.Equal(t, 0, local.renders)
	assert.Equal(t, 0, remote.renders)
}

func TestRegistryUnsupportedType(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	r := newTestRegistry(local)

	result := r.Render(context.Background(), types.BackendLocal, types.RenderRequest{
		Content: "digraph {}",
		Type:    types.DiagramGraphviz,
	})

	require.True(t, result.IsError())
	assert.Equal(t, 0, local.renders)
}

func TestRegistrySanitizesSVGOutput(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	local.result = types.SVGResult([]byte(`<svg onload="evil()"><script>x()</script><rect/></svg>`))
	r := newTestRegistry(local)

	result := r.Render(context.Background(), types.BackendLocal, types.RenderRequest{
		Content: "graph TD\nA-->B",
		Type:    types.DiagramMermaid,
	})

	require.Equal(t, types.ResultSVG, result.Kind)
	assert.NotContains(t, string(result.Payload), "script")
	assert.NotContains(t, string(result.Payload), "onload")
	assert.Contains(t, string(result.Payload), "rect")
}

func TestRegistryDoesNotSanitizePNG(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	remote := availableStub(types.BackendRemote, types.DiagramStructurizr)
	remote.result = types.PNGResult(png)
	r := newTestRegistry(remote)

	result := r.Render(context.Background(), types.BackendRemote, types.RenderRequest{
		Content: "workspace {}",
		Type:    types.DiagramStructurizr,
	})

	require.Equal(t, types.ResultPNG, result.Kind)
	assert.Equal(t, png, result.Payload)
}

func TestRegistryProbeCachedPerSession(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	r := newTestRegistry(local)

	req := types.RenderRequest{Content: "graph TD\nA-->B", Type: types.DiagramMermaid}
	r.Render(context.Background(), types.BackendLocal, req)
	r.Render(context.Background(), types.BackendLocal, req)
	r.Probe(context.Background(), types.BackendLocal)

	assert.Equal(t, 1, local.probes, "probe results are cached for the session")
}

func TestRegistryProbeAll(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	remote := availableStub(types.BackendRemote, types.DiagramGraphviz)
	r := newTestRegistry(local, remote)

	capabilities := r.ProbeAll(context.Background())
	assert.Len(t, capabilities, 2)
}

func TestRegistryClose(t *testing.T) {
	local := availableStub(types.BackendLocal, types.DiagramMermaid)
	remote := availableStub(types.BackendRemote, types.DiagramGraphviz)
	r := newTestRegistry(local, remote)

	require.NoError(t, r.Close())
	assert.True(t, local.closed)
	assert.True(t, remote.closed)
}
