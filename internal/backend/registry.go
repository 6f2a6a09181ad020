package backend

import (
	"context"
	"fmt"
	"sync"

	"diaview/internal/config"
	"diaview/internal/logging"
	"diaview/internal/ratelimit"
	"diaview/internal/sanitize"
	"diaview/internal/types"
)

// Registry owns the backend instances of one session and dispatches render
// requests to them. Probe results are cached for the lifetime of the
// registry, never across sessions; reconfiguration means building a new
// registry.
type Registry struct {
	backends  map[types.BackendKind]Backend
	sanitizer *sanitize.Sanitizer
	logger    logging.Logger

	probeMutex sync.Mutex
	probes     map[types.BackendKind]types.Capability
}

// NewRegistry constructs the three backends from resolved configuration.
func NewRegistry(cfg *config.Config, sanitizer *sanitize.Sanitizer, logger logging.Logger) *Registry {
	limiter := ratelimit.New(cfg.Remote.RateLimit())

	backends := map[types.BackendKind]Backend{
		types.BackendLocal:     NewLocalBackend(cfg.Local, logger),
		types.BackendRemote:    NewRemoteBackend(cfg.Remote, limiter, logger),
		types.BackendContainer: NewContainerBackend(cfg.Container, logger),
	}

	return &Registry{
		backends:  backends,
		sanitizer: sanitizer,
		logger:    logger.WithComponent("registry"),
		probes:    make(map[types.BackendKind]types.Capability),
	}
}

// NewRegistryWithBackends wires explicit backend instances. Used by tests
// and by callers that need to substitute one execution strategy.
func NewRegistryWithBackends(sanitizer *sanitize.Sanitizer, logger logging.Logger, backends ...Backend) *Registry {
	m := make(map[types.BackendKind]Backend, len(backends))
	for _, b := range backends {
		m[b.Kind()] = b
	}
	return &Registry{
		backends:  m,
		sanitizer: sanitizer,
		logger:    logger.WithComponent("registry"),
		probes:    make(map[types.BackendKind]types.Capability),
	}
}

// Probe returns the capability of one backend, cached per session.
func (r *Registry) Probe(ctx context.Context, kind types.BackendKind) types.Capability {
	r.probeMutex.Lock()
	defer r.probeMutex.Unlock()

	if capability, cached := r.probes[kind]; cached {
		return capability
	}

	b, exists := r.backends[kind]
	if !exists {
		return types.Capability{Backend: kind, Diagnostic: "backend not configured"}
	}

	capability := b.Probe(ctx)
	r.probes[kind] = capability

	r.logger.Debug(ctx, "probed backend",
		"backend", kind.String(),
		"available", capability.Available,
		"diagnostic", capability.Diagnostic)

	return capability
}

// ProbeAll probes every configured backend.
func (r *Registry) ProbeAll(ctx context.Context) []types.Capability {
	kinds := []types.BackendKind{types.BackendLocal, types.BackendRemote, types.BackendContainer}
	capabilities := make([]types.Capability, 0, len(kinds))
	for _, kind := range kinds {
		if _, exists := r.backends[kind]; exists {
			capabilities = append(capabilities, r.Probe(ctx, kind))
		}
	}
	return capabilities
}

// Render dispatches a request to the backend the classification named.
//
// An unavailable backend yields a deterministic error result; no other
// backend kind is tried. SVG payloads are sanitized before they are
// returned, so no caller ever sees unsanitized markup.
func (r *Registry) Render(ctx context.Context, kind types.BackendKind, req types.RenderRequest) types.RenderResult {
	b, exists := r.backends[kind]
	if !exists {
		return types.ErrorResult(fmt.Sprintf("backend %s is not configured", kind))
	}

	capability := r.Probe(ctx, kind)
	if !capability.Supports(req.Type) {
		msg := fmt.Sprintf("backend %s cannot render %s diagrams", kind, req.Type)
		if capability.Diagnostic != "" {
			msg += ": " + capability.Diagnostic
		}
		r.logger.Warn(ctx, nil, "backend unavailable for request",
			"backend", kind.String(), "type", string(req.Type))
		return types.ErrorResult(msg)
	}

	result := b.Render(ctx, req)

	if result.Kind == types.ResultSVG {
		result.Payload = []byte(r.sanitizer.Sanitize(ctx, string(result.Payload)))
	}

	return result
}

// Close disposes every backend instance held for the session.
func (r *Registry) Close() error {
	var firstErr error
	for kind, b := range r.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s backend: %w", kind, err)
		}
	}
	return firstErr
}
