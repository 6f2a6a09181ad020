package cmd

import (
	"diaview/internal/backend"
	"diaview/internal/classify"
	"diaview/internal/config"
	"diaview/internal/logging"
	"diaview/internal/sanitize"
	"diaview/internal/types"
)

// session bundles the per-invocation object graph. Components are
// constructor-injected; there is no implicit global instance, and
// reconfiguration means building a fresh session.
type session struct {
	cfg        *config.Config
	logger     logging.Logger
	classifier *classify.Classifier
	registry   *backend.Registry
}

// newSession resolves configuration and wires the core components.
func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	sanitizer := sanitize.New(logger)

	return &session{
		cfg:        cfg,
		logger:     logger,
		classifier: classify.New(structurizrBackend(cfg)),
		registry:   backend.NewRegistry(cfg, sanitizer, logger),
	}, nil
}

// structurizrBackend maps the configured Structurizr backend choice onto
// its backend kind.
func structurizrBackend(cfg *config.Config) types.BackendKind {
	if cfg.Backends.Structurizr == "container" {
		return types.BackendContainer
	}
	return types.BackendRemote
}
