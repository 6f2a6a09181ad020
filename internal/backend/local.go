package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"diaview/internal/config"
	"diaview/internal/logging"
	"diaview/internal/types"
)

// LocalBackend renders through locally installed command-line tools: a
// diagram-rendering archive invoked via an interpreter (PlantUML and its C4
// dialect) and a separate CLI for the Mermaid family.
//
// Availability is per tool: either tool alone unlocks its diagram types, so
// a machine with only the archive installed still renders two of the three
// families.
type LocalBackend struct {
	cfg    config.LocalConfig
	logger logging.Logger

	// scratchMutex guards the lazily created scratch directory; renders
	// from the export pool and the preview controller overlap.
	scratchMutex sync.Mutex
	scratch      string
}

// NewLocalBackend creates the local-process backend.
func NewLocalBackend(cfg config.LocalConfig, logger logging.Logger) *LocalBackend {
	return &LocalBackend{
		cfg:    cfg,
		logger: logger.WithComponent("backend_local"),
	}
}

// Kind identifies the backend.
func (b *LocalBackend) Kind() types.BackendKind {
	return types.BackendLocal
}

// Probe checks each tool independently and reports the union of whatever is
// reachable.
func (b *LocalBackend) Probe(ctx context.Context) types.Capability {
	capability := types.Capability{
		Backend:        types.BackendLocal,
		SupportedTypes: map[types.DiagramType]bool{},
	}

	var missing []string

	if err := b.probeArchive(); err != nil {
		missing = append(missing, err.Error())
	} else {
		capability.SupportedTypes[types.DiagramPlantUML] = true
		capability.SupportedTypes[types.DiagramC4PlantUML] = true
	}

	if err := probeTool(b.cfg.CLIPath); err != nil {
		missing = append(missing, fmt.Sprintf("mermaid CLI: %v", err))
	} else {
		capability.SupportedTypes[types.DiagramMermaid] = true
	}

	capability.Available = len(capability.SupportedTypes) > 0
	if len(missing) > 0 {
		capability.Diagnostic = strings.Join(missing, "; ")
	}

	return capability
}

// probeArchive verifies the interpreter and the rendering archive are both
// reachable; the archive is useless without its interpreter.
func (b *LocalBackend) probeArchive() error {
	if err := probeTool(b.cfg.InterpreterPath); err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	if _, err := os.Stat(b.cfg.ArchivePath); err != nil {
		return fmt.Errorf("archive %s: %w", b.cfg.ArchivePath, err)
	}
	return nil
}

// probeTool resolves a tool path: bare names via PATH, explicit paths via
// the filesystem.
func probeTool(path string) error {
	if strings.ContainsRune(path, os.PathSeparator) {
		_, err := os.Stat(path)
		return err
	}
	_, err := exec.LookPath(path)
	return err
}

// Render writes the source to a scratch file, invokes the matching tool as
// a subprocess, and reads the output file it produces. Scratch files are
// removed regardless of success or failure.
func (b *LocalBackend) Render(ctx context.Context, req types.RenderRequest) types.RenderResult {
	switch req.Type {
	case types.DiagramPlantUML, types.DiagramC4PlantUML:
		return b.renderArchive(ctx, req)
	case types.DiagramMermaid:
		return b.renderCLI(ctx, req)
	default:
		return types.ErrorResult(fmt.Sprintf("local backend cannot render %s diagrams", req.Type))
	}
}

// renderArchive runs {interpreter} -jar {archive} -tsvg {scratch}, which
// writes {scratch basename}.svg beside the input.
func (b *LocalBackend) renderArchive(ctx context.Context, req types.RenderRequest) types.RenderResult {
	input, err := b.writeScratch(req.Content, ".puml")
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("writing scratch file: %v", err))
	}
	output := strings.TrimSuffix(input, ".puml") + ".svg"
	defer func() {
		os.Remove(input)
		os.Remove(output)
	}()

	cmd := exec.CommandContext(ctx, b.cfg.InterpreterPath, "-jar", b.cfg.ArchivePath, "-tsvg", input)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	payload, readErr := os.ReadFile(output)
	if readErr != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" && runErr != nil {
			diag = runErr.Error()
		}
		b.logger.Warn(ctx, runErr, "archive render produced no output", "input", input)
		return types.ErrorResult(fmt.Sprintf("plantuml render failed: %s", diag))
	}

	// The archive exits non-zero on syntax errors but still emits an SVG
	// describing them; the diagnostic is in the artifact, so the artifact
	// wins.
	return types.SVGResult(payload)
}

// renderCLI runs {cli} -i {scratch} -o {scratch}.svg.
func (b *LocalBackend) renderCLI(ctx context.Context, req types.RenderRequest) types.RenderResult {
	input, err := b.writeScratch(req.Content, ".mmd")
	if err != nil {
		return types.ErrorResult(fmt.Sprintf("writing scratch file: %v", err))
	}
	output := strings.TrimSuffix(input, ".mmd") + ".svg"
	defer func() {
		os.Remove(input)
		os.Remove(output)
	}()

	args := []string{"-i", input, "-o", output}
	if req.Theme != "" && req.Theme != "default" {
		args = append(args, "-t", req.Theme)
	}

	cmd := exec.CommandContext(ctx, b.cfg.CLIPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = runErr.Error()
		}
		b.logger.Warn(ctx, runErr, "mermaid render failed", "input", input)
		return types.ErrorResult(fmt.Sprintf("mermaid render failed: %s", diag))
	}

	payload, readErr := os.ReadFile(output)
	if readErr != nil {
		return types.ErrorResult(fmt.Sprintf("mermaid render produced no output: %v", readErr))
	}

	return types.SVGResult(payload)
}

// writeScratch writes content into a fresh scratch file and returns its
// path. The scratch directory is created on first use.
func (b *LocalBackend) writeScratch(content, ext string) (string, error) {
	dir, err := b.scratchDir()
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "diagram-*"+ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	return filepath.Clean(path), nil
}

// scratchDir returns the scratch directory, creating it on first use.
// Concurrent renders share one directory; a lost racing MkdirTemp would
// leak its directory past Close.
func (b *LocalBackend) scratchDir() (string, error) {
	b.scratchMutex.Lock()
	defer b.scratchMutex.Unlock()

	if b.scratch == "" {
		dir, err := os.MkdirTemp("", "diaview-render-")
		if err != nil {
			return "", err
		}
		b.scratch = dir
	}

	return b.scratch, nil
}

// Close removes the scratch directory.
func (b *LocalBackend) Close() error {
	b.scratchMutex.Lock()
	defer b.scratchMutex.Unlock()

	if b.scratch == "" {
		return nil
	}
	dir := b.scratch
	b.scratch = ""
	return os.RemoveAll(dir)
}
