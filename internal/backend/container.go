package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"diaview/internal/config"
	"diaview/internal/logging"
	"diaview/internal/types"
)

const (
	// singleRenderTimeout bounds one preview render; the subprocess is
	// killed when it expires.
	singleRenderTimeout = 60 * time.Second
	// batchRenderTimeout bounds a whole-workspace render.
	batchRenderTimeout = 120 * time.Second
	// probeTimeout bounds the container runtime listing.
	probeTimeout = 5 * time.Second
)

// ContainerBackend renders Structurizr DSL through an orchestration script
// that drives a containerized CLI.
//
// The script's stdout reports per-view successes as "- {name}.svg" lines
// and failures as "[ERROR] ..." lines on stderr. That logging format has
// drifted between tool versions before, so when parsing yields nothing but
// the run reported no errors, the configured output directory is scanned
// for freshly produced files and the scan is treated as the source of
// truth.
type ContainerBackend struct {
	cfg    config.ContainerConfig
	logger logging.Logger
}

// NewContainerBackend creates the containerized CLI backend.
func NewContainerBackend(cfg config.ContainerConfig, logger logging.Logger) *ContainerBackend {
	return &ContainerBackend{
		cfg:    cfg,
		logger: logger.WithComponent("backend_container"),
	}
}

// Kind identifies the backend.
func (b *ContainerBackend) Kind() types.BackendKind {
	return types.BackendContainer
}

// Probe lists running containers and checks the orchestration script is
// present on disk.
func (b *ContainerBackend) Probe(ctx context.Context) types.Capability {
	capability := types.Capability{
		Backend:        types.BackendContainer,
		SupportedTypes: typeSet(types.DiagramStructurizr),
	}

	var problems []string

	if _, err := os.Stat(b.cfg.ScriptPath); err != nil {
		problems = append(problems, fmt.Sprintf("orchestration script %s: %v", b.cfg.ScriptPath, err))
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, "docker", "ps", "--format", "{{.Names}}").Output()
	if err != nil {
		problems = append(problems, fmt.Sprintf("container runtime unreachable: %v", err))
	} else if b.cfg.ContainerName != "" && !containsLine(string(out), b.cfg.ContainerName) {
		// The script may start the container itself, so this is a
		// diagnostic, not a hard failure.
		capability.Diagnostic = fmt.Sprintf("container %q is not running", b.cfg.ContainerName)
	}

	if len(problems) > 0 {
		capability.Diagnostic = strings.Join(problems, "; ")
		capability.SupportedTypes = map[types.DiagramType]bool{}
		return capability
	}

	capability.Available = true
	return capability
}

// containsLine reports whether any line of s equals target.
func containsLine(s, target string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == target {
			return true
		}
	}
	return false
}

// Render writes the source into the workspace, invokes the orchestration
// script for that file, and returns the first view it produced.
func (b *ContainerBackend) Render(ctx context.Context, req types.RenderRequest) types.RenderResult {
	ctx, cancel := context.WithTimeout(ctx, singleRenderTimeout)
	defer cancel()

	target := filepath.Join(b.cfg.WorkspaceDir, fmt.Sprintf("diaview-preview-%d.dsl", time.Now().UnixNano()))
	if err := os.WriteFile(target, []byte(req.Content), 0600); err != nil {
		return types.ErrorResult(fmt.Sprintf("writing workspace file: %v", err))
	}
	defer os.Remove(target)

	start := time.Now()

	produced, err := b.runScript(ctx, filepath.Base(target))
	if err != nil {
		return types.ErrorResult(err.Error())
	}

	if len(produced) == 0 {
		produced = b.scanOutputDir(ctx, start)
	}
	if len(produced) == 0 {
		return types.ErrorResult("container render reported success but produced no output")
	}

	sort.Strings(produced)
	payload, readErr := os.ReadFile(filepath.Join(b.cfg.OutputDir, produced[0]))
	if readErr != nil {
		return types.ErrorResult(fmt.Sprintf("reading rendered view %s: %v", produced[0], readErr))
	}

	return types.SVGResult(payload)
}

// RenderWorkspace runs the script in whole-workspace mode and returns the
// produced view filenames. Used by batch export.
func (b *ContainerBackend) RenderWorkspace(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, batchRenderTimeout)
	defer cancel()

	start := time.Now()

	produced, err := b.runScript(ctx, "--all")
	if err != nil {
		return nil, err
	}

	if len(produced) == 0 {
		produced = b.scanOutputDir(ctx, start)
	}

	sort.Strings(produced)
	return produced, nil
}

// runScript invokes the orchestration script and parses its output. Any
// "[ERROR]" line on stderr fails the run with the script's diagnostics
// verbatim.
func (b *ContainerBackend) runScript(ctx context.Context, arg string) ([]string, error) {
	cmd := exec.CommandContext(ctx, b.cfg.ScriptPath, arg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var produced []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "- "); ok && strings.HasSuffix(name, ".svg") {
			produced = append(produced, name)
		}
	}

	var scriptErrors []string
	for _, line := range strings.Split(stderr.String(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[ERROR]") {
			scriptErrors = append(scriptErrors, line)
		}
	}

	if len(scriptErrors) > 0 {
		return nil, fmt.Errorf("container render failed: %s", strings.Join(scriptErrors, "; "))
	}

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("container render timed out")
		}
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = runErr.Error()
		}
		return nil, fmt.Errorf("container render failed: %s", diag)
	}

	return produced, nil
}

// scanOutputDir lists SVG files produced in the output directory since the
// run started.
func (b *ContainerBackend) scanOutputDir(ctx context.Context, since time.Time) []string {
	dirEntries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		b.logger.Warn(ctx, err, "output directory scan failed", "dir", b.cfg.OutputDir)
		return nil
	}

	var fresh []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".svg") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(since.Truncate(time.Second)) {
			fresh = append(fresh, de.Name())
		}
	}

	return fresh
}

// Close is a no-op; the backend holds no session resources.
func (b *ContainerBackend) Close() error {
	return nil
}
