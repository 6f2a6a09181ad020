// Package export implements the batch export pass: it fans independent
// render requests out over a fixed-size worker pool, aggregates per-file
// outcomes, and writes the artifacts to disk. One file's failure never
// aborts the batch; the report carries every outcome.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"diaview/internal/backend"
	"diaview/internal/classify"
	"diaview/internal/logging"
	"diaview/internal/types"
)

// FileResult is the outcome for one exported file.
type FileResult struct {
	Source   string `json:"source" yaml:"source"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	Backend  string `json:"backend,omitempty" yaml:"backend,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Duration string `json:"duration" yaml:"duration"`
}

// Report aggregates a whole batch.
type Report struct {
	Started   time.Time    `json:"started" yaml:"started"`
	Elapsed   string       `json:"elapsed" yaml:"elapsed"`
	Succeeded int          `json:"succeeded" yaml:"succeeded"`
	Failed    int          `json:"failed" yaml:"failed"`
	Results   []FileResult `json:"results" yaml:"results"`
}

// Exporter renders a set of diagram files to an output directory.
type Exporter struct {
	classifier  *classify.Classifier
	registry    *backend.Registry
	logger      logging.Logger
	concurrency int
	outputDir   string
}

// New creates an exporter.
func New(classifier *classify.Classifier, registry *backend.Registry, logger logging.Logger, concurrency int, outputDir string) *Exporter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Exporter{
		classifier:  classifier,
		registry:    registry,
		logger:      logger.WithComponent("export"),
		concurrency: concurrency,
		outputDir:   outputDir,
	}
}

// Run exports every file and returns the aggregated report. The returned
// error covers setup failures only; per-file render failures live in the
// report.
func (e *Exporter) Run(ctx context.Context, files []string, theme string) (*Report, error) {
	if err := os.MkdirAll(e.outputDir, 0750); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", e.outputDir, err)
	}

	started := time.Now()
	results := make([]FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, file := range files {
		g.Go(func() error {
			results[i] = e.exportOne(ctx, file, theme)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Started: started,
		Elapsed: time.Since(started).Round(time.Millisecond).String(),
		Results: results,
	}
	for _, r := range results {
		if r.Error == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	e.logger.Info(ctx, "export finished",
		"files", len(files),
		"succeeded", report.Succeeded,
		"failed", report.Failed)

	return report, nil
}

// exportOne renders a single file end to end. The named return lets the
// deferred duration stamp cover every exit path.
func (e *Exporter) exportOne(ctx context.Context, file, theme string) (result FileResult) {
	start := time.Now()
	result = FileResult{Source: file}
	defer func() {
		result.Duration = time.Since(start).Round(time.Millisecond).String()
	}()

	text, err := os.ReadFile(file)
	if err != nil {
		result.Error = fmt.Sprintf("reading source: %v", err)
		return result
	}

	classification, ok := e.classifier.Classify(file, string(text))
	if !ok {
		result.Error = "cannot determine diagram type"
		return result
	}
	result.Backend = classification.Backend.String()
	result.Type = string(classification.Type)

	rendered := e.registry.Render(ctx, classification.Backend, types.RenderRequest{
		Content:  string(text),
		Type:     classification.Type,
		Theme:    theme,
		CacheKey: types.CacheKey(file, string(text)),
	})
	if rendered.IsError() {
		result.Error = rendered.Message
		return result
	}

	outPath := e.outputPath(file, rendered.Format())
	if err := os.WriteFile(outPath, rendered.Payload, 0640); err != nil {
		result.Error = fmt.Sprintf("writing artifact: %v", err)
		return result
	}

	result.Output = outPath
	return result
}

// outputPath places the artifact beside its siblings in the output
// directory, swapping the source extension for the artifact format.
func (e *Exporter) outputPath(source string, format types.OutputFormat) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(e.outputDir, stem+"."+string(format))
}
