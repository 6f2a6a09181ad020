package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"diaview/internal/backend"
	"diaview/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [files...]",
	Short: "Batch export diagram files to SVG/PNG",
	Long: `Render a set of diagram files and write the artifacts to the output
directory.

Files render concurrently through a bounded worker pool. A failing file is
recorded and the batch continues; the final report lists every outcome.
Without file arguments the command reads ` + export.DefaultManifestName + `
from the current directory.

Examples:
  diaview export docs/*.puml
  diaview export --out build/diagrams --concurrency 8 docs/*.mmd
  diaview export --report json > report.json
  diaview export --workspace            # container whole-workspace render`,
	RunE: runExport,
}

var (
	exportReportFormat string
	exportWorkspace    bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", "", "output directory")
	exportCmd.Flags().Int("concurrency", 0, "maximum concurrent renders")
	exportCmd.Flags().String("theme", "", "render theme")
	exportCmd.Flags().StringVar(&exportReportFormat, "report", "text", "report format (text|json|yaml)")
	exportCmd.Flags().BoolVar(&exportWorkspace, "workspace", false, "render the whole Structurizr workspace through the container backend")
	viper.BindPFlag("export.output_dir", exportCmd.Flags().Lookup("out"))
	viper.BindPFlag("export.concurrency", exportCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("export.theme", exportCmd.Flags().Lookup("theme"))
}

func runExport(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.registry.Close()

	ctx := context.Background()

	if exportWorkspace {
		return runWorkspaceExport(ctx, sess)
	}

	files := args
	theme := sess.cfg.Export.Theme
	if theme == "" {
		theme = sess.cfg.Preview.Theme
	}
	if len(files) == 0 {
		manifest, err := export.LoadManifest(export.DefaultManifestName)
		if err != nil {
			return fmt.Errorf("no files given and no manifest: %w", err)
		}
		files = manifest.Files
		if manifest.Theme != "" {
			theme = manifest.Theme
		}
	}

	exporter := export.New(
		sess.classifier,
		sess.registry,
		sess.logger,
		sess.cfg.Export.Concurrency,
		sess.cfg.Export.OutputDir,
	)

	report, err := exporter.Run(ctx, files, theme)
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, len(files))
	}
	return nil
}

// runWorkspaceExport drives the containerized pipeline's whole-workspace
// mode directly.
func runWorkspaceExport(ctx context.Context, sess *session) error {
	containerBackend := backend.NewContainerBackend(sess.cfg.Container, sess.logger)

	produced, err := containerBackend.RenderWorkspace(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %d views into %s:\n", len(produced), sess.cfg.Container.OutputDir)
	for _, name := range produced {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

// printReport writes the batch report in the requested format.
func printReport(report *export.Report) error {
	switch exportReportFormat {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		fmt.Printf("Exported %d succeeded, %d failed (%s)\n", report.Succeeded, report.Failed, report.Elapsed)
		for _, r := range report.Results {
			if r.Error != "" {
				fmt.Printf("  FAIL %s: %s\n", r.Source, r.Error)
				continue
			}
			fmt.Printf("  ok   %s -> %s (%s)\n", r.Source, r.Output, r.Duration)
		}
	}
	return nil
}
