package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"diaview/internal/cache"
	"diaview/internal/preview"
	"diaview/internal/server"
	"diaview/internal/types"
	"diaview/internal/watcher"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Live preview of a diagram file in the browser",
	Long: `Watch a diagram source file and serve a live, incrementally updated
preview of its rendered form.

Edits are debounced, rendered through the backend the file classifies to,
sanitized, and pushed to the browser over a websocket. Rapid edits never
show stale output: only the most recently issued render is surfaced.

Examples:
  diaview preview architecture.puml
  diaview preview flow.mmd --theme dark
  diaview preview workspace.dsl --port 8100`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Int("port", 4321, "preview server port")
	previewCmd.Flags().String("host", "localhost", "preview server host")
	previewCmd.Flags().String("theme", "", "render theme")
	viper.BindPFlag("preview.port", previewCmd.Flags().Lookup("port"))
	viper.BindPFlag("preview.host", previewCmd.Flags().Lookup("host"))
	viper.BindPFlag("preview.theme", previewCmd.Flags().Lookup("theme"))
}

func runPreview(cmd *cobra.Command, args []string) error {
	target := args[0]
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("cannot preview %s: %w", target, err)
	}

	sess, err := newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := preview.NewController(
		sess.classifier,
		cache.New(sess.cfg.Cache.Capacity),
		sess.registry,
		sess.logger,
		sess.cfg.Preview.Debounce(),
		sess.cfg.Preview.Theme,
		promptClassification,
	)
	defer controller.Close()

	fw, err := watcher.NewFileWatcher(sess.logger)
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.SingleFileFilter(target))
	fw.AddHandler(func(ev watcher.ChangeEvent) {
		if ev.Type == watcher.EventTypeDeleted {
			return
		}
		pushSource(controller, target)
	})
	if err := fw.AddPath(target); err != nil {
		return fmt.Errorf("watching %s: %w", target, err)
	}
	fw.Start(ctx)

	// Initial render before the first edit arrives.
	pushSource(controller, target)

	srv := server.New(sess.cfg.Preview.Host, sess.cfg.Preview.Port, filepath.Base(target), sess.logger)
	fmt.Fprintf(os.Stderr, "Previewing %s at http://%s\n", target, srv.Addr())

	return srv.Run(ctx, controller.Events())
}

// pushSource reads the file and forwards it to the controller as an edit
// event.
func pushSource(controller *preview.Controller, path string) {
	text, err := os.ReadFile(path)
	if err != nil {
		// The file may be mid-save; the next change event retries.
		return
	}
	controller.OnSourceChange(types.DiagramSource{
		Path:      path,
		Text:      string(text),
		Extension: filepath.Ext(path),
	})
}

// promptClassification asks the user to pick a backend and diagram type
// when no classification rule matched. The choice applies to the current
// render only.
func promptClassification(src types.DiagramSource) (types.ClassificationResult, bool) {
	choices := []struct {
		label   string
		backend types.BackendKind
		diagram types.DiagramType
	}{
		{"mermaid (local)", types.BackendLocal, types.DiagramMermaid},
		{"plantuml (local)", types.BackendLocal, types.DiagramPlantUML},
		{"c4plantuml (local)", types.BackendLocal, types.DiagramC4PlantUML},
		{"graphviz (remote)", types.BackendRemote, types.DiagramGraphviz},
		{"structurizr (remote)", types.BackendRemote, types.DiagramStructurizr},
		{"structurizr (container)", types.BackendContainer, types.DiagramStructurizr},
	}

	fmt.Fprintf(os.Stderr, "Cannot determine diagram type of %s. Choose one:\n", src.Path)
	for i, choice := range choices {
		fmt.Fprintf(os.Stderr, "  %d) %s\n", i+1, choice.label)
	}
	fmt.Fprint(os.Stderr, "Selection (empty to skip): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return types.ClassificationResult{}, false
	}

	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &n); err != nil || n < 1 || n > len(choices) {
		return types.ClassificationResult{}, false
	}

	chosen := choices[n-1]
	return types.ClassificationResult{Backend: chosen.backend, Type: chosen.diagram}, true
}
