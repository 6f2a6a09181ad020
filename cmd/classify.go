package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <files...>",
	Short: "Show how diagram files would be dispatched",
	Long: `Classify each file to its backend and diagram type without rendering.

Useful for checking why a file ends up on a particular backend: the
extension table is consulted first, then the ordered content-sniffing
rules.

Examples:
  diaview classify docs/*.puml
  diaview classify mystery.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.registry.Close()

	for _, file := range args {
		text, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("%-40s error: %v\n", file, err)
			continue
		}

		result, ok := sess.classifier.Classify(file, string(text))
		if !ok {
			fmt.Printf("%-40s unclassified\n", file)
			continue
		}

		diagramType := string(result.Type)
		if diagramType == "" {
			diagramType = "(detected by backend)"
		}
		fmt.Printf("%-40s %s / %s\n", file, result.Backend, diagramType)
	}

	return nil
}
