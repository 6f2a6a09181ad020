package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"

	"diaview/internal/types"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose rendering backend availability",
	Long: `Probe every rendering backend and report what it can currently do.

The doctor command checks:

- Local toolchain (interpreter, rendering archive, mermaid CLI)
- Remote rendering endpoint configuration
- Container runtime and orchestration script

Examples:
  diaview doctor                   # Human-readable report
  diaview doctor --format yaml     # Report for tooling`,
	RunE: runDoctor,
}

var doctorFormat string

// BackendDiagnostic is one backend's probe outcome in the report.
type BackendDiagnostic struct {
	Backend    string   `json:"backend" yaml:"backend"`
	Available  bool     `json:"available" yaml:"available"`
	Types      []string `json:"types" yaml:"types"`
	Diagnostic string   `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

// DoctorReport is the complete diagnostic report.
type DoctorReport struct {
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
	Backends  []BackendDiagnostic `json:"backends" yaml:"backends"`
	Available int                 `json:"available" yaml:"available"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "table", "output format (table|json|yaml)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.registry.Close()

	ctx := context.Background()

	report := &DoctorReport{Timestamp: time.Now()}
	for _, capability := range sess.registry.ProbeAll(ctx) {
		diag := BackendDiagnostic{
			Backend:    capability.Backend.String(),
			Available:  capability.Available,
			Types:      typeNames(capability),
			Diagnostic: capability.Diagnostic,
		}
		report.Backends = append(report.Backends, diag)
		if capability.Available {
			report.Available++
		}
	}

	switch doctorFormat {
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
		printDoctorTable(report)
	}

	return nil
}

func printDoctorTable(report *DoctorReport) {
	title := cases.Title(language.English)
	fmt.Printf("Backend availability (%d of %d available)\n\n", report.Available, len(report.Backends))
	for _, b := range report.Backends {
		status := "unavailable"
		if b.Available {
			status = "available"
		}
		fmt.Printf("%-12s %s\n", title.String(b.Backend), status)
		if len(b.Types) > 0 {
			fmt.Printf("             types: %v\n", b.Types)
		}
		if b.Diagnostic != "" {
			fmt.Printf("             note: %s\n", b.Diagnostic)
		}
	}
}

// typeNames flattens a capability's supported types, sorted for stable
// output.
func typeNames(capability types.Capability) []string {
	names := make([]string, 0, len(capability.SupportedTypes))
	for t := range capability.SupportedTypes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
