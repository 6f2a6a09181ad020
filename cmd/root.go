// Package cmd provides the command-line interface for diaview with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. DIAVIEW_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (DIAVIEW_REMOTE_ENDPOINT, etc.)
//	4. Configuration files (.diaview.yml) - lowest priority
//
// Environment Variables:
//
//	DIAVIEW_CONFIG_FILE: Path to custom configuration file
//	DIAVIEW_REMOTE_ENDPOINT: Override remote rendering endpoint
//	DIAVIEW_PREVIEW_PORT: Override preview server port
//	DIAVIEW_PREVIEW_DEBOUNCE_MS: Override edit debounce interval
//	And more following the DIAVIEW_<SECTION>_<OPTION> pattern
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"diaview/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "diaview",
	Short: "Render and preview textual diagrams",
	Long: `diaview turns textual diagram source (Mermaid, PlantUML, GraphViz,
Structurizr DSL) into sanitized SVG/PNG artifacts.

It supports a live, incrementally updated browser preview and a batch
export pass, dispatching each diagram to the best available backend: a
locally installed toolchain, a remote HTTP rendering service, or a
containerized CLI pipeline.

Quick Start:
  diaview preview diagram.mmd     Live preview with hot reload
  diaview export docs/*.puml      Batch export to SVG
  diaview classify diagram.txt    Show how a file would be dispatched
  diaview doctor                  Check backend availability`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .diaview.yml, can also use DIAVIEW_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. DIAVIEW_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .diaview.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DIAVIEW_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".diaview")
	}

	viper.SetEnvPrefix("DIAVIEW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable config file falls back to defaults; the tool
	// must work with zero workspace configuration.
	_ = viper.ReadInConfig()
}

// newLogger builds the session logger from the resolved log flags.
func newLogger() logging.Logger {
	level := logging.LevelInfo
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: viper.GetString("log-format"),
		Output: os.Stderr,
	})
}
