// Package config provides configuration management for diaview using Viper
// for flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the DIAVIEW_ prefix, validation, and security checks. It
// resolves four layers (flags, environment, config file, built-in defaults)
// into one immutable Config consumed by the backend registry, the render
// cache, and the rate limiter. The tool must work with zero workspace-level
// configuration present, so every field has a documented default.
//
// A resolved Config is never mutated in place. Reconfiguration means
// loading a fresh Config and rebuilding the session around it.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved settings object for one session.
type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Local     LocalConfig     `mapstructure:"local" yaml:"local"`
	Container ContainerConfig `mapstructure:"container" yaml:"container"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Preview   PreviewConfig   `mapstructure:"preview" yaml:"preview"`
	Export    ExportConfig    `mapstructure:"export" yaml:"export"`
	Backends  BackendsConfig  `mapstructure:"backends" yaml:"backends"`
}

// RemoteConfig configures the remote HTTP rendering backend.
type RemoteConfig struct {
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	RateLimitMs int    `mapstructure:"rate_limit_ms" yaml:"rate_limit_ms"`
	TimeoutMs   int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// LocalConfig configures the local-process backend toolchain.
type LocalConfig struct {
	InterpreterPath string `mapstructure:"interpreter_path" yaml:"interpreter_path"`
	ArchivePath     string `mapstructure:"archive_path" yaml:"archive_path"`
	CLIPath         string `mapstructure:"cli_path" yaml:"cli_path"`
}

// ContainerConfig configures the containerized CLI backend.
type ContainerConfig struct {
	ScriptPath    string `mapstructure:"script_path" yaml:"script_path"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	WorkspaceDir  string `mapstructure:"workspace_dir" yaml:"workspace_dir"`
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir"`
}

// CacheConfig configures the render cache.
type CacheConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// PreviewConfig configures the live preview session and its server.
type PreviewConfig struct {
	DebounceMs int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Theme      string `mapstructure:"theme" yaml:"theme"`
}

// ExportConfig configures batch export.
type ExportConfig struct {
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	// Theme overrides the preview theme for batch renders. Empty means
	// inherit preview.theme.
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// BackendsConfig holds per-diagram-family backend choices where more than
// one backend can serve the family.
type BackendsConfig struct {
	// Structurizr selects "remote" or "container" for .dsl sources.
	Structurizr string `mapstructure:"structurizr" yaml:"structurizr"`
}

// RateLimit returns the remote rate limit as a duration.
func (r RemoteConfig) RateLimit() time.Duration {
	return time.Duration(r.RateLimitMs) * time.Millisecond
}

// Timeout returns the remote request timeout as a duration.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Debounce returns the preview debounce interval as a duration.
func (p PreviewConfig) Debounce() time.Duration {
	return time.Duration(p.DebounceMs) * time.Millisecond
}

// Load resolves the configuration from viper's current state.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Remote backend defaults
	if config.Remote.Endpoint == "" {
		config.Remote.Endpoint = "https://kroki.io"
	}
	if !viper.IsSet("remote.rate_limit_ms") && config.Remote.RateLimitMs == 0 {
		config.Remote.RateLimitMs = 500
	}
	if config.Remote.TimeoutMs == 0 {
		config.Remote.TimeoutMs = 30000
	}

	// Local toolchain defaults: bare command names resolve via PATH
	if config.Local.InterpreterPath == "" {
		config.Local.InterpreterPath = "java"
	}
	if config.Local.ArchivePath == "" {
		config.Local.ArchivePath = "plantuml.jar"
	}
	if config.Local.CLIPath == "" {
		config.Local.CLIPath = "mmdc"
	}

	// Container backend defaults
	if config.Container.ScriptPath == "" {
		config.Container.ScriptPath = "./scripts/render-diagrams.sh"
	}
	if config.Container.ContainerName == "" {
		config.Container.ContainerName = "structurizr"
	}
	if config.Container.WorkspaceDir == "" {
		config.Container.WorkspaceDir = "."
	}
	if config.Container.OutputDir == "" {
		config.Container.OutputDir = "diagrams/rendered"
	}

	if config.Cache.Capacity == 0 {
		config.Cache.Capacity = 50
	}

	if !viper.IsSet("preview.debounce_ms") && config.Preview.DebounceMs == 0 {
		config.Preview.DebounceMs = 300
	}
	if config.Preview.Host == "" {
		config.Preview.Host = "localhost"
	}
	if config.Preview.Port == 0 {
		config.Preview.Port = 4321
	}
	if config.Preview.Theme == "" {
		config.Preview.Theme = "default"
	}

	if config.Export.Concurrency == 0 {
		config.Export.Concurrency = 4
	}
	if config.Export.OutputDir == "" {
		config.Export.OutputDir = "diagrams/out"
	}

	if config.Backends.Structurizr == "" {
		config.Backends.Structurizr = "remote"
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateRemoteConfig(&config.Remote); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}

	if err := validatePreviewConfig(&config.Preview); err != nil {
		return fmt.Errorf("preview config: %w", err)
	}

	if err := validatePaths(config); err != nil {
		return err
	}

	if config.Cache.Capacity < 1 {
		return fmt.Errorf("cache config: capacity %d must be positive", config.Cache.Capacity)
	}

	if config.Export.Concurrency < 1 {
		return fmt.Errorf("export config: concurrency %d must be positive", config.Export.Concurrency)
	}

	switch config.Backends.Structurizr {
	case "remote", "container":
	default:
		return fmt.Errorf("backends config: structurizr must be \"remote\" or \"container\", got %q", config.Backends.Structurizr)
	}

	return nil
}

// validateRemoteConfig validates the remote backend settings
func validateRemoteConfig(config *RemoteConfig) error {
	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q is not a valid URL: %w", config.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", config.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", config.Endpoint)
	}

	if config.RateLimitMs < 0 {
		return fmt.Errorf("rate_limit_ms must not be negative")
	}
	if config.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}

	return nil
}

// validatePreviewConfig validates the preview server settings
func validatePreviewConfig(config *PreviewConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	if config.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}

	return nil
}

// validatePaths rejects path traversal in every configured path
func validatePaths(config *Config) error {
	paths := map[string]string{
		"local.archive_path":      config.Local.ArchivePath,
		"local.cli_path":          config.Local.CLIPath,
		"container.script_path":   config.Container.ScriptPath,
		"container.workspace_dir": config.Container.WorkspaceDir,
		"container.output_dir":    config.Container.OutputDir,
		"export.output_dir":       config.Export.OutputDir,
	}

	for name, p := range paths {
		if p == "" {
			continue
		}
		cleanPath := filepath.Clean(p)
		if strings.Contains(cleanPath, "..") {
			return fmt.Errorf("%s contains path traversal: %s", name, p)
		}
	}

	return nil
}
