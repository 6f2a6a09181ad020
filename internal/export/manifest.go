package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultManifestName is the manifest looked up when the export command is
// given no files.
const DefaultManifestName = "diaview.export.yml"

// Manifest is the batch export manifest: the files (or globs) to render and
// the theme to render them under.
type Manifest struct {
	Files []string `yaml:"files"`
	Theme string   `yaml:"theme"`
}

// LoadManifest reads and expands a manifest. Glob patterns in the file list
// are resolved relative to the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s lists no files", path)
	}

	baseDir := filepath.Dir(path)
	var expanded []string
	for _, pattern := range m.Files {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil {
			// A literal path that does not exist yet surfaces as a
			// per-file read failure later, not a manifest error.
			expanded = append(expanded, pattern)
			continue
		}
		expanded = append(expanded, matches...)
	}
	m.Files = expanded

	return &m, nil
}
