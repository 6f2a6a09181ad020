package backend

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaview/internal/config"
	"diaview/internal/logging"
	"diaview/internal/types"
)

// writeFakeTool writes an executable shell script into dir.
func writeFakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestLocalProbeNothingInstalled(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: filepath.Join(dir, "no-java"),
		ArchivePath:     filepath.Join(dir, "no-archive.jar"),
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())
	defer b.Close()

	capability := b.Probe(context.Background())
	assert.False(t, capability.Available)
	assert.NotEmpty(t, capability.Diagnostic)
}

func TestLocalProbeArchiveOnly(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeFakeTool(t, dir, "java", "exit 0")
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())
	defer b.Close()

	capability := b.Probe(context.Background())
	assert.True(t, capability.Available,
		"the archive alone should unlock its diagram families")
	assert.True(t, capability.Supports(types.DiagramPlantUML))
	assert.True(t, capability.Supports(types.DiagramC4PlantUML))
	assert.False(t, capability.Supports(types.DiagramMermaid))
	assert.Contains(t, capability.Diagnostic, "mermaid CLI")
}

func TestLocalProbeCLIOnly(t *testing.T) {
	dir := t.TempDir()
	cli := writeFakeTool(t, dir, "mmdc", "exit 0")

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: filepath.Join(dir, "no-java"),
		ArchivePath:     filepath.Join(dir, "no-archive.jar"),
		CLIPath:         cli,
	}, logging.NewNopLogger())
	defer b.Close()

	capability := b.Probe(context.Background())
	assert.True(t, capability.Available)
	assert.True(t, capability.Supports(types.DiagramMermaid))
	assert.False(t, capability.Supports(types.DiagramPlantUML))
}

func TestLocalRenderArchive(t *testing.T) {
	dir := t.TempDir()
	// Mimics the archive invocation shape: $1=-jar $2=archive $3=-tsvg $4=input.
	// Writes the sibling .svg artifact the way the real tool does.
	interpreter := writeFakeTool(t, dir, "java",
		`out="${4%.puml}.svg"`+"\n"+`printf '<svg>plantuml</svg>' > "$out"`)
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "@startuml\nAlice -> Bob\n@enduml",
		Type:    types.DiagramPlantUML,
	})

	require.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, []byte("<svg>plantuml</svg>"), result.Payload)
}

func TestLocalRenderArchiveArtifactWinsOverExitCode(t *testing.T) {
	dir := t.TempDir()
	// Non-zero exit with an artifact present: syntax errors are rendered
	// into the SVG itself.
	interpreter := writeFakeTool(t, dir, "java",
		`out="${4%.puml}.svg"`+"\n"+`printf '<svg>syntax error</svg>' > "$out"`+"\n"+`exit 200`)
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "@startuml\nbroken",
		Type:    types.DiagramPlantUML,
	})

	require.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, []byte("<svg>syntax error</svg>"), result.Payload)
}

func TestLocalRenderArchiveFailure(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeFakeTool(t, dir, "java",
		`echo "No such file or directory" >&2`+"\n"+`exit 1`)
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "@startuml\n@enduml",
		Type:    types.DiagramPlantUML,
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Message, "No such file or directory")
}

func TestLocalRenderCLI(t *testing.T) {
	dir := t.TempDir()
	// Mimics the CLI invocation shape: -i input -o output [-t theme].
	cli := writeFakeTool(t, dir, "mmdc",
		`while [ $# -gt 0 ]; do`+"\n"+
			`  case "$1" in`+"\n"+
			`    -o) out="$2"; shift 2;;`+"\n"+
			`    -t) theme="$2"; shift 2;;`+"\n"+
			`    *) shift;;`+"\n"+
			`  esac`+"\n"+
			`done`+"\n"+
			`printf '<svg>theme=%s</svg>' "$theme" > "$out"`)

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: filepath.Join(dir, "no-java"),
		ArchivePath:     filepath.Join(dir, "no-archive.jar"),
		CLIPath:         cli,
	}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "graph TD\nA-->B",
		Type:    types.DiagramMermaid,
	})
	require.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, []byte("<svg>theme=</svg>"), result.Payload,
		"the default theme must not be passed to the CLI")

	result = b.Render(context.Background(), types.RenderRequest{
		Content: "graph TD\nA-->B",
		Type:    types.DiagramMermaid,
		Theme:   "dark",
	})
	require.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, []byte("<svg>theme=dark</svg>"), result.Payload)
}

func TestLocalRenderCLIFailureCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	cli := writeFakeTool(t, dir, "mmdc",
		`echo "Parse error on line 2" >&2`+"\n"+`exit 1`)

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: filepath.Join(dir, "no-java"),
		ArchivePath:     filepath.Join(dir, "no-archive.jar"),
		CLIPath:         cli,
	}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "graph TD\nA-->",
		Type:    types.DiagramMermaid,
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Message, "Parse error on line 2")
}

func TestLocalRenderUnsupportedType(t *testing.T) {
	b := NewLocalBackend(config.LocalConfig{}, logging.NewNopLogger())
	defer b.Close()

	result := b.Render(context.Background(), types.RenderRequest{
		Content: "digraph {}",
		Type:    types.DiagramGraphviz,
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Message, "graphviz")
}

func TestLocalRenderConcurrent(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeFakeTool(t, dir, "java",
		`out="${4%.puml}.svg"`+"\n"+`printf '<svg>ok</svg>' > "$out"`)
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())

	// Overlapping renders share one backend, the way the export pool and
	// the preview controller use it.
	const workers = 8
	results := make([]types.RenderResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Render(context.Background(), types.RenderRequest{
				Content: "@startuml\nAlice -> Bob\n@enduml",
				Type:    types.DiagramPlantUML,
			})
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.Equal(t, types.ResultSVG, result.Kind, "worker %d: %s", i, result.Message)
	}

	scratch, err := b.scratchDir()
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, statErr := os.Stat(scratch)
	assert.True(t, os.IsNotExist(statErr), "no scratch directory may survive Close")
}

func TestLocalCloseRemovesScratch(t *testing.T) {
	dir := t.TempDir()
	interpreter := writeFakeTool(t, dir, "java",
		`out="${4%.puml}.svg"`+"\n"+`printf '<svg/>' > "$out"`)
	archive := filepath.Join(dir, "plantuml.jar")
	require.NoError(t, os.WriteFile(archive, []byte("jar"), 0644))

	b := NewLocalBackend(config.LocalConfig{
		InterpreterPath: interpreter,
		ArchivePath:     archive,
		CLIPath:         filepath.Join(dir, "no-mmdc"),
	}, logging.NewNopLogger())

	b.Render(context.Background(), types.RenderRequest{
		Content: "@startuml\n@enduml",
		Type:    types.DiagramPlantUML,
	})

	scratch, err := b.scratchDir()
	require.NoError(t, err)
	require.NotEmpty(t, scratch)
	require.NoError(t, b.Close())

	_, err = os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))
}
