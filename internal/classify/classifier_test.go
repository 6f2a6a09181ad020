package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaview/internal/types"
)

func TestClassifyByExtension(t *testing.T) {
	c := New(types.BackendRemote)

	tests := []struct {
		path    string
		backend types.BackendKind
		diagram types.DiagramType
	}{
		{"flow.mmd", types.BackendLocal, types.DiagramMermaid},
		{"flow.mermaid", types.BackendLocal, types.DiagramMermaid},
		{"seq.puml", types.BackendLocal, types.DiagramPlantUML},
		{"seq.plantuml", types.BackendLocal, types.DiagramPlantUML},
		{"inc.iuml", types.BackendLocal, types.DiagramPlantUML},
		{"ctx.c4puml", types.BackendLocal, types.DiagramC4PlantUML},
		{"deps.dot", types.BackendRemote, types.DiagramGraphviz},
		{"deps.gv", types.BackendRemote, types.DiagramGraphviz},
		{"arch.dsl", types.BackendRemote, types.DiagramStructurizr},
		{"docs/nested/flow.MMD", types.BackendLocal, types.DiagramMermaid},
	}

	for _, tc := range tests {
		result, ok := c.Classify(tc.path, "anything")
		require.True(t, ok, tc.path)
		assert.Equal(t, tc.backend, result.Backend, tc.path)
		assert.Equal(t, tc.diagram, result.Type, tc.path)
	}
}

func TestClassifyExtensionBeatsContent(t *testing.T) {
	c := New(types.BackendRemote)

	// PlantUML content in a .mmd file still dispatches as Mermaid.
	result, ok := c.Classify("flow.mmd", "@startuml\n@enduml")
	require.True(t, ok)
	assert.Equal(t, types.DiagramMermaid, result.Type)
}

func TestClassifyStructurizrBackendOverride(t *testing.T) {
	c := New(types.BackendContainer)

	result, ok := c.Classify("arch.dsl", "workspace {}")
	require.True(t, ok)
	assert.Equal(t, types.BackendContainer, result.Backend)

	result, ok = c.Classify("noext", "workspace \"Demo\" {\n}")
	require.True(t, ok)
	assert.Equal(t, types.BackendContainer, result.Backend)
	assert.Equal(t, types.DiagramStructurizr, result.Type)
}

func TestClassifyByContent(t *testing.T) {
	c := New(types.BackendRemote)

	tests := []struct {
		name    string
		text    string
		backend types.BackendKind
		diagram types.DiagramType
	}{
		{"structurizr", "workspace \"Big Bank\" {\n model {}\n}", types.BackendRemote, types.DiagramStructurizr},
		{"plantuml", "@startuml\nAlice -> Bob\n@enduml", types.BackendLocal, types.DiagramPlantUML},
		{"plantuml mindmap", "@startmindmap\n* root\n@endmindmap", types.BackendLocal, types.DiagramPlantUML},
		{"digraph", "digraph G { a -> b }", types.BackendRemote, types.DiagramGraphviz},
		{"undirected graph", "graph { A -- B }", types.BackendRemote, types.DiagramGraphviz},
		{"named graph", "graph deps {\n  a -- b\n}", types.BackendRemote, types.DiagramGraphviz},
		{"mermaid flowchart", "flowchart LR\nA --> B", types.BackendLocal, types.DiagramMermaid},
		{"mermaid sequence", "sequenceDiagram\nAlice->>Bob: hi", types.BackendLocal, types.DiagramMermaid},
		{"mermaid graph TD", "graph TD\nA-->B", types.BackendLocal, types.DiagramMermaid},
		{"mermaid graph LR with braces", "graph LR\nA{decision} --> B", types.BackendLocal, types.DiagramMermaid},
		{"mermaid pie", "pie\n\"A\": 40\n\"B\": 60", types.BackendLocal, types.DiagramMermaid},
		{"leading whitespace", "\n\n  @startuml\n@enduml", types.BackendLocal, types.DiagramPlantUML},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, ok := c.Classify("no-extension", tc.text)
			require.True(t, ok)
			assert.Equal(t, tc.backend, result.Backend)
			assert.Equal(t, tc.diagram, result.Type)
		})
	}
}

func TestClassifyUnresolved(t *testing.T) {
	c := New(types.BackendRemote)

	for _, text := range []string{
		"",
		"just some prose",
		"graphite is a mineral",
		"pieces of text",
		"# markdown heading",
	} {
		_, ok := c.Classify("notes.txt", text)
		assert.False(t, ok, "text %q should be unresolved", text)
	}
}

func TestClassifyTokenBoundaries(t *testing.T) {
	c := New(types.BackendRemote)

	// "ganttchart" is not the "gantt" keyword; "gantt" alone is.
	_, ok := c.Classify("x", "ganttchart stuff")
	assert.False(t, ok)

	result, ok := c.Classify("x", "gantt\ntitle Plan")
	require.True(t, ok)
	assert.Equal(t, types.DiagramMermaid, result.Type)

	// "graph TDX" is neither a Mermaid direction nor a GraphViz block.
	_, ok = c.Classify("x", "graph TDX\nA-->B")
	assert.False(t, ok)
}

func TestIsDiagramFile(t *testing.T) {
	assert.True(t, IsDiagramFile("a.mmd"))
	assert.True(t, IsDiagramFile("dir/b.PUML"))
	assert.False(t, IsDiagramFile("c.txt"))
	assert.False(t, IsDiagramFile("noext"))
	assert.False(t, IsDiagramFile("dir.mmd/noext"))
}

func TestKnownExtensions(t *testing.T) {
	exts := KnownExtensions()
	assert.Len(t, exts, 9)
	assert.Contains(t, exts, ".mmd")
	assert.Contains(t, exts, ".dsl")
}
