package sanitize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"diaview/internal/logging"
)

func newTestSanitizer() *Sanitizer {
	return New(logging.NewNopLogger())
}

func TestSanitizeRemovesScriptElements(t *testing.T) {
	s := newTestSanitizer()

	out := s.Sanitize(context.Background(),
		`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script><rect width="10"/></svg>`)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert(1)")
	assert.Contains(t, out, "rect")
}

func TestSanitizeRemovesNestedAndUppercaseScripts(t *testing.T) {
	s := newTestSanitizer()

	out := s.Sanitize(context.Background(),
		`<svg><g><SCRIPT type="text/ecmascript">evil()</SCRIPT><circle r="5"/></g></svg>`)

	assert.NotContains(t, strings.ToLower(out), "<script")
	assert.NotContains(t, out, "evil()")
	assert.Contains(t, out, "circle")
}

func TestSanitizeStripsEventHandlers(t *testing.T) {
	s := newTestSanitizer()

	out := s.Sanitize(context.Background(),
		`<svg onload="steal()"><rect onclick="go()" onmouseover="x()" width="10" height="5"/></svg>`)

	assert.NotContains(t, out, "onload")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "onmouseover")
	assert.Contains(t, out, `width="10"`)
	assert.Contains(t, out, `height="5"`)
}

func TestSanitizeHrefPolicy(t *testing.T) {
	s := newTestSanitizer()

	tests := []struct {
		name string
		svg  string
		keep bool
		href string
	}{
		{"fragment kept", `<svg><use href="#icon"/></svg>`, true, "#icon"},
		{"xlink fragment kept", `<svg><use xlink:href="#arrow"/></svg>`, true, "#arrow"},
		{"relative kept", `<svg><a href="docs/page.html">x</a></svg>`, true, "docs/page.html"},
		{"javascript stripped", `<svg><a href="javascript:alert(1)">x</a></svg>`, false, "javascript:alert(1)"},
		{"javascript case stripped", `<svg><a href="JavaScript:alert(1)">x</a></svg>`, false, "alert(1)"},
		{"absolute stripped", `<svg><image href="https://evil.example/x.png"/></svg>`, false, "evil.example"},
		{"protocol relative stripped", `<svg><image href="//evil.example/x.png"/></svg>`, false, "evil.example"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := s.Sanitize(context.Background(), tc.svg)
			if tc.keep {
				assert.Contains(t, out, tc.href)
			} else {
				assert.NotContains(t, out, tc.href)
			}
		})
	}
}

func TestSanitizePreservesStyleAndStructure(t *testing.T) {
	s := newTestSanitizer()

	in := `<svg viewBox="0 0 100 100"><style>.node { fill: red; }</style>` +
		`<g class="node"><text x="10" y="20">hello</text></g></svg>`
	out := s.Sanitize(context.Background(), in)

	assert.Contains(t, out, "fill: red")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, `viewBox="0 0 100 100"`)
}

func TestSanitizeFailsClosed(t *testing.T) {
	s := newTestSanitizer()

	// No svg element at all.
	assert.Equal(t, "", s.Sanitize(context.Background(), "<div>not a diagram</div>"))
	assert.Equal(t, "", s.Sanitize(context.Background(), "plain text output"))
	assert.Equal(t, "", s.Sanitize(context.Background(), ""))
	assert.Equal(t, "", s.Sanitize(context.Background(), "   \n\t"))
}

func TestSanitizeOutputIsStillSVG(t *testing.T) {
	s := newTestSanitizer()

	out := s.Sanitize(context.Background(), `<svg width="100"><rect/></svg>`)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.True(t, strings.HasSuffix(out, "</svg>"))
}
