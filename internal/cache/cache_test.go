package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaview/internal/types"
)

func svgResult(body string) types.RenderResult {
	return types.SVGResult([]byte(body))
}

func TestCacheGetSet(t *testing.T) {
	c := New(4)

	key := types.CacheKey("diagram.mmd", "graph TD\nA-->B")
	_, hit := c.Get(key)
	assert.False(t, hit)

	c.Set(key, svgResult("<svg/>"))

	result, hit := c.Get(key)
	require.True(t, hit)
	assert.Equal(t, types.ResultSVG, result.Kind)
	assert.Equal(t, []byte("<svg/>"), result.Payload)
}

func TestCacheKeyDeterminism(t *testing.T) {
	c := New(8)

	cases := []struct {
		path    string
		content string
	}{
		{"a.mmd", "graph TD"},
		{"a.mmd", ""},
		{"", ""},
		{"dir/b.puml", "@startuml\n@enduml"},
	}

	for _, tc := range cases {
		key := types.CacheKey(tc.path, tc.content)
		c.Set(key, svgResult(tc.path+tc.content))

		result, hit := c.Get(types.CacheKey(tc.path, tc.content))
		require.True(t, hit, "path=%q content=%q", tc.path, tc.content)
		assert.Equal(t, []byte(tc.path+tc.content), result.Payload)
	}
}

func TestCacheDistinctKeysForRenamedFile(t *testing.T) {
	content := "digraph { a -> b }"
	assert.NotEqual(t,
		types.CacheKey("old.dot", content),
		types.CacheKey("new.dot", content))
}

func TestCacheLRUEviction(t *testing.T) {
	const capacity = 5
	c := New(capacity)

	keys := make([]string, capacity+1)
	for i := range keys {
		keys[i] = types.CacheKey(fmt.Sprintf("f%d.mmd", i), "content")
		c.Set(keys[i], svgResult(fmt.Sprintf("svg-%d", i)))
	}

	assert.Equal(t, capacity, c.Len())

	_, hit := c.Get(keys[0])
	assert.False(t, hit, "first-inserted key should have been evicted")

	for _, key := range keys[1:] {
		_, hit := c.Get(key)
		assert.True(t, hit, "recent key %s should still be cached", key)
	}
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := New(2)

	c.Set("a", svgResult("a"))
	c.Set("b", svgResult("b"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, hit := c.Get("a")
	require.True(t, hit)

	c.Set("c", svgResult("c"))

	_, hit = c.Get("a")
	assert.True(t, hit)
	_, hit = c.Get("b")
	assert.False(t, hit)
}

func TestCacheSetExistingKeyUpdatesAndRefreshes(t *testing.T) {
	c := New(2)

	c.Set("a", svgResult("a1"))
	c.Set("b", svgResult("b"))
	c.Set("a", svgResult("a2"))
	c.Set("c", svgResult("c"))

	result, hit := c.Get("a")
	require.True(t, hit)
	assert.Equal(t, []byte("a2"), result.Payload)

	_, hit = c.Get("b")
	assert.False(t, hit)

	assert.Equal(t, 2, c.Len())
}

func TestCacheNeverStoresErrors(t *testing.T) {
	c := New(4)

	key := types.CacheKey("bad.puml", "@startuml\nnot valid")
	c.Set(key, types.ErrorResult("syntax error at line 2"))

	_, hit := c.Get(key)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestCacheClear(t *testing.T) {
	c := New(4)

	c.Set("a", svgResult("a"))
	c.Set("b", svgResult("b"))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, hit := c.Get("a")
	assert.False(t, hit)
}

func TestCacheCapacityClamp(t *testing.T) {
	c := New(0)
	assert.Equal(t, 1, c.Capacity())

	c.Set("a", svgResult("a"))
	c.Set("b", svgResult("b"))
	assert.Equal(t, 1, c.Len())
}

func TestCacheStats(t *testing.T) {
	c := New(4)

	c.Set("a", svgResult("a"))
	c.Get("a")
	c.Get("missing")

	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
}
