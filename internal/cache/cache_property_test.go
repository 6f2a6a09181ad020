//go:build property

package cache

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"diaview/internal/types"
)

// TestCacheProperties validates the cache's invariants over arbitrary
// operation sequences.
func TestCacheProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // For reproducible results
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property: cache size never exceeds its capacity
	properties.Property("size never exceeds capacity", prop.ForAll(
		func(capacity int, keys []int) bool {
			c := New(capacity)
			for _, k := range keys {
				c.Set(fmt.Sprintf("key-%d", k), types.SVGResult([]byte("x")))
			}
			return c.Len() <= c.Capacity()
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.IntRange(0, 64)),
	))

	// Property: a freshly set key is always retrievable with its payload
	properties.Property("set then get returns the stored result", prop.ForAll(
		func(capacity int, key string, payload string) bool {
			c := New(capacity)
			c.Set(key, types.SVGResult([]byte(payload)))
			result, hit := c.Get(key)
			return hit && string(result.Payload) == payload
		},
		gen.IntRange(1, 16),
		gen.AlphaString(),
		gen.AnyString(),
	))

	// Property: error results are never memoized
	properties.Property("error results are never stored", prop.ForAll(
		func(key string, message string) bool {
			c := New(8)
			c.Set(key, types.ErrorResult(message))
			_, hit := c.Get(key)
			return !hit
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	// Property: the most recently inserted key survives any insertion run
	properties.Property("newest key is never the eviction victim", prop.ForAll(
		func(capacity int, count int) bool {
			c := New(capacity)
			var last string
			for i := 0; i < count; i++ {
				last = fmt.Sprintf("key-%d", i)
				c.Set(last, types.SVGResult([]byte("x")))
			}
			if last == "" {
				return true
			}
			_, hit := c.Get(last)
			return hit
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
