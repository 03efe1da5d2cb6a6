package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierCacheKeyStableForSameTuple(t *testing.T) {
	k1 := ClassifierCacheKey("hello", "summary", "design")
	k2 := ClassifierCacheKey("hello", "summary", "design")
	assert.Equal(t, k1, k2)

	k3 := ClassifierCacheKey("hello", "summary", "implementation")
	assert.NotEqual(t, k1, k3)
}

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewClassifierCache(10, time.Hour)
	c.Set("k", "refinement")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "refinement", v)
}

func TestCacheMissAfterTTL(t *testing.T) {
	c := NewClassifierCache(10, time.Millisecond)
	c.Set("k", "refinement")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewClassifierCache(2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // touch a, making b the LRU entry
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted as least-recently-used")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := NewClassifierCache(10, time.Hour)
	var calls int32

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err, _ := c.GetOrCompute("same-key", func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return "classified:refinement", nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses for the same key must collapse into one call")
	for _, r := range results {
		assert.Equal(t, "classified:refinement", r)
	}
}
