// ABOUTME: Tests for the dedupe cache guarding duplicate chat queries.
// ABOUTME: Validates TTL expiration, eviction, forget, key normalization, and concurrency.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheCheckNotSeen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("never-sent-query"))
}

func TestCacheMarkAndCheck(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("what is oceansat")

	assert.True(t, cache.Check("what is oceansat"))
	assert.False(t, cache.Check("what is cartosat"))
}

func TestCacheExpiry(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("expiring-query")
	assert.True(t, cache.Check("expiring-query"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.Check("expiring-query"))
}

func TestCacheCheckAndMark(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("q1"), "first send is not a duplicate")
	assert.True(t, cache.CheckAndMark("q1"), "resend while in flight is a duplicate")
}

func TestCacheForget(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("answered-query")
	assert.True(t, cache.Check("answered-query"))

	cache.Forget("answered-query")
	assert.False(t, cache.Check("answered-query"))

	// Forgetting an unknown key is a no-op.
	cache.Forget("never-sent")
}

func TestCacheEvictsOldestAtCapacity(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("a")
	cache.Mark("b")
	cache.Mark("c")
	cache.Mark("d")

	assert.False(t, cache.Check("a"), "oldest entry is evicted")
	assert.True(t, cache.Check("b"))
	assert.True(t, cache.Check("c"))
	assert.True(t, cache.Check("d"))
}

func TestCacheReMarkMovesToBack(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Mark("a")
	cache.Mark("b")
	cache.Mark("c")
	cache.Mark("a") // refreshed, b is now oldest
	cache.Mark("d")

	assert.True(t, cache.Check("a"))
	assert.False(t, cache.Check("b"))
}

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, Key("What is  Oceansat?"), Key("what is oceansat?"))
	assert.Equal(t, "what is oceansat", Key("  What   IS   Oceansat  "))
	assert.NotEqual(t, Key("oceansat"), Key("cartosat"))
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := New(time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("query-%d-%d", n, j)
				cache.CheckAndMark(key)
				cache.Check(key)
				if j%2 == 0 {
					cache.Forget(key)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCacheCloseIdempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}
