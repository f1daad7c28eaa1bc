// ABOUTME: Tests for account-to-profile resolution and address shortening.
// ABOUTME: Covers static lookup, caching, and display-name fallback behavior.

package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver_Resolve(t *testing.T) {
	r := NewStaticResolver(map[string]Profile{
		"0xAbCd1234": {Name: "Acme Produce", Role: "supplier"},
	})

	profile, err := r.Resolve("0xabcd1234")
	require.NoError(t, err)
	assert.Equal(t, "Acme Produce", profile.Name)
	assert.Equal(t, "supplier", profile.Role)
}

func TestStaticResolver_Unresolved(t *testing.T) {
	r := NewStaticResolver(nil)

	_, err := r.Resolve("0xdeadbeef")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestStaticResolver_TrimsWhitespace(t *testing.T) {
	r := NewStaticResolver(map[string]Profile{
		" 0xabc123abc123 ": {Name: "Fresh Logistics"},
	})

	profile, err := r.Resolve("0xABC123abc123")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Logistics", profile.Name)
}

// countingResolver tracks how many times Resolve hits the inner source.
type countingResolver struct {
	mu       sync.Mutex
	calls    int
	profiles map[string]Profile
}

func (c *countingResolver) Resolve(account string) (Profile, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	profile, ok := c.profiles[account]
	if !ok {
		return Profile{}, ErrUnresolved
	}
	return profile, nil
}

func TestCachingResolver_MemoizesHits(t *testing.T) {
	inner := &countingResolver{profiles: map[string]Profile{
		"0xabc": {Name: "Acme"},
	}}
	r := NewCachingResolver(inner)

	for i := 0; i < 5; i++ {
		profile, err := r.Resolve("0xabc")
		require.NoError(t, err)
		assert.Equal(t, "Acme", profile.Name)
	}

	assert.Equal(t, 1, inner.calls)
}

func TestCachingResolver_DoesNotCacheMisses(t *testing.T) {
	inner := &countingResolver{profiles: map[string]Profile{}}
	r := NewCachingResolver(inner)

	_, err := r.Resolve("0xabc")
	assert.ErrorIs(t, err, ErrUnresolved)
	_, err = r.Resolve("0xabc")
	assert.ErrorIs(t, err, ErrUnresolved)

	assert.Equal(t, 2, inner.calls)
}

func TestCachingResolver_Concurrent(t *testing.T) {
	inner := &countingResolver{profiles: map[string]Profile{
		"0xabc": {Name: "Acme"},
	}}
	r := NewCachingResolver(inner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = r.Resolve("0xabc")
			}
		}()
	}
	wg.Wait()

	profile, err := r.Resolve("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "Acme", profile.Name)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x1234…abcd",
		ShortAddress("0x1234567890deadbeefabcd"))
	assert.Equal(t, "short", ShortAddress("short"))
	assert.Equal(t, "exactly12chr", ShortAddress("exactly12chr"))
	assert.Equal(t, "", ShortAddress("  "))
}

func TestDisplayName(t *testing.T) {
	r := NewStaticResolver(map[string]Profile{
		"0xknownaccount111": {Name: "Acme Produce"},
	})

	assert.Equal(t, "Acme Produce", DisplayName(r, "0xknownaccount111"))
	assert.Equal(t, "0xunkn…2222", DisplayName(r, "0xunknownaccount2222"))
	assert.Equal(t, "0xshor…1111", DisplayName(nil, "0xshortfall11111"))
}

func TestDisplayName_EmptyProfileNameFallsBack(t *testing.T) {
	r := NewStaticResolver(map[string]Profile{
		"0xnamelessaccount33": {Role: "carrier"},
	})

	got := DisplayName(r, "0xnamelessaccount33")
	assert.Equal(t, ShortAddress("0xnamelessaccount33"), got)
}
