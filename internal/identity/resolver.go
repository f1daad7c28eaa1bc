// ABOUTME: Resolves participant account addresses to human-facing display profiles.
// ABOUTME: Provides a static config-backed resolver plus a shortened-address fallback.

package identity

import (
	"errors"
	"strings"
	"sync"
)

// ErrUnresolved is returned when no profile is known for an account.
var ErrUnresolved = errors.New("identity: account not resolved")

// Profile describes how an account should be presented in UIs.
type Profile struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Resolver maps account addresses to display profiles. Implementations must
// be safe for concurrent use.
type Resolver interface {
	Resolve(account string) (Profile, error)
}

// StaticResolver serves profiles from a fixed map, typically loaded from
// configuration at startup. Lookups are case-insensitive on the account.
type StaticResolver struct {
	profiles map[string]Profile
}

// NewStaticResolver builds a resolver from an account-to-profile map.
// Keys are normalized to lowercase.
func NewStaticResolver(profiles map[string]Profile) *StaticResolver {
	normalized := make(map[string]Profile, len(profiles))
	for account, profile := range profiles {
		normalized[strings.ToLower(strings.TrimSpace(account))] = profile
	}
	return &StaticResolver{profiles: normalized}
}

// Resolve returns the profile for an account, or ErrUnresolved.
func (r *StaticResolver) Resolve(account string) (Profile, error) {
	profile, ok := r.profiles[strings.ToLower(strings.TrimSpace(account))]
	if !ok {
		return Profile{}, ErrUnresolved
	}
	return profile, nil
}

// CachingResolver memoizes successful lookups from an underlying resolver.
// Failed lookups are not cached, so a resolver backed by a slow or flaky
// source can recover once the source does.
type CachingResolver struct {
	inner Resolver

	mu    sync.RWMutex
	cache map[string]Profile
}

// NewCachingResolver wraps a resolver with an in-memory cache.
func NewCachingResolver(inner Resolver) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		cache: make(map[string]Profile),
	}
}

// Resolve returns the cached profile if present, otherwise consults the
// underlying resolver and caches the result.
func (r *CachingResolver) Resolve(account string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(account))

	r.mu.RLock()
	profile, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return profile, nil
	}

	profile, err := r.inner.Resolve(account)
	if err != nil {
		return Profile{}, err
	}

	r.mu.Lock()
	r.cache[key] = profile
	r.mu.Unlock()
	return profile, nil
}

// DisplayName returns the best human-facing label for an account: the
// resolved profile name when known, otherwise a shortened address.
func DisplayName(r Resolver, account string) string {
	if r != nil {
		if profile, err := r.Resolve(account); err == nil && profile.Name != "" {
			return profile.Name
		}
	}
	return ShortAddress(account)
}

// ShortAddress renders a long account address as "0x1234…abcd". Addresses
// of 12 characters or fewer are returned unchanged.
func ShortAddress(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 12 {
		return account
	}
	return account[:6] + "…" + account[len(account)-4:]
}
