package identity

import (
	"context"
	"fmt"
)

// ProfileLookup is the single store method the resolver needs.
type ProfileLookup interface {
	GetProfile(ctx context.Context, username string) (Profile, error)
}

// ProfileCache memoizes profiles for the duration of one operation.
// It is owned by a single call and must not be shared across requests.
type ProfileCache map[string]Profile

// NewProfileCache returns an empty cache.
func NewProfileCache() ProfileCache { return make(ProfileCache) }

// Resolver expands usernames into participant profiles.
type Resolver struct {
	lookup ProfileLookup
}

// NewResolver returns a Resolver reading through lookup.
func NewResolver(lookup ProfileLookup) (*Resolver, error) {
	if lookup == nil {
		return nil, fmt.Errorf("identity: nil profile lookup")
	}
	return &Resolver{lookup: lookup}, nil
}

// Resolve performs one lookup for username.
func (r *Resolver) Resolve(ctx context.Context, username string) (Profile, error) {
	return r.lookup.GetProfile(ctx, username)
}

// ResolveInto returns the cached profile for username, looking it up and
// filling cache on a miss. A nil cache behaves like Resolve.
func (r *Resolver) ResolveInto(ctx context.Context, cache ProfileCache, username string) (Profile, error) {
	if p, ok := cache[username]; ok {
		return p, nil
	}
	p, err := r.lookup.GetProfile(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	if cache != nil {
		cache[username] = p
	}
	return p, nil
}

// ResolveMany resolves every username with a fresh cache, so each distinct
// username costs at most one lookup.
func (r *Resolver) ResolveMany(ctx context.Context, usernames []string) (map[string]Profile, error) {
	cache := NewProfileCache()
	for _, u := range usernames {
		if _, err := r.ResolveInto(ctx, cache, u); err != nil {
			return nil, err
		}
	}
	return cache, nil
}
