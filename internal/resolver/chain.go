package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/memohai/mediagrab/internal/link"
)

// ErrNoResolver is returned when no chain is registered for a hint.
var ErrNoResolver = errors.New("no resolver for link")

// Chains maps a link hint to the ordered resolvers tried for it. A later
// resolver is consulted only after every earlier one has failed.
type Chains struct {
	byHint map[link.Hint][]Resolver
}

// NewChains creates an empty chain table.
func NewChains() *Chains {
	return &Chains{byHint: map[link.Hint][]Resolver{}}
}

// DefaultChains wires the reel, post and file-share fallback policy.
func DefaultChains(video, photo, file Resolver) *Chains {
	c := NewChains()
	c.Set(link.HintVideo, video)
	c.Set(link.HintMixed, video, photo)
	c.Set(link.HintFile, file)
	return c
}

// Set replaces the chain for hint. Nil resolvers are skipped.
func (c *Chains) Set(hint link.Hint, resolvers ...Resolver) {
	kept := make([]Resolver, 0, len(resolvers))
	for _, r := range resolvers {
		if r != nil {
			kept = append(kept, r)
		}
	}
	c.byHint[hint] = kept
}

// Resolve walks the chain for the descriptor's hint and returns the first
// success. When all fail the joined resolver errors are returned.
func (c *Chains) Resolve(ctx context.Context, desc link.Descriptor) (Resolution, error) {
	chain := c.byHint[desc.Hint]
	if len(chain) == 0 {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNoResolver, desc.Hint)
	}
	var errs []error
	for _, r := range chain {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := r.Resolve(ctx, desc.RawURL)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
	}
	return Resolution{}, errors.Join(errs...)
}
