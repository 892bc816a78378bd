package descriptor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pkm2-predict/api/internal/util"
)

// ErrCacheMiss is returned by a Store that has no entry for a key.
var ErrCacheMiss = errors.New("descriptor cache miss")

// Store persists computed mappings keyed by identifier hash and provider name.
type Store interface {
	FindDescriptors(ctx context.Context, key, provider string) (Mapping, error)
	SaveDescriptors(ctx context.Context, key, provider string, m Mapping) error
}

// Cached memoizes Next. Descriptors of a given identifier are deterministic,
// so a hit is returned without calling Next. Failures are never stored.
type Cached struct {
	Next  Provider
	Store Store
	Log   *zap.Logger
}

func NewCached(next Provider, store Store, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{Next: next, Store: store, Log: log}
}

func (c *Cached) Name() string { return c.Next.Name() }

func (c *Cached) Compute(ctx context.Context, smiles string) (Mapping, error) {
	key := util.SHA256Hex(smiles)
	m, err := c.Store.FindDescriptors(ctx, key, c.Next.Name())
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.Log.Warn("descriptor cache lookup failed", zap.String("provider", c.Next.Name()), zap.Error(err))
	}

	m, err = c.Next.Compute(ctx, smiles)
	if err != nil {
		return nil, err
	}
	if err := c.Store.SaveDescriptors(ctx, key, c.Next.Name(), m); err != nil {
		c.Log.Warn("descriptor cache save failed", zap.String("provider", c.Next.Name()), zap.Error(err))
	}
	return m, nil
}
