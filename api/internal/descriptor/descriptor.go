// Package descriptor defines the boundary to molecular descriptor calculators.
package descriptor

import "context"

// Mapping is descriptor name -> value for one compound.
type Mapping map[string]float64

// Provider computes descriptors for a structure identifier (SMILES).
// Invalid identifiers are reported as errors; validation is the provider's job.
type Provider interface {
	Name() string
	Compute(ctx context.Context, smiles string) (Mapping, error)
}
