package ports

import (
	"context"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/domain/simulation"
)

// BasisRepository persists simulation bases. Serialization of a basis is an
// edge concern; the core only ever sees simbase values.
type BasisRepository interface {
	// SaveBasis stores a plain basis under a new ID
	SaveBasis(ctx context.Context, name string, basis *simbase.Basis) (core.BasisID, error)

	// SaveGrouped stores a grouped basis under a new ID
	SaveGrouped(ctx context.Context, name string, grouped *simbase.GroupedBasis) (core.BasisID, error)

	// GetBasis loads a plain basis by ID
	GetBasis(ctx context.Context, id core.BasisID) (*simbase.Basis, error)

	// GetGrouped loads a grouped basis by ID
	GetGrouped(ctx context.Context, id core.BasisID) (*simbase.GroupedBasis, error)
}

// RunRepository persists simulation run manifests
type RunRepository interface {
	// SaveRun stores a run manifest
	SaveRun(ctx context.Context, manifest *simulation.RunManifest) error

	// GetRun loads a run manifest by ID
	GetRun(ctx context.Context, id core.RunID) (*simulation.RunManifest, error)

	// ListRuns returns manifests in reverse creation order
	ListRuns(ctx context.Context, limit int) ([]*simulation.RunManifest, error)
}
