package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"timbersim/domain/core"
	"timbersim/domain/simulation"
	"timbersim/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// SaveRun stores a run manifest
func (r *runRepository) SaveRun(ctx context.Context, manifest *simulation.RunManifest) error {
	payloadJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal run manifest: %w", err)
	}

	query := `INSERT INTO simulation_runs (id, seed, n, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query,
		manifest.RunID, manifest.Seed, manifest.N, payloadJSON, manifest.CreatedAt.Time())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", manifest.RunID, err)
	}
	return nil
}

// GetRun loads a run manifest by ID
func (r *runRepository) GetRun(ctx context.Context, id core.RunID) (*simulation.RunManifest, error) {
	query := `SELECT payload FROM simulation_runs WHERE id = $1`
	var payloadJSON []byte
	if err := r.db.GetContext(ctx, &payloadJSON, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	var manifest simulation.RunManifest
	if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}
	return &manifest, nil
}

// ListRuns returns manifests in reverse creation order
func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]*simulation.RunManifest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT payload FROM simulation_runs ORDER BY created_at DESC LIMIT $1`
	var payloads [][]byte
	if err := r.db.SelectContext(ctx, &payloads, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]*simulation.RunManifest, 0, len(payloads))
	for _, payloadJSON := range payloads {
		var manifest simulation.RunManifest
		if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run payload: %w", err)
		}
		out = append(out, &manifest)
	}
	return out, nil
}
