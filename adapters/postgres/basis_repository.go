// Package postgres persists simulation bases and run manifests.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"timbersim/domain/core"
	"timbersim/domain/simbase"
	"timbersim/ports"

	"github.com/jmoiron/sqlx"
)

// basisRepository implements the BasisRepository interface
type basisRepository struct {
	db *sqlx.DB
}

// NewBasisRepository creates a new basis repository
func NewBasisRepository(db *sqlx.DB) ports.BasisRepository {
	return &basisRepository{db: db}
}

const (
	basisKindPlain   = "plain"
	basisKindGrouped = "grouped"
)

// SaveBasis stores a plain basis as its JSON payload
func (r *basisRepository) SaveBasis(ctx context.Context, name string, basis *simbase.Basis) (core.BasisID, error) {
	return r.save(ctx, name, basisKindPlain, basis.ToPayload())
}

// SaveGrouped stores a grouped basis as its JSON payload
func (r *basisRepository) SaveGrouped(ctx context.Context, name string, grouped *simbase.GroupedBasis) (core.BasisID, error) {
	return r.save(ctx, name, basisKindGrouped, grouped.ToPayload())
}

func (r *basisRepository) save(ctx context.Context, name, kind string, payload interface{}) (core.BasisID, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal basis payload: %w", err)
	}

	id := core.BasisID(core.NewID())
	query := `INSERT INTO bases (id, name, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`
	if _, err := r.db.ExecContext(ctx, query, id, name, kind, payloadJSON); err != nil {
		return "", fmt.Errorf("failed to save basis: %w", err)
	}
	return id, nil
}

// GetBasis loads a plain basis by ID
func (r *basisRepository) GetBasis(ctx context.Context, id core.BasisID) (*simbase.Basis, error) {
	payloadJSON, err := r.load(ctx, id, basisKindPlain)
	if err != nil {
		return nil, err
	}
	var payload simbase.Payload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal basis %s: %w", id, err)
	}
	return simbase.FromPayload(payload)
}

// GetGrouped loads a grouped basis by ID
func (r *basisRepository) GetGrouped(ctx context.Context, id core.BasisID) (*simbase.GroupedBasis, error) {
	payloadJSON, err := r.load(ctx, id, basisKindGrouped)
	if err != nil {
		return nil, err
	}
	var payload simbase.GroupedPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grouped basis %s: %w", id, err)
	}
	return simbase.GroupedFromPayload(payload)
}

func (r *basisRepository) load(ctx context.Context, id core.BasisID, kind string) ([]byte, error) {
	query := `SELECT payload FROM bases WHERE id = $1 AND kind = $2`
	var payloadJSON []byte
	if err := r.db.GetContext(ctx, &payloadJSON, query, id, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("basis %s not found", id)
		}
		return nil, fmt.Errorf("failed to load basis %s: %w", id, err)
	}
	return payloadJSON, nil
}
