// ABOUTME: SQLite queries for the model cost rate table
// ABOUTME: Rates are stored per million tokens and consumed per 1K by the usage tracker

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetModelCost returns the active rate row for a model, or ErrNotFound.
func (s *SQLiteStore) GetModelCost(ctx context.Context, model string) (*ModelCost, error) {
	query := `
		SELECT model, provider, input_cost_per_mtok, output_cost_per_mtok, is_active
		FROM model_costs
		WHERE model = ? AND is_active = 1
	`

	var cost ModelCost
	err := s.db.QueryRowContext(ctx, query, model).Scan(
		&cost.Model,
		&cost.Provider,
		&cost.InputCostPerMTok,
		&cost.OutputCostPerMTok,
		&cost.Active,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying model cost: %w", err)
	}
	return &cost, nil
}

// UpsertModelCost inserts or replaces a rate row. Used at startup to
// seed rates from configuration.
func (s *SQLiteStore) UpsertModelCost(ctx context.Context, cost *ModelCost) error {
	query := `
		INSERT INTO model_costs (model, provider, input_cost_per_mtok, output_cost_per_mtok, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model) DO UPDATE SET
			provider = excluded.provider,
			input_cost_per_mtok = excluded.input_cost_per_mtok,
			output_cost_per_mtok = excluded.output_cost_per_mtok,
			is_active = excluded.is_active
	`

	active := 0
	if cost.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, query,
		cost.Model,
		cost.Provider,
		cost.InputCostPerMTok,
		cost.OutputCostPerMTok,
		active,
	)
	if err != nil {
		return fmt.Errorf("upserting model cost: %w", err)
	}

	s.logger.Debug("model cost saved", "model", cost.Model, "provider", cost.Provider)
	return nil
}
