// ABOUTME: Model rate resolution: store-backed lookup, TTL cache, config fallback
// ABOUTME: Unknown models fall through to a configured default rate

package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agentgaia/gaia-gateway/internal/store"
)

// Rate is the cost per 1,000 tokens in USD for one model.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// DefaultRate is the ultimate fallback when neither the rate table nor
// configuration knows a model ($10/$30 per MTok).
var DefaultRate = Rate{InputPer1K: 0.01, OutputPer1K: 0.03}

// RateSource resolves a model name to its cost rates.
type RateSource interface {
	Rate(ctx context.Context, model string) Rate
}

// CostStore is the slice of the persistence layer the rate source needs.
type CostStore interface {
	GetModelCost(ctx context.Context, model string) (*store.ModelCost, error)
}

// StoreRates resolves rates from the model cost table, caching results
// with a TTL. Models missing from the table fall back to configured
// rates, then to DefaultRate. Lookup failures are logged and never fail
// the turn.
type StoreRates struct {
	store    CostStore
	cache    *rateCache
	fallback map[string]Rate
	logger   *slog.Logger
}

// NewStoreRates creates a rate source. fallback maps model names to
// config-level rates; pass nil when configuration carries none.
func NewStoreRates(costStore CostStore, fallback map[string]Rate, logger *slog.Logger) *StoreRates {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRates{
		store:    costStore,
		cache:    newRateCache(10 * time.Minute),
		fallback: fallback,
		logger:   logger.With("component", "rates"),
	}
}

// Rate resolves the cost rates for a model.
func (r *StoreRates) Rate(ctx context.Context, model string) Rate {
	if rate, ok := r.cache.get(model); ok {
		return rate
	}

	if r.store != nil {
		cost, err := r.store.GetModelCost(ctx, model)
		switch {
		case err == nil:
			rate := Rate{InputPer1K: cost.InputCostPer1K(), OutputPer1K: cost.OutputCostPer1K()}
			r.cache.put(model, rate)
			return rate
		case !errors.Is(err, store.ErrNotFound):
			r.logger.Warn("rate table lookup failed, using fallback",
				"model", model,
				"error", err)
		}
	}

	if rate, ok := r.fallback[model]; ok {
		return rate
	}

	r.logger.Debug("model not in rate table, using default rate", "model", model)
	return DefaultRate
}

// Close releases the cache's background goroutine.
func (r *StoreRates) Close() {
	r.cache.Close()
}
