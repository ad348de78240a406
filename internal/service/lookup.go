package service

import (
	"strings"

	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/andresuchdata/order-tracker/internal/domain"
)

// LookupConfig carries the per-deployment schema and pipeline.
type LookupConfig struct {
	KeyColumn    string
	StatusColumn string
	Pipeline     *domain.Pipeline
}

// Lookup resolves rawKey against a loaded snapshot. loadErr is the failure
// returned by the cache, if any. Every outcome is an ordinary value.
func Lookup(rawKey string, ds *dataset.Dataset, loadErr error, cfg LookupConfig) domain.LookupResult {
	key := strings.TrimSpace(rawKey)
	result := domain.LookupResult{
		Query:    key,
		Pipeline: cfg.Pipeline.Labels(),
	}

	if key == "" {
		result.Outcome = domain.OutcomeEmptyQuery
		return result
	}

	if loadErr != nil || ds == nil {
		result.Outcome = domain.OutcomeUnavailable
		result.Err = loadErr
		return result
	}

	row, ok := ds.Find(cfg.KeyColumn, key)
	if !ok {
		result.Outcome = domain.OutcomeNotFound
		return result
	}

	order := domain.NewOrder(row, cfg.KeyColumn, cfg.StatusColumn)
	stage, ranked := cfg.Pipeline.Rank(order.Status)

	result.Outcome = domain.OutcomeFound
	result.Order = order
	result.Stage = stage
	result.Ranked = ranked
	result.Progress = cfg.Pipeline.Progress(order.Status)
	return result
}
