package service

import (
	"context"
	"strings"

	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/andresuchdata/order-tracker/internal/domain"
	"github.com/rs/zerolog/log"
)

// SnapshotLoader is satisfied by *cache.SnapshotCache.
type SnapshotLoader interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

type TrackerService struct {
	snapshots SnapshotLoader
	cfg       LookupConfig
	keyLabel  string
}

func NewTrackerService(snapshots SnapshotLoader, cfg LookupConfig, keyLabel string) *TrackerService {
	if keyLabel == "" {
		keyLabel = "Order Number"
	}
	return &TrackerService{snapshots: snapshots, cfg: cfg, keyLabel: keyLabel}
}

// Track looks up one order. An empty query is answered without touching
// the snapshot cache.
func (s *TrackerService) Track(ctx context.Context, rawKey string) domain.LookupResult {
	if strings.TrimSpace(rawKey) == "" {
		return Lookup(rawKey, nil, nil, s.cfg)
	}

	ds, err := s.snapshots.Load(ctx)
	result := Lookup(rawKey, ds, err, s.cfg)

	event := log.Debug()
	if result.Outcome == domain.OutcomeUnavailable {
		event = log.Warn().Err(result.Err)
	}
	event.
		Str("query", result.Query).
		Str("outcome", string(result.Outcome)).
		Int("progress", result.Progress).
		Msg("order lookup")

	return result
}

// PipelineView is what a client needs to draw the stage flow.
type PipelineView struct {
	KeyLabel string   `json:"key_label"`
	Labels   []string `json:"labels"`
	Flow     []string `json:"flow"`
}

func (s *TrackerService) Pipeline() PipelineView {
	return PipelineView{
		KeyLabel: s.keyLabel,
		Labels:   s.cfg.Pipeline.Labels(),
		Flow:     s.cfg.Pipeline.Flow(),
	}
}
