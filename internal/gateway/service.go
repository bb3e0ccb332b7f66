// Package gateway exposes the filter over HTTP and WebSocket: runs are
// executed against stored or inline bars, persisted, optionally
// published and announced, and completed runs can be replayed to
// WebSocket clients at a client-chosen pace.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trendfilter/internal/filter"
	"trendfilter/internal/metrics"
	"trendfilter/internal/model"
	"trendfilter/internal/notify"
	"trendfilter/internal/resample"
)

// RunRequest describes one filter run. Bars given inline are used
// directly; otherwise the symbol's stored bars are read.
type RunRequest struct {
	Symbol    string         `json:"symbol"`
	Profile   string         `json:"profile,omitempty"`
	Params    *filter.Params `json:"params,omitempty"` // overrides Profile
	Bars      []model.Bar    `json:"bars,omitempty"`
	FromIndex int            `json:"from_index,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Resample  int            `json:"resample,omitempty"` // >1 groups bars before filtering
}

// Service executes filter runs end to end: resolve parameters, load
// bars, run the engine, persist, publish, notify. Runs is required;
// every other field may stay nil and its stage is skipped.
type Service struct {
	Bars     model.BarStore
	Runs     model.RunStore
	Snaps    model.SnapshotStore
	Pub      model.RunPublisher
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Profiles map[string]filter.Params
}

// Run executes a filter run and returns the persisted summary and its
// records.
func (s *Service) Run(ctx context.Context, req RunRequest) (model.RunSummary, []model.FilterRecord, error) {
	sum, records, err := s.run(ctx, req)
	if err != nil {
		s.countRun("failed")
		s.send(ctx, notify.RunFailed(req.Symbol, err))
		return model.RunSummary{}, nil, err
	}
	s.countRun("completed")
	s.send(ctx, notify.RunCompleted(sum))
	return sum, records, nil
}

func (s *Service) run(ctx context.Context, req RunRequest) (model.RunSummary, []model.FilterRecord, error) {
	var zero model.RunSummary
	start := time.Now().UTC()

	if req.Symbol == "" {
		return zero, nil, fmt.Errorf("%w: symbol required", model.ErrConfig)
	}
	params, err := s.resolveParams(req)
	if err != nil {
		return zero, nil, err
	}
	eng, err := filter.New(params)
	if err != nil {
		return zero, nil, err
	}

	bars := req.Bars
	if len(bars) == 0 {
		if s.Bars == nil {
			return zero, nil, fmt.Errorf("%w: no inline bars and no bar store", model.ErrConfig)
		}
		bars, err = s.Bars.ReadBars(ctx, req.Symbol, req.FromIndex, req.Limit)
		if err != nil {
			return zero, nil, err
		}
		if len(bars) == 0 {
			return zero, nil, fmt.Errorf("%w: no stored bars for %s", model.ErrData, req.Symbol)
		}
	}
	if req.Resample > 1 {
		if bars, err = resample.ByCount(bars, req.Resample); err != nil {
			return zero, nil, err
		}
	}

	records, err := eng.Run(bars)
	if err != nil {
		return zero, nil, err
	}

	sum := eng.Summary()
	sum.RunID = uuid.NewString()
	sum.Symbol = req.Symbol
	sum.StartedAt = start
	sum.FinishedAt = time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return zero, nil, fmt.Errorf("marshal params: %w", err)
	}

	commitStart := time.Now()
	if err := s.Runs.WriteRun(ctx, sum, paramsJSON, records); err != nil {
		return zero, nil, err
	}
	if s.Metrics != nil {
		s.Metrics.SQLiteCommitDur.Observe(time.Since(commitStart).Seconds())
	}

	// The snapshot is a resume convenience; losing it does not undo a
	// persisted run.
	if s.Snaps != nil {
		if data, err := json.Marshal(eng.Snapshot()); err == nil {
			if err := s.Snaps.SaveSnapshotJSON(ctx, sum.RunID, data); err != nil {
				log.Warn().Err(err).Str("run_id", sum.RunID).Msg("snapshot save failed")
			}
		}
	}

	if s.Pub != nil {
		pubStart := time.Now()
		if err := s.Pub.PublishRun(ctx, sum, records); err != nil {
			log.Warn().Err(err).Str("run_id", sum.RunID).Msg("publish failed")
		} else if s.Metrics != nil {
			s.Metrics.RedisPublishDur.Observe(time.Since(pubStart).Seconds())
			s.Metrics.RecordsPublished.Add(float64(len(records)))
		}
	}

	if s.Metrics != nil {
		s.Metrics.BarsProcessed.Add(float64(sum.Bars))
		s.Metrics.FilterChanges.Add(float64(sum.Changes))
		s.Metrics.TrendReversals.Add(float64(sum.Reversals))
		s.Metrics.RunDuration.Observe(sum.FinishedAt.Sub(sum.StartedAt).Seconds())
	}
	if s.Health != nil {
		s.Health.SetLastRunAt(sum.FinishedAt)
	}

	log.Info().Str("run_id", sum.RunID).Str("symbol", sum.Symbol).
		Int("bars", sum.Bars).Int("changes", sum.Changes).Int("reversals", sum.Reversals).
		Float64("final", sum.FinalFilter).Stringer("direction", sum.FinalDirection).
		Msg("run completed")
	return sum, records, nil
}

// resolveParams picks the explicit parameter set if given, then the
// named profile, then the engine defaults.
func (s *Service) resolveParams(req RunRequest) (filter.Params, error) {
	if req.Params != nil {
		return *req.Params, nil
	}
	name := req.Profile
	if name == "" {
		name = "default"
	}
	if p, ok := s.Profiles[name]; ok {
		return p, nil
	}
	if name == "default" {
		return filter.DefaultParams(), nil
	}
	return filter.Params{}, fmt.Errorf("%w: unknown profile %q", model.ErrConfig, name)
}

// GetRun loads a run summary and the parameter JSON it ran with.
func (s *Service) GetRun(ctx context.Context, runID string) (model.RunSummary, json.RawMessage, error) {
	sum, err := s.Runs.ReadRun(ctx, runID)
	if err != nil {
		return model.RunSummary{}, nil, err
	}
	params, err := s.Runs.ReadRunParams(ctx, runID)
	if err != nil {
		return model.RunSummary{}, nil, err
	}
	return sum, params, nil
}

// GetRunRecords loads a run's records ordered by index.
func (s *Service) GetRunRecords(ctx context.Context, runID string) ([]model.FilterRecord, error) {
	return s.Runs.ReadRunRecords(ctx, runID)
}

// ListRuns lists stored runs newest first.
func (s *Service) ListRuns(ctx context.Context, symbol string, limit int) ([]model.RunSummary, error) {
	return s.Runs.ListRuns(ctx, symbol, limit)
}

// ProfileParams returns the resolved parameter sets clients can run
// with, always including "default".
func (s *Service) ProfileParams() map[string]filter.Params {
	out := make(map[string]filter.Params, len(s.Profiles)+1)
	for name, p := range s.Profiles {
		out[name] = p
	}
	if _, ok := out["default"]; !ok {
		out["default"] = filter.DefaultParams()
	}
	return out
}

func (s *Service) countRun(outcome string) {
	if s.Metrics != nil {
		s.Metrics.RunsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) send(ctx context.Context, ev notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, ev); err != nil {
		log.Warn().Err(err).Str("title", ev.Title).Msg("notification failed")
	}
}
