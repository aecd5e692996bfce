package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/attribution"
	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// AttributionStage credits each conversion's prior touchpoints under the
// platform and deduplicated views.
type AttributionStage struct {
	touchpoints repository.TouchpointStore
	results     repository.AttributionStore
	configs     repository.ConfigStore
	state       repository.ProcessingStateStore
	filter      repository.Filter
	log         *zap.Logger

	calc *attribution.Calculator
}

func NewAttributionStage(touchpoints repository.TouchpointStore, results repository.AttributionStore, configs repository.ConfigStore, state repository.ProcessingStateStore, filter repository.Filter, log *zap.Logger) *AttributionStage {
	return &AttributionStage{
		touchpoints: touchpoints,
		results:     results,
		configs:     configs,
		state:       state,
		filter:      filter,
		log:         log,
	}
}

func (s *AttributionStage) JobType() string { return JobAttribution }

func (s *AttributionStage) Count(ctx context.Context) (int64, error) {
	f := s.filter
	f.SkipExisting = true
	return s.touchpoints.CountConversions(ctx, f)
}

func (s *AttributionStage) Process(ctx context.Context, offset, limit int64, opts pipeline.Options) (pipeline.ChunkResult, error) {
	f := s.filter
	f.SkipExisting = opts.SkipExisting

	conversions, err := s.touchpoints.FetchConversions(ctx, f, offset, limit)
	if err != nil {
		return pipeline.ChunkResult{}, fmt.Errorf("failed to fetch conversions: %w", err)
	}

	result := pipeline.ChunkResult{Fetched: int64(len(conversions))}
	if len(conversions) == 0 {
		return result, nil
	}

	calc, err := s.calculator(ctx)
	if err != nil {
		return result, err
	}

	var rows []*domain.AttributionResult
	var lastTS int64
	attributed := uint64(0)

	for _, conv := range conversions {
		prior, err := s.touchpoints.FetchTouchpointsBefore(ctx, conv.TeamID, conv.ResolvedUserID, conv.Timestamp)
		if err != nil {
			return result, fmt.Errorf("failed to fetch touchpoints for conversion %s: %w", conv.MessageID, err)
		}

		credited := calc.Calculate(conv, prior)
		if len(credited) == 0 {
			// Nothing inside any window: the conversion stays unattributed.
			result.Skipped++
			continue
		}
		for i := range credited {
			rows = append(rows, &credited[i])
		}
		attributed++
		lastTS = maxTimestamp(lastTS, conv.Timestamp)
	}

	// Unattributed conversions write no attributed_conversions rows, so
	// they stay visible to a skip-existing refetch.
	result.Remaining = result.Skipped

	if opts.DryRun {
		result.Inserted = int64(len(rows))
		return result, nil
	}

	inserted, err := s.results.InsertAttributionResults(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("failed to insert attribution results: %w", err)
	}
	result.Inserted = int64(inserted)

	recordState(ctx, s.state, s.log, s.filter.TeamID, JobAttribution, lastTS, 0, attributed)
	return result, nil
}

// calculator reads the platform config table once per run, falling back to
// the built-in defaults when the table is missing or empty.
func (s *AttributionStage) calculator(ctx context.Context) (*attribution.Calculator, error) {
	if s.calc != nil {
		return s.calc, nil
	}

	var configs map[string]domain.PlatformConfig
	if s.configs != nil {
		loaded, found, err := s.configs.PlatformConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load platform configs: %w", err)
		}
		if found {
			configs = loaded
		}
	}

	s.calc = attribution.NewCalculator(configs)
	return s.calc, nil
}

var _ pipeline.Stage = (*AttributionStage)(nil)
