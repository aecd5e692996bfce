package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/repository"
	"github.com/touchflow/attribution-pipeline/internal/summary"
)

// SummaryStage recomputes the per-user journey snapshot for every resolved
// user with touchpoints.
type SummaryStage struct {
	touchpoints repository.TouchpointStore
	summaries   repository.SummaryStore
	aggregator  *summary.Aggregator
	state       repository.ProcessingStateStore
	filter      repository.Filter
	log         *zap.Logger
}

func NewSummaryStage(touchpoints repository.TouchpointStore, summaries repository.SummaryStore, aggregator *summary.Aggregator, state repository.ProcessingStateStore, filter repository.Filter, log *zap.Logger) *SummaryStage {
	return &SummaryStage{
		touchpoints: touchpoints,
		summaries:   summaries,
		aggregator:  aggregator,
		state:       state,
		filter:      filter,
		log:         log,
	}
}

func (s *SummaryStage) JobType() string { return JobSummaries }

func (s *SummaryStage) Count(ctx context.Context) (int64, error) {
	return s.touchpoints.CountJourneyUsers(ctx, s.filter)
}

func (s *SummaryStage) Process(ctx context.Context, offset, limit int64, opts pipeline.Options) (pipeline.ChunkResult, error) {
	users, err := s.touchpoints.FetchJourneyUsers(ctx, s.filter, offset, limit)
	if err != nil {
		return pipeline.ChunkResult{}, fmt.Errorf("failed to fetch journey users: %w", err)
	}

	// The user list has no downstream exclusion; summaries are recomputed
	// in place, so the window always advances by the full fetch.
	result := pipeline.ChunkResult{Fetched: int64(len(users)), Remaining: int64(len(users))}
	if len(users) == 0 {
		return result, nil
	}

	var rows []*domain.JourneySummary
	var lastTS int64

	for _, user := range users {
		touchpoints, err := s.touchpoints.FetchUserTouchpoints(ctx, user.TeamID, user.ResolvedUserID)
		if err != nil {
			return result, fmt.Errorf("failed to fetch touchpoints for user %s: %w", user.ResolvedUserID, err)
		}

		snapshot, ok := s.aggregator.Aggregate(ctx, user.TeamID, user.ResolvedUserID, touchpoints)
		if !ok {
			result.Skipped++
			continue
		}
		rows = append(rows, &snapshot)
		lastTS = maxTimestamp(lastTS, snapshot.LastSeenAt)
	}

	if opts.DryRun {
		result.Inserted = int64(len(rows))
		return result, nil
	}

	inserted, err := s.summaries.InsertSummaries(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("failed to insert journey summaries: %w", err)
	}
	result.Inserted = int64(inserted)

	recordState(ctx, s.state, s.log, s.filter.TeamID, JobSummaries, lastTS, uint64(inserted), 0)
	return result, nil
}

var _ pipeline.Stage = (*SummaryStage)(nil)
