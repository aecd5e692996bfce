// Package stages implements the batch pipeline steps driven by the
// orchestrator: enrich, journeys, attribution and summaries. Each stage pages
// its input in a stable order and is idempotent under reprocessing.
package stages

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// Job type names double as resume-cache key segments and processing-state rows.
const (
	JobEnrich      = "enrich"
	JobJourneys    = "journeys"
	JobAttribution = "attribution"
	JobSummaries   = "summaries"
)

// stateTeam keys the processing-state row when a run is not scoped to a team.
const stateTeam = "all"

// recordState advances the incremental cursor after a successfully persisted
// chunk. Cursor loss never fails the chunk; skip-existing makes reruns cheap.
func recordState(ctx context.Context, store repository.ProcessingStateStore, log *zap.Logger, teamID, jobType string, lastEventTS int64, events, conversions uint64) {
	if store == nil || lastEventTS == 0 {
		return
	}
	if teamID == "" {
		teamID = stateTeam
	}

	state, found, err := store.GetProcessingState(ctx, teamID, jobType)
	if err != nil {
		log.Warn("Failed to read processing state",
			zap.String("job_type", jobType), zap.Error(err))
		return
	}
	if !found {
		state = domain.ProcessingState{TeamID: teamID, JobType: jobType}
	}

	state.LastProcessedAt = time.Now().Unix()
	if lastEventTS > state.LastEventTimestamp {
		state.LastEventTimestamp = lastEventTS
	}
	state.EventsProcessed += events
	state.ConversionsProcessed += conversions

	if err := store.SaveProcessingState(ctx, state); err != nil {
		log.Warn("Failed to save processing state",
			zap.String("job_type", jobType), zap.Error(err))
	}
}

func maxTimestamp(current, candidate int64) int64 {
	if candidate > current {
		return candidate
	}
	return current
}
