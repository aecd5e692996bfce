package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// GetProcessingState reads the incremental cursor for (team, job type).
func (r *Repository) GetProcessingState(ctx context.Context, teamID, jobType string) (domain.ProcessingState, bool, error) {
	var s domain.ProcessingState

	query := `
		SELECT team_id, job_type, last_processed_at, last_event_timestamp,
		       events_processed, conversions_processed
		FROM attribution_processing_state FINAL
		WHERE team_id = ? AND job_type = ?
		LIMIT 1`

	row := r.client.Conn().QueryRow(ctx, query, teamID, jobType)
	if err := row.Scan(
		&s.TeamID, &s.JobType, &s.LastProcessedAt, &s.LastEventTimestamp,
		&s.EventsProcessed, &s.ConversionsProcessed,
	); err != nil {
		if isNoRows(err) {
			return domain.ProcessingState{}, false, nil
		}
		return domain.ProcessingState{}, false, fmt.Errorf("failed to query processing state: %w", err)
	}
	return s, true, nil
}

// SaveProcessingState replaces the cursor row; ReplacingMergeTree keeps the
// newest version.
func (r *Repository) SaveProcessingState(ctx context.Context, state domain.ProcessingState) error {
	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO attribution_processing_state")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	err = batch.Append(
		state.TeamID, state.JobType, state.LastProcessedAt, state.LastEventTimestamp,
		state.EventsProcessed, state.ConversionsProcessed,
		uint64(time.Now().UnixNano()),
	)
	if err != nil {
		return fmt.Errorf("failed to append processing state to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
