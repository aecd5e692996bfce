package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// InsertAttributionResults writes credited rows to attributed_conversions.
func (r *Repository) InsertAttributionResults(ctx context.Context, results []*domain.AttributionResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO attributed_conversions")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, res := range results {
		if res.Version == 0 {
			res.Version = uint64(time.Now().UnixNano())
		}

		err := batch.Append(
			res.TeamID, res.ConversionMessageID, res.TouchpointMessageID,
			res.ResolvedUserID, res.AttributionType, res.AttributionModel,
			res.Platform, res.TrafficChannel,
			res.Credit, res.AttributedValue, res.AttributedRevenue, res.AttributedScore,
			res.ConversionValue, res.Revenue, res.Currency, res.OrderID,
			res.WithinClickWindow, res.WithinViewWindow,
			res.IsFirstTouch, res.IsLastTouch, res.IsAssisted, res.TouchpointCount,
			res.TouchpointTimestamp, res.ConversionTimestamp, res.DaysToConversion,
			res.ProcessedAt, res.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append attribution result to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}

// InsertSummaries writes journey-summary snapshots; the newest version wins
// on read.
func (r *Repository) InsertSummaries(ctx context.Context, summaries []*domain.JourneySummary) (int, error) {
	if len(summaries) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO user_journey_summary")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, s := range summaries {
		if s.Version == 0 {
			s.Version = uint64(time.Now().UnixNano())
		}

		platforms := s.Platforms
		if platforms == nil {
			platforms = []string{}
		}
		channels := s.Channels
		if channels == nil {
			channels = []string{}
		}

		err := batch.Append(
			s.TeamID, s.ResolvedUserID,
			s.Email, s.Phone, s.Name, s.Username,
			s.FirstSeenAt, s.LastSeenAt,
			s.TouchpointCount, s.ConversionCount,
			s.TotalConversionValue, s.TotalRevenue,
			platforms, channels,
			s.Status, s.DaysSinceLastTouch,
			s.ComputedAt, s.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append summary to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}
