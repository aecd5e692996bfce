package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// InsertRawEvents appends ingested events to event_upload_logs.
func (r *Repository) InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO event_upload_logs")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, e := range events {
		if e.Version == 0 {
			e.Version = uint64(time.Now().UnixNano())
		}
		props := e.Properties
		if props == "" {
			props = "{}"
		}

		err := batch.Append(
			e.TeamID, e.SourceID, e.MessageID, e.EventType, e.EventName,
			e.UserID, e.AnonymousID, e.SessionID, e.Timestamp, props,
			e.ReceivedAt, e.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append raw event to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}

// CountRawEvents counts rows matching the filter. With SkipExisting set the
// already-enriched rows are excluded via an anti-join on message_id.
func (r *Repository) CountRawEvents(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf("SELECT count() FROM event_upload_logs FINAL %s", where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT message_id FROM event_enriched)"
	}

	var count uint64
	if err := r.client.Conn().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count raw events: %w", err)
	}
	return int64(count), nil
}

// FetchRawEvents pages matching rows ordered by (timestamp, message_id).
func (r *Repository) FetchRawEvents(ctx context.Context, f repository.Filter, offset, limit int64) ([]domain.RawEvent, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT team_id, source_id, message_id, event_type, event_name,
		       user_id, anonymous_id, session_id, timestamp, properties,
		       received_at, version
		FROM event_upload_logs FINAL
		%s`, where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT message_id FROM event_enriched)"
	}
	query += " ORDER BY timestamp, message_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw events: %w", err)
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		var e domain.RawEvent
		if err := rows.Scan(
			&e.TeamID, &e.SourceID, &e.MessageID, &e.EventType, &e.EventName,
			&e.UserID, &e.AnonymousID, &e.SessionID, &e.Timestamp, &e.Properties,
			&e.ReceivedAt, &e.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan raw event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw event rows: %w", err)
	}
	return events, nil
}

// InsertEnrichedEvents writes classifier output to event_enriched.
func (r *Repository) InsertEnrichedEvents(ctx context.Context, events []*domain.EnrichedEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO event_enriched")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, e := range events {
		if e.Version == 0 {
			e.Version = uint64(time.Now().UnixNano())
		}

		err := batch.Append(
			e.TeamID, e.SourceID, e.MessageID, e.EventType, e.EventName,
			e.UserID, e.AnonymousID, e.SessionID, e.Timestamp,
			e.PageURL, e.PagePath, e.PageTitle, e.PageQuery, e.PageDomain,
			e.LandingReferrer, e.ReferringDomain,
			e.UTMSource, e.UTMMedium, e.UTMCampaign, e.UTMTerm, e.UTMContent,
			e.UTMID, e.UTMSourcePlatform, e.UTMContentType,
			e.ClickID, e.ClickIDParam,
			e.IsDirect, e.IsPaid, e.TrafficChannel, e.Platform,
			e.ConversionValue, e.Revenue, e.Currency, e.OrderID,
			e.ProcessedAt, e.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append enriched event to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}

// CountEnrichedEvents counts enriched rows matching the filter. SkipExisting
// excludes rows already turned into touchpoints.
func (r *Repository) CountEnrichedEvents(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf("SELECT count() FROM event_enriched FINAL %s", where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT message_id FROM user_touchpoints)"
	}

	var count uint64
	if err := r.client.Conn().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count enriched events: %w", err)
	}
	return int64(count), nil
}

// FetchEnrichedEvents pages enriched rows ordered by (timestamp, message_id).
func (r *Repository) FetchEnrichedEvents(ctx context.Context, f repository.Filter, offset, limit int64) ([]domain.EnrichedEvent, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT team_id, source_id, message_id, event_type, event_name,
		       user_id, anonymous_id, session_id, timestamp,
		       page_url, page_path, page_title, page_query, page_domain,
		       landing_referrer, referring_domain,
		       utm_source, utm_medium, utm_campaign, utm_term, utm_content,
		       utm_id, utm_source_platform, utm_content_type,
		       click_id, click_id_param,
		       is_direct, is_paid, traffic_channel, platform,
		       conversion_value, revenue, currency, order_id,
		       processed_at, version
		FROM event_enriched FINAL
		%s`, where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT message_id FROM user_touchpoints)"
	}
	query += " ORDER BY timestamp, message_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enriched events: %w", err)
	}
	defer rows.Close()

	var events []domain.EnrichedEvent
	for rows.Next() {
		var e domain.EnrichedEvent
		if err := rows.Scan(
			&e.TeamID, &e.SourceID, &e.MessageID, &e.EventType, &e.EventName,
			&e.UserID, &e.AnonymousID, &e.SessionID, &e.Timestamp,
			&e.PageURL, &e.PagePath, &e.PageTitle, &e.PageQuery, &e.PageDomain,
			&e.LandingReferrer, &e.ReferringDomain,
			&e.UTMSource, &e.UTMMedium, &e.UTMCampaign, &e.UTMTerm, &e.UTMContent,
			&e.UTMID, &e.UTMSourcePlatform, &e.UTMContentType,
			&e.ClickID, &e.ClickIDParam,
			&e.IsDirect, &e.IsPaid, &e.TrafficChannel, &e.Platform,
			&e.ConversionValue, &e.Revenue, &e.Currency, &e.OrderID,
			&e.ProcessedAt, &e.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enriched event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enriched event rows: %w", err)
	}
	return events, nil
}
