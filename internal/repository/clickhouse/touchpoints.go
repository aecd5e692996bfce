package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

const touchpointColumns = `team_id, resolved_user_id, user_id, anonymous_id, session_id,
	message_id, event_name, sequence_number, timestamp,
	first_touch_timestamp, first_touch_source, first_touch_medium,
	first_touch_campaign, first_touch_platform, first_touch_channel,
	utm_source, utm_medium, utm_campaign, traffic_channel, platform, click_id,
	is_conversion, conversion_score, conversion_value, revenue, currency, order_id,
	days_since_first_touch, hours_since_first_touch, hours_since_prev_touch,
	processed_at, version`

func scanTouchpoint(scan func(dest ...interface{}) error) (domain.Touchpoint, error) {
	var tp domain.Touchpoint
	err := scan(
		&tp.TeamID, &tp.ResolvedUserID, &tp.UserID, &tp.AnonymousID, &tp.SessionID,
		&tp.MessageID, &tp.EventName, &tp.SequenceNumber, &tp.Timestamp,
		&tp.FirstTouchTimestamp, &tp.FirstTouchSource, &tp.FirstTouchMedium,
		&tp.FirstTouchCampaign, &tp.FirstTouchPlatform, &tp.FirstTouchChannel,
		&tp.UTMSource, &tp.UTMMedium, &tp.UTMCampaign, &tp.TrafficChannel, &tp.Platform, &tp.ClickID,
		&tp.IsConversion, &tp.ConversionScore, &tp.ConversionValue, &tp.Revenue, &tp.Currency, &tp.OrderID,
		&tp.DaysSinceFirstTouch, &tp.HoursSinceFirstTouch, &tp.HoursSincePrevTouch,
		&tp.ProcessedAt, &tp.Version,
	)
	return tp, err
}

// InsertTouchpoints writes journey steps to user_touchpoints.
func (r *Repository) InsertTouchpoints(ctx context.Context, touchpoints []*domain.Touchpoint) (int, error) {
	if len(touchpoints) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO user_touchpoints")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, tp := range touchpoints {
		if tp.Version == 0 {
			tp.Version = uint64(time.Now().UnixNano())
		}

		err := batch.Append(
			tp.TeamID, tp.ResolvedUserID, tp.UserID, tp.AnonymousID, tp.SessionID,
			tp.MessageID, tp.EventName, tp.SequenceNumber, tp.Timestamp,
			tp.FirstTouchTimestamp, tp.FirstTouchSource, tp.FirstTouchMedium,
			tp.FirstTouchCampaign, tp.FirstTouchPlatform, tp.FirstTouchChannel,
			tp.UTMSource, tp.UTMMedium, tp.UTMCampaign, tp.TrafficChannel, tp.Platform, tp.ClickID,
			tp.IsConversion, tp.ConversionScore, tp.ConversionValue, tp.Revenue, tp.Currency, tp.OrderID,
			tp.DaysSinceFirstTouch, tp.HoursSinceFirstTouch, tp.HoursSincePrevTouch,
			tp.ProcessedAt, tp.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append touchpoint to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}

// GetJourneyState reads the persisted sequence count plus the first-touch
// snapshot and last timestamp for one user's journey.
func (r *Repository) GetJourneyState(ctx context.Context, teamID, resolvedUserID string) (repository.JourneyState, bool, error) {
	var s repository.JourneyState

	query := `
		SELECT count() AS cnt,
		       min(first_touch_timestamp) AS first_ts,
		       argMin(first_touch_source, sequence_number) AS first_source,
		       argMin(first_touch_medium, sequence_number) AS first_medium,
		       argMin(first_touch_campaign, sequence_number) AS first_campaign,
		       argMin(first_touch_platform, sequence_number) AS first_platform,
		       argMin(first_touch_channel, sequence_number) AS first_channel,
		       max(timestamp) AS last_ts
		FROM user_touchpoints FINAL
		WHERE team_id = ? AND resolved_user_id = ?`

	row := r.client.Conn().QueryRow(ctx, query, teamID, resolvedUserID)
	var count uint64
	if err := row.Scan(
		&count, &s.FirstTouchTimestamp,
		&s.FirstTouchSource, &s.FirstTouchMedium, &s.FirstTouchCampaign,
		&s.FirstTouchPlatform, &s.FirstTouchChannel,
		&s.LastTimestamp,
	); err != nil {
		if isNoRows(err) {
			return repository.JourneyState{}, false, nil
		}
		return repository.JourneyState{}, false, fmt.Errorf("failed to query journey state: %w", err)
	}
	if count == 0 {
		return repository.JourneyState{}, false, nil
	}
	s.Count = uint32(count)
	return s, true, nil
}

// CountConversions counts conversion touchpoints matching the filter.
// SkipExisting excludes conversions already attributed.
func (r *Repository) CountConversions(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf("SELECT count() FROM user_touchpoints FINAL %s AND is_conversion = 1", where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT conversion_message_id FROM attributed_conversions)"
	}

	var count uint64
	if err := r.client.Conn().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return int64(count), nil
}

// FetchConversions pages conversion touchpoints ordered by (timestamp, message_id).
func (r *Repository) FetchConversions(ctx context.Context, f repository.Filter, offset, limit int64) ([]domain.Touchpoint, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT %s FROM user_touchpoints FINAL
		%s AND is_conversion = 1`, touchpointColumns, where)
	if f.SkipExisting {
		query += " AND message_id NOT IN (SELECT conversion_message_id FROM attributed_conversions)"
	}
	query += " ORDER BY timestamp, message_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return r.queryTouchpoints(ctx, query, args...)
}

// FetchTouchpointsBefore returns a user's touchpoints strictly before ts,
// ordered by sequence number.
func (r *Repository) FetchTouchpointsBefore(ctx context.Context, teamID, resolvedUserID string, ts int64) ([]domain.Touchpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_touchpoints FINAL
		WHERE team_id = ? AND resolved_user_id = ? AND timestamp < ?
		ORDER BY sequence_number`, touchpointColumns)

	return r.queryTouchpoints(ctx, query, teamID, resolvedUserID, ts)
}

// CountJourneyUsers counts distinct journey owners with touchpoints.
func (r *Repository) CountJourneyUsers(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf("SELECT uniqExact(team_id, resolved_user_id) FROM user_touchpoints FINAL %s", where)

	var count uint64
	if err := r.client.Conn().QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journey users: %w", err)
	}
	return int64(count), nil
}

// FetchJourneyUsers pages distinct (team, resolved user) pairs in a stable order.
func (r *Repository) FetchJourneyUsers(ctx context.Context, f repository.Filter, offset, limit int64) ([]repository.JourneyUser, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT DISTINCT team_id, resolved_user_id
		FROM user_touchpoints FINAL
		%s
		ORDER BY team_id, resolved_user_id
		LIMIT ? OFFSET ?`, where)
	args = append(args, limit, offset)

	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey users: %w", err)
	}
	defer rows.Close()

	var users []repository.JourneyUser
	for rows.Next() {
		var u repository.JourneyUser
		if err := rows.Scan(&u.TeamID, &u.ResolvedUserID); err != nil {
			return nil, fmt.Errorf("failed to scan journey user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journey user rows: %w", err)
	}
	return users, nil
}

// FetchUserTouchpoints returns all of one user's touchpoints in sequence order.
func (r *Repository) FetchUserTouchpoints(ctx context.Context, teamID, resolvedUserID string) ([]domain.Touchpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_touchpoints FINAL
		WHERE team_id = ? AND resolved_user_id = ?
		ORDER BY sequence_number`, touchpointColumns)

	return r.queryTouchpoints(ctx, query, teamID, resolvedUserID)
}

func (r *Repository) queryTouchpoints(ctx context.Context, query string, args ...interface{}) ([]domain.Touchpoint, error) {
	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query touchpoints: %w", err)
	}
	defer rows.Close()

	var touchpoints []domain.Touchpoint
	for rows.Next() {
		tp, err := scanTouchpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan touchpoint row: %w", err)
		}
		touchpoints = append(touchpoints, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating touchpoint rows: %w", err)
	}
	return touchpoints, nil
}
