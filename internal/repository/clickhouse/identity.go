package clickhouse

import (
	"context"
	"fmt"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// LookupMappings returns the most-recently-seen mapping per anonymous id in
// one multi-key query.
func (r *Repository) LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error) {
	result := make(map[string]domain.IdentityMapping)
	if len(anonymousIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT team_id, anonymous_id,
		       argMax(user_id, last_seen_at) AS user_id,
		       min(first_seen_at) AS first_seen_at,
		       max(last_seen_at) AS last_seen_at
		FROM identity_mappings
		WHERE team_id = ? AND anonymous_id IN (?)
		GROUP BY team_id, anonymous_id`

	rows, err := r.client.Conn().Query(ctx, query, teamID, anonymousIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.IdentityMapping
		if err := rows.Scan(&m.TeamID, &m.AnonymousID, &m.UserID, &m.FirstSeenAt, &m.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity mapping row: %w", err)
		}
		result[m.AnonymousID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identity mapping rows: %w", err)
	}
	return result, nil
}

// InsertMappings appends identity edges; history is kept, never rewritten.
func (r *Repository) InsertMappings(ctx context.Context, mappings []domain.IdentityMapping) (int, error) {
	if len(mappings) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO identity_mappings")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	inserted := 0
	for _, m := range mappings {
		if err := batch.Append(m.TeamID, m.AnonymousID, m.UserID, m.FirstSeenAt, m.LastSeenAt); err != nil {
			return 0, fmt.Errorf("failed to append identity mapping to batch: %w", err)
		}
		inserted++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return inserted, nil
}

// GetProfile reads one contact row from the optional user_profiles table.
// A missing table reads as not-found.
func (r *Repository) GetProfile(ctx context.Context, teamID, userID string) (domain.UserProfile, bool, error) {
	var p domain.UserProfile

	query := `
		SELECT team_id, user_id, email, phone, name, username
		FROM user_profiles
		WHERE team_id = ? AND user_id = ?
		LIMIT 1`

	row := r.client.Conn().QueryRow(ctx, query, teamID, userID)
	if err := row.Scan(&p.TeamID, &p.UserID, &p.Email, &p.Phone, &p.Name, &p.Username); err != nil {
		if tableMissing(err) || isNoRows(err) {
			return domain.UserProfile{}, false, nil
		}
		return domain.UserProfile{}, false, fmt.Errorf("failed to query user profile: %w", err)
	}
	return p, true, nil
}
