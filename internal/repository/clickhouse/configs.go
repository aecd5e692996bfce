package clickhouse

import (
	"context"
	"fmt"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// PlatformConfigs reads ad_platform_config_default. found is false when the
// table is missing or empty; callers fall back to the hardcoded defaults.
func (r *Repository) PlatformConfigs(ctx context.Context) (map[string]domain.PlatformConfig, bool, error) {
	query := `
		SELECT platform, click_window_days, view_window_days, priority, attribution_model
		FROM ad_platform_config_default`

	rows, err := r.client.Conn().Query(ctx, query)
	if err != nil {
		if tableMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query platform configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]domain.PlatformConfig)
	for rows.Next() {
		var cfg domain.PlatformConfig
		if err := rows.Scan(&cfg.Platform, &cfg.ClickWindowDays, &cfg.ViewWindowDays, &cfg.Priority, &cfg.Model); err != nil {
			return nil, false, fmt.Errorf("failed to scan platform config row: %w", err)
		}
		configs[cfg.Platform] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating platform config rows: %w", err)
	}

	if len(configs) == 0 {
		return nil, false, nil
	}
	return configs, true, nil
}

// ConversionConfigs reads conversion_events_config_default for one team,
// falling back to team-agnostic rows. found is false when the table is
// missing or nothing applies.
func (r *Repository) ConversionConfigs(ctx context.Context, teamID string) (map[string]float64, bool, error) {
	query := `
		SELECT team_id, event_name, score
		FROM conversion_events_config_default
		WHERE team_id = ? OR team_id = ''`

	rows, err := r.client.Conn().Query(ctx, query, teamID)
	if err != nil {
		if tableMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query conversion configs: %w", err)
	}
	defer rows.Close()

	teamRows := make(map[string]float64)
	defaultRows := make(map[string]float64)
	for rows.Next() {
		var cfg domain.ConversionConfig
		if err := rows.Scan(&cfg.TeamID, &cfg.EventName, &cfg.Score); err != nil {
			return nil, false, fmt.Errorf("failed to scan conversion config row: %w", err)
		}
		if cfg.TeamID == teamID && teamID != "" {
			teamRows[cfg.EventName] = cfg.Score
		} else {
			defaultRows[cfg.EventName] = cfg.Score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating conversion config rows: %w", err)
	}

	// Team-specific config wins outright when present.
	if len(teamRows) > 0 {
		return teamRows, true, nil
	}
	if len(defaultRows) > 0 {
		return defaultRows, true, nil
	}
	return nil, false, nil
}
