package domain

// PlatformConfig holds per-platform attribution settings from
// ad_platform_config_default. Priority: higher wins in the deduplicated view.
type PlatformConfig struct {
	Platform        string `ch:"platform"`
	ClickWindowDays int64  `ch:"click_window_days"`
	ViewWindowDays  int64  `ch:"view_window_days"`
	Priority        int32  `ch:"priority"`
	Model           string `ch:"attribution_model"`
}

// DefaultPlatformConfig is used when a platform has no explicit row.
func DefaultPlatformConfig(platform string) PlatformConfig {
	return PlatformConfig{
		Platform:        platform,
		ClickWindowDays: 30,
		ViewWindowDays:  1,
		Priority:        1,
		Model:           ModelLastClick,
	}
}

// ConversionConfig marks an event name as a conversion with a score, from
// conversion_events_config_default.
type ConversionConfig struct {
	TeamID    string  `ch:"team_id"`
	EventName string  `ch:"event_name"`
	Score     float64 `ch:"score"`
}

// DefaultConversionScores applies when a team has no conversion rows of its
// own and the default table is missing or empty.
func DefaultConversionScores() map[string]float64 {
	return map[string]float64{
		"purchase":        1.0,
		"order_completed": 1.0,
		"sign_up":         0.5,
		"lead":            0.3,
	}
}
