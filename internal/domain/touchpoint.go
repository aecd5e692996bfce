package domain

import "time"

// Touchpoint is one step in a user's journey as stored in user_touchpoints.
// Sequence numbers are dense and strictly increasing per (team, resolved
// user); the first-touch snapshot is identical across a journey's rows.
type Touchpoint struct {
	TeamID         string `ch:"team_id"`
	ResolvedUserID string `ch:"resolved_user_id"`
	UserID         string `ch:"user_id"`
	AnonymousID    string `ch:"anonymous_id"`
	SessionID      string `ch:"session_id"`
	MessageID      string `ch:"message_id"`
	EventName      string `ch:"event_name"`
	SequenceNumber uint32 `ch:"sequence_number"`
	Timestamp      int64  `ch:"timestamp"`

	FirstTouchTimestamp int64  `ch:"first_touch_timestamp"`
	FirstTouchSource    string `ch:"first_touch_source"`
	FirstTouchMedium    string `ch:"first_touch_medium"`
	FirstTouchCampaign  string `ch:"first_touch_campaign"`
	FirstTouchPlatform  string `ch:"first_touch_platform"`
	FirstTouchChannel   string `ch:"first_touch_channel"`

	UTMSource      string `ch:"utm_source"`
	UTMMedium      string `ch:"utm_medium"`
	UTMCampaign    string `ch:"utm_campaign"`
	TrafficChannel string `ch:"traffic_channel"`
	Platform       string `ch:"platform"`
	ClickID        string `ch:"click_id"`

	IsConversion    uint8   `ch:"is_conversion"`
	ConversionScore float64 `ch:"conversion_score"`
	ConversionValue float64 `ch:"conversion_value"`
	Revenue         float64 `ch:"revenue"`
	Currency        string  `ch:"currency"`
	OrderID         string  `ch:"order_id"`

	DaysSinceFirstTouch  int64 `ch:"days_since_first_touch"`
	HoursSinceFirstTouch int64 `ch:"hours_since_first_touch"`
	HoursSincePrevTouch  int64 `ch:"hours_since_prev_touch"`

	ProcessedAt time.Time `ch:"processed_at"`
	Version     uint64    `ch:"version"`
}

// AttributionResult is one credited touchpoint for one conversion under one
// view, as stored in attributed_conversions. For a fixed (conversion, view)
// the credits sum to 1.0 when any touchpoint is within window.
type AttributionResult struct {
	TeamID              string `ch:"team_id"`
	ConversionMessageID string `ch:"conversion_message_id"`
	TouchpointMessageID string `ch:"touchpoint_message_id"`
	ResolvedUserID      string `ch:"resolved_user_id"`
	AttributionType     string `ch:"attribution_type"`
	AttributionModel    string `ch:"attribution_model"`
	Platform            string `ch:"platform"`
	TrafficChannel      string `ch:"traffic_channel"`

	Credit            float64 `ch:"attribution_credit"`
	AttributedValue   float64 `ch:"attributed_value"`
	AttributedRevenue float64 `ch:"attributed_revenue"`
	AttributedScore   float64 `ch:"attributed_score"`
	ConversionValue   float64 `ch:"conversion_value"`
	Revenue           float64 `ch:"revenue"`
	Currency          string  `ch:"currency"`
	OrderID           string  `ch:"order_id"`

	WithinClickWindow uint8  `ch:"within_click_window"`
	WithinViewWindow  uint8  `ch:"within_view_window"`
	IsFirstTouch      uint8  `ch:"is_first_touch"`
	IsLastTouch       uint8  `ch:"is_last_touch"`
	IsAssisted        uint8  `ch:"is_assisted"`
	TouchpointCount   uint32 `ch:"touchpoint_count"`

	TouchpointTimestamp int64 `ch:"touchpoint_timestamp"`
	ConversionTimestamp int64 `ch:"conversion_timestamp"`
	DaysToConversion    int64 `ch:"days_to_conversion"`

	ProcessedAt time.Time `ch:"processed_at"`
	Version     uint64    `ch:"version"`
}

// JourneySummary is the rolling per-user aggregate in user_journey_summary.
// Recomputed from scratch on every run; latest version wins on read.
type JourneySummary struct {
	TeamID         string `ch:"team_id"`
	ResolvedUserID string `ch:"resolved_user_id"`

	Email    string `ch:"email"`
	Phone    string `ch:"phone"`
	Name     string `ch:"name"`
	Username string `ch:"username"`

	FirstSeenAt          int64    `ch:"first_seen_at"`
	LastSeenAt           int64    `ch:"last_seen_at"`
	TouchpointCount      uint32   `ch:"touchpoint_count"`
	ConversionCount      uint32   `ch:"conversion_count"`
	TotalConversionValue float64  `ch:"total_conversion_value"`
	TotalRevenue         float64  `ch:"total_revenue"`
	Platforms            []string `ch:"platforms"`
	Channels             []string `ch:"channels"`
	Status               string   `ch:"status"`
	DaysSinceLastTouch   int64    `ch:"days_since_last_touch"`

	ComputedAt time.Time `ch:"computed_at"`
	Version    uint64    `ch:"version"`
}
