package domain

import "time"

// RawEvent represents one ingested tracking event as stored in event_upload_logs.
// Rows are append-only and never mutated after insert.
type RawEvent struct {
	TeamID      string    `ch:"team_id"`
	SourceID    string    `ch:"source_id"`
	MessageID   string    `ch:"message_id"`
	EventType   string    `ch:"event_type"`
	EventName   string    `ch:"event_name"`
	UserID      string    `ch:"user_id"`
	AnonymousID string    `ch:"anonymous_id"`
	SessionID   string    `ch:"session_id"`
	Timestamp   int64     `ch:"timestamp"`
	Properties  string    `ch:"properties"`
	ReceivedAt  time.Time `ch:"received_at"`
	Version     uint64    `ch:"version"`
}

// EnrichedEvent is a RawEvent plus the attributes derived by the classifier.
// One row per message_id in event_enriched; created once, never mutated.
type EnrichedEvent struct {
	TeamID      string `ch:"team_id"`
	SourceID    string `ch:"source_id"`
	MessageID   string `ch:"message_id"`
	EventType   string `ch:"event_type"`
	EventName   string `ch:"event_name"`
	UserID      string `ch:"user_id"`
	AnonymousID string `ch:"anonymous_id"`
	SessionID   string `ch:"session_id"`
	Timestamp   int64  `ch:"timestamp"`

	PageURL         string `ch:"page_url"`
	PagePath        string `ch:"page_path"`
	PageTitle       string `ch:"page_title"`
	PageQuery       string `ch:"page_query"`
	PageDomain      string `ch:"page_domain"`
	LandingReferrer string `ch:"landing_referrer"`
	ReferringDomain string `ch:"referring_domain"`

	UTMSource         string `ch:"utm_source"`
	UTMMedium         string `ch:"utm_medium"`
	UTMCampaign       string `ch:"utm_campaign"`
	UTMTerm           string `ch:"utm_term"`
	UTMContent        string `ch:"utm_content"`
	UTMID             string `ch:"utm_id"`
	UTMSourcePlatform string `ch:"utm_source_platform"`
	UTMContentType    string `ch:"utm_content_type"`

	ClickID      string `ch:"click_id"`
	ClickIDParam string `ch:"click_id_param"`

	IsDirect       uint8  `ch:"is_direct"`
	IsPaid         uint8  `ch:"is_paid"`
	TrafficChannel string `ch:"traffic_channel"`
	Platform       string `ch:"platform"`

	ConversionValue float64 `ch:"conversion_value"`
	Revenue         float64 `ch:"revenue"`
	Currency        string  `ch:"currency"`
	OrderID         string  `ch:"order_id"`

	ProcessedAt time.Time `ch:"processed_at"`
	Version     uint64    `ch:"version"`
}

// IdentityMapping is one (team, anonymous_id) -> user_id edge. History is
// kept; resolution takes the most-recently-seen row.
type IdentityMapping struct {
	TeamID      string `ch:"team_id"`
	AnonymousID string `ch:"anonymous_id"`
	UserID      string `ch:"user_id"`
	FirstSeenAt int64  `ch:"first_seen_at"`
	LastSeenAt  int64  `ch:"last_seen_at"`
}

// UserProfile carries the contact fields joined onto journey summaries.
type UserProfile struct {
	TeamID   string `ch:"team_id"`
	UserID   string `ch:"user_id"`
	Email    string `ch:"email"`
	Phone    string `ch:"phone"`
	Name     string `ch:"name"`
	Username string `ch:"username"`
}

// ProcessingState is the resume cursor for incremental runs, one row per
// (team-or-"all", job type).
type ProcessingState struct {
	TeamID               string `ch:"team_id"`
	JobType              string `ch:"job_type"`
	LastProcessedAt      int64  `ch:"last_processed_at"`
	LastEventTimestamp   int64  `ch:"last_event_timestamp"`
	EventsProcessed      uint64 `ch:"events_processed"`
	ConversionsProcessed uint64 `ch:"conversions_processed"`
}
