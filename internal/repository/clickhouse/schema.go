package clickhouse

import (
	"context"
	"fmt"
)

// Table DDL. Event-like tables use ReplacingMergeTree on a version column so
// at-least-once reprocessing overwrites rather than duplicates.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS event_upload_logs (
		team_id LowCardinality(String),
		source_id LowCardinality(String),
		message_id String,
		event_type LowCardinality(String),
		event_name LowCardinality(String),
		user_id String,
		anonymous_id String,
		session_id String,
		timestamp Int64,
		properties String,
		received_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, message_id)
	ORDER BY (team_id, message_id, timestamp)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS event_enriched (
		team_id LowCardinality(String),
		source_id LowCardinality(String),
		message_id String,
		event_type LowCardinality(String),
		event_name LowCardinality(String),
		user_id String,
		anonymous_id String,
		session_id String,
		timestamp Int64,
		page_url String,
		page_path String,
		page_title String,
		page_query String,
		page_domain String,
		landing_referrer String,
		referring_domain String,
		utm_source LowCardinality(String),
		utm_medium LowCardinality(String),
		utm_campaign String,
		utm_term String,
		utm_content String,
		utm_id String,
		utm_source_platform LowCardinality(String),
		utm_content_type LowCardinality(String),
		click_id String,
		click_id_param LowCardinality(String),
		is_direct UInt8,
		is_paid UInt8,
		traffic_channel LowCardinality(String),
		platform LowCardinality(String),
		conversion_value Float64,
		revenue Float64,
		currency LowCardinality(String),
		order_id String,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, message_id)
	ORDER BY (team_id, message_id, timestamp)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS identity_mappings (
		team_id LowCardinality(String),
		anonymous_id String,
		user_id String,
		first_seen_at Int64,
		last_seen_at Int64
	) ENGINE = MergeTree()
	ORDER BY (team_id, anonymous_id, last_seen_at)`,

	`CREATE TABLE IF NOT EXISTS user_touchpoints (
		team_id LowCardinality(String),
		resolved_user_id String,
		user_id String,
		anonymous_id String,
		session_id String,
		message_id String,
		event_name LowCardinality(String),
		sequence_number UInt32,
		timestamp Int64,
		first_touch_timestamp Int64,
		first_touch_source LowCardinality(String),
		first_touch_medium LowCardinality(String),
		first_touch_campaign String,
		first_touch_platform LowCardinality(String),
		first_touch_channel LowCardinality(String),
		utm_source LowCardinality(String),
		utm_medium LowCardinality(String),
		utm_campaign String,
		traffic_channel LowCardinality(String),
		platform LowCardinality(String),
		click_id String,
		is_conversion UInt8,
		conversion_score Float64,
		conversion_value Float64,
		revenue Float64,
		currency LowCardinality(String),
		order_id String,
		days_since_first_touch Int64,
		hours_since_first_touch Int64,
		hours_since_prev_touch Int64,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, message_id)
	ORDER BY (team_id, message_id)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS attributed_conversions (
		team_id LowCardinality(String),
		conversion_message_id String,
		touchpoint_message_id String,
		resolved_user_id String,
		attribution_type LowCardinality(String),
		attribution_model LowCardinality(String),
		platform LowCardinality(String),
		traffic_channel LowCardinality(String),
		attribution_credit Float64,
		attributed_value Float64,
		attributed_revenue Float64,
		attributed_score Float64,
		conversion_value Float64,
		revenue Float64,
		currency LowCardinality(String),
		order_id String,
		within_click_window UInt8,
		within_view_window UInt8,
		is_first_touch UInt8,
		is_last_touch UInt8,
		is_assisted UInt8,
		touchpoint_count UInt32,
		touchpoint_timestamp Int64,
		conversion_timestamp Int64,
		days_to_conversion Int64,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, conversion_message_id, touchpoint_message_id, attribution_type)
	ORDER BY (team_id, conversion_message_id, touchpoint_message_id, attribution_type)
	PARTITION BY toYYYYMM(toDateTime(conversion_timestamp))
	SETTINGS index_granularity = 8192`,

	`CREATE TABLE IF NOT EXISTS user_journey_summary (
		team_id LowCardinality(String),
		resolved_user_id String,
		email String,
		phone String,
		name String,
		username String,
		first_seen_at Int64,
		last_seen_at Int64,
		touchpoint_count UInt32,
		conversion_count UInt32,
		total_conversion_value Float64,
		total_revenue Float64,
		platforms Array(String),
		channels Array(String),
		status LowCardinality(String),
		days_since_last_touch Int64,
		computed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, resolved_user_id)
	ORDER BY (team_id, resolved_user_id)`,

	`CREATE TABLE IF NOT EXISTS attribution_processing_state (
		team_id LowCardinality(String),
		job_type LowCardinality(String),
		last_processed_at Int64,
		last_event_timestamp Int64,
		events_processed UInt64,
		conversions_processed UInt64,
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (team_id, job_type)
	ORDER BY (team_id, job_type)`,
}

// InitSchema creates the pipeline tables if they do not exist. The optional
// config and profile tables are provisioned elsewhere and read defensively.
func (r *Repository) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := r.client.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}
