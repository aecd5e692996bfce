package repository

import (
	"context"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// Filter narrows batch queries to a team/source/time range. SkipExisting
// excludes rows whose dedup key already exists downstream (anti-join).
type Filter struct {
	TeamID       string
	SourceID     string
	From         int64
	To           int64
	SkipExisting bool
}

// EventStore covers raw ingestion rows and their enriched counterparts.
type EventStore interface {
	InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error)
	CountRawEvents(ctx context.Context, f Filter) (int64, error)
	// FetchRawEvents pages ordered by (timestamp, message_id).
	FetchRawEvents(ctx context.Context, f Filter, offset, limit int64) ([]domain.RawEvent, error)

	InsertEnrichedEvents(ctx context.Context, events []*domain.EnrichedEvent) (int, error)
	CountEnrichedEvents(ctx context.Context, f Filter) (int64, error)
	FetchEnrichedEvents(ctx context.Context, f Filter, offset, limit int64) ([]domain.EnrichedEvent, error)
}

// IdentityStore reads and appends identity-graph edges.
type IdentityStore interface {
	// LookupMappings returns the most-recently-seen mapping per anonymous id.
	LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error)
	InsertMappings(ctx context.Context, mappings []domain.IdentityMapping) (int, error)
}

// JourneyUser identifies one journey owner.
type JourneyUser struct {
	TeamID         string
	ResolvedUserID string
}

// JourneyState summarizes what is already persisted for one user's journey.
type JourneyState struct {
	Count               uint32
	FirstTouchTimestamp int64
	FirstTouchSource    string
	FirstTouchMedium    string
	FirstTouchCampaign  string
	FirstTouchPlatform  string
	FirstTouchChannel   string
	LastTimestamp       int64
}

// TouchpointStore covers the user_touchpoints table.
type TouchpointStore interface {
	InsertTouchpoints(ctx context.Context, touchpoints []*domain.Touchpoint) (int, error)
	GetJourneyState(ctx context.Context, teamID, resolvedUserID string) (JourneyState, bool, error)

	CountConversions(ctx context.Context, f Filter) (int64, error)
	// FetchConversions pages conversion touchpoints ordered by (timestamp, message_id).
	FetchConversions(ctx context.Context, f Filter, offset, limit int64) ([]domain.Touchpoint, error)
	// FetchTouchpointsBefore returns a user's touchpoints strictly before ts.
	FetchTouchpointsBefore(ctx context.Context, teamID, resolvedUserID string, ts int64) ([]domain.Touchpoint, error)

	CountJourneyUsers(ctx context.Context, f Filter) (int64, error)
	// FetchJourneyUsers pages distinct (team, resolved user) pairs.
	FetchJourneyUsers(ctx context.Context, f Filter, offset, limit int64) ([]JourneyUser, error)
	FetchUserTouchpoints(ctx context.Context, teamID, resolvedUserID string) ([]domain.Touchpoint, error)
}

// AttributionStore writes attribution results.
type AttributionStore interface {
	InsertAttributionResults(ctx context.Context, results []*domain.AttributionResult) (int, error)
}

// SummaryStore writes journey-summary snapshots.
type SummaryStore interface {
	InsertSummaries(ctx context.Context, summaries []*domain.JourneySummary) (int, error)
}

// ProcessingStateStore keeps the per-(team, job) incremental cursor.
type ProcessingStateStore interface {
	GetProcessingState(ctx context.Context, teamID, jobType string) (domain.ProcessingState, bool, error)
	SaveProcessingState(ctx context.Context, state domain.ProcessingState) error
}

// ConfigStore reads the optional configuration tables. found is false when
// the table is missing or holds no applicable rows; callers substitute the
// hardcoded defaults.
type ConfigStore interface {
	PlatformConfigs(ctx context.Context) (map[string]domain.PlatformConfig, bool, error)
	ConversionConfigs(ctx context.Context, teamID string) (map[string]float64, bool, error)
}

// ProfileStore reads the optional user-profile table.
type ProfileStore interface {
	GetProfile(ctx context.Context, teamID, userID string) (domain.UserProfile, bool, error)
}
