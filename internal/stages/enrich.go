package stages

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/classify"
	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// EnrichStage classifies raw events into enriched events and harvests
// identity-mapping edges from events carrying both identifiers.
type EnrichStage struct {
	events     repository.EventStore
	identities repository.IdentityStore
	state      repository.ProcessingStateStore
	filter     repository.Filter
	log        *zap.Logger
}

func NewEnrichStage(events repository.EventStore, identities repository.IdentityStore, state repository.ProcessingStateStore, filter repository.Filter, log *zap.Logger) *EnrichStage {
	return &EnrichStage{
		events:     events,
		identities: identities,
		state:      state,
		filter:     filter,
		log:        log,
	}
}

func (s *EnrichStage) JobType() string { return JobEnrich }

func (s *EnrichStage) Count(ctx context.Context) (int64, error) {
	return s.events.CountRawEvents(ctx, s.filter)
}

func (s *EnrichStage) Process(ctx context.Context, offset, limit int64, opts pipeline.Options) (pipeline.ChunkResult, error) {
	f := s.filter
	f.SkipExisting = opts.SkipExisting

	raw, err := s.events.FetchRawEvents(ctx, f, offset, limit)
	if err != nil {
		return pipeline.ChunkResult{}, fmt.Errorf("failed to fetch raw events: %w", err)
	}

	result := pipeline.ChunkResult{Fetched: int64(len(raw))}
	if len(raw) == 0 {
		return result, nil
	}

	now := time.Now()
	version := uint64(now.UnixNano())
	enriched := make([]*domain.EnrichedEvent, 0, len(raw))
	mappings := make([]domain.IdentityMapping, 0)
	seenMapping := make(map[string]bool)
	var lastTS int64

	for _, ev := range raw {
		if ev.TeamID == "" || ev.SourceID == "" || ev.MessageID == "" || ev.Timestamp <= 0 {
			result.Skipped++
			continue
		}

		ec, err := domain.ParseEventContext(ev.Properties)
		if err != nil {
			s.log.Warn("Skipping event with undecodable properties",
				zap.String("team_id", ev.TeamID),
				zap.String("message_id", ev.MessageID),
				zap.Error(err))
			result.Failed++
			continue
		}

		cls := classify.Classify(ec)
		enriched = append(enriched, buildEnriched(ev, ec, cls, now, version))
		lastTS = maxTimestamp(lastTS, ev.Timestamp)

		if ev.UserID != "" && ev.AnonymousID != "" {
			key := ev.TeamID + "\x00" + ev.AnonymousID + "\x00" + ev.UserID
			if !seenMapping[key] {
				seenMapping[key] = true
				mappings = append(mappings, domain.IdentityMapping{
					TeamID:      ev.TeamID,
					AnonymousID: ev.AnonymousID,
					UserID:      ev.UserID,
					FirstSeenAt: ev.Timestamp,
					LastSeenAt:  ev.Timestamp,
				})
			}
		}
	}

	// Rows that never reach event_enriched stay visible to a skip-existing
	// refetch and must be paged over.
	result.Remaining = result.Skipped + result.Failed

	if opts.DryRun {
		result.Inserted = int64(len(enriched))
		return result, nil
	}

	inserted, err := s.events.InsertEnrichedEvents(ctx, enriched)
	if err != nil {
		return result, fmt.Errorf("failed to insert enriched events: %w", err)
	}
	result.Inserted = int64(inserted)

	if len(mappings) > 0 {
		if _, err := s.identities.InsertMappings(ctx, mappings); err != nil {
			return result, fmt.Errorf("failed to insert identity mappings: %w", err)
		}
	}

	recordState(ctx, s.state, s.log, s.filter.TeamID, JobEnrich, lastTS, uint64(inserted), 0)
	return result, nil
}

func buildEnriched(ev domain.RawEvent, ec domain.EventContext, cls classify.Result, now time.Time, version uint64) *domain.EnrichedEvent {
	return &domain.EnrichedEvent{
		TeamID:      ev.TeamID,
		SourceID:    ev.SourceID,
		MessageID:   ev.MessageID,
		EventType:   ev.EventType,
		EventName:   ev.EventName,
		UserID:      ev.UserID,
		AnonymousID: ev.AnonymousID,
		SessionID:   ev.SessionID,
		Timestamp:   ev.Timestamp,

		PageURL:         cls.PageURL,
		PagePath:        cls.PagePath,
		PageTitle:       cls.PageTitle,
		PageQuery:       cls.PageQuery,
		PageDomain:      cls.PageDomain,
		LandingReferrer: cls.LandingReferrer,
		ReferringDomain: cls.ReferringDomain,

		UTMSource:         cls.UTMSource,
		UTMMedium:         cls.UTMMedium,
		UTMCampaign:       cls.UTMCampaign,
		UTMTerm:           cls.UTMTerm,
		UTMContent:        cls.UTMContent,
		UTMID:             cls.UTMID,
		UTMSourcePlatform: cls.UTMSourcePlatform,
		UTMContentType:    cls.UTMContentType,

		ClickID:      cls.ClickID,
		ClickIDParam: cls.ClickIDParam,

		IsDirect:       boolToUint8(cls.IsDirect),
		IsPaid:         boolToUint8(cls.IsPaid),
		TrafficChannel: cls.TrafficChannel,
		Platform:       cls.Platform,

		ConversionValue: ec.Value,
		Revenue:         ec.Revenue,
		Currency:        ec.Currency,
		OrderID:         ec.OrderID,

		ProcessedAt: now,
		Version:     version,
	}
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var _ pipeline.Stage = (*EnrichStage)(nil)
