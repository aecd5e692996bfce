package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/identity"
	"github.com/touchflow/attribution-pipeline/internal/journey"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/repository"
)

// JourneyStage resolves identities for enriched events and appends ordered
// touchpoints per canonical user.
type JourneyStage struct {
	events      repository.EventStore
	touchpoints repository.TouchpointStore
	identities  repository.IdentityStore
	configs     repository.ConfigStore
	state       repository.ProcessingStateStore
	filter      repository.Filter
	log         *zap.Logger

	// conversion score config per team, resolved lazily once per team per run
	builders map[string]*journey.Builder
}

func NewJourneyStage(events repository.EventStore, touchpoints repository.TouchpointStore, identities repository.IdentityStore, configs repository.ConfigStore, state repository.ProcessingStateStore, filter repository.Filter, log *zap.Logger) *JourneyStage {
	return &JourneyStage{
		events:      events,
		touchpoints: touchpoints,
		identities:  identities,
		configs:     configs,
		state:       state,
		filter:      filter,
		log:         log,
		builders:    make(map[string]*journey.Builder),
	}
}

func (s *JourneyStage) JobType() string { return JobJourneys }

func (s *JourneyStage) Count(ctx context.Context) (int64, error) {
	return s.events.CountEnrichedEvents(ctx, s.filter)
}

func (s *JourneyStage) Process(ctx context.Context, offset, limit int64, opts pipeline.Options) (pipeline.ChunkResult, error) {
	f := s.filter
	f.SkipExisting = opts.SkipExisting

	events, err := s.events.FetchEnrichedEvents(ctx, f, offset, limit)
	if err != nil {
		return pipeline.ChunkResult{}, fmt.Errorf("failed to fetch enriched events: %w", err)
	}

	result := pipeline.ChunkResult{Fetched: int64(len(events))}
	if len(events) == 0 {
		return result, nil
	}

	resolver := identity.NewResolver(s.identities, s.log)
	if err := s.preload(ctx, resolver, events); err != nil {
		return result, err
	}

	type groupKey struct {
		teamID         string
		resolvedUserID string
	}
	groups := make(map[groupKey][]domain.EnrichedEvent)
	var order []groupKey
	var lastTS int64

	for _, ev := range events {
		resolved, err := resolver.Resolve(ctx, ev.TeamID, ev.UserID, ev.AnonymousID)
		if err != nil {
			return result, fmt.Errorf("failed to resolve identity: %w", err)
		}
		key := groupKey{teamID: ev.TeamID, resolvedUserID: resolved}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
		lastTS = maxTimestamp(lastTS, ev.Timestamp)
	}

	var touchpoints []*domain.Touchpoint
	for _, key := range order {
		state, found, err := s.touchpoints.GetJourneyState(ctx, key.teamID, key.resolvedUserID)
		if err != nil {
			return result, fmt.Errorf("failed to load journey state: %w", err)
		}

		var js journey.State
		if found {
			js = journey.State{
				ExistingCount: state.Count,
				FirstTouch: &journey.FirstTouch{
					Timestamp: state.FirstTouchTimestamp,
					Source:    state.FirstTouchSource,
					Medium:    state.FirstTouchMedium,
					Campaign:  state.FirstTouchCampaign,
					Platform:  state.FirstTouchPlatform,
					Channel:   state.FirstTouchChannel,
				},
				LastTimestamp: state.LastTimestamp,
			}
		}

		builder, err := s.builder(ctx, key.teamID)
		if err != nil {
			return result, err
		}
		built := builder.Build(key.teamID, key.resolvedUserID, groups[key], js)
		for i := range built {
			touchpoints = append(touchpoints, &built[i])
		}
	}

	// Every fetched event becomes a touchpoint, so nothing stays behind
	// for a skip-existing refetch and Remaining stays zero.

	if opts.DryRun {
		result.Inserted = int64(len(touchpoints))
		return result, nil
	}

	inserted, err := s.touchpoints.InsertTouchpoints(ctx, touchpoints)
	if err != nil {
		return result, fmt.Errorf("failed to insert touchpoints: %w", err)
	}
	result.Inserted = int64(inserted)

	recordState(ctx, s.state, s.log, s.filter.TeamID, JobJourneys, lastTS, uint64(inserted), 0)
	return result, nil
}

// preload batches the identity lookups one team at a time.
func (s *JourneyStage) preload(ctx context.Context, resolver *identity.Resolver, events []domain.EnrichedEvent) error {
	byTeam := make(map[string][]string)
	for _, ev := range events {
		if ev.AnonymousID != "" && ev.UserID == "" {
			byTeam[ev.TeamID] = append(byTeam[ev.TeamID], ev.AnonymousID)
		}
	}
	for teamID, anonIDs := range byTeam {
		if err := resolver.Preload(ctx, teamID, anonIDs); err != nil {
			return err
		}
	}
	return nil
}

// builder returns the per-team journey builder, reading team conversion
// config once and falling back to the defaults when none is configured.
func (s *JourneyStage) builder(ctx context.Context, teamID string) (*journey.Builder, error) {
	if b, ok := s.builders[teamID]; ok {
		return b, nil
	}

	var scores map[string]float64
	if s.configs != nil {
		configured, found, err := s.configs.ConversionConfigs(ctx, teamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversion configs: %w", err)
		}
		if found {
			scores = configured
		}
	}

	b := journey.NewBuilder(scores)
	s.builders[teamID] = b
	return b, nil
}

var _ pipeline.Stage = (*JourneyStage)(nil)
