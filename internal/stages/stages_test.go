package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/repository"
	"github.com/touchflow/attribution-pipeline/internal/summary"
)

type fakeEventStore struct {
	raw      []domain.RawEvent
	enriched []domain.EnrichedEvent

	insertedEnriched []*domain.EnrichedEvent
}

func (f *fakeEventStore) InsertRawEvents(ctx context.Context, events []*domain.RawEvent) (int, error) {
	return len(events), nil
}

func (f *fakeEventStore) CountRawEvents(ctx context.Context, _ repository.Filter) (int64, error) {
	return int64(len(f.raw)), nil
}

func (f *fakeEventStore) FetchRawEvents(ctx context.Context, _ repository.Filter, offset, limit int64) ([]domain.RawEvent, error) {
	return pageSlice(f.raw, offset, limit), nil
}

func (f *fakeEventStore) InsertEnrichedEvents(ctx context.Context, events []*domain.EnrichedEvent) (int, error) {
	f.insertedEnriched = append(f.insertedEnriched, events...)
	return len(events), nil
}

func (f *fakeEventStore) CountEnrichedEvents(ctx context.Context, _ repository.Filter) (int64, error) {
	return int64(len(f.enriched)), nil
}

func (f *fakeEventStore) FetchEnrichedEvents(ctx context.Context, _ repository.Filter, offset, limit int64) ([]domain.EnrichedEvent, error) {
	return pageSlice(f.enriched, offset, limit), nil
}

type fakeIdentityStore struct {
	mappings map[string]domain.IdentityMapping
	inserted []domain.IdentityMapping
}

func (f *fakeIdentityStore) LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error) {
	out := make(map[string]domain.IdentityMapping)
	for _, id := range anonymousIDs {
		if m, ok := f.mappings[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeIdentityStore) InsertMappings(ctx context.Context, mappings []domain.IdentityMapping) (int, error) {
	f.inserted = append(f.inserted, mappings...)
	return len(mappings), nil
}

type fakeTouchpointStore struct {
	states      map[string]repository.JourneyState
	touchpoints []domain.Touchpoint
	conversions []domain.Touchpoint

	inserted []*domain.Touchpoint
}

func (f *fakeTouchpointStore) InsertTouchpoints(ctx context.Context, tps []*domain.Touchpoint) (int, error) {
	f.inserted = append(f.inserted, tps...)
	return len(tps), nil
}

func (f *fakeTouchpointStore) GetJourneyState(ctx context.Context, teamID, resolvedUserID string) (repository.JourneyState, bool, error) {
	s, ok := f.states[teamID+"/"+resolvedUserID]
	return s, ok, nil
}

func (f *fakeTouchpointStore) CountConversions(ctx context.Context, _ repository.Filter) (int64, error) {
	return int64(len(f.conversions)), nil
}

func (f *fakeTouchpointStore) FetchConversions(ctx context.Context, _ repository.Filter, offset, limit int64) ([]domain.Touchpoint, error) {
	return pageSlice(f.conversions, offset, limit), nil
}

func (f *fakeTouchpointStore) FetchTouchpointsBefore(ctx context.Context, teamID, resolvedUserID string, ts int64) ([]domain.Touchpoint, error) {
	var out []domain.Touchpoint
	for _, tp := range f.touchpoints {
		if tp.TeamID == teamID && tp.ResolvedUserID == resolvedUserID && tp.Timestamp < ts {
			out = append(out, tp)
		}
	}
	return out, nil
}

func (f *fakeTouchpointStore) CountJourneyUsers(ctx context.Context, _ repository.Filter) (int64, error) {
	seen := make(map[string]bool)
	for _, tp := range f.touchpoints {
		seen[tp.TeamID+"/"+tp.ResolvedUserID] = true
	}
	return int64(len(seen)), nil
}

func (f *fakeTouchpointStore) FetchJourneyUsers(ctx context.Context, _ repository.Filter, offset, limit int64) ([]repository.JourneyUser, error) {
	seen := make(map[string]bool)
	var users []repository.JourneyUser
	for _, tp := range f.touchpoints {
		key := tp.TeamID + "/" + tp.ResolvedUserID
		if !seen[key] {
			seen[key] = true
			users = append(users, repository.JourneyUser{TeamID: tp.TeamID, ResolvedUserID: tp.ResolvedUserID})
		}
	}
	return pageSlice(users, offset, limit), nil
}

func (f *fakeTouchpointStore) FetchUserTouchpoints(ctx context.Context, teamID, resolvedUserID string) ([]domain.Touchpoint, error) {
	var out []domain.Touchpoint
	for _, tp := range f.touchpoints {
		if tp.TeamID == teamID && tp.ResolvedUserID == resolvedUserID {
			out = append(out, tp)
		}
	}
	return out, nil
}

type fakeAttributionStore struct {
	inserted []*domain.AttributionResult
}

func (f *fakeAttributionStore) InsertAttributionResults(ctx context.Context, results []*domain.AttributionResult) (int, error) {
	f.inserted = append(f.inserted, results...)
	return len(results), nil
}

type fakeSummaryStore struct {
	inserted []*domain.JourneySummary
}

func (f *fakeSummaryStore) InsertSummaries(ctx context.Context, summaries []*domain.JourneySummary) (int, error) {
	f.inserted = append(f.inserted, summaries...)
	return len(summaries), nil
}

func pageSlice[T any](rows []T, offset, limit int64) []T {
	if offset >= int64(len(rows)) {
		return nil
	}
	end := offset + limit
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	return rows[offset:end]
}

func TestEnrichStageClassifiesAndEmitsMappings(t *testing.T) {
	events := &fakeEventStore{raw: []domain.RawEvent{
		{
			TeamID: "team-1", SourceID: "web", MessageID: "m1",
			EventName: "page_view", UserID: "user-9", AnonymousID: "anon-1",
			Timestamp:  1700000000,
			Properties: `{"page":{"url":"https://shop.example/p?utm_source=google&utm_medium=cpc&utm_campaign=summer","search":"?utm_source=google&utm_medium=cpc&utm_campaign=summer"}}`,
		},
	}}
	identities := &fakeIdentityStore{}
	stage := NewEnrichStage(events, identities, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Fetched)
	assert.Equal(t, int64(1), result.Inserted)
	require.Len(t, events.insertedEnriched, 1)

	enriched := events.insertedEnriched[0]
	assert.Equal(t, "google", enriched.UTMSource)
	assert.Equal(t, domain.ChannelPaidSearch, enriched.TrafficChannel)
	assert.Equal(t, domain.PlatformGoogleSearchAds, enriched.Platform)
	assert.Equal(t, uint8(1), enriched.IsPaid)

	require.Len(t, identities.inserted, 1)
	assert.Equal(t, "anon-1", identities.inserted[0].AnonymousID)
	assert.Equal(t, "user-9", identities.inserted[0].UserID)
}

func TestEnrichStageSkipsRowsMissingRequiredFields(t *testing.T) {
	events := &fakeEventStore{raw: []domain.RawEvent{
		{TeamID: "", SourceID: "web", MessageID: "m1", Timestamp: 1700000000},
		{TeamID: "team-1", SourceID: "web", MessageID: "", Timestamp: 1700000000},
		{TeamID: "team-1", SourceID: "web", MessageID: "m3", Timestamp: 0},
		{TeamID: "team-1", SourceID: "web", MessageID: "m4", Timestamp: 1700000000},
	}}
	stage := NewEnrichStage(events, &fakeIdentityStore{}, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.Fetched)
	assert.Equal(t, int64(3), result.Skipped)
	assert.Equal(t, int64(1), result.Inserted)
	// Skipped rows stay in event_upload_logs, so they remain visible to a
	// skip-existing refetch.
	assert.Equal(t, int64(3), result.Remaining)
}

func TestEnrichStageCountsUndecodablePropertiesAsFailed(t *testing.T) {
	events := &fakeEventStore{raw: []domain.RawEvent{
		{TeamID: "team-1", SourceID: "web", MessageID: "m1", Timestamp: 1700000000, Properties: "{not json"},
	}}
	stage := NewEnrichStage(events, &fakeIdentityStore{}, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Failed)
	assert.Empty(t, events.insertedEnriched)
}

func TestEnrichStageDryRunWritesNothing(t *testing.T) {
	events := &fakeEventStore{raw: []domain.RawEvent{
		{TeamID: "team-1", SourceID: "web", MessageID: "m1", Timestamp: 1700000000},
	}}
	identities := &fakeIdentityStore{}
	stage := NewEnrichStage(events, identities, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Inserted)
	assert.Empty(t, events.insertedEnriched)
	assert.Empty(t, identities.inserted)
}

func TestJourneyStageBuildsOrderedTouchpointsPerUser(t *testing.T) {
	events := &fakeEventStore{enriched: []domain.EnrichedEvent{
		{TeamID: "team-1", MessageID: "m2", UserID: "user-1", Timestamp: 200, EventName: "page_view"},
		{TeamID: "team-1", MessageID: "m1", UserID: "user-1", Timestamp: 100, EventName: "page_view"},
		{TeamID: "team-1", MessageID: "m3", AnonymousID: "anon-x", Timestamp: 150, EventName: "page_view"},
	}}
	touchpoints := &fakeTouchpointStore{}
	stage := NewJourneyStage(events, touchpoints, &fakeIdentityStore{}, nil, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Fetched)
	assert.Equal(t, int64(0), result.Remaining)
	require.Len(t, touchpoints.inserted, 3)

	byUser := make(map[string][]*domain.Touchpoint)
	for _, tp := range touchpoints.inserted {
		byUser[tp.ResolvedUserID] = append(byUser[tp.ResolvedUserID], tp)
	}
	require.Len(t, byUser["user-1"], 2)
	assert.Equal(t, uint32(1), byUser["user-1"][0].SequenceNumber)
	assert.Equal(t, int64(100), byUser["user-1"][0].Timestamp)
	assert.Equal(t, uint32(2), byUser["user-1"][1].SequenceNumber)

	require.Len(t, byUser["anon_anon-x"], 1)
	assert.Equal(t, uint32(1), byUser["anon_anon-x"][0].SequenceNumber)
}

func TestJourneyStageContinuesFromPersistedState(t *testing.T) {
	events := &fakeEventStore{enriched: []domain.EnrichedEvent{
		{TeamID: "team-1", MessageID: "m6", UserID: "user-1", Timestamp: 600, EventName: "page_view"},
	}}
	touchpoints := &fakeTouchpointStore{states: map[string]repository.JourneyState{
		"team-1/user-1": {
			Count:               5,
			FirstTouchTimestamp: 100,
			FirstTouchSource:    "google",
			FirstTouchChannel:   domain.ChannelPaidSearch,
			LastTimestamp:       500,
		},
	}}
	stage := NewJourneyStage(events, touchpoints, &fakeIdentityStore{}, nil, nil, repository.Filter{}, zap.NewNop())

	_, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	require.Len(t, touchpoints.inserted, 1)
	tp := touchpoints.inserted[0]
	assert.Equal(t, uint32(6), tp.SequenceNumber)
	assert.Equal(t, int64(100), tp.FirstTouchTimestamp)
	assert.Equal(t, "google", tp.FirstTouchSource)
}

func TestJourneyStageResolvesMappedAnonymousIDs(t *testing.T) {
	events := &fakeEventStore{enriched: []domain.EnrichedEvent{
		{TeamID: "team-1", MessageID: "m1", AnonymousID: "anon-1", Timestamp: 100, EventName: "page_view"},
	}}
	identities := &fakeIdentityStore{mappings: map[string]domain.IdentityMapping{
		"anon-1": {TeamID: "team-1", AnonymousID: "anon-1", UserID: "user-42"},
	}}
	touchpoints := &fakeTouchpointStore{}
	stage := NewJourneyStage(events, touchpoints, identities, nil, nil, repository.Filter{}, zap.NewNop())

	_, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	require.Len(t, touchpoints.inserted, 1)
	assert.Equal(t, "user-42", touchpoints.inserted[0].ResolvedUserID)
}

func TestAttributionStageCreditsConversions(t *testing.T) {
	touchpoints := &fakeTouchpointStore{
		conversions: []domain.Touchpoint{
			{TeamID: "team-1", ResolvedUserID: "user-1", MessageID: "conv-1", Timestamp: 1000,
				IsConversion: 1, ConversionScore: 1.0, ConversionValue: 50},
		},
		touchpoints: []domain.Touchpoint{
			{TeamID: "team-1", ResolvedUserID: "user-1", MessageID: "tp-1", Timestamp: 500,
				Platform: domain.PlatformGoogleSearchAds},
		},
	}
	results := &fakeAttributionStore{}
	stage := NewAttributionStage(touchpoints, results, nil, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Fetched)
	// One touchpoint yields one platform-view row and one deduplicated row.
	require.Len(t, results.inserted, 2)
	assert.Equal(t, "conv-1", results.inserted[0].ConversionMessageID)
	assert.InDelta(t, 1.0, results.inserted[0].Credit, 1e-9)
}

func TestAttributionStageSkipsConversionsWithoutPriorTouchpoints(t *testing.T) {
	touchpoints := &fakeTouchpointStore{
		conversions: []domain.Touchpoint{
			{TeamID: "team-1", ResolvedUserID: "user-1", MessageID: "conv-1", Timestamp: 1000, IsConversion: 1},
		},
	}
	results := &fakeAttributionStore{}
	stage := NewAttributionStage(touchpoints, results, nil, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Skipped)
	assert.Equal(t, int64(1), result.Remaining)
	assert.Empty(t, results.inserted)
}

func TestSummaryStageAggregatesEachUser(t *testing.T) {
	touchpoints := &fakeTouchpointStore{touchpoints: []domain.Touchpoint{
		{TeamID: "team-1", ResolvedUserID: "user-1", Timestamp: 100, Platform: domain.PlatformGoogleSearchAds, TrafficChannel: domain.ChannelPaidSearch},
		{TeamID: "team-1", ResolvedUserID: "user-1", Timestamp: 200, IsConversion: 1, ConversionValue: 10, Revenue: 25},
		{TeamID: "team-2", ResolvedUserID: "user-2", Timestamp: 300},
	}}
	summaries := &fakeSummaryStore{}
	agg := summary.NewAggregator(nil, nil, zap.NewNop())
	stage := NewSummaryStage(touchpoints, summaries, agg, nil, repository.Filter{}, zap.NewNop())

	result, err := stage.Process(context.Background(), 0, 10, pipeline.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Fetched)
	assert.Equal(t, int64(2), result.Remaining)
	require.Len(t, summaries.inserted, 2)

	first := summaries.inserted[0]
	assert.Equal(t, "user-1", first.ResolvedUserID)
	assert.Equal(t, uint32(2), first.TouchpointCount)
	assert.Equal(t, uint32(1), first.ConversionCount)
	assert.InDelta(t, 10.0, first.TotalConversionValue, 1e-9)
	assert.InDelta(t, 25.0, first.TotalRevenue, 1e-9)
	assert.Equal(t, domain.JourneyStatusConverted, first.Status)
}

func TestStagesReportJobTypes(t *testing.T) {
	assert.Equal(t, "enrich", (&EnrichStage{}).JobType())
	assert.Equal(t, "journeys", (&JourneyStage{}).JobType())
	assert.Equal(t, "attribution", (&AttributionStage{}).JobType())
	assert.Equal(t, "summaries", (&SummaryStage{}).JobType())
}
