package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// MockProfileStore is a mock implementation of ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetProfile(ctx context.Context, teamID, userID string) (domain.UserProfile, bool, error) {
	args := m.Called(ctx, teamID, userID)
	return args.Get(0).(domain.UserProfile), args.Bool(1), args.Error(2)
}

// MockMappingStore is a mock implementation of identity.MappingStore
type MockMappingStore struct {
	mock.Mock
}

func (m *MockMappingStore) LookupMappings(ctx context.Context, teamID string, anonymousIDs []string) (map[string]domain.IdentityMapping, error) {
	args := m.Called(ctx, teamID, anonymousIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.IdentityMapping), args.Error(1)
}

func fixedAggregator(now time.Time) *Aggregator {
	a := NewAggregator(nil, nil, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

func tp(ts int64, platform, channel string, conversion bool) domain.Touchpoint {
	t := domain.Touchpoint{Timestamp: ts, Platform: platform, TrafficChannel: channel}
	if conversion {
		t.IsConversion = 1
		t.ConversionValue = 50
		t.Revenue = 40
	}
	return t
}

func TestAggregate_Totals(t *testing.T) {
	now := time.Unix(100*86400, 0)
	a := fixedAggregator(now)

	s, ok := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(99*86400, domain.PlatformGoogleSearchAds, domain.ChannelPaidSearch, false),
		tp(98*86400, domain.PlatformFacebookAds, domain.ChannelPaidSocial, true),
		tp(97*86400, domain.PlatformGoogleSearchAds, domain.ChannelPaidSearch, true),
	})

	assert.True(t, ok)
	assert.Equal(t, int64(97*86400), s.FirstSeenAt)
	assert.Equal(t, int64(99*86400), s.LastSeenAt)
	assert.Equal(t, uint32(3), s.TouchpointCount)
	assert.Equal(t, uint32(2), s.ConversionCount)
	assert.Equal(t, 100.0, s.TotalConversionValue)
	assert.Equal(t, 80.0, s.TotalRevenue)
	assert.Equal(t, []string{domain.PlatformFacebookAds, domain.PlatformGoogleSearchAds}, s.Platforms)
	assert.Equal(t, []string{domain.ChannelPaidSearch, domain.ChannelPaidSocial}, s.Channels)
}

func TestAggregate_StatusConvertedRegardlessOfRecency(t *testing.T) {
	now := time.Unix(365*86400, 0)
	a := fixedAggregator(now)

	s, ok := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(1*86400, domain.PlatformDirect, domain.ChannelDirect, true),
	})

	assert.True(t, ok)
	assert.Equal(t, domain.JourneyStatusConverted, s.Status)
}

func TestAggregate_StatusDormantAt31Days(t *testing.T) {
	now := time.Unix(100*86400, 0)
	a := fixedAggregator(now)

	s, _ := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(69*86400, domain.PlatformDirect, domain.ChannelDirect, false),
	})

	assert.Equal(t, int64(31), s.DaysSinceLastTouch)
	assert.Equal(t, domain.JourneyStatusDormant, s.Status)
}

func TestAggregate_StatusActive(t *testing.T) {
	now := time.Unix(100*86400, 0)
	a := fixedAggregator(now)

	s, _ := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(95*86400, domain.PlatformDirect, domain.ChannelDirect, false),
	})

	assert.Equal(t, domain.JourneyStatusActive, s.Status)
}

func TestAggregate_NoTouchpoints(t *testing.T) {
	a := fixedAggregator(time.Now())

	_, ok := a.Aggregate(context.Background(), "team1", "user1", nil)
	assert.False(t, ok)
}

func TestAggregate_ProfileJoin(t *testing.T) {
	profiles := new(MockProfileStore)
	profiles.On("GetProfile", mock.Anything, "team1", "user1").Return(
		domain.UserProfile{Email: "a@example.com", Name: "Ada"}, true, nil)

	a := NewAggregator(profiles, nil, zap.NewNop())
	s, _ := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(1, domain.PlatformDirect, domain.ChannelDirect, false),
	})

	assert.Equal(t, "a@example.com", s.Email)
	assert.Equal(t, "Ada", s.Name)
}

func TestAggregate_ProfileJoinThroughIdentityChain(t *testing.T) {
	profiles := new(MockProfileStore)
	profiles.On("GetProfile", mock.Anything, "team1", "user42").Return(
		domain.UserProfile{Email: "x@example.com"}, true, nil)

	mappings := new(MockMappingStore)
	mappings.On("LookupMappings", mock.Anything, "team1", []string{"abc"}).Return(
		map[string]domain.IdentityMapping{
			"abc": {TeamID: "team1", AnonymousID: "abc", UserID: "user42"},
		}, nil)

	a := NewAggregator(profiles, mappings, zap.NewNop())
	s, _ := a.Aggregate(context.Background(), "team1", "anon_abc", []domain.Touchpoint{
		tp(1, domain.PlatformDirect, domain.ChannelDirect, false),
	})

	assert.Equal(t, "x@example.com", s.Email)
}

func TestAggregate_ProfileErrorDegradesGracefully(t *testing.T) {
	profiles := new(MockProfileStore)
	profiles.On("GetProfile", mock.Anything, "team1", "user1").Return(
		domain.UserProfile{}, false, assert.AnError)

	a := NewAggregator(profiles, nil, zap.NewNop())
	s, ok := a.Aggregate(context.Background(), "team1", "user1", []domain.Touchpoint{
		tp(1, domain.PlatformDirect, domain.ChannelDirect, false),
	})

	assert.True(t, ok)
	assert.Empty(t, s.Email)
}
