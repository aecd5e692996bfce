package summary

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/domain"
	"github.com/touchflow/attribution-pipeline/internal/identity"
)

const (
	secondsPerDay = 86400
	// dormantAfterDays is the inactivity threshold for the dormant status.
	dormantAfterDays = 30
)

// ProfileStore looks up contact fields for an authenticated user. found is
// false when no profile row exists (including when the table itself is not
// provisioned yet).
type ProfileStore interface {
	GetProfile(ctx context.Context, teamID, userID string) (domain.UserProfile, bool, error)
}

// Aggregator recomputes one user's journey summary from all touchpoints.
type Aggregator struct {
	profiles ProfileStore
	mappings identity.MappingStore
	log      *zap.Logger
	now      func() time.Time
}

func NewAggregator(profiles ProfileStore, mappings identity.MappingStore, log *zap.Logger) *Aggregator {
	return &Aggregator{
		profiles: profiles,
		mappings: mappings,
		log:      log,
		now:      time.Now,
	}
}

// Aggregate builds the snapshot that replaces any prior summary row for
// (team, resolved user). Returns false when the user has no touchpoints.
func (a *Aggregator) Aggregate(ctx context.Context, teamID, resolvedUserID string, touchpoints []domain.Touchpoint) (domain.JourneySummary, bool) {
	if len(touchpoints) == 0 {
		return domain.JourneySummary{}, false
	}

	now := a.now()
	s := domain.JourneySummary{
		TeamID:         teamID,
		ResolvedUserID: resolvedUserID,
		FirstSeenAt:    touchpoints[0].Timestamp,
		LastSeenAt:     touchpoints[0].Timestamp,
		ComputedAt:     now,
		Version:        uint64(now.UnixNano()),
	}

	platforms := make(map[string]bool)
	channels := make(map[string]bool)

	for _, tp := range touchpoints {
		if tp.Timestamp < s.FirstSeenAt {
			s.FirstSeenAt = tp.Timestamp
		}
		if tp.Timestamp > s.LastSeenAt {
			s.LastSeenAt = tp.Timestamp
		}
		s.TouchpointCount++
		if tp.IsConversion == 1 {
			s.ConversionCount++
			s.TotalConversionValue += tp.ConversionValue
			s.TotalRevenue += tp.Revenue
		}
		if tp.Platform != "" {
			platforms[tp.Platform] = true
		}
		if tp.TrafficChannel != "" {
			channels[tp.TrafficChannel] = true
		}
	}

	s.Platforms = sortedKeys(platforms)
	s.Channels = sortedKeys(channels)

	elapsed := now.Unix() - s.LastSeenAt
	if elapsed < 0 {
		elapsed = 0
	}
	s.DaysSinceLastTouch = elapsed / secondsPerDay

	switch {
	case s.ConversionCount > 0:
		s.Status = domain.JourneyStatusConverted
	case s.DaysSinceLastTouch >= dormantAfterDays:
		s.Status = domain.JourneyStatusDormant
	default:
		s.Status = domain.JourneyStatusActive
	}

	a.attachProfile(ctx, teamID, resolvedUserID, &s)
	return s, true
}

// attachProfile joins contact fields, walking the identity chain when the
// canonical id is a synthetic anon_ id. Lookup failures degrade to an empty
// profile; the summary is still emitted.
func (a *Aggregator) attachProfile(ctx context.Context, teamID, resolvedUserID string, s *domain.JourneySummary) {
	if a.profiles == nil {
		return
	}

	userID := resolvedUserID
	if anonID, ok := identity.AnonymousFromCanonical(resolvedUserID); ok {
		if a.mappings == nil {
			return
		}
		mapped, err := a.mappings.LookupMappings(ctx, teamID, []string{anonID})
		if err != nil {
			a.log.Debug("Identity chain lookup failed for summary profile",
				zap.String("team_id", teamID), zap.Error(err))
			return
		}
		m, found := mapped[anonID]
		if !found {
			return
		}
		userID = m.UserID
	}

	profile, found, err := a.profiles.GetProfile(ctx, teamID, userID)
	if err != nil {
		a.log.Debug("Profile lookup failed, emitting summary without contact fields",
			zap.String("team_id", teamID), zap.Error(err))
		return
	}
	if !found {
		return
	}

	s.Email = profile.Email
	s.Phone = profile.Phone
	s.Name = profile.Name
	s.Username = profile.Username
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
