package journey

import (
	"sort"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

const (
	secondsPerDay  = 86400
	secondsPerHour = 3600
)

// FirstTouch is the journey-start snapshot copied onto every touchpoint.
type FirstTouch struct {
	Timestamp int64
	Source    string
	Medium    string
	Campaign  string
	Platform  string
	Channel   string
}

// State describes what is already persisted for a user's journey, so a batch
// appends rather than restarts.
type State struct {
	ExistingCount uint32
	FirstTouch    *FirstTouch
	LastTimestamp int64
}

// Builder turns one user's enriched events into ordered touchpoints.
type Builder struct {
	conversions map[string]float64
}

// NewBuilder creates a builder using the given conversion-event scores
// (team-specific when configured, else the defaults).
func NewBuilder(conversions map[string]float64) *Builder {
	if conversions == nil {
		conversions = domain.DefaultConversionScores()
	}
	return &Builder{conversions: conversions}
}

// Build sorts the events by timestamp (stable on ties) and emits one
// touchpoint per event, continuing sequence numbers from the persisted count.
func (b *Builder) Build(teamID, resolvedUserID string, events []domain.EnrichedEvent, state State) []domain.Touchpoint {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]domain.EnrichedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	first := state.FirstTouch
	if first == nil {
		e := sorted[0]
		first = &FirstTouch{
			Timestamp: e.Timestamp,
			Source:    e.UTMSource,
			Medium:    e.UTMMedium,
			Campaign:  e.UTMCampaign,
			Platform:  e.Platform,
			Channel:   e.TrafficChannel,
		}
	}

	touchpoints := make([]domain.Touchpoint, 0, len(sorted))
	seq := state.ExistingCount
	prevTimestamp := state.LastTimestamp
	hasPrev := state.ExistingCount > 0
	now := time.Now()

	for _, e := range sorted {
		seq++

		sinceFirst := e.Timestamp - first.Timestamp
		if sinceFirst < 0 {
			sinceFirst = 0
		}

		var sincePrev int64
		if hasPrev {
			sincePrev = e.Timestamp - prevTimestamp
			if sincePrev < 0 {
				sincePrev = 0
			}
		}

		tp := domain.Touchpoint{
			TeamID:         teamID,
			ResolvedUserID: resolvedUserID,
			UserID:         e.UserID,
			AnonymousID:    e.AnonymousID,
			SessionID:      e.SessionID,
			MessageID:      e.MessageID,
			EventName:      e.EventName,
			SequenceNumber: seq,
			Timestamp:      e.Timestamp,

			FirstTouchTimestamp: first.Timestamp,
			FirstTouchSource:    first.Source,
			FirstTouchMedium:    first.Medium,
			FirstTouchCampaign:  first.Campaign,
			FirstTouchPlatform:  first.Platform,
			FirstTouchChannel:   first.Channel,

			UTMSource:      e.UTMSource,
			UTMMedium:      e.UTMMedium,
			UTMCampaign:    e.UTMCampaign,
			TrafficChannel: e.TrafficChannel,
			Platform:       e.Platform,
			ClickID:        e.ClickID,

			DaysSinceFirstTouch:  sinceFirst / secondsPerDay,
			HoursSinceFirstTouch: sinceFirst / secondsPerHour,
			HoursSincePrevTouch:  sincePrev / secondsPerHour,

			ProcessedAt: now,
			Version:     uint64(now.UnixNano()),
		}

		if score, ok := b.conversions[e.EventName]; ok {
			tp.IsConversion = 1
			tp.ConversionScore = score
			tp.ConversionValue = e.ConversionValue
			tp.Revenue = e.Revenue
			tp.Currency = e.Currency
			tp.OrderID = e.OrderID
		}

		touchpoints = append(touchpoints, tp)
		prevTimestamp = e.Timestamp
		hasPrev = true
	}

	return touchpoints
}
