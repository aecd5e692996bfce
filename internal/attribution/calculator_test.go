package attribution

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

const day = int64(86400)

func touchpoint(messageID, platform string, ts int64) domain.Touchpoint {
	return domain.Touchpoint{
		TeamID:         "team1",
		ResolvedUserID: "user1",
		MessageID:      messageID,
		Platform:       platform,
		TrafficChannel: domain.ChannelPaidSearch,
		Timestamp:      ts,
	}
}

func conversionAt(ts int64) domain.Touchpoint {
	return domain.Touchpoint{
		TeamID:          "team1",
		ResolvedUserID:  "user1",
		MessageID:       "conv1",
		Timestamp:       ts,
		IsConversion:    1,
		ConversionScore: 1.0,
		ConversionValue: 100,
		Revenue:         80,
		Currency:        "USD",
	}
}

func TestApplyModel_CreditsSumToOne(t *testing.T) {
	models := []string{
		domain.ModelLastClick, domain.ModelFirstClick, domain.ModelLinear,
		domain.ModelPositionBased, domain.ModelTimeDecay, domain.ModelJShaped,
	}

	for _, model := range models {
		for n := 1; n <= 8; n++ {
			t.Run(fmt.Sprintf("%s/n=%d", model, n), func(t *testing.T) {
				tps := make([]domain.Touchpoint, n)
				for i := range tps {
					tps[i] = touchpoint(fmt.Sprintf("m%d", i), domain.PlatformGoogleSearchAds, int64(i+1)*3600)
				}
				assignments := applyModel(model, tps, int64(n+1)*3600)

				var sum float64
				for _, a := range assignments {
					sum += a.Credit
				}
				assert.InDelta(t, 1.0, sum, 1e-9)
			})
		}
	}
}

func TestApplyModel_SingleTouchpoint(t *testing.T) {
	tps := []domain.Touchpoint{touchpoint("m0", domain.PlatformFacebookAds, 100)}

	for _, model := range []string{domain.ModelLastClick, domain.ModelFirstClick} {
		assignments := applyModel(model, tps, 200)
		assert.Equal(t, 1.0, assignments[0].Credit)
		assert.False(t, assignments[0].IsAssisted)
	}
}

func TestApplyModel_LastClickMarksAssists(t *testing.T) {
	tps := []domain.Touchpoint{
		touchpoint("m0", domain.PlatformFacebookAds, 100),
		touchpoint("m1", domain.PlatformFacebookAds, 200),
		touchpoint("m2", domain.PlatformFacebookAds, 300),
	}

	assignments := applyModel(domain.ModelLastClick, tps, 400)

	assert.Equal(t, 0.0, assignments[0].Credit)
	assert.True(t, assignments[0].IsAssisted)
	assert.True(t, assignments[1].IsAssisted)
	assert.Equal(t, 1.0, assignments[2].Credit)
	assert.False(t, assignments[2].IsAssisted)
}

func TestApplyModel_UnknownFallsBackToLastClick(t *testing.T) {
	tps := []domain.Touchpoint{
		touchpoint("m0", domain.PlatformFacebookAds, 100),
		touchpoint("m1", domain.PlatformFacebookAds, 200),
	}

	assignments := applyModel("u_shaped_deluxe", tps, 300)

	assert.Equal(t, 0.0, assignments[0].Credit)
	assert.Equal(t, 1.0, assignments[1].Credit)
}

func TestApplyModel_PositionBased(t *testing.T) {
	tps := make([]domain.Touchpoint, 4)
	for i := range tps {
		tps[i] = touchpoint(fmt.Sprintf("m%d", i), domain.PlatformFacebookAds, int64(i+1)*100)
	}

	assignments := applyModel(domain.ModelPositionBased, tps, 1000)

	assert.InDelta(t, 0.4, assignments[0].Credit, 1e-9)
	assert.InDelta(t, 0.1, assignments[1].Credit, 1e-9)
	assert.InDelta(t, 0.1, assignments[2].Credit, 1e-9)
	assert.InDelta(t, 0.4, assignments[3].Credit, 1e-9)
}

func TestApplyModel_JShaped(t *testing.T) {
	tps := make([]domain.Touchpoint, 3)
	for i := range tps {
		tps[i] = touchpoint(fmt.Sprintf("m%d", i), domain.PlatformFacebookAds, int64(i+1)*100)
	}

	assignments := applyModel(domain.ModelJShaped, tps, 1000)

	assert.InDelta(t, 0.2, assignments[0].Credit, 1e-9)
	assert.InDelta(t, 0.2, assignments[1].Credit, 1e-9)
	assert.InDelta(t, 0.6, assignments[2].Credit, 1e-9)

	two := applyModel(domain.ModelJShaped, tps[:2], 1000)
	assert.InDelta(t, 0.25, two[0].Credit, 1e-9)
	assert.InDelta(t, 0.75, two[1].Credit, 1e-9)
}

func TestApplyModel_TimeDecayStrictlyDecreasingWithAge(t *testing.T) {
	conversionTS := 30 * day
	tps := []domain.Touchpoint{
		touchpoint("old", domain.PlatformFacebookAds, conversionTS-14*day),
		touchpoint("mid", domain.PlatformFacebookAds, conversionTS-7*day),
		touchpoint("new", domain.PlatformFacebookAds, conversionTS-1*day),
	}

	assignments := applyModel(domain.ModelTimeDecay, tps, conversionTS)

	assert.Less(t, assignments[0].Credit, assignments[1].Credit)
	assert.Less(t, assignments[1].Credit, assignments[2].Credit)

	// One half-life apart means a factor of two.
	assert.InDelta(t, assignments[0].Credit*2, assignments[1].Credit, 1e-9)
}

func TestCalculate_PlatformViewPerPlatformSums(t *testing.T) {
	c := NewCalculator(nil)
	conv := conversionAt(20 * day)

	tps := []domain.Touchpoint{
		touchpoint("g1", domain.PlatformGoogleSearchAds, 10*day),
		touchpoint("g2", domain.PlatformGoogleSearchAds, 15*day),
		touchpoint("f1", domain.PlatformFacebookAds, 12*day),
	}

	results := c.Calculate(conv, tps)

	sums := make(map[string]float64)
	for _, r := range results {
		if r.AttributionType == domain.AttributionTypePlatform {
			sums[r.Platform] += r.Credit
		}
	}
	assert.InDelta(t, 1.0, sums[domain.PlatformGoogleSearchAds], 1e-9)
	assert.InDelta(t, 1.0, sums[domain.PlatformFacebookAds], 1e-9)
}

func TestCalculate_WindowFilter(t *testing.T) {
	c := NewCalculator(map[string]domain.PlatformConfig{
		domain.PlatformFacebookAds: {
			Platform:        domain.PlatformFacebookAds,
			ClickWindowDays: 7,
			ViewWindowDays:  1,
			Priority:        1,
			Model:           domain.ModelLastClick,
		},
	})
	conv := conversionAt(100 * day)

	tps := []domain.Touchpoint{
		touchpoint("out", domain.PlatformFacebookAds, 100*day-8*day),
		touchpoint("in", domain.PlatformFacebookAds, 100*day-7*day), // exactly on the boundary
	}

	results := c.Calculate(conv, tps)

	for _, r := range results {
		assert.Equal(t, "in", r.TouchpointMessageID)
		assert.Equal(t, uint8(1), r.WithinClickWindow)
	}
	assert.NotEmpty(t, results)
}

func TestCalculate_NothingInWindowEmitsNothing(t *testing.T) {
	c := NewCalculator(map[string]domain.PlatformConfig{
		domain.PlatformFacebookAds: {
			Platform:        domain.PlatformFacebookAds,
			ClickWindowDays: 7,
			ViewWindowDays:  1,
			Priority:        1,
			Model:           domain.ModelLastClick,
		},
	})
	conv := conversionAt(100 * day)

	results := c.Calculate(conv, []domain.Touchpoint{
		touchpoint("out", domain.PlatformFacebookAds, 100*day-30*day),
	})

	assert.Empty(t, results)
}

func TestCalculate_DeduplicatedSinglePlatform(t *testing.T) {
	c := NewCalculator(map[string]domain.PlatformConfig{
		domain.PlatformGoogleSearchAds: {Platform: domain.PlatformGoogleSearchAds, ClickWindowDays: 30, ViewWindowDays: 1, Priority: 5, Model: domain.ModelLinear},
		domain.PlatformFacebookAds:     {Platform: domain.PlatformFacebookAds, ClickWindowDays: 30, ViewWindowDays: 1, Priority: 3, Model: domain.ModelLinear},
	})
	conv := conversionAt(20 * day)

	results := c.Calculate(conv, []domain.Touchpoint{
		touchpoint("g1", domain.PlatformGoogleSearchAds, 10*day),
		touchpoint("f1", domain.PlatformFacebookAds, 12*day),
		touchpoint("g2", domain.PlatformGoogleSearchAds, 15*day),
	})

	platforms := make(map[string]bool)
	var dedupCredit float64
	for _, r := range results {
		if r.AttributionType == domain.AttributionTypeDeduplicated {
			platforms[r.Platform] = true
			dedupCredit += r.Credit
		}
	}
	assert.Len(t, platforms, 1)
	assert.True(t, platforms[domain.PlatformGoogleSearchAds], "highest priority platform should win")
	assert.InDelta(t, 1.0, dedupCredit, 1e-9)
}

func TestCalculate_DeduplicatedPriorityTieLexicographic(t *testing.T) {
	c := NewCalculator(map[string]domain.PlatformConfig{
		domain.PlatformGoogleSearchAds: {Platform: domain.PlatformGoogleSearchAds, ClickWindowDays: 30, ViewWindowDays: 1, Priority: 5, Model: domain.ModelLastClick},
		domain.PlatformFacebookAds:     {Platform: domain.PlatformFacebookAds, ClickWindowDays: 30, ViewWindowDays: 1, Priority: 5, Model: domain.ModelLastClick},
	})
	conv := conversionAt(20 * day)

	results := c.Calculate(conv, []domain.Touchpoint{
		touchpoint("g1", domain.PlatformGoogleSearchAds, 10*day),
		touchpoint("f1", domain.PlatformFacebookAds, 12*day),
	})

	for _, r := range results {
		if r.AttributionType == domain.AttributionTypeDeduplicated {
			assert.Equal(t, domain.PlatformFacebookAds, r.Platform)
		}
	}
}

func TestCalculate_EconomicsAndFlags(t *testing.T) {
	c := NewCalculator(nil)
	conv := conversionAt(20 * day)

	results := c.Calculate(conv, []domain.Touchpoint{
		touchpoint("g1", domain.PlatformGoogleSearchAds, 10*day),
		touchpoint("g2", domain.PlatformGoogleSearchAds, 15*day),
	})

	var platformResults []domain.AttributionResult
	for _, r := range results {
		if r.AttributionType == domain.AttributionTypePlatform {
			platformResults = append(platformResults, r)
		}
	}
	assert.Len(t, platformResults, 2)

	// Default model is last_click.
	first, last := platformResults[0], platformResults[1]
	assert.Equal(t, uint8(1), first.IsFirstTouch)
	assert.Equal(t, uint8(1), first.IsAssisted)
	assert.Equal(t, 0.0, first.AttributedValue)
	assert.Equal(t, uint8(1), last.IsLastTouch)
	assert.Equal(t, 100.0, last.AttributedValue)
	assert.Equal(t, 80.0, last.AttributedRevenue)
	assert.Equal(t, uint32(2), first.TouchpointCount)
}

func TestCalculate_IgnoresTouchpointsAfterConversion(t *testing.T) {
	c := NewCalculator(nil)
	conv := conversionAt(10 * day)

	results := c.Calculate(conv, []domain.Touchpoint{
		touchpoint("before", domain.PlatformFacebookAds, 9*day),
		touchpoint("after", domain.PlatformFacebookAds, 11*day),
	})

	for _, r := range results {
		assert.Equal(t, "before", r.TouchpointMessageID)
	}
	assert.NotEmpty(t, results)
}
