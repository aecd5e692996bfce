package attribution

import (
	"sort"
	"time"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

const secondsPerDay = 86400

// Calculator computes attribution credit for conversions under the platform
// view and the priority-deduplicated view.
type Calculator struct {
	configs map[string]domain.PlatformConfig
}

// NewCalculator creates a calculator with explicit per-platform configs.
// Platforms without a row fall back to the hardcoded default.
func NewCalculator(configs map[string]domain.PlatformConfig) *Calculator {
	if configs == nil {
		configs = make(map[string]domain.PlatformConfig)
	}
	return &Calculator{configs: configs}
}

func (c *Calculator) platformConfig(platform string) domain.PlatformConfig {
	if cfg, ok := c.configs[platform]; ok {
		return cfg
	}
	return domain.DefaultPlatformConfig(platform)
}

// Calculate emits attribution rows for one conversion given the user's prior
// touchpoints. Touchpoints at or after the conversion timestamp are ignored.
func (c *Calculator) Calculate(conversion domain.Touchpoint, touchpoints []domain.Touchpoint) []domain.AttributionResult {
	prior := make([]domain.Touchpoint, 0, len(touchpoints))
	for _, tp := range touchpoints {
		if tp.Timestamp < conversion.Timestamp {
			prior = append(prior, tp)
		}
	}
	if len(prior) == 0 {
		return nil
	}
	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].Timestamp < prior[j].Timestamp
	})

	var results []domain.AttributionResult
	results = append(results, c.platformView(conversion, prior)...)
	results = append(results, c.deduplicatedView(conversion, prior)...)
	return results
}

// platformView attributes each platform's windowed touchpoints independently
// under that platform's own model.
func (c *Calculator) platformView(conversion domain.Touchpoint, prior []domain.Touchpoint) []domain.AttributionResult {
	groups := make(map[string][]domain.Touchpoint)
	var order []string
	for _, tp := range prior {
		if _, seen := groups[tp.Platform]; !seen {
			order = append(order, tp.Platform)
		}
		groups[tp.Platform] = append(groups[tp.Platform], tp)
	}
	sort.Strings(order)

	var results []domain.AttributionResult
	for _, platform := range order {
		cfg := c.platformConfig(platform)
		windowed := filterWindow(groups[platform], conversion.Timestamp, cfg.ClickWindowDays)
		if len(windowed) == 0 {
			continue
		}
		results = append(results, c.emit(conversion, windowed, cfg, domain.AttributionTypePlatform)...)
	}
	return results
}

// deduplicatedView picks the single qualifying platform with the highest
// priority (ties broken by lexicographically smallest platform name) and
// attributes only its windowed touchpoints.
func (c *Calculator) deduplicatedView(conversion domain.Touchpoint, prior []domain.Touchpoint) []domain.AttributionResult {
	windowedByPlatform := make(map[string][]domain.Touchpoint)
	for _, tp := range prior {
		cfg := c.platformConfig(tp.Platform)
		if daysBetween(tp.Timestamp, conversion.Timestamp) <= cfg.ClickWindowDays {
			windowedByPlatform[tp.Platform] = append(windowedByPlatform[tp.Platform], tp)
		}
	}
	if len(windowedByPlatform) == 0 {
		return nil
	}

	var winner string
	var winnerPriority int32
	for platform := range windowedByPlatform {
		p := c.platformConfig(platform).Priority
		if winner == "" || p > winnerPriority || (p == winnerPriority && platform < winner) {
			winner = platform
			winnerPriority = p
		}
	}

	cfg := c.platformConfig(winner)
	return c.emit(conversion, windowedByPlatform[winner], cfg, domain.AttributionTypeDeduplicated)
}

func (c *Calculator) emit(conversion domain.Touchpoint, windowed []domain.Touchpoint, cfg domain.PlatformConfig, attributionType string) []domain.AttributionResult {
	assignments := applyModel(cfg.Model, windowed, conversion.Timestamp)
	now := time.Now()

	results := make([]domain.AttributionResult, 0, len(windowed))
	for i, tp := range windowed {
		days := daysBetween(tp.Timestamp, conversion.Timestamp)

		r := domain.AttributionResult{
			TeamID:              conversion.TeamID,
			ConversionMessageID: conversion.MessageID,
			TouchpointMessageID: tp.MessageID,
			ResolvedUserID:      conversion.ResolvedUserID,
			AttributionType:     attributionType,
			AttributionModel:    cfg.Model,
			Platform:            tp.Platform,
			TrafficChannel:      tp.TrafficChannel,

			Credit:            assignments[i].Credit,
			AttributedValue:   conversion.ConversionValue * assignments[i].Credit,
			AttributedRevenue: conversion.Revenue * assignments[i].Credit,
			AttributedScore:   conversion.ConversionScore * assignments[i].Credit,
			ConversionValue:   conversion.ConversionValue,
			Revenue:           conversion.Revenue,
			Currency:          conversion.Currency,
			OrderID:           conversion.OrderID,

			WithinClickWindow: 1,
			TouchpointCount:   uint32(len(windowed)),

			TouchpointTimestamp: tp.Timestamp,
			ConversionTimestamp: conversion.Timestamp,
			DaysToConversion:    days,

			ProcessedAt: now,
			Version:     uint64(now.UnixNano()),
		}
		if days <= cfg.ViewWindowDays {
			r.WithinViewWindow = 1
		}
		if i == 0 {
			r.IsFirstTouch = 1
		}
		if i == len(windowed)-1 {
			r.IsLastTouch = 1
		}
		if assignments[i].IsAssisted {
			r.IsAssisted = 1
		}
		results = append(results, r)
	}
	return results
}

func filterWindow(touchpoints []domain.Touchpoint, conversionTimestamp, clickWindowDays int64) []domain.Touchpoint {
	out := make([]domain.Touchpoint, 0, len(touchpoints))
	for _, tp := range touchpoints {
		if daysBetween(tp.Timestamp, conversionTimestamp) <= clickWindowDays {
			out = append(out, tp)
		}
	}
	return out
}

func daysBetween(from, to int64) int64 {
	delta := to - from
	if delta < 0 {
		delta = 0
	}
	return delta / secondsPerDay
}
