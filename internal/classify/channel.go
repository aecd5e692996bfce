package classify

import (
	"strings"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

var (
	emailSources = map[string]bool{
		"email": true, "e-mail": true, "newsletter": true, "mailchimp": true,
		"klaviyo": true, "braze": true, "sendgrid": true, "hubspot": true,
		"customerio": true,
	}
	emailMediums = map[string]bool{
		"email": true, "e-mail": true, "newsletter": true,
	}
	affiliateMediums = map[string]bool{
		"affiliate": true, "affiliates": true, "partner": true, "partnership": true,
	}

	searchSources = map[string]bool{
		"google": true, "bing": true, "yahoo": true, "duckduckgo": true,
		"baidu": true, "yandex": true, "ecosia": true,
	}
	socialSources = map[string]bool{
		"facebook": true, "fb": true, "meta": true, "instagram": true, "ig": true,
		"tiktok": true, "linkedin": true, "twitter": true, "x": true,
		"pinterest": true, "snapchat": true, "reddit": true, "threads": true,
	}
	videoSources = map[string]bool{
		"youtube": true, "vimeo": true, "twitch": true,
	}
	nativeSources = map[string]bool{
		"outbrain": true, "taboola": true, "criteo": true,
	}
)

// classifyChannel assigns the traffic channel in priority order: email and
// affiliate outrank everything, then paid, then direct, then organic.
func classifyChannel(r Result) string {
	source := strings.ToLower(r.UTMSource)
	medium := strings.ToLower(r.UTMMedium)

	if emailSources[source] || emailMediums[medium] || strings.Contains(medium, "email") {
		return domain.ChannelEmail
	}
	if affiliateMediums[medium] || strings.Contains(medium, "affiliate") {
		return domain.ChannelAffiliate
	}

	if r.IsPaid {
		return classifyPaidChannel(r, source, medium)
	}

	if r.IsDirect {
		return domain.ChannelDirect
	}

	if videoSources[source] || containsAny(r.ReferringDomain, videoDomains) {
		return domain.ChannelOrganicVideo
	}
	if searchSources[source] || containsAny(r.ReferringDomain, searchEngineDomains) {
		return domain.ChannelOrganicSearch
	}
	if socialSources[source] || containsAny(r.ReferringDomain, socialDomains) {
		return domain.ChannelOrganicSocial
	}
	if r.LandingReferrer != "" {
		return domain.ChannelReferral
	}
	return domain.ChannelOther
}

// classifyPaidChannel picks the paid sub-channel from UTM heuristics, falling
// back to the click-id table's channel.
func classifyPaidChannel(r Result, source, medium string) string {
	campaign := strings.ToLower(r.UTMCampaign)

	switch {
	case strings.Contains(medium, "shopping") || strings.Contains(campaign, "shopping"):
		return domain.ChannelPaidShopping
	case videoSources[source] || strings.Contains(medium, "video"):
		return domain.ChannelPaidVideo
	case nativeSources[source] || strings.Contains(medium, "native"):
		return domain.ChannelPaidNative
	case searchSources[source] || medium == "cpc" || medium == "ppc" || medium == "sem" || strings.Contains(medium, "search"):
		return domain.ChannelPaidSearch
	case socialSources[source] || strings.Contains(medium, "social"):
		return domain.ChannelPaidSocial
	}

	if attr, ok := clickIDLookup(r.ClickIDParam); ok {
		return attr.Channel
	}
	return domain.ChannelOther
}
