package classify

import (
	"strings"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// organicPlatformByChannel maps non-paid channels 1:1 onto platforms.
var organicPlatformByChannel = map[string]string{
	domain.ChannelDirect:        domain.PlatformDirect,
	domain.ChannelEmail:         domain.PlatformEmail,
	domain.ChannelAffiliate:     domain.PlatformAffiliate,
	domain.ChannelReferral:      domain.PlatformReferral,
	domain.ChannelOrganicSearch: domain.PlatformOrganicSearch,
	domain.ChannelOrganicSocial: domain.PlatformOrganicSocial,
	domain.ChannelOrganicVideo:  domain.PlatformOrganicVideo,
}

// referrerPlatforms maps referring-domain substrings to paid platforms, used
// as the last fallback before other_paid.
var referrerPlatforms = []struct {
	needle   string
	platform string
}{
	{"facebook.", domain.PlatformFacebookAds},
	{"instagram.", domain.PlatformInstagramAds},
	{"tiktok.", domain.PlatformTikTokAds},
	{"google.", domain.PlatformGoogleSearchAds},
	{"youtube.", domain.PlatformYouTubeAds},
	{"bing.", domain.PlatformBingAds},
	{"linkedin.", domain.PlatformLinkedInAds},
	{"twitter.", domain.PlatformTwitterAds},
	{"t.co", domain.PlatformTwitterAds},
	{"pinterest.", domain.PlatformPinterestAds},
	{"snapchat.", domain.PlatformSnapchatAds},
	{"reddit.", domain.PlatformRedditAds},
	{"outbrain.", domain.PlatformOutbrain},
	{"taboola.", domain.PlatformTaboola},
}

// classifyPlatform assigns the advertising platform. Non-paid traffic maps
// 1:1 from the channel; paid traffic runs the per-vendor decision tree, then
// the click-id table, then the referring domain.
func classifyPlatform(r Result) string {
	if !r.IsPaid {
		if p, ok := organicPlatformByChannel[r.TrafficChannel]; ok {
			return p
		}
		return domain.PlatformOther
	}

	if p := paidPlatformFromUTM(r); p != "" {
		return p
	}
	if attr, ok := clickIDLookup(r.ClickIDParam); ok {
		return attr.Platform
	}
	for _, rp := range referrerPlatforms {
		if r.ReferringDomain != "" && strings.Contains(r.ReferringDomain, rp.needle) {
			return rp.platform
		}
	}
	return domain.PlatformOtherPaid
}

func paidPlatformFromUTM(r Result) string {
	source := strings.ToLower(r.UTMSource)
	medium := strings.ToLower(r.UTMMedium)
	campaign := strings.ToLower(r.UTMCampaign)
	content := strings.ToLower(r.UTMContent)
	contentType := strings.ToLower(r.UTMContentType)
	sourcePlatform := strings.ToLower(r.UTMSourcePlatform)

	switch {
	case source == "facebook" || source == "fb" || source == "meta" ||
		source == "instagram" || source == "ig" ||
		sourcePlatform == "meta" || sourcePlatform == "facebook" || sourcePlatform == "instagram":
		return metaPlatform(source, sourcePlatform, campaign, content, contentType)

	case source == "tiktok" || sourcePlatform == "tiktok":
		return tiktokPlatform(campaign, content, contentType)

	case source == "google" || source == "adwords" || source == "googleads" ||
		source == "youtube" || sourcePlatform == "google":
		return googlePlatform(source, medium, campaign)

	case source == "bing" || source == "microsoft" || sourcePlatform == "microsoft":
		if strings.Contains(medium, "shopping") || strings.Contains(campaign, "shopping") {
			return domain.PlatformBingShoppingAds
		}
		return domain.PlatformBingAds

	case source == "linkedin" || sourcePlatform == "linkedin":
		return linkedinPlatform(medium, content, contentType)

	case source == "twitter" || source == "x":
		return domain.PlatformTwitterAds
	case source == "pinterest":
		return domain.PlatformPinterestAds
	case source == "snapchat":
		return domain.PlatformSnapchatAds
	case source == "reddit":
		return domain.PlatformRedditAds
	case source == "criteo":
		return domain.PlatformCriteo
	case source == "outbrain":
		return domain.PlatformOutbrain
	case source == "taboola":
		return domain.PlatformTaboola
	}
	return ""
}

func metaPlatform(source, sourcePlatform, campaign, content, contentType string) string {
	switch {
	case strings.Contains(contentType, "reel") || strings.Contains(content, "reel") || strings.Contains(campaign, "reel"):
		return domain.PlatformMetaReels
	case strings.Contains(campaign, "advantage") || strings.Contains(campaign, "asc_"):
		return domain.PlatformMetaAdvantagePlus
	case source == "instagram" || source == "ig" || sourcePlatform == "instagram":
		return domain.PlatformInstagramAds
	}
	return domain.PlatformFacebookAds
}

func tiktokPlatform(campaign, content, contentType string) string {
	switch {
	case strings.Contains(campaign, "spark") || strings.Contains(content, "spark") || strings.Contains(contentType, "spark"):
		return domain.PlatformTikTokSpark
	case strings.Contains(campaign, "creator") || strings.Contains(contentType, "creator"):
		return domain.PlatformTikTokCreator
	case strings.Contains(campaign, "topview") || strings.Contains(contentType, "topview"):
		return domain.PlatformTikTokTopView
	}
	return domain.PlatformTikTokAds
}

func googlePlatform(source, medium, campaign string) string {
	switch {
	case strings.Contains(campaign, "pmax") || strings.Contains(campaign, "performance_max") || strings.Contains(campaign, "performance max"):
		return domain.PlatformGooglePMax
	case strings.Contains(medium, "shopping") || strings.Contains(campaign, "shopping"):
		return domain.PlatformGoogleShoppingAds
	case strings.Contains(campaign, "discovery") || strings.Contains(campaign, "demand_gen") || strings.Contains(campaign, "demandgen"):
		return domain.PlatformGoogleDiscoveryAds
	case medium == "app" || strings.Contains(campaign, "app_campaign") || strings.Contains(campaign, "universal_app"):
		return domain.PlatformGoogleAppAds
	case source == "youtube" || strings.Contains(medium, "video"):
		return domain.PlatformYouTubeAds
	case strings.Contains(medium, "display") || strings.Contains(campaign, "display"):
		return domain.PlatformGoogleDisplayAds
	}
	return domain.PlatformGoogleSearchAds
}

func linkedinPlatform(medium, content, contentType string) string {
	switch {
	case strings.Contains(medium, "inmail") || strings.Contains(contentType, "inmail") || strings.Contains(content, "inmail"):
		return domain.PlatformLinkedInInMail
	case strings.Contains(medium, "sponsored") || strings.Contains(contentType, "sponsored_content"):
		return domain.PlatformLinkedInSponsored
	}
	return domain.PlatformLinkedInAds
}
