package classify

import (
	"net/url"
	"strings"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// Result carries every attribute the classifier derives for one event.
type Result struct {
	PageURL         string
	PagePath        string
	PageTitle       string
	PageQuery       string
	PageDomain      string
	LandingReferrer string
	ReferringDomain string

	UTMSource         string
	UTMMedium         string
	UTMCampaign       string
	UTMTerm           string
	UTMContent        string
	UTMID             string
	UTMSourcePlatform string
	UTMContentType    string

	ClickID      string
	ClickIDParam string

	IsDirect       bool
	IsPaid         bool
	TrafficChannel string
	Platform       string
}

// paidMediums match exactly; paidMediumSubstrings match anywhere in the medium.
var (
	paidMediums = map[string]bool{
		"cpc": true, "ppc": true, "cpm": true, "cpv": true, "cpa": true,
		"paid": true, "paid_social": true, "paid-social": true,
		"paid_search": true, "paid-search": true, "sem": true,
		"retargeting": true, "remarketing": true, "sponsored": true,
		"shopping": true, "display": true, "banner": true, "interstitial": true,
	}
	paidMediumSubstrings = []string{"paid", "cpc", "ppc", "sponsor", "retarget", "shopping"}

	// paidSources only imply paid traffic when a campaign is set alongside.
	paidSources = map[string]bool{
		"google": true, "adwords": true, "googleads": true, "facebook": true,
		"fb": true, "meta": true, "instagram": true, "ig": true, "tiktok": true,
		"bing": true, "microsoft": true, "linkedin": true, "twitter": true,
		"x": true, "pinterest": true, "snapchat": true, "reddit": true,
		"criteo": true, "outbrain": true, "taboola": true, "youtube": true,
	}
)

// Classify derives enrichment attributes from one event's decoded context.
// Pure and deterministic; all string comparisons are case-insensitive.
func Classify(ec domain.EventContext) Result {
	var r Result

	r.PageURL = ec.Page.URL
	r.PagePath = ec.Page.Path
	r.PageTitle = ec.Page.Title
	r.PageQuery = pageQuery(ec.Page)
	r.PageDomain = hostname(ec.Page.URL)

	r.LandingReferrer = ec.Page.InitialReferrer
	if r.LandingReferrer == "" {
		r.LandingReferrer = ec.Page.Referrer
	}
	r.ReferringDomain = strings.ToLower(ec.Page.InitialReferringDomain)
	if r.ReferringDomain == "" {
		r.ReferringDomain = strings.ToLower(ec.Page.ReferringDomain)
	}
	if r.ReferringDomain == "" {
		r.ReferringDomain = hostname(r.LandingReferrer)
	}

	query := parseQuery(r.PageQuery)
	applyUTM(&r, query, ec.Campaign)

	r.ClickIDParam, r.ClickID = resolveClickID(query, ec.Extras)

	// A click id stands in for missing UTM tagging.
	if r.UTMSource == "" && r.ClickID != "" {
		if attr, ok := clickIDLookup(r.ClickIDParam); ok {
			r.UTMSource = attr.Source
			if r.UTMMedium == "" {
				r.UTMMedium = attr.Medium
			}
		}
	}

	r.IsPaid = isPaid(r)
	r.IsDirect = isDirect(r)
	r.TrafficChannel = classifyChannel(r)
	r.Platform = classifyPlatform(r)

	return r
}

// pageQuery prefers the explicit search field, falling back to the URL.
func pageQuery(page domain.PageContext) string {
	if page.Search != "" {
		return strings.TrimPrefix(page.Search, "?")
	}
	if u, err := url.Parse(page.URL); err == nil {
		return u.RawQuery
	}
	return ""
}

// parseQuery decodes a raw query string into a flat lowercase-keyed map,
// keeping the first value per key.
func parseQuery(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) == 0 || vs[0] == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, seen := out[key]; !seen {
			out[key] = vs[0]
		}
	}
	return out
}

// applyUTM fills UTM fields from query parameters, falling back to the
// campaign context per field.
func applyUTM(r *Result, query map[string]string, campaign domain.CampaignContext) {
	pick := func(key, fallback string) string {
		if query != nil && query[key] != "" {
			return strings.ToLower(query[key])
		}
		return strings.ToLower(fallback)
	}

	r.UTMSource = pick("utm_source", campaign.Source)
	r.UTMMedium = pick("utm_medium", campaign.Medium)
	r.UTMCampaign = pick("utm_campaign", campaign.Name)
	r.UTMTerm = pick("utm_term", campaign.Term)
	r.UTMContent = pick("utm_content", campaign.Content)
	r.UTMID = pick("utm_id", campaign.ID)
	r.UTMSourcePlatform = pick("utm_source_platform", campaign.SourcePlatform)
	r.UTMContentType = pick("utm_content_type", campaign.ContentType)
}

func isPaid(r Result) bool {
	medium := strings.ToLower(r.UTMMedium)
	if paidMediums[medium] || containsAny(medium, paidMediumSubstrings) {
		return true
	}
	if r.ClickID != "" {
		return true
	}
	if paidSources[strings.ToLower(r.UTMSource)] && r.UTMCampaign != "" {
		return true
	}
	return false
}

func isDirect(r Result) bool {
	if r.ClickID != "" {
		return false
	}
	if r.UTMSource != "" || r.UTMMedium != "" || r.UTMCampaign != "" ||
		r.UTMTerm != "" || r.UTMContent != "" || r.UTMID != "" {
		return false
	}
	if directIndicators[strings.ToLower(strings.TrimSpace(r.LandingReferrer))] {
		return true
	}
	return sameRootDomain(r.PageDomain, r.ReferringDomain)
}
