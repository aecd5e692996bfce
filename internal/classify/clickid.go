package classify

import "strings"

// clickIDAttribution maps a platform click-id parameter to the source, medium,
// channel and platform it implies when UTM parameters are absent.
type clickIDAttribution struct {
	Source   string
	Medium   string
	Channel  string
	Platform string
}

// clickIDParams is the priority-ordered scan list; the first parameter with a
// non-empty value wins.
var clickIDParams = []string{
	"fbclid",
	"ttclid",
	"gclid",
	"gbraid",
	"wbraid",
	"msclkid",
	"li_fat_id",
	"twclid",
	"epik",
	"ScCid",
	"scid",
	"rdt_cid",
	"crto_pid",
	"obOrigUrl",
	"tblci",
}

var clickIDTable = map[string]clickIDAttribution{
	"fbclid":    {Source: "facebook", Medium: "paid", Channel: "paid_social", Platform: "facebook_ads"},
	"ttclid":    {Source: "tiktok", Medium: "paid", Channel: "paid_social", Platform: "tiktok_ads"},
	"gclid":     {Source: "google", Medium: "cpc", Channel: "paid_search", Platform: "google_search_ads"},
	"gbraid":    {Source: "google", Medium: "cpc", Channel: "paid_search", Platform: "google_search_ads"},
	"wbraid":    {Source: "google", Medium: "cpc", Channel: "paid_search", Platform: "google_search_ads"},
	"msclkid":   {Source: "bing", Medium: "cpc", Channel: "paid_search", Platform: "bing_ads"},
	"li_fat_id": {Source: "linkedin", Medium: "paid", Channel: "paid_social", Platform: "linkedin_ads"},
	"twclid":    {Source: "twitter", Medium: "paid", Channel: "paid_social", Platform: "twitter_ads"},
	"epik":      {Source: "pinterest", Medium: "paid", Channel: "paid_social", Platform: "pinterest_ads"},
	"sccid":     {Source: "snapchat", Medium: "paid", Channel: "paid_social", Platform: "snapchat_ads"},
	"scid":      {Source: "snapchat", Medium: "paid", Channel: "paid_social", Platform: "snapchat_ads"},
	"rdt_cid":   {Source: "reddit", Medium: "paid", Channel: "paid_social", Platform: "reddit_ads"},
	"crto_pid":  {Source: "criteo", Medium: "retargeting", Channel: "paid_native", Platform: "criteo"},
	"oborigurl": {Source: "outbrain", Medium: "paid", Channel: "paid_native", Platform: "outbrain"},
	"tblci":     {Source: "taboola", Medium: "paid", Channel: "paid_native", Platform: "taboola"},
}

// resolveClickID scans query parameters and then flat context fields for a
// known click-id parameter, case-insensitively on the parameter name.
func resolveClickID(query map[string]string, extras map[string]string) (param, value string) {
	lookup := func(m map[string]string, key string) string {
		if m == nil {
			return ""
		}
		if v, ok := m[key]; ok {
			return v
		}
		return m[strings.ToLower(key)]
	}

	for _, p := range clickIDParams {
		if v := lookup(query, p); v != "" {
			return strings.ToLower(p), v
		}
	}
	for _, p := range clickIDParams {
		if v := lookup(extras, p); v != "" {
			return strings.ToLower(p), v
		}
	}
	return "", ""
}

// clickIDLookup returns the attribution row for a click-id parameter name.
func clickIDLookup(param string) (clickIDAttribution, bool) {
	attr, ok := clickIDTable[strings.ToLower(param)]
	return attr, ok
}
