package classify

import (
	"net/url"
	"strings"
)

// Referring-domain substring lists for organic classification. Matching is
// case-insensitive and ignores empty needles.
var (
	searchEngineDomains = []string{
		"google.", "bing.", "yahoo.", "duckduckgo.", "baidu.", "yandex.",
		"ecosia.", "qwant.", "startpage.",
	}
	socialDomains = []string{
		"facebook.", "instagram.", "twitter.", "t.co", "x.com", "linkedin.",
		"tiktok.", "pinterest.", "reddit.", "snapchat.", "threads.",
	}
	videoDomains = []string{
		"youtube.", "youtu.be", "vimeo.", "twitch.",
	}
)

// directIndicators are landing-referrer values trackers use to mean "typed in".
var directIndicators = map[string]bool{
	"":        true,
	"$direct": true,
	"direct":  true,
	"(none)":  true,
}

// compoundTLDSeconds are second-level labels that form a compound TLD with a
// two-letter country code (co.uk, com.au, ...). A three-label root is kept
// for those, two labels otherwise.
var compoundTLDSeconds = map[string]bool{
	"co":  true,
	"com": true,
	"net": true,
	"org": true,
	"gov": true,
	"edu": true,
	"ac":  true,
	"mil": true,
}

// hostname extracts the lowercase host from a URL, tolerating bare hosts.
func hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	// Bare domain without a scheme.
	host := raw
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// rootDomain collapses a hostname to its registrable root: two labels, or
// three when the TLD is compound (example.co.uk).
func rootDomain(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	labels := strings.Split(host, ".")
	n := len(labels)
	if n <= 2 {
		return host
	}
	if compoundTLDSeconds[labels[n-2]] && len(labels[n-1]) == 2 {
		if n >= 3 {
			return strings.Join(labels[n-3:], ".")
		}
	}
	return strings.Join(labels[n-2:], ".")
}

// sameRootDomain reports whether two hostnames share a registrable root.
// Empty hostnames never match.
func sameRootDomain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return rootDomain(a) == rootDomain(b)
}

// containsAny reports whether s contains any of the needles. Empty needles
// never match.
func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
