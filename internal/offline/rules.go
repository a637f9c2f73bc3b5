package offline

import (
	"net/http"
	"path"
	"strings"
)

type Strategy string

const (
	Passthrough          Strategy = "passthrough"
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// Rule assigns a strategy to the requests Match accepts.
type Rule struct {
	Name     string
	Match    func(*http.Request) bool
	Strategy Strategy
}

type RuleConfig struct {
	NoCache          []string // substrings of the full URL
	StaticExtensions []string
	StaticHosts      []string // substrings of the full URL
	APIPatterns      []string // substrings of the path
}

// DefaultRules is the ordered chain: bypass, static assets, API calls.
// Anything left is stale-while-revalidate.
func DefaultRules(c RuleConfig) []Rule {
	exts := make(map[string]bool, len(c.StaticExtensions))
	for _, e := range c.StaticExtensions {
		exts[strings.ToLower(e)] = true
	}
	return []Rule{
		{
			Name:     "non-get",
			Match:    func(r *http.Request) bool { return r.Method != http.MethodGet },
			Strategy: Passthrough,
		},
		{
			Name:     "no-cache",
			Match:    func(r *http.Request) bool { return containsAny(fullURL(r), c.NoCache) },
			Strategy: Passthrough,
		},
		{
			Name: "static",
			Match: func(r *http.Request) bool {
				return exts[strings.ToLower(path.Ext(r.URL.Path))] || containsAny(fullURL(r), c.StaticHosts)
			},
			Strategy: CacheFirst,
		},
		{
			Name:     "api",
			Match:    func(r *http.Request) bool { return containsAny(r.URL.Path, c.APIPatterns) },
			Strategy: NetworkFirst,
		},
	}
}

var defaultRule = Rule{Name: "default", Strategy: StaleWhileRevalidate}

// Select returns the first matching rule.
func Select(rules []Rule, r *http.Request) Rule {
	for _, rule := range rules {
		if rule.Match(r) {
			return rule
		}
	}
	return defaultRule
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func fullURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// cacheKey is the URL an entry is stored under.
func cacheKey(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return r.URL.RequestURI()
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Dest") == "document" || r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
