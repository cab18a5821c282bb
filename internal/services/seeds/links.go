// -----------------------------------------------------------------------
// Link Extraction - internal link discovery, filtering, and scoring
// -----------------------------------------------------------------------

package seeds

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skipExtensions filters asset URLs out of candidate discovery
var skipExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
	".css", ".js", ".xml", ".pdf", ".zip", ".ico",
}

// skipPaths filters utility pages that never carry audit-worthy schema
var skipPaths = []string{
	"/wp-content/", "/wp-admin/", "/feed/", "/tag/", "/author/",
	"/cart", "/checkout", "/account", "/login", "/signup",
}

// DefaultPathBoost scores candidate URLs by path keywords when the caller
// supplies no rules of its own
var DefaultPathBoost = map[string]int{
	"/services/": 4,
	"/service/":  4,
	"/about":     2,
	"/contact":   1,
	"/blog":      1,
	"/geo":       3,
	"/seo":       2,
	"/ppc":       2,
	"/content":   2,
	"/local":     2,
}

// navSelectors locate navigation links in common markup patterns
var navSelectors = []string{
	"nav a[href]",
	"header a[href]",
	"[role='navigation'] a[href]",
	".nav a[href]",
	".navbar a[href]",
	".menu a[href]",
	".main-menu a[href]",
	".primary-menu a[href]",
	".site-nav a[href]",
}

// resolveInternal resolves an href against the base URL and returns the
// absolute URL when it points at a non-asset page on the same host.
// Returns "" for external, asset, utility, and root links.
func resolveInternal(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	for _, prefix := range []string{"#", "mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(href, prefix) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	if !strings.EqualFold(abs.Host, base.Host) {
		return ""
	}

	path := strings.ToLower(abs.Path)
	if path == "" || path == "/" {
		return ""
	}
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return ""
		}
	}
	for _, skip := range skipPaths {
		if strings.Contains(path, skip) {
			return ""
		}
	}

	return strings.TrimRight(abs.String(), "/")
}

// ExtractInternalLinks returns the deduplicated, sorted internal links of a
// parsed document
func ExtractInternalLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if resolved := resolveInternal(href, base); resolved != "" {
			seen[resolved] = struct{}{}
		}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// ExtractNavLinks returns internal links found inside navigation markup,
// in document order
func ExtractNavLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	for _, selector := range navSelectors {
		doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			resolved := resolveInternal(href, base)
			if resolved == "" {
				return
			}
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			links = append(links, resolved)
		})
	}
	return links
}

// ScoreCandidates ranks internal links and returns the top N. Navigation
// links outrank everything else; path keyword boosts and a shallow-depth
// bonus order the rest. Ties keep the alphabetical input order stable.
func ScoreCandidates(links []string, pathRules map[string]int, navLinks []string, topN int) []string {
	boostRules := pathRules
	if boostRules == nil {
		boostRules = DefaultPathBoost
	}
	navSet := make(map[string]struct{}, len(navLinks))
	for _, link := range navLinks {
		navSet[link] = struct{}{}
	}

	type scored struct {
		score int
		url   string
	}
	ranked := make([]scored, 0, len(links))
	for _, link := range links {
		path := ""
		if parsed, err := url.Parse(link); err == nil {
			path = strings.ToLower(parsed.Path)
		}

		score := 0
		if _, isNav := navSet[link]; isNav {
			score += 10
		}
		for pattern, weight := range boostRules {
			if strings.Contains(path, strings.ToLower(pattern)) {
				score += weight
			}
		}
		depth := 0
		for _, segment := range strings.Split(path, "/") {
			if segment != "" {
				depth++
			}
		}
		if bonus := 5 - depth; bonus > 0 {
			score += bonus
		}

		ranked = append(ranked, scored{score: score, url: link})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.url
	}
	return out
}
