package seeds

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractInternalLinks(t *testing.T) {
	html := `<html><body>
		<a href="/services/fx/">FX</a>
		<a href="/about">About</a>
		<a href="/about#team">Team</a>
		<a href="https://example.com/contact">Contact</a>
		<a href="https://other.com/page">External</a>
		<a href="/logo.png">Asset</a>
		<a href="/wp-admin/settings">Utility</a>
		<a href="/">Root</a>
		<a href="#top">Anchor</a>
		<a href="mailto:hi@example.com">Mail</a>
	</body></html>`

	links := ExtractInternalLinks(parseDoc(t, html), "https://example.com/")

	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/contact",
		"https://example.com/services/fx",
	}, links)
}

func TestExtractInternalLinks_ResolvesRelative(t *testing.T) {
	html := `<a href="../pricing">Pricing</a>`
	links := ExtractInternalLinks(parseDoc(t, html), "https://example.com/services/fx")
	assert.Equal(t, []string{"https://example.com/pricing"}, links)
}

func TestExtractNavLinks(t *testing.T) {
	html := `<html><body>
		<nav><a href="/services/fx">FX</a><a href="/about">About</a></nav>
		<header><a href="/services/fx">FX again</a></header>
		<div class="menu"><a href="/blog">Blog</a></div>
		<p><a href="/deep/buried/page">Body link</a></p>
	</body></html>`

	nav := ExtractNavLinks(parseDoc(t, html), "https://example.com/")

	assert.Equal(t, []string{
		"https://example.com/services/fx",
		"https://example.com/about",
		"https://example.com/blog",
	}, nav)
}

func TestScoreCandidates_NavLinksFirst(t *testing.T) {
	links := []string{
		"https://example.com/a/b/c/d/e/deep",
		"https://example.com/pricing",
		"https://example.com/services/fx",
	}
	nav := []string{"https://example.com/pricing"}

	ranked := ScoreCandidates(links, nil, nav, 0)

	assert.Equal(t, "https://example.com/pricing", ranked[0])
	assert.Equal(t, "https://example.com/services/fx", ranked[1])
}

func TestScoreCandidates_PathRulesOverrideDefaults(t *testing.T) {
	links := []string{
		"https://example.com/services/fx",
		"https://example.com/products/widget",
	}
	rules := map[string]int{"/products/": 20}

	ranked := ScoreCandidates(links, rules, nil, 0)

	assert.Equal(t, "https://example.com/products/widget", ranked[0])
}

func TestScoreCandidates_CapsTopN(t *testing.T) {
	links := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}

	ranked := ScoreCandidates(links, nil, nil, 2)

	assert.Len(t, ranked, 2)
}

func TestScoreCandidates_StableOrderOnTies(t *testing.T) {
	links := []string{
		"https://example.com/alpha",
		"https://example.com/beta",
	}

	ranked := ScoreCandidates(links, map[string]int{}, nil, 0)

	assert.Equal(t, links, ranked)
}
