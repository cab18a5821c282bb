// -----------------------------------------------------------------------
// Seed Discoverer - expands a seed URL into candidate audit targets
// -----------------------------------------------------------------------

package seeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
)

// Discoverer performs single-hop candidate discovery: it fetches the seed
// page only and ranks the internal links found on it. Discovered URLs are
// never followed.
type Discoverer struct {
	fetcher interfaces.Fetcher
	maxURLs int
	logger  arbor.ILogger
}

// NewDiscoverer creates a seed discoverer backed by the shared fetcher
func NewDiscoverer(fetcher interfaces.Fetcher, config *common.Config, logger arbor.ILogger) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		maxURLs: config.Engine.MaxSeedURLs,
		logger:  logger,
	}
}

// Discover fetches the seed page and returns the ranked candidate URLs
func (d *Discoverer) Discover(ctx context.Context, seedURL string, pathRules map[string]int) ([]string, error) {
	page, err := d.fetcher.Fetch(ctx, seedURL)
	if err != nil {
		return nil, fmt.Errorf("seed fetch failed for %s: %w", seedURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed page %s: %w", seedURL, err)
	}

	navLinks := ExtractNavLinks(doc, page.URL)
	internalLinks := ExtractInternalLinks(doc, page.URL)
	candidates := ScoreCandidates(internalLinks, pathRules, navLinks, d.maxURLs)

	d.logger.Info().
		Str("seed_url", seedURL).
		Int("internal_links", len(internalLinks)).
		Int("nav_links", len(navLinks)).
		Int("candidates", len(candidates)).
		Msg("Seed discovery completed")

	return candidates, nil
}

var _ interfaces.SeedDiscoverer = (*Discoverer)(nil)
