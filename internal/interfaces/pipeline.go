package interfaces

import (
	"context"

	"github.com/ternarybob/geoscope/internal/models"
)

// PagePipeline audits a single URL end to end: fetch, render, infer,
// resolve entities, and correct the draft schema.
type PagePipeline interface {
	// AuditPage returns the audit result plus the raw inference output
	// (kept for draft storage and regeneration). Failures carry the stage
	// they occurred in via models.StageError.
	AuditPage(ctx context.Context, pageURL string) (*models.Result, *models.PageAnalysis, error)
}

// SeedDiscoverer expands a seed URL into candidate audit targets on the
// same origin. pathRules maps path substrings to score boosts; nil uses
// the built-in defaults.
type SeedDiscoverer interface {
	Discover(ctx context.Context, seedURL string, pathRules map[string]int) ([]string, error)
}
