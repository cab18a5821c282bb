package interfaces

import (
	"context"

	"github.com/ternarybob/geoscope/internal/models"
)

// Analyzer runs LLM inference over extracted page content, producing the
// page intent, visibility diagnosis, fix plan, and draft JSON-LD.
type Analyzer interface {
	// AnalyzePage runs the audit prompt against the provider
	AnalyzePage(ctx context.Context, content *models.PageContent) (*models.PageAnalysis, error)

	// Verify checks the provider is reachable and credentialed.
	// Called once before a job starts so a misconfigured provider fails
	// the job up front instead of failing every URL.
	Verify(ctx context.Context) error

	// Name returns the provider name ("gemini" or "claude")
	Name() string
}

// EntitySearcher resolves concept strings to knowledge-graph entities
type EntitySearcher interface {
	// Search returns up to limit candidate entities for a single concept
	Search(ctx context.Context, concept string, limit int) ([]models.Entity, error)

	// SearchAll resolves multiple concepts, preserving input order.
	// Concepts that fail to resolve get empty candidate lists rather than
	// failing the whole batch.
	SearchAll(ctx context.Context, concepts []string, limit int) ([]models.ConceptCandidates, error)
}
