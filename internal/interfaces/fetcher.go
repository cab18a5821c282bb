package interfaces

import (
	"context"

	"github.com/ternarybob/geoscope/internal/models"
)

// Fetcher retrieves raw server-side HTML for audit targets
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*models.FetchedPage, error)
}

// Renderer produces post-JavaScript HTML via a headless browser.
// Render failures are non-fatal; the pipeline degrades to the fetched HTML.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Close() error
}
