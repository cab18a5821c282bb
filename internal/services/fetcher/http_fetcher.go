// -----------------------------------------------------------------------
// HTTP Fetcher - server-side HTML retrieval for audit targets
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// Service fetches raw HTML over HTTP. It presents a crawler user agent so
// pages serve the markup they would serve a search engine.
type Service struct {
	client      *http.Client
	userAgent   string
	maxBodySize int
	logger      arbor.ILogger
}

// NewService creates an HTTP fetcher from config
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	cfg := config.Fetcher

	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}

	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Service{
		client:      client,
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
		logger:      logger,
	}
}

// Fetch retrieves the server-rendered HTML for a page. Non-2xx responses
// and transport failures return ErrFetchFailed.
func (s *Service) Fetch(ctx context.Context, pageURL string) (*models.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().
			Str("url", pageURL).
			Err(err).
			Msg("Page fetch failed")
		return nil, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn().
			Str("url", pageURL).
			Int("status", resp.StatusCode).
			Msg("Page fetch returned non-success status")
		return nil, fmt.Errorf("%w: status %d for %s", models.ErrFetchFailed, resp.StatusCode, pageURL)
	}

	limit := int64(s.maxBodySize)
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", models.ErrFetchFailed, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	s.logger.Debug().
		Str("url", pageURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Page fetched")

	return &models.FetchedPage{
		URL:        finalURL,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}, nil
}

var _ interfaces.Fetcher = (*Service)(nil)
