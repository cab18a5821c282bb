// -----------------------------------------------------------------------
// Entity Resolver - Wikidata wbsearchentities client
// -----------------------------------------------------------------------

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// Service resolves concept strings against the Wikidata entity search API
type Service struct {
	endpoint   string
	userAgent  string
	maxRetries int
	limit      int
	client     *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// searchResponse is the wbsearchentities wire shape
type searchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// NewService creates a Wikidata resolver from config
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	cfg := config.Resolver
	interval := cfg.RateLimit
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	return &Service{
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		limit:      cfg.DefaultLimit,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}
}

// Search returns up to limit candidate entities for a concept, ordered by
// the external relevance ranking. Retries with exponential backoff; returns
// ErrResolutionUnavailable when all attempts fail.
func (s *Service) Search(ctx context.Context, concept string, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = s.limit
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			s.logger.Warn().
				Str("concept", concept).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Wikidata search failed, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", models.ErrResolutionUnavailable, ctx.Err())
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrResolutionUnavailable, err)
		}

		entities, err := s.search(ctx, concept, limit)
		if err == nil {
			return entities, nil
		}
		lastErr = err
	}

	s.logger.Error().
		Str("concept", concept).
		Err(lastErr).
		Msg("Wikidata search exhausted retries")
	return nil, fmt.Errorf("%w: %v", models.ErrResolutionUnavailable, lastErr)
}

func (s *Service) search(ctx context.Context, concept string, limit int) ([]models.Entity, error) {
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {concept},
		"language": {"en"},
		"format":   {"json"},
		"limit":    {fmt.Sprintf("%d", limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikidata returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode wikidata response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("wikidata error %s: %s", body.Error.Code, body.Error.Info)
	}

	entities := make([]models.Entity, 0, len(body.Search))
	for _, item := range body.Search {
		entities = append(entities, models.Entity{
			QID:         item.ID,
			Label:       item.Label,
			Description: item.Description,
		})
	}
	return entities, nil
}

// SearchAll resolves multiple concepts concurrently, preserving input order.
// Concepts that fail resolution get empty candidate lists so the caller can
// still show they were considered.
func (s *Service) SearchAll(ctx context.Context, concepts []string, limit int) ([]models.ConceptCandidates, error) {
	results := make([]models.ConceptCandidates, len(concepts))

	var wg sync.WaitGroup
	for i, concept := range concepts {
		wg.Add(1)
		go func(idx int, c string) {
			defer wg.Done()
			entities, err := s.Search(ctx, c, limit)
			if err != nil {
				s.logger.Warn().
					Str("concept", c).
					Err(err).
					Msg("Concept resolution failed, keeping empty candidate list")
				results[idx] = models.ConceptCandidates{Concept: c, Candidates: []models.Entity{}}
				return
			}
			results[idx] = models.ConceptCandidates{Concept: c, Candidates: entities}
		}(i, concept)
	}
	wg.Wait()

	return results, nil
}

var _ interfaces.EntitySearcher = (*Service)(nil)
