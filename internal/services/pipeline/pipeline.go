// -----------------------------------------------------------------------
// Page Pipeline - fetch, render, infer, resolve, and correct one URL
// -----------------------------------------------------------------------

package pipeline

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
	"github.com/ternarybob/geoscope/internal/services/schema"
)

// SelectFunc picks the entity set embedded into the corrected schema from
// the resolver's candidates
type SelectFunc func(candidates []models.ConceptCandidates) []models.EntityRef

// Pipeline audits one URL at a time. Fetch and inference failures are fatal
// for the URL; render and resolution failures degrade.
type Pipeline struct {
	fetcher      interfaces.Fetcher
	renderer     interfaces.Renderer
	analyzer     interfaces.Analyzer
	searcher     interfaces.EntitySearcher
	extractor    *extractor
	resolveLimit int
	logger       arbor.ILogger

	// SelectDefault chooses which resolved entities are pre-approved into
	// the first-pass schema. Defaults to the top candidate per concept.
	SelectDefault SelectFunc
}

// New creates a page pipeline over the given stage implementations.
// renderer may be nil when rendering is disabled.
func New(
	fetcher interfaces.Fetcher,
	renderer interfaces.Renderer,
	analyzer interfaces.Analyzer,
	searcher interfaces.EntitySearcher,
	config *common.Config,
	logger arbor.ILogger,
) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		renderer:      renderer,
		analyzer:      analyzer,
		searcher:      searcher,
		extractor:     newExtractor(logger),
		resolveLimit:  config.Resolver.DefaultLimit,
		logger:        logger,
		SelectDefault: TopCandidates,
	}
}

// TopCandidates approves the highest-ranked candidate of every concept that
// resolved, deduplicated by QID
func TopCandidates(candidates []models.ConceptCandidates) []models.EntityRef {
	refs := []models.EntityRef{}
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if len(c.Candidates) == 0 {
			continue
		}
		top := c.Candidates[0]
		if _, dup := seen[top.QID]; dup {
			continue
		}
		seen[top.QID] = struct{}{}
		refs = append(refs, models.EntityRef{Name: top.Label, QID: top.QID})
	}
	return refs
}

// AuditPage runs the full audit for one URL. Errors carry the failed stage
// via models.StageError.
func (p *Pipeline) AuditPage(ctx context.Context, pageURL string) (*models.Result, *models.PageAnalysis, error) {
	fetched, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, models.NewStageError(models.StageFetch, err)
	}

	renderedHTML := ""
	if p.renderer != nil {
		html, renderErr := p.renderer.Render(ctx, pageURL)
		if renderErr != nil {
			p.logger.Warn().Err(renderErr).Str("url", pageURL).Msg("Render failed, continuing with server HTML")
		} else {
			renderedHTML = html
		}
	}

	content, err := p.extractor.Extract(fetched.URL, fetched.HTML, renderedHTML)
	if err != nil {
		return nil, nil, models.NewStageError(models.StageFetch, err)
	}

	analysis, err := p.analyzer.AnalyzePage(ctx, content)
	if err != nil {
		return nil, nil, models.NewStageError(models.StageInfer, err)
	}

	suggested := p.resolveConcepts(ctx, pageURL, analysis.SuggestedConcepts)
	approved := p.SelectDefault(suggested)

	result := &models.Result{
		URL:                   pageURL,
		PageIntent:            analysis.PageIntent,
		VisibilityDiagnosis:   analysis.VisibilityDiagnosis,
		FixPlan:               analysis.FixPlan,
		BestPractices:         schema.BestPracticesText,
		SuggestedConcepts:     analysis.SuggestedConcepts,
		SuggestedQIDs:         suggested,
		UsedQIDs:              []models.EntityRef{},
		RenderedHTMLAvailable: content.RenderedHTMLAvailable,
		RawResponse:           analysis.RawResponse,
	}

	if analysis.DraftJSONLD != nil {
		corrected, err := schema.Correct(analysis.DraftJSONLD, approved)
		if err != nil {
			return nil, nil, models.NewStageError(models.StageCorrect, err)
		}
		result.JSONLD = corrected.JSONLD
		result.JSONLDCorrections = corrected.Corrections
		result.FlattenedSchema = corrected.FlattenedSchema
		result.UsedQIDs = approved
	}

	p.logger.Info().
		Str("url", pageURL).
		Str("page_intent", result.PageIntent).
		Int("suggested_concepts", len(result.SuggestedConcepts)).
		Int("used_qids", len(result.UsedQIDs)).
		Bool("rendered", result.RenderedHTMLAvailable).
		Msg("Page audit completed")

	return result, analysis, nil
}

// resolveConcepts maps suggested concept names to ranked entity candidates.
// A resolver outage yields empty candidate lists, never a page failure.
func (p *Pipeline) resolveConcepts(ctx context.Context, pageURL string, concepts []string) []models.ConceptCandidates {
	if len(concepts) == 0 {
		return []models.ConceptCandidates{}
	}

	suggested, err := p.searcher.SearchAll(ctx, concepts, p.resolveLimit)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", pageURL).Msg("Entity resolution unavailable, keeping concepts without candidates")
		suggested = make([]models.ConceptCandidates, len(concepts))
		for i, concept := range concepts {
			suggested[i] = models.ConceptCandidates{Concept: concept, Candidates: []models.Entity{}}
		}
	}
	return suggested
}

var _ interfaces.PagePipeline = (*Pipeline)(nil)
