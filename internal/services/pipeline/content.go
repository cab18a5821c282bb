// -----------------------------------------------------------------------
// Content Extraction - page text, schema blocks, and crawl signals
// -----------------------------------------------------------------------

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/models"
	"github.com/ternarybob/geoscope/internal/services/seeds"
)

const (
	chunkSize    = 1200
	chunkOverlap = 200

	errorPreviewLen  = 280
	errorPreviewKeep = 3
)

// extractor turns fetched and rendered HTML into the structured content the
// inference stage consumes. Rendered HTML is preferred when present; the
// server-side variant always contributes its own schema audit so the model
// can see what crawlers get before JavaScript runs.
type extractor struct {
	logger arbor.ILogger
}

func newExtractor(logger arbor.ILogger) *extractor {
	return &extractor{logger: logger}
}

// Extract builds PageContent from both HTML variants. pageURL is the
// post-redirect URL of the fetch.
func (e *extractor) Extract(pageURL, serverHTML, renderedHTML string) (*models.PageContent, error) {
	primaryHTML := renderedHTML
	if primaryHTML == "" {
		primaryHTML = serverHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(primaryHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", pageURL, err)
	}

	navLinks := seeds.ExtractNavLinks(doc, pageURL)
	internalLinks := seeds.ExtractInternalLinks(doc, pageURL)
	candidates := seeds.ScoreCandidates(internalLinks, nil, navLinks, 30)

	rawBlocks := extractJSONLDBlocks(doc)
	parsed, parseErrors := parseJSONLDBlocks(rawBlocks)

	text := cleanText(doc)
	markdown := e.toMarkdown(primaryHTML, pageURL, text)

	content := &models.PageContent{
		URL:                   pageURL,
		Text:                  text,
		Markdown:              markdown,
		Chunks:                chunkText(text),
		CandidateServiceURLs:  candidates,
		ParsedSchema:          parsed,
		SchemaErrors:          parseErrors,
		RenderedHTMLAvailable: renderedHTML != "",
	}
	if serverHTML != "" {
		content.ServerAudit = auditHTML(serverHTML)
	}
	if renderedHTML != "" {
		content.RenderedAudit = auditHTML(renderedHTML)
	}

	return content, nil
}

// toMarkdown converts the page HTML to markdown, falling back to the
// cleaned text when conversion fails or produces nothing
func (e *extractor) toMarkdown(html, baseURL, fallback string) string {
	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", baseURL).Msg("HTML to markdown conversion failed, using cleaned text")
		return fallback
	}
	if strings.TrimSpace(converted) == "" {
		return fallback
	}
	return converted
}

// cleanText strips boilerplate elements and returns the page's visible text.
// Mutates the document; call after link and schema extraction.
func cleanText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, aside").Remove()
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}

// chunkText splits text into overlapping windows approximating how a
// retrieval system would chunk the page
func chunkText(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	step := chunkSize - chunkOverlap
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// extractJSONLDBlocks returns the raw contents of every ld+json script tag
func extractJSONLDBlocks(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if raw := strings.TrimSpace(s.Text()); raw != "" {
			blocks = append(blocks, raw)
		}
	})
	return blocks
}

// parseJSONLDBlocks parses raw blocks into node objects, recording a parse
// error (with a preview of the offending block) for anything malformed
func parseJSONLDBlocks(rawBlocks []string) ([]map[string]any, []models.SchemaParseError) {
	var parsed []map[string]any
	var errors []models.SchemaParseError

	preview := func(raw string) string {
		if len(raw) > errorPreviewLen {
			return raw[:errorPreviewLen]
		}
		return raw
	}

	for i, raw := range rawBlocks {
		var obj any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			errors = append(errors, models.SchemaParseError{
				Block:   i,
				Error:   err.Error(),
				Preview: preview(raw),
			})
			continue
		}
		switch v := obj.(type) {
		case map[string]any:
			parsed = append(parsed, v)
		case []any:
			for _, item := range v {
				if node, ok := item.(map[string]any); ok {
					parsed = append(parsed, node)
				}
			}
		default:
			errors = append(errors, models.SchemaParseError{
				Block:   i,
				Error:   fmt.Sprintf("unexpected root type %T", obj),
				Preview: preview(raw),
			})
		}
	}
	return parsed, errors
}

// collectTypes counts every @type occurrence across the parsed nodes,
// including nested ones
func collectTypes(nodes []map[string]any) map[string]int {
	types := make(map[string]int)

	var walk func(node any)
	walk = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			switch t := v["@type"].(type) {
			case string:
				types[t]++
			case []any:
				for _, item := range t {
					if s, ok := item.(string); ok {
						types[s]++
					}
				}
			}
			for _, val := range v {
				walk(val)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}

	for _, node := range nodes {
		walk(node)
	}
	return types
}

// indexabilitySignals pulls the robots meta and canonical link from a document
func indexabilitySignals(doc *goquery.Document) models.IndexabilitySignals {
	signals := models.IndexabilitySignals{}
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); strings.EqualFold(name, "robots") {
			signals.RobotsMeta, _ = s.Attr("content")
			return false
		}
		return true
	})
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if strings.Contains(strings.ToLower(rel), "canonical") {
			signals.Canonical, _ = s.Attr("href")
			return false
		}
		return true
	})
	return signals
}

// auditHTML summarizes the structured data in one HTML variant
func auditHTML(html string) *models.SchemaAudit {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &models.SchemaAudit{}
	}

	rawBlocks := extractJSONLDBlocks(doc)
	parsed, parseErrors := parseJSONLDBlocks(rawBlocks)

	audit := &models.SchemaAudit{
		BlocksCount: len(rawBlocks),
		ErrorsCount: len(parseErrors),
		Types:       collectTypes(parsed),
		Signals:     indexabilitySignals(doc),
	}
	if len(parseErrors) > errorPreviewKeep {
		parseErrors = parseErrors[:errorPreviewKeep]
	}
	audit.ErrorsPreview = parseErrors
	return audit
}
