// -----------------------------------------------------------------------
// Schema Corrector - deterministic JSON-LD post-processing pipeline
// -----------------------------------------------------------------------

package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/geoscope/internal/models"
)

// WikidataEntityBase is the resolvable URI prefix for embedded entity IDs
const WikidataEntityBase = "https://www.wikidata.org/entity/"

// CorrectionResult is the output of a corrector run
type CorrectionResult struct {
	JSONLD          any                 `json:"json_ld"`
	Corrections     []models.Correction `json:"corrections"`
	FlattenedSchema string              `json:"flattened_schema"`
}

// transform takes a graph (list of nodes) and returns the modified graph
// plus the corrections it applied
type transform func(graph []map[string]any) ([]map[string]any, []models.Correction)

// Correct runs the full transform pipeline over a raw JSON-LD document and
// embeds the approved entity set. Pure: the same (raw, approved) input always
// yields the same output, and the caller's document is never mutated.
// Entities outside approved never appear in the output.
func Correct(raw any, approved []models.EntityRef) (*CorrectionResult, error) {
	doc, err := normalizeDocument(raw)
	if err != nil {
		return nil, err
	}

	graph := extractGraph(doc)
	corrections := []models.Correction{}

	pipeline := []transform{
		normalizeContext,
		normalizeLogo,
		ensureWebsiteNode,
		fixAboutPlacement,
		setMainEntity,
		embedEntities(approved),
		validateIDRefs,
	}
	for _, t := range pipeline {
		var applied []models.Correction
		graph, applied = t(graph)
		corrections = append(corrections, applied...)
	}

	fixed := wrapGraph(graph, doc)

	return &CorrectionResult{
		JSONLD:          fixed,
		Corrections:     corrections,
		FlattenedSchema: Flatten(fixed),
	}, nil
}

// Validate runs the corrector with no approved entities (validation-only mode)
func Validate(raw any) (*CorrectionResult, error) {
	return Correct(raw, nil)
}

// normalizeDocument deep-copies the input through a JSON round trip so every
// node is a map[string]any and the caller's value is never touched. String
// input is parsed as JSON first.
func normalizeDocument(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, fmt.Errorf("%w: JSON-LD payload is not valid JSON: %v", models.ErrInvalidInput, err)
		}
		raw = parsed
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: JSON-LD payload is not serializable: %v", models.ErrInvalidInput, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	switch doc.(type) {
	case map[string]any, []any:
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: JSON-LD payload must be an object or array", models.ErrInvalidInput)
	}
}

// extractGraph normalizes JSON-LD into a flat list of nodes
func extractGraph(doc any) []map[string]any {
	switch v := doc.(type) {
	case []any:
		nodes := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if node, ok := item.(map[string]any); ok {
				nodes = append(nodes, node)
			}
		}
		return nodes
	case map[string]any:
		if inner, ok := v["@graph"].([]any); ok {
			nodes := make([]map[string]any, 0, len(inner))
			for _, item := range inner {
				if node, ok := item.(map[string]any); ok {
					nodes = append(nodes, node)
				}
			}
			return nodes
		}
		return []map[string]any{v}
	}
	return nil
}

// wrapGraph re-wraps nodes into the original container shape
func wrapGraph(nodes []map[string]any, original any) any {
	asAny := make([]any, len(nodes))
	for i, n := range nodes {
		asAny[i] = n
	}

	if orig, ok := original.(map[string]any); ok {
		if _, hasGraph := orig["@graph"]; hasGraph {
			out := make(map[string]any, len(orig))
			for k, v := range orig {
				out[k] = v
			}
			out["@graph"] = asAny
			return out
		}
	}
	if _, isList := original.([]any); isList {
		return asAny
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	return map[string]any{"@context": "https://schema.org", "@graph": asAny}
}

// nodeTypes returns the @type values of a node as a slice
func nodeTypes(node map[string]any) []string {
	switch t := node["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// findNodesByType returns nodes whose @type matches any of typeNames,
// preserving graph order
func findNodesByType(graph []map[string]any, typeNames ...string) []map[string]any {
	var out []map[string]any
	for _, node := range graph {
		types := nodeTypes(node)
		for _, tn := range typeNames {
			found := false
			for _, t := range types {
				if t == tn {
					out = append(out, node)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}
	return out
}

func nodeID(node map[string]any) string {
	if id, ok := node["@id"].(string); ok && id != "" {
		return id
	}
	return "?"
}

var pageTypes = []string{"WebPage", "ServicePage", "AboutPage", "ContactPage", "CollectionPage"}

// normalizeContext injects the schema.org context when the document carries
// none. Operates on the first node since single-node documents are the
// common LLM draft shape.
func normalizeContext(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction
	if len(graph) == 0 {
		return graph, corrections
	}

	hasContext := false
	for _, node := range graph {
		if _, ok := node["@context"]; ok {
			hasContext = true
			break
		}
	}
	if !hasContext {
		graph[0]["@context"] = "https://schema.org"
		corrections = append(corrections, models.Correction{
			Transform: "normalize_context",
			NodeID:    nodeID(graph[0]),
			Detail:    "Injected missing @context: https://schema.org",
		})
	}

	return graph, corrections
}

// normalizeLogo converts bare logo URL strings to ImageObject nodes
func normalizeLogo(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction
	for _, node := range graph {
		if logo, ok := node["logo"].(string); ok {
			node["logo"] = map[string]any{"@type": "ImageObject", "url": logo}
			corrections = append(corrections, models.Correction{
				Transform: "normalize_logo",
				NodeID:    nodeID(node),
				Detail:    fmt.Sprintf("Converted bare logo string to ImageObject: %s", logo),
			})
		}
	}
	return graph, corrections
}

// ensureWebsiteNode adds a WebSite node when none exists, inferring the base
// URL from an Organization or WebPage node, and points WebPage.isPartOf at it
func ensureWebsiteNode(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction
	if len(findNodesByType(graph, "WebSite")) > 0 {
		return graph, corrections
	}

	orgs := findNodesByType(graph, "Organization", "ProfessionalService")
	pages := findNodesByType(graph, pageTypes...)

	var baseURL, orgID string
	for _, org := range orgs {
		u, _ := org["url"].(string)
		if u == "" {
			u, _ = org["@id"].(string)
		}
		if u != "" {
			if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
				baseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
				orgID, _ = org["@id"].(string)
				break
			}
		}
	}
	if baseURL == "" {
		for _, page := range pages {
			u, _ := page["url"].(string)
			if u == "" {
				u, _ = page["@id"].(string)
			}
			if u != "" {
				if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
					baseURL = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
					break
				}
			}
		}
	}
	if baseURL == "" {
		return graph, corrections
	}

	websiteID := baseURL + "/#website"
	website := map[string]any{
		"@type": "WebSite",
		"@id":   websiteID,
		"url":   baseURL,
		"name":  strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://"),
	}
	if orgID != "" {
		website["publisher"] = map[string]any{"@id": orgID}
	}

	graph = append(graph, website)
	corrections = append(corrections, models.Correction{
		Transform: "ensure_website_node",
		Detail:    fmt.Sprintf("Added missing WebSite node: %s", websiteID),
	})

	for _, page := range pages {
		isPartOf, hasRef := page["isPartOf"].(map[string]any)
		if page["isPartOf"] == nil || (hasRef && isPartOf["@id"] != websiteID) {
			page["isPartOf"] = map[string]any{"@id": websiteID}
			corrections = append(corrections, models.Correction{
				Transform: "ensure_website_node",
				NodeID:    nodeID(page),
				Detail:    fmt.Sprintf("Set WebPage.isPartOf to %s", websiteID),
			})
		}
	}

	return graph, corrections
}

// fixAboutPlacement removes 'about' from Service nodes. If a WebPage exists,
// the removed entries move there.
func fixAboutPlacement(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction
	services := findNodesByType(graph, "Service", "ProfessionalService", "FinancialService")
	pages := findNodesByType(graph, pageTypes...)

	var moved []any
	for _, svc := range services {
		about, ok := svc["about"]
		if !ok {
			continue
		}
		delete(svc, "about")
		corrections = append(corrections, models.Correction{
			Transform: "fix_about_placement",
			NodeID:    nodeID(svc),
			Detail:    "Removed 'about' from Service node",
		})
		if list, isList := about.([]any); isList {
			moved = append(moved, list...)
		} else {
			moved = append(moved, about)
		}
	}

	if len(moved) > 0 && len(pages) > 0 {
		page := pages[0]
		var existing []any
		switch e := page["about"].(type) {
		case []any:
			existing = e
		case nil:
		default:
			existing = []any{e}
		}
		page["about"] = append(existing, moved...)
		corrections = append(corrections, models.Correction{
			Transform: "fix_about_placement",
			NodeID:    nodeID(page),
			Detail:    fmt.Sprintf("Moved %d about entries to WebPage", len(moved)),
		})
	}

	return graph, corrections
}

// setMainEntity points WebPage.mainEntity at the first Service node
func setMainEntity(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction
	pages := findNodesByType(graph, "WebPage", "ServicePage")
	services := findNodesByType(graph, "Service", "ProfessionalService", "FinancialService")

	if len(pages) == 0 || len(services) == 0 {
		return graph, corrections
	}

	serviceID, _ := services[0]["@id"].(string)
	if serviceID == "" {
		return graph, corrections
	}

	page := pages[0]
	if existing, ok := page["mainEntity"].(map[string]any); ok && existing["@id"] == serviceID {
		return graph, corrections
	}

	page["mainEntity"] = map[string]any{"@id": serviceID}
	corrections = append(corrections, models.Correction{
		Transform: "set_main_entity",
		NodeID:    nodeID(page),
		Detail:    fmt.Sprintf("Set WebPage.mainEntity to %s", serviceID),
	})
	return graph, corrections
}

// embedEntities returns the transform that rewrites entity references:
// every existing knowledge-graph reference is stripped, then exactly the
// approved set (deduplicated, order preserved) is embedded as 'about'
// entries on the primary node.
func embedEntities(approved []models.EntityRef) transform {
	return func(graph []map[string]any) ([]map[string]any, []models.Correction) {
		var corrections []models.Correction

		// Strip prior knowledge-graph references everywhere so entities the
		// caller did not approve never survive from the draft
		for _, node := range graph {
			for _, key := range []string{"about", "mentions"} {
				cleaned, removed := stripEntityRefs(node[key])
				if removed > 0 {
					corrections = append(corrections, models.Correction{
						Transform: "embed_entities",
						NodeID:    nodeID(node),
						Detail:    fmt.Sprintf("Removed %d unapproved entity reference(s) from '%s'", removed, key),
					})
				}
				if cleaned == nil {
					delete(node, key)
				} else {
					node[key] = cleaned
				}
			}
		}

		if len(approved) == 0 || len(graph) == 0 {
			return graph, corrections
		}

		// Dedupe by QID, preserving caller order
		seen := map[string]bool{}
		var entries []any
		for _, ref := range approved {
			if ref.QID == "" || seen[ref.QID] {
				continue
			}
			seen[ref.QID] = true
			entries = append(entries, map[string]any{
				"@type": "Thing",
				"name":  ref.Name,
				"@id":   WikidataEntityBase + ref.QID,
			})
		}
		if len(entries) == 0 {
			return graph, corrections
		}

		target := primaryNode(graph)
		var existing []any
		if e, ok := target["about"].([]any); ok {
			existing = e
		}
		target["about"] = append(existing, entries...)
		corrections = append(corrections, models.Correction{
			Transform: "embed_entities",
			NodeID:    nodeID(target),
			Detail:    fmt.Sprintf("Embedded %d approved entity reference(s) as 'about'", len(entries)),
		})

		return graph, corrections
	}
}

// stripEntityRefs removes knowledge-graph entity references from an
// about/mentions value, returning the cleaned value and the removal count
func stripEntityRefs(val any) (any, int) {
	switch v := val.(type) {
	case nil:
		return nil, 0
	case []any:
		kept := make([]any, 0, len(v))
		removed := 0
		for _, item := range v {
			if isEntityRef(item) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) == 0 {
			return nil, removed
		}
		return kept, removed
	default:
		if isEntityRef(v) {
			return nil, 1
		}
		return v, 0
	}
}

// isEntityRef reports whether a value is a knowledge-graph entity reference
// (an object whose @id or sameAs points at a wikidata entity)
func isEntityRef(val any) bool {
	node, ok := val.(map[string]any)
	if !ok {
		return false
	}
	if id, ok := node["@id"].(string); ok && strings.Contains(id, "wikidata.org") {
		return true
	}
	switch sameAs := node["sameAs"].(type) {
	case string:
		return strings.Contains(sameAs, "wikidata.org")
	case []any:
		for _, s := range sameAs {
			if str, ok := s.(string); ok && strings.Contains(str, "wikidata.org") {
				return true
			}
		}
	}
	return false
}

// primaryNode picks the node approved entities attach to: the first
// WebPage-like node, else the first Organization, else the first node
func primaryNode(graph []map[string]any) map[string]any {
	if pages := findNodesByType(graph, pageTypes...); len(pages) > 0 {
		return pages[0]
	}
	if orgs := findNodesByType(graph, "Organization", "ProfessionalService", "LocalBusiness"); len(orgs) > 0 {
		return orgs[0]
	}
	return graph[0]
}

// validateIDRefs records a correction for every reference-only node whose
// @id does not resolve within the graph. Approved entity URIs are external
// by design and excluded.
func validateIDRefs(graph []map[string]any) ([]map[string]any, []models.Correction) {
	var corrections []models.Correction

	defined := map[string]bool{}
	for _, node := range graph {
		if id, ok := node["@id"].(string); ok && id != "" {
			defined[id] = true
		}
	}

	var check func(obj any, path string)
	check = func(obj any, path string) {
		switch v := obj.(type) {
		case map[string]any:
			if len(v) == 1 {
				if id, ok := v["@id"].(string); ok && !defined[id] && !strings.HasPrefix(id, WikidataEntityBase) {
					corrections = append(corrections, models.Correction{
						Transform: "validate_id_refs",
						Detail:    fmt.Sprintf("Dangling @id reference: %s (at %s)", id, path),
					})
				}
			}
			for _, k := range sortedKeys(v) {
				check(v[k], path+"."+k)
			}
		case []any:
			for i, item := range v {
				check(item, fmt.Sprintf("%s[%d]", path, i))
			}
		}
	}

	for _, node := range graph {
		root := "root"
		if id, ok := node["@id"].(string); ok && id != "" {
			root = id
		}
		check(node, root)
	}

	return graph, corrections
}

// sortedKeys keeps map traversal deterministic so identical input always
// produces identical correction ordering
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
