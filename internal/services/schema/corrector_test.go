package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ternarybob/geoscope/internal/models"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid test fixture: %v", err)
	}
	return v
}

func hasTransform(corrections []models.Correction, name string) bool {
	for _, c := range corrections {
		if c.Transform == name {
			return true
		}
	}
	return false
}

func TestCorrectInjectsMissingContext(t *testing.T) {
	raw := mustParse(t, `{"@type": "Thing", "name": "Widget"}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	doc, ok := result.JSONLD.(map[string]any)
	if !ok {
		t.Fatalf("expected single-node output, got %T", result.JSONLD)
	}
	if doc["@context"] != "https://schema.org" {
		t.Errorf("@context = %v, want https://schema.org", doc["@context"])
	}
	if !hasTransform(result.Corrections, "normalize_context") {
		t.Error("expected normalize_context correction")
	}
}

func TestCorrectNormalizesLogo(t *testing.T) {
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@type": "Organization",
		"@id": "https://example.com/#org",
		"name": "Acme",
		"url": "https://example.com",
		"logo": "https://example.com/logo.png"
	}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	data, _ := json.Marshal(result.JSONLD)
	if !strings.Contains(string(data), `"ImageObject"`) {
		t.Error("logo string was not converted to ImageObject")
	}
	if !hasTransform(result.Corrections, "normalize_logo") {
		t.Error("expected normalize_logo correction")
	}
}

func TestCorrectAddsWebsiteNode(t *testing.T) {
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "Organization", "@id": "https://example.com/#org", "name": "Acme", "url": "https://example.com"},
			{"@type": "WebPage", "@id": "https://example.com/about", "url": "https://example.com/about"}
		]
	}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	data, _ := json.Marshal(result.JSONLD)
	if !strings.Contains(string(data), `"WebSite"`) {
		t.Error("WebSite node was not added")
	}
	if !strings.Contains(string(data), `https://example.com/#website`) {
		t.Error("WebSite @id not derived from organization URL")
	}
	if !hasTransform(result.Corrections, "ensure_website_node") {
		t.Error("expected ensure_website_node correction")
	}
}

func TestCorrectMovesAboutFromService(t *testing.T) {
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "Service", "@id": "https://example.com/#svc", "name": "Tax Advice",
			 "about": [{"@type": "Thing", "name": "Taxation"}]},
			{"@type": "WebPage", "@id": "https://example.com/tax", "url": "https://example.com/tax"}
		]
	}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	graph := extractGraph(result.JSONLD)
	services := findNodesByType(graph, "Service")
	if len(services) != 1 {
		t.Fatalf("expected 1 service node, got %d", len(services))
	}
	if _, stillThere := services[0]["about"]; stillThere {
		t.Error("'about' should have been removed from Service node")
	}

	pages := findNodesByType(graph, "WebPage")
	if len(pages) != 1 || pages[0]["about"] == nil {
		t.Error("'about' entries should have moved to the WebPage")
	}
	if !hasTransform(result.Corrections, "set_main_entity") {
		t.Error("expected set_main_entity correction alongside about move")
	}
}

func TestCorrectEmbedsOnlyApprovedEntities(t *testing.T) {
	// Draft already carries an entity the user did not approve
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@type": "WebPage",
		"@id": "https://example.com/page",
		"url": "https://example.com/page",
		"about": [{"@type": "Thing", "name": "Old Concept", "@id": "https://www.wikidata.org/entity/Q999"}]
	}`)

	approved := []models.EntityRef{
		{Name: "Financial planning", QID: "Q837171"},
		{Name: "Financial planning", QID: "Q837171"}, // duplicate collapses
		{Name: "Retirement", QID: "Q1132510"},
	}

	result, err := Correct(raw, approved)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	data, _ := json.Marshal(result.JSONLD)
	out := string(data)

	if strings.Contains(out, "Q999") {
		t.Error("unapproved draft entity survived correction")
	}
	if strings.Count(out, "Q837171") != 1 {
		t.Errorf("duplicate approved entity not collapsed: %s", out)
	}
	if !strings.Contains(out, WikidataEntityBase+"Q1132510") {
		t.Error("approved entity missing from output")
	}
}

func TestCorrectWithNoApprovedEntitiesHasNoEntityRefs(t *testing.T) {
	raw := mustParse(t, `{"@type": "Thing"}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	data, _ := json.Marshal(result.JSONLD)
	if strings.Contains(string(data), "wikidata.org") {
		t.Error("output contains entity references despite empty approved set")
	}
}

func TestCorrectIsDeterministic(t *testing.T) {
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "Organization", "@id": "https://example.com/#org", "name": "Acme",
			 "url": "https://example.com", "logo": "https://example.com/logo.png"},
			{"@type": "Service", "@id": "https://example.com/#svc", "name": "Advice",
			 "about": [{"@type": "Thing", "name": "Money"}]},
			{"@type": "WebPage", "@id": "https://example.com/", "url": "https://example.com/",
			 "publisher": {"@id": "https://example.com/#missing"}}
		]
	}`)
	approved := []models.EntityRef{{Name: "Finance", QID: "Q43015"}}

	first, err := Correct(raw, approved)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := Correct(raw, approved)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	firstJSON, _ := json.Marshal(first.JSONLD)
	secondJSON, _ := json.Marshal(second.JSONLD)
	if string(firstJSON) != string(secondJSON) {
		t.Error("corrected JSON-LD differs between identical runs")
	}
	if first.FlattenedSchema != second.FlattenedSchema {
		t.Error("flattened schema differs between identical runs")
	}
	if len(first.Corrections) != len(second.Corrections) {
		t.Errorf("correction counts differ: %d vs %d", len(first.Corrections), len(second.Corrections))
	}
}

func TestCorrectDoesNotMutateInput(t *testing.T) {
	raw := mustParse(t, `{"@type": "Organization", "logo": "https://example.com/logo.png"}`)
	before, _ := json.Marshal(raw)

	if _, err := Correct(raw, []models.EntityRef{{Name: "X", QID: "Q1"}}); err != nil {
		t.Fatalf("Correct failed: %v", err)
	}

	after, _ := json.Marshal(raw)
	if string(before) != string(after) {
		t.Error("Correct mutated its input document")
	}
}

func TestCorrectFlagsDanglingIDRefs(t *testing.T) {
	raw := mustParse(t, `{
		"@context": "https://schema.org",
		"@type": "WebPage",
		"@id": "https://example.com/",
		"publisher": {"@id": "https://example.com/#nowhere"}
	}`)

	result, err := Correct(raw, nil)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if !hasTransform(result.Corrections, "validate_id_refs") {
		t.Error("expected validate_id_refs correction for dangling reference")
	}
}

func TestCorrectRejectsInvalidInput(t *testing.T) {
	if _, err := Correct("not json at all", nil); err == nil {
		t.Error("expected error for unparseable string input")
	}
	if _, err := Correct(42, nil); err == nil {
		t.Error("expected error for scalar input")
	}
}

func TestCorrectAcceptsJSONString(t *testing.T) {
	result, err := Correct(`{"@type": "Thing", "name": "Widget"}`, nil)
	if err != nil {
		t.Fatalf("Correct failed on string input: %v", err)
	}
	if result.JSONLD == nil {
		t.Error("expected parsed JSON-LD output")
	}
}
