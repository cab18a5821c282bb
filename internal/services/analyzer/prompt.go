package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/ternarybob/geoscope/internal/models"
)

// BuildAuditPrompt assembles the audit prompt for a single page. The model
// is asked to suggest concept names only; entity QIDs are resolved and
// embedded deterministically after the model responds.
func BuildAuditPrompt(content *models.PageContent) string {
	auditSummary := map[string]any{}
	if content.ServerAudit != nil {
		auditSummary["server"] = content.ServerAudit
	}
	if content.RenderedAudit != nil {
		auditSummary["rendered"] = content.RenderedAudit
	}
	summaryJSON, _ := json.MarshalIndent(auditSummary, "", "  ")

	candidates := content.CandidateServiceURLs
	if len(candidates) > 25 {
		candidates = candidates[:25]
	}
	candidatesJSON, _ := json.MarshalIndent(candidates, "", "  ")

	parseErrors := content.SchemaErrors
	if len(parseErrors) > 3 {
		parseErrors = parseErrors[:3]
	}
	errorsJSON, _ := json.MarshalIndent(parseErrors, "", "  ")

	chunks := content.Chunks
	if len(chunks) > 3 {
		chunks = chunks[:3]
	}
	chunksJSON, _ := json.MarshalIndent(chunks, "", "  ")

	var b strings.Builder
	b.WriteString(`You are a "Generative Engine Optimization (GEO) Architect" and "Technical SEO auditor".

Your job:
(A) Determine page intent and recommend schema improvements.
(B) Diagnose whether the schema is VISIBLE/USABLE to crawlers.
(C) If schema is not visible/usable, recommend TECHNICAL fixes (not just new JSON-LD).
(D) Ensure Service.url points to the correct dedicated service page (not the homepage).
(E) Bridge entities to Wikidata for GEO visibility.

--- URL ---
`)
	b.WriteString(content.URL)
	b.WriteString(`

--- CRAWL VISIBILITY AUDIT (IMPORTANT) ---
- "server" = raw HTML from the initial HTTP fetch (closer to initial crawler fetch)
- "rendered" = post-JS DOM from headless browser
Audit summary:
`)
	b.Write(summaryJSON)
	b.WriteString(`

Interpretation rules:
1) If server.blocks_count == 0 but rendered.blocks_count > 0:
   -> Schema likely injected by JS. Recommend SSR / output JSON-LD in initial HTML.
2) If errors_count > 0 on server or rendered:
   -> JSON-LD invalid JSON. Recommend fixing syntax, one valid JSON per script, no trailing commas.
3) If robots_meta includes "noindex" or canonical points away:
   -> Recommend fixing indexability/canonicalization first.

--- CANDIDATE SERVICE PAGE URLS (INTERNAL LINKS FOUND) ---
`)
	b.Write(candidatesJSON)
	b.WriteString(`

IMPORTANT RULE (Service URLs):
- When outputting a Service node, set Service.url to the MOST RELEVANT dedicated service page.
- Prefer URLs like /services/... that match the service name.
- If the current page IS the service page, set Service.url to this page URL.
- If NO dedicated service page exists, OMIT Service.url (do NOT point everything to the homepage).

--- GEO ENTITY BRIDGE (WIKIDATA) ---
Hard requirements:
1) In your output, include a "suggested_concepts" section: a JSON array of concept names
   (plain strings like ["FinTech", "Foreign Exchange"]) that are relevant to this page.
   These will be looked up on Wikidata by the system — do NOT include QIDs yourself.
2) Do NOT include "about" arrays with sameAs in the JSON-LD for this pass.
   The about/sameAs will be added after the user approves the QIDs.
3) Do NOT output OWL/SKOS/RDF code.
4) Do NOT invent QIDs.

--- JSON-LD STRUCTURE RULES (MANDATORY — MUST MATCH schema.org) ---
Your JSON-LD output MUST follow this structure AND only use properties valid on each type per https://schema.org/docs/schemas.html:

1) "logo" MUST be an ImageObject: { "@type": "ImageObject", "url": "<logo_url>" } — NEVER a bare string.
2) Include a WebSite node: @id = "<site_url>/#website", url, name, publisher -> #organization.
3) WebPage: isPartOf -> #website (NOT #organization); mainEntity -> #service.
   Valid properties: name, url, description, isPartOf, mainEntity, about, breadcrumb, datePublished, dateModified.
4) Put "about" ONLY on WebPage (the GEO entity bridge). NEVER on Service or Organization nodes.
5) Organization / LocalBusiness / ProfessionalService:
   Valid properties: name, url, logo, description, address, telephone, email, sameAs, areaServed, geo, priceRange, openingHours, parentOrganization.
   NOTE: "provider" is NOT valid on ProfessionalService or Organization. Use "parentOrganization" instead.
6) Service (use this type for service offerings, NOT ProfessionalService):
   Valid properties: name, url, description, provider, serviceType, areaServed, offers, category.
   "provider" IS valid here — link to #organization.
7) Use @id references (e.g. { "@id": "<url>/#organization" }) to link nodes — do not duplicate data.
8) IMPORTANT: Only use properties that exist on schema.org for the given @type.
   Check the type hierarchy: ProfessionalService → LocalBusiness → Organization → Thing.
   Service → Intangible → Thing. These are DIFFERENT branches — do not mix their properties.

--- SCHEMA PARSE ERRORS (first 3) ---
`)
	b.Write(errorsJSON)
	b.WriteString(`

--- PAGE CONTENT (first 3 chunks) ---
`)
	b.Write(chunksJSON)
	b.WriteString(`

TASKS — respond with these exact sections:

1) Page Intent:
   State one of: Home / Service / Blog / Product / About / Contact

2) Visibility Diagnosis:
   3-6 bullets on schema visibility issues.

3) Fix Plan:
   Prioritized steps (technical + schema + validation).

4) JSON-LD:
   Output corrected JSON-LD in a ` + "```json" + ` fenced code block.
   Follow all JSON-LD STRUCTURE RULES above.

5) Suggested Concepts:
   Output a JSON array of concept name strings relevant to this page, e.g.:
   ` + "```json" + `
   ["FinTech", "Foreign Exchange", "Payment Processing"]
   ` + "```" + `
   These will be looked up on Wikidata for the user to approve.
`)

	return b.String()
}

// verifyPrompt is the cheap pre-flight probe sent before a job starts
const verifyPrompt = "Respond with the single word: ok"
