package schema

import (
	"fmt"
	"strings"
)

// Flatten converts a JSON-LD graph into natural-language prose for vector
// search and embeddings. Roughly 300-500 tokens, no JSON syntax.
// Deterministic for identical input.
func Flatten(jsonld any) string {
	graph := extractGraph(jsonld)
	if len(graph) == 0 {
		return ""
	}

	orgs := findNodesByType(graph, "Organization", "ProfessionalService", "Corporation", "LocalBusiness")
	pages := findNodesByType(graph, "WebPage", "ServicePage", "AboutPage", "ContactPage", "CollectionPage", "ItemPage", "FAQPage")
	services := findNodesByType(graph, "Service", "FinancialService")
	posts := findNodesByType(graph, "BlogPosting", "Article", "NewsArticle")

	var sentences []string

	for _, org := range orgs {
		name := flatValue(org["name"])
		if name == "" {
			name = "the organization"
		}
		s := fmt.Sprintf("%s is a %s", name, strings.Join(nodeTypes(org), ", "))
		if u := flatValue(org["url"]); u != "" {
			s += fmt.Sprintf(" located at %s", u)
		}
		if desc := flatValue(org["description"]); desc != "" {
			s += ". " + desc
		}
		if area := flatValue(org["areaServed"]); area != "" {
			s += fmt.Sprintf(". They serve %s", area)
		}
		sentences = append(sentences, strings.TrimRight(s, ".")+".")

		if labels := aboutLabels(org); len(labels) > 0 {
			sentences = append(sentences, fmt.Sprintf("%s relates to %s.", name, strings.Join(labels, ", ")))
		}
	}

	for _, svc := range services {
		name := flatValue(svc["name"])
		if name == "" {
			name = "a service"
		}
		s := fmt.Sprintf("They provide %s", name)
		if desc := flatValue(svc["description"]); desc != "" {
			s += ": " + desc
		}
		if u := flatValue(svc["url"]); u != "" {
			s += fmt.Sprintf(" The service is available at %s.", u)
		}
		sentences = append(sentences, strings.TrimRight(s, ".")+".")

		if catalog, ok := svc["hasOfferCatalog"].(map[string]any); ok {
			var offerNames []string
			if offers, ok := catalog["itemListElement"].([]any); ok {
				for _, offer := range offers {
					if o, ok := offer.(map[string]any); ok {
						if n := flatValue(o["name"]); n != "" {
							offerNames = append(offerNames, n)
						}
					}
				}
			}
			if len(offerNames) > 0 {
				sentences = append(sentences, fmt.Sprintf("Service offerings include %s.", strings.Join(offerNames, ", ")))
			}
		}
	}

	for _, page := range pages {
		name := flatValue(page["name"])
		u := flatValue(page["url"])
		if name != "" && u != "" {
			sentences = append(sentences, fmt.Sprintf("This page (%s) covers %s.", u, name))
		} else if u != "" {
			sentences = append(sentences, fmt.Sprintf("This page is at %s.", u))
		}
		if labels := aboutLabels(page); len(labels) > 0 {
			sentences = append(sentences, fmt.Sprintf("Key topics: %s.", strings.Join(labels, ", ")))
		}
	}

	for _, post := range posts {
		title := flatValue(post["headline"])
		if title == "" {
			title = flatValue(post["name"])
		}
		if title == "" {
			continue
		}
		s := fmt.Sprintf("Article: %s", title)
		if author := flatValue(post["author"]); author != "" {
			s += fmt.Sprintf(" by %s", author)
		}
		sentences = append(sentences, s+".")
	}

	return strings.Join(sentences, " ")
}

// flatValue renders a JSON-LD property value as display text: objects
// collapse to their name/url/@id, lists join with commas
func flatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"name", "url", "@id"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	case []any:
		var parts []string
		for _, item := range v {
			if s := flatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// aboutLabels extracts concept names from a node's about array
func aboutLabels(node map[string]any) []string {
	about := node["about"]
	items, ok := about.([]any)
	if !ok {
		if about == nil {
			return nil
		}
		items = []any{about}
	}

	var labels []string
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				labels = append(labels, name)
			}
		case string:
			labels = append(labels, v)
		}
	}
	return labels
}
