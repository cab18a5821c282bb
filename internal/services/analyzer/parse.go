package analyzer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ternarybob/geoscope/internal/models"
)

// Section heading patterns tolerate the model's formatting drift:
// "### 1) Page Intent", "1) Page Intent:", "**Page Intent:**" all match.
func headingRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:#{1,4}\s*)?(?:\d+\)\s*)?(?:\*\*)?` + label + `[:\s]*(?:\*\*)?[:\s]*`)
}

var (
	intentHeading    = headingRe(`Page[_ ]Intent`)
	diagnosisHeading = headingRe(`Visibility[_ ]Diagnosis`)
	fixPlanHeading   = headingRe(`Fix[_ ]Plan`)
	jsonLDHeading    = headingRe(`JSON-LD`)

	jsonBlockRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	conceptsRe  = regexp.MustCompile(`(?ism)^[ \t]*(?:#{1,4}\s*)?(?:\d+\)\s*)?(?:\*\*)?Suggested[_ ]Concepts[:\s]*(?:\*\*)?[:\s]*` + "```json\\s*\\n(\\[.*?\\])\\s*```")
)

// sectionBetween extracts the text after the start heading up to the end
// heading. Returns "" when the start heading is absent.
func sectionBetween(text string, start, end *regexp.Regexp) string {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if endLoc := end.FindStringIndex(rest); endLoc != nil {
		rest = rest[:endLoc[0]]
	} else {
		return ""
	}
	return strings.TrimSpace(rest)
}

// sectionAfter extracts text after the heading, stopping at the next fenced
// block or end of input
func sectionAfter(text string, start *regexp.Regexp) string {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if fence := strings.Index(rest, "```"); fence >= 0 {
		rest = rest[:fence]
	}
	return strings.TrimSpace(rest)
}

// ParseResponse splits the model's output into the structured analysis:
// report sections, the draft JSON-LD, and the suggested concept list
func ParseResponse(text string) *models.PageAnalysis {
	analysis := &models.PageAnalysis{
		RawResponse: text,
	}

	analysis.PageIntent = sectionBetween(text, intentHeading, diagnosisHeading)
	analysis.VisibilityDiagnosis = sectionBetween(text, diagnosisHeading, fixPlanHeading)
	if plan := sectionBetween(text, fixPlanHeading, jsonLDHeading); plan != "" {
		analysis.FixPlan = plan
	} else {
		analysis.FixPlan = sectionAfter(text, fixPlanHeading)
	}

	analysis.DraftJSONLD = ExtractJSONLD(text)
	analysis.SuggestedConcepts = ExtractSuggestedConcepts(text)

	return analysis
}

// ExtractJSONLD finds the first fenced json block in the output that looks
// like JSON-LD (carries @context, @graph, or @type)
func ExtractJSONLD(text string) any {
	for _, m := range jsonBlockRe.FindAllStringSubmatch(text, -1) {
		var obj any
		if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
			continue
		}
		switch v := obj.(type) {
		case map[string]any:
			for _, key := range []string{"@context", "@graph", "@type"} {
				if _, ok := v[key]; ok {
					return v
				}
			}
		case []any:
			for _, item := range v {
				if node, ok := item.(map[string]any); ok {
					if _, hasType := node["@type"]; hasType {
						return v
					}
				}
			}
		}
	}
	return nil
}

// ExtractSuggestedConcepts pulls the suggested_concepts array from the
// output. Falls back to any fenced json array of strings when the labeled
// section is missing.
func ExtractSuggestedConcepts(text string) []string {
	if m := conceptsRe.FindStringSubmatch(text); m != nil {
		if concepts, ok := parseStringArray(m[1]); ok {
			return concepts
		}
	}

	for _, m := range jsonBlockRe.FindAllStringSubmatch(text, -1) {
		trimmed := strings.TrimSpace(m[1])
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		if concepts, ok := parseStringArray(trimmed); ok {
			return concepts
		}
	}

	return []string{}
}

func parseStringArray(s string) ([]string, bool) {
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		str, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}
