// -----------------------------------------------------------------------
// Report Service - audit results as markdown and PDF
// -----------------------------------------------------------------------

package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// Service renders audit jobs into report documents
type Service struct {
	logger arbor.ILogger
}

// NewService creates a report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// BuildMarkdown assembles the full audit report for a job
func (s *Service) BuildMarkdown(job *models.AuditJob) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# GEO Audit Report\n\n")
	fmt.Fprintf(&b, "**Job:** %s  \n", job.ID)
	if job.ProjectID != "" {
		fmt.Fprintf(&b, "**Project:** %s  \n", job.ProjectID)
	}
	fmt.Fprintf(&b, "**Status:** %s  \n", job.Status)
	fmt.Fprintf(&b, "**Created:** %s  \n", job.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Pages:** %d audited, %d failed\n\n", countResults(job), len(job.Errors))

	if job.Error != "" {
		fmt.Fprintf(&b, "## Job Error\n\n%s\n\n", job.Error)
	}

	for _, result := range job.Results {
		if result == nil {
			continue
		}
		s.writeResult(&b, result)
	}

	if len(job.Errors) > 0 {
		b.WriteString("## Failed Pages\n\n")
		for _, e := range job.Errors {
			fmt.Fprintf(&b, "- %s (stage: %s): %s\n", e.URL, e.Stage, e.Message)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (s *Service) writeResult(b *strings.Builder, result *models.Result) {
	fmt.Fprintf(b, "## %s\n\n", result.URL)

	if result.PageIntent != "" {
		fmt.Fprintf(b, "**Page Intent:** %s\n\n", result.PageIntent)
	}
	if !result.RenderedHTMLAvailable {
		b.WriteString("**Note:** rendered HTML was unavailable; this audit reflects server-side HTML only.\n\n")
	}
	if result.VisibilityDiagnosis != "" {
		fmt.Fprintf(b, "### Visibility Diagnosis\n\n%s\n\n", result.VisibilityDiagnosis)
	}
	if result.FixPlan != "" {
		fmt.Fprintf(b, "### Fix Plan\n\n%s\n\n", result.FixPlan)
	}

	if result.JSONLD != nil {
		if pretty, err := json.MarshalIndent(result.JSONLD, "", "  "); err == nil {
			fmt.Fprintf(b, "### Corrected JSON-LD\n\n```json\n%s\n```\n\n", pretty)
		}
	}

	if len(result.JSONLDCorrections) > 0 {
		b.WriteString("### Applied Corrections\n\n")
		for _, c := range result.JSONLDCorrections {
			if c.NodeID != "" {
				fmt.Fprintf(b, "- **%s** (%s): %s\n", c.Transform, c.NodeID, c.Detail)
			} else {
				fmt.Fprintf(b, "- **%s**: %s\n", c.Transform, c.Detail)
			}
		}
		b.WriteString("\n")
	}

	if len(result.UsedQIDs) > 0 {
		b.WriteString("### Linked Entities\n\n")
		for _, ref := range result.UsedQIDs {
			fmt.Fprintf(b, "- %s (%s)\n", ref.Name, ref.QID)
		}
		b.WriteString("\n")
	}

	if result.FlattenedSchema != "" {
		fmt.Fprintf(b, "### How Machines Read This Page\n\n%s\n\n", result.FlattenedSchema)
	}
}

func countResults(job *models.AuditJob) int {
	count := 0
	for _, r := range job.Results {
		if r != nil {
			count++
		}
	}
	return count
}

var _ interfaces.ReportService = (*Service)(nil)
