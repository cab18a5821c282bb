package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/geoscope/internal/models"
)

// BuildPDF renders the job's markdown report to a PDF document
func (s *Service) BuildPDF(job *models.AuditJob) ([]byte, error) {
	markdown := s.BuildMarkdown(job)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(fmt.Sprintf("GEO Audit Report %s", job.ID), false)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{pdf: pdf, source: source, size: 9}
	if err := renderer.render(doc); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report PDF: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("pdf_size", buf.Len()).
		Msg("Report PDF generated")

	return buf.Bytes(), nil
}

// pdfRenderer walks the markdown AST and emits fpdf drawing calls. Covers
// the node kinds the report builder produces: headings, paragraphs,
// emphasis, lists, and fenced code blocks.
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	size      float64
	bold      bool
	listLevel int
}

func (r *pdfRenderer) render(doc ast.Node) error {
	return ast.Walk(doc, r.walk)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Text(r.source)))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
			r.resetFont()
		}
	case *ast.CodeSpan:
		return r.codeSpan(node, entering)
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(12 + float64(r.listLevel)*4)
			r.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if entering {
		r.pdf.Ln(5)
		size := 10.0
		switch n.Level {
		case 1:
			size = 14
		case 2:
			size = 12
		case 3:
			size = 11
		}
		r.pdf.SetFont("Arial", "B", size)
	} else {
		r.pdf.Ln(6)
		r.resetFont()
	}
}

func (r *pdfRenderer) codeSpan(n *ast.CodeSpan, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.SetFont("Courier", "", r.size)
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if textNode, ok := c.(*ast.Text); ok {
				r.pdf.Write(5, string(textNode.Segment.Value(r.source)))
			}
		}
		return ast.WalkSkipChildren, nil
	}
	r.resetFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) codeBlock(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Courier", "", 8)
	r.pdf.SetFillColor(245, 245, 245)

	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, 4, string(line.Value(r.source)), "", "L", true)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.resetFont()
	r.pdf.Ln(2)
}

func (r *pdfRenderer) resetFont() {
	style := ""
	if r.bold {
		style = "B"
	}
	r.pdf.SetFont("Arial", style, r.size)
}
