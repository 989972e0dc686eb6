package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"studybuddy/internal/models"
)

// ErrUnknownExportFormat is returned for formats other than text, md, html and pdf.
var ErrUnknownExportFormat = errors.New("unknown export format")

const (
	FormatText     = "text"
	FormatMarkdown = "md"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// Export is a rendered study guide ready to download.
type Export struct {
	ContentType string
	Extension   string
	Data        []byte
}

// ExportService renders study guides for download.
type ExportService struct {
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

func NewExportService(logger arbor.ILogger) *ExportService {
	return &ExportService{
		markdown: goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		logger:   logger,
	}
}

func (s *ExportService) Render(guide *models.StudyGuide, format string) (*Export, error) {
	if guide == nil {
		return nil, errors.New("no study guide to export")
	}
	switch strings.ToLower(format) {
	case "", FormatText:
		return &Export{ContentType: "text/plain; charset=utf-8", Extension: "txt", Data: []byte(guide.PlainText())}, nil
	case FormatMarkdown:
		return &Export{ContentType: "text/markdown; charset=utf-8", Extension: "md", Data: []byte(StudyGuideMarkdown(guide))}, nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(StudyGuideMarkdown(guide)), &buf); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return &Export{ContentType: "text/html; charset=utf-8", Extension: "html", Data: buf.Bytes()}, nil
	case FormatPDF:
		data, err := s.renderPDF(guide)
		if err != nil {
			return nil, err
		}
		return &Export{ContentType: "application/pdf", Extension: "pdf", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExportFormat, format)
	}
}

// StudyGuideMarkdown renders the guide as a markdown document.
func StudyGuideMarkdown(guide *models.StudyGuide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", guide.Title)
	for _, sec := range guide.Content {
		fmt.Fprintf(&b, "\n## %s\n\n", sec.Section)
		if sec.Summary != "" {
			b.WriteString(sec.Summary)
			b.WriteString("\n\n")
		}
		for _, point := range sec.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}
	return b.String()
}

func (s *ExportService) renderPDF(guide *models.StudyGuide) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(guide.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(guide.Title), "", "L", false)
	pdf.Ln(4)

	for _, sec := range guide.Content {
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 6, tr(sec.Section), "", "L", false)
		pdf.Ln(1)
		if sec.Summary != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.MultiCell(0, 5, tr(sec.Summary), "", "L", false)
			pdf.Ln(1)
		}
		pdf.SetFont("Arial", "", 10)
		for _, point := range sec.KeyPoints {
			pdf.MultiCell(0, 5, tr("• "+point), "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("Study guide PDF generated")
	return buf.Bytes(), nil
}
