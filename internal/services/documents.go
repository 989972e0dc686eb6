package services

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ternarybob/arbor"

	"studybuddy/internal/models"
)

// ErrUnsupportedFileType is returned for uploads outside the PDF, text and Word family.
var ErrUnsupportedFileType = errors.New("unsupported file type")

type documentKind int

const (
	documentPDF documentKind = iota + 1
	documentText
	documentWord
)

// DocumentService turns uploads into prompt-ready text.
type DocumentService struct {
	pdf      *PDFService
	maxChars int
	logger   arbor.ILogger
}

func NewDocumentService(pdf *PDFService, maxChars int, logger arbor.ILogger) *DocumentService {
	return &DocumentService{pdf: pdf, maxChars: maxChars, logger: logger}
}

// ResolveMediaType returns the declared type, or a sniffed one when the
// client sent nothing useful.
func ResolveMediaType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(data) == 0 {
		return declared
	}
	return mimetype.Detect(data).String()
}

// classify matches the base media type, parameters stripped, against the
// allowlist: PDF, plain text and the Word family.
func classify(mediaType string) (documentKind, error) {
	base, _, _ := strings.Cut(strings.ToLower(mediaType), ";")
	base = strings.TrimSpace(base)
	switch {
	case base == "application/pdf":
		return documentPDF, nil
	case base == "text/plain":
		return documentText, nil
	case strings.HasPrefix(base, "application/") && strings.Contains(base, "word"):
		return documentWord, nil
	default:
		return 0, ErrUnsupportedFileType
	}
}

// Accepts reports whether the media type is on the upload allowlist.
func Accepts(mediaType string) bool {
	_, err := classify(mediaType)
	return err == nil
}

// CheckUpload validates the upload's type, sniffing it when undeclared.
func CheckUpload(upload models.Upload) error {
	if !Accepts(ResolveMediaType(upload.MediaType, upload.Data)) {
		return ErrUnsupportedFileType
	}
	return nil
}

// ExtractText decodes the upload and truncates it to the configured limit.
func (s *DocumentService) ExtractText(upload models.Upload) (string, error) {
	mediaType := ResolveMediaType(upload.MediaType, upload.Data)
	kind, err := classify(mediaType)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case documentPDF:
		text = s.pdfText(upload)
	default:
		text = decodeRaw(upload.Data)
	}

	truncated, cut := Truncate(text, s.maxChars)
	if cut {
		s.logger.Debug().
			Str("file", upload.Name).
			Int("limit", s.maxChars).
			Msg("File content truncated")
	}
	return truncated, nil
}

func (s *DocumentService) pdfText(upload models.Upload) string {
	if s.pdf != nil {
		text, err := s.pdf.ExtractText(upload.Data)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			s.logger.Debug().Str("file", upload.Name).Err(err).Msg("PDF text layer unavailable, using raw bytes")
		}
	}
	return decodeRaw(upload.Data)
}

// decodeRaw reinterprets bytes as UTF-8, replacing invalid sequences.
func decodeRaw(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// Truncate cuts text to at most limit characters. A non-positive limit keeps everything.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]), true
}
